package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	firebase "firebase.google.com/go/v4"
	clerk "github.com/clerk/clerk-sdk-go/v2"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"

	"kyoolAPI/internal/config"
	"kyoolAPI/internal/docstore"
	"kyoolAPI/internal/events"
	"kyoolAPI/internal/firebaseapp"
	"kyoolAPI/internal/notification"
	"kyoolAPI/internal/timezone"
	"kyoolAPI/internal/workers"
	"kyoolAPI/middleware"
	"kyoolAPI/services"

	_ "net/http/pprof"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal("Invalid configuration: ", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	var fbApp *firebase.App
	if cfg.UsesFirebase() {
		fbApp, err = firebaseapp.NewApp(ctx, firebaseapp.Config{
			ServiceAccountJSON: cfg.FirebaseServiceAccountJSON,
			CredentialsFile:    cfg.FirebaseCredentialsFile,
			ProjectID:          cfg.FirebaseProjectID,
		})
		if err != nil {
			log.Fatal("Failed to initialize Firebase: ", err)
		}
		log.Println("Firebase initialized successfully")
	}

	store, err := newStore(ctx, cfg, fbApp)
	if err != nil {
		log.Fatal("Failed to open document store: ", err)
	}
	defer func() {
		log.Println("Closing document store...")
		store.Close()
	}()
	log.Printf("Using %s document store", cfg.StoreBackend)

	verifier, err := newVerifier(ctx, cfg, fbApp)
	if err != nil {
		log.Fatal("Failed to initialize auth: ", err)
	}

	publisher := newPublisher(cfg)
	defer publisher.Close()

	app := newApp(cfg, store, timezone.SystemClock(), publisher, verifier)
	defer app.notifications.Stop()

	if fbApp != nil {
		fcmService, err := notification.NewFCMService(ctx, fbApp)
		if err != nil {
			log.Printf("Warning: Could not initialize FCM: %v", err)
		} else {
			app.notifications.Dispatcher().SetPushProvider(fcmService)
			log.Println("FCM Push Provider initialized successfully")
		}
	}

	middleware.RegisterMetrics(prometheus.DefaultRegisterer)
	services.RegisterMetrics(prometheus.DefaultRegisterer)

	runCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go app.limiter.CleanupVisitors(runCtx)
	flusherDone := workers.StartSessionFlusher(runCtx, app.water, cfg.WaterFlushInterval)

	port := ":" + cfg.Port
	server := http.Server{
		Addr:         port,
		Handler:      app.routes(),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		log.Printf("Starting server on port %s", port)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("Error starting server:", err)
		}
	}()

	<-runCtx.Done()
	log.Println("Shutdown signal received")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server shutdown error: %v", err)
	}
	<-flusherDone

	log.Println("Server shutdown complete")
}

func newStore(ctx context.Context, cfg *config.Config, fbApp *firebase.App) (docstore.Store, error) {
	switch cfg.StoreBackend {
	case config.BackendFirestore:
		client, err := fbApp.Firestore(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to create firestore client: %w", err)
		}
		return docstore.NewFirestoreStore(client), nil

	case config.BackendPostgres:
		poolConfig, err := pgxpool.ParseConfig(cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("failed to parse database URL: %w", err)
		}
		poolConfig.MaxConns = 25
		poolConfig.MinConns = 5
		poolConfig.MaxConnLifetime = time.Hour
		poolConfig.MaxConnIdleTime = 30 * time.Minute
		poolConfig.HealthCheckPeriod = time.Minute

		pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
		if err != nil {
			return nil, fmt.Errorf("failed to create connection pool: %w", err)
		}
		if err := pool.Ping(ctx); err != nil {
			pool.Close()
			return nil, fmt.Errorf("failed to ping database: %w", err)
		}
		store, err := docstore.NewPostgresStore(ctx, pool)
		if err != nil {
			pool.Close()
			return nil, err
		}
		return store, nil

	case config.BackendRedis:
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		if err := client.Ping(ctx).Err(); err != nil {
			client.Close()
			return nil, fmt.Errorf("failed to ping redis: %w", err)
		}
		return docstore.NewRedisStore(client), nil

	default:
		log.Println("Warning: using the in-memory store, data is lost on restart")
		return docstore.NewMemoryStore(), nil
	}
}

func newVerifier(ctx context.Context, cfg *config.Config, fbApp *firebase.App) (middleware.TokenVerifier, error) {
	if cfg.AuthProvider == config.AuthClerk {
		clerk.SetKey(cfg.ClerkSecretKey)
		log.Println("Clerk initialized successfully")
		return middleware.ClerkVerifier{}, nil
	}

	client, err := fbApp.Auth(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create firebase auth client: %w", err)
	}
	return middleware.NewFirebaseVerifier(client), nil
}

func newPublisher(cfg *config.Config) events.Publisher {
	if cfg.NATSURL == "" {
		log.Println("NATS_URL not set, activity events are not published")
		return events.NopPublisher{}
	}
	pub, err := events.NewNATSPublisher(events.NATSConfig{
		URL:           cfg.NATSURL,
		Name:          "kyool-api",
		SubjectPrefix: cfg.NATSSubjectPrefix,
	})
	if err != nil {
		log.Printf("Warning: Could not connect to NATS: %v", err)
		return events.NopPublisher{}
	}
	log.Printf("Publishing activity events to NATS at %s", cfg.NATSURL)
	return pub
}
