// Package config reads the server settings from the environment, after loading
// an optional .env file.
package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	BackendMemory    = "memory"
	BackendFirestore = "firestore"
	BackendPostgres  = "postgres"
	BackendRedis     = "redis"

	AuthFirebase = "firebase"
	AuthClerk    = "clerk"
)

type Config struct {
	Port string

	StoreBackend string
	DatabaseURL  string

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	FirebaseCredentialsFile    string
	FirebaseServiceAccountJSON string
	FirebaseProjectID          string

	AuthProvider       string
	ClerkSecretKey     string
	ClerkWebhookSecret string

	NATSURL           string
	NATSSubjectPrefix string

	WaterSessionWindow time.Duration
	WaterFlushInterval time.Duration

	RateLimitRPS   float64
	RateLimitBurst int

	MetricsUser  string
	MetricsPass  string
	PprofSecret  string
	AllowOrigins []string

	// AdminUser and AdminPass guard the waitlist admin routes; empty disables them.
	AdminUser string
	AdminPass string
}

// Load reads .env (when present) and then the process environment.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found")
	}
	return FromEnv(os.Getenv)
}

// FromEnv builds a Config from a lookup function and validates it.
func FromEnv(getenv func(string) string) (*Config, error) {
	get := func(key, def string) string {
		if v := strings.TrimSpace(getenv(key)); v != "" {
			return v
		}
		return def
	}

	cfg := &Config{
		Port:                       get("PORT", "3333"),
		StoreBackend:               strings.ToLower(get("STORE_BACKEND", BackendMemory)),
		DatabaseURL:                get("DATABASE_URL", ""),
		RedisAddr:                  get("REDIS_ADDR", "localhost:6379"),
		RedisPassword:              get("REDIS_PASSWORD", ""),
		FirebaseCredentialsFile:    get("FIREBASE_CREDENTIALS_FILE", ""),
		FirebaseServiceAccountJSON: get("FIREBASE_SERVICE_ACCOUNT_JSON", ""),
		FirebaseProjectID:          get("FIREBASE_PROJECT_ID", ""),
		AuthProvider:               strings.ToLower(get("AUTH_PROVIDER", AuthFirebase)),
		ClerkSecretKey:             get("CLERK_SECRET_KEY", ""),
		ClerkWebhookSecret:         get("CLERK_WEBHOOK_SECRET", ""),
		NATSURL:                    get("NATS_URL", ""),
		NATSSubjectPrefix:          get("NATS_SUBJECT_PREFIX", "kyool"),
		MetricsUser:                get("METRICS_USER", ""),
		MetricsPass:                get("METRICS_PASS", ""),
		PprofSecret:                get("PPROF_SECRET", ""),
		AllowOrigins:               splitList(get("CORS_ALLOWED_ORIGINS", "*")),
		AdminUser:                  get("ADMIN_USER", ""),
		AdminPass:                  get("ADMIN_PASS", ""),
	}

	var err error
	if cfg.RedisDB, err = strconv.Atoi(get("REDIS_DB", "0")); err != nil {
		return nil, fmt.Errorf("invalid REDIS_DB: %w", err)
	}
	if cfg.WaterSessionWindow, err = time.ParseDuration(get("WATER_SESSION_WINDOW", "30s")); err != nil {
		return nil, fmt.Errorf("invalid WATER_SESSION_WINDOW: %w", err)
	}
	if cfg.WaterFlushInterval, err = time.ParseDuration(get("WATER_FLUSH_INTERVAL", "1m")); err != nil {
		return nil, fmt.Errorf("invalid WATER_FLUSH_INTERVAL: %w", err)
	}
	if cfg.RateLimitRPS, err = strconv.ParseFloat(get("RATE_LIMIT_RPS", "5"), 64); err != nil {
		return nil, fmt.Errorf("invalid RATE_LIMIT_RPS: %w", err)
	}
	if cfg.RateLimitBurst, err = strconv.Atoi(get("RATE_LIMIT_BURST", "30")); err != nil {
		return nil, fmt.Errorf("invalid RATE_LIMIT_BURST: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	switch c.StoreBackend {
	case BackendMemory, BackendFirestore, BackendRedis:
	case BackendPostgres:
		if c.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL is required for the postgres backend")
		}
	default:
		return fmt.Errorf("unknown STORE_BACKEND %q", c.StoreBackend)
	}

	switch c.AuthProvider {
	case AuthFirebase:
	case AuthClerk:
		if c.ClerkSecretKey == "" {
			return fmt.Errorf("CLERK_SECRET_KEY is required for clerk auth")
		}
	default:
		return fmt.Errorf("unknown AUTH_PROVIDER %q", c.AuthProvider)
	}

	if c.WaterSessionWindow <= 0 || c.WaterFlushInterval <= 0 {
		return fmt.Errorf("water session durations must be positive")
	}
	if c.RateLimitRPS <= 0 || c.RateLimitBurst <= 0 {
		return fmt.Errorf("rate limit settings must be positive")
	}
	return nil
}

// UsesFirebase reports whether a Firebase app is needed at startup.
func (c *Config) UsesFirebase() bool {
	return c.StoreBackend == BackendFirestore || c.AuthProvider == AuthFirebase ||
		c.FirebaseServiceAccountJSON != "" || c.FirebaseCredentialsFile != ""
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
