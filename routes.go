package main

import (
	"context"
	"errors"
	"net/http"
	"time"

	gorillaHandlers "github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"kyoolAPI/handlers"
	"kyoolAPI/internal/config"
	"kyoolAPI/internal/docstore"
	"kyoolAPI/internal/events"
	"kyoolAPI/internal/timezone"
	"kyoolAPI/middleware"
	"kyoolAPI/services"
)

type app struct {
	cfg      *config.Config
	store    docstore.Store
	verifier middleware.TokenVerifier
	limiter  *middleware.RateLimiter

	users         *services.UserService
	streaks       *services.StreakService
	friendships   *services.FriendshipService
	water         *services.WaterService
	workouts      *services.WorkoutService
	bodyFat       *services.BodyFatService
	feed          *services.FeedService
	waitlist      *services.WaitlistService
	goals         *services.GoalService
	routines      *services.RoutineService
	notifications *services.NotificationService
}

func newApp(cfg *config.Config, store docstore.Store, clock timezone.Clock, publisher events.Publisher, verifier middleware.TokenVerifier) *app {
	a := &app{
		cfg:      cfg,
		store:    store,
		verifier: verifier,
		limiter:  middleware.NewRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst),
	}

	a.notifications = services.NewNotificationService(store, clock)
	a.users = services.NewUserService(store, clock)

	a.streaks = services.NewStreakService(store, clock)
	a.streaks.SetNotifier(a.notifications)
	a.streaks.SetPublisher(publisher)

	a.friendships = services.NewFriendshipService(store, clock)
	a.friendships.SetNotifier(a.notifications)
	a.friendships.SetPublisher(publisher)

	a.water = services.NewWaterService(store, clock, a.streaks, cfg.WaterSessionWindow)
	a.water.SetPublisher(publisher)

	a.workouts = services.NewWorkoutService(store, clock, a.streaks)
	a.workouts.SetPublisher(publisher)

	a.bodyFat = services.NewBodyFatService(store, clock)
	a.feed = services.NewFeedService(a.users, a.water, a.workouts)
	a.waitlist = services.NewWaitlistService(store, clock)

	a.goals = services.NewGoalService(store, clock)
	a.goals.SetPublisher(publisher)
	a.routines = services.NewRoutineService(store, clock)
	return a
}

func (a *app) routes() http.Handler {
	userHandler := handlers.NewUserHandler(a.users)
	friendshipHandler := handlers.NewFriendshipHandler(a.friendships)
	streakHandler := handlers.NewStreakHandler(a.streaks)
	waterHandler := handlers.NewWaterHandler(a.water)
	workoutHandler := handlers.NewWorkoutHandler(a.workouts, a.bodyFat)
	feedHandler := handlers.NewFeedHandler(a.feed)
	waitlistHandler := handlers.NewWaitlistHandler(a.waitlist)
	notificationHandler := handlers.NewNotificationHandler(a.notifications)
	goalHandler := handlers.NewGoalHandler(a.goals)
	routineHandler := handlers.NewRoutineHandler(a.routines)

	r := mux.NewRouter()

	standardRouter := r.PathPrefix("/").Subrouter()
	standardRouter.Use(a.limiter.Middleware)
	standardRouter.Use(middleware.MonitorMiddleware)

	standardRouter.Handle("/metrics", middleware.BasicAuthMiddleware(a.cfg.MetricsUser, a.cfg.MetricsPass)(promhttp.Handler()))
	standardRouter.PathPrefix("/debug/pprof/").Handler(middleware.PprofSecurityMiddleware(a.cfg.PprofSecret)(http.DefaultServeMux))
	standardRouter.HandleFunc("/health", a.health).Methods("GET")

	if a.cfg.AuthProvider == config.AuthClerk {
		webhookHandler := handlers.NewWebhookHandler(a.users, a.cfg.ClerkWebhookSecret)
		standardRouter.HandleFunc("/webhooks/clerk", webhookHandler.HandleClerkWebhook).Methods("POST")
	}

	// -------------------------------------------------------------------------
	// API V1 SUBROUTER
	// -------------------------------------------------------------------------
	api := standardRouter.PathPrefix("/api/v1").Subrouter()

	api.HandleFunc("/waitlist", waitlistHandler.Join).Methods("POST")
	api.HandleFunc("/waitlist/stats", waitlistHandler.Stats).Methods("GET")
	api.HandleFunc("/user/username-available", userHandler.UsernameAvailable).Methods("GET")

	admin := api.PathPrefix("/admin").Subrouter()
	admin.Use(middleware.BasicAuthMiddleware(a.cfg.AdminUser, a.cfg.AdminPass))
	admin.HandleFunc("/waitlist/entries", waitlistHandler.Entries).Methods("GET")
	admin.HandleFunc("/waitlist/entries/{id}/status", waitlistHandler.UpdateStatus).Methods("PUT")

	// -------------------------------------------------------------------------
	// PROTECTED ROUTES (REQUIRE AUTH HEADER)
	// -------------------------------------------------------------------------
	protected := api.PathPrefix("").Subrouter()
	protected.Use(middleware.AuthMiddleware(a.verifier))

	protected.HandleFunc("/user", userHandler.CreateProfile).Methods("POST")
	protected.HandleFunc("/user", userHandler.GetProfile).Methods("GET")
	protected.HandleFunc("/user/update-profile", userHandler.UpdateProfile).Methods("PUT")
	protected.HandleFunc("/user/timezone", userHandler.UpdateTimezone).Methods("PUT")
	protected.HandleFunc("/user/delete-account", userHandler.DeleteAccount).Methods("DELETE")
	protected.HandleFunc("/user/heartbeat", userHandler.Heartbeat).Methods("POST")
	protected.HandleFunc("/user/search", userHandler.SearchUsers).Methods("GET")
	protected.HandleFunc("/user/by-email", userHandler.GetUserByEmail).Methods("GET")

	protected.HandleFunc("/user/friends", userHandler.GetFriends).Methods("GET")
	protected.HandleFunc("/user/friends", friendshipHandler.RemoveFriend).Methods("DELETE")
	protected.HandleFunc("/user/friends/{userID}/status", friendshipHandler.GetRequestStatus).Methods("GET")
	protected.HandleFunc("/user/friends/{userID}/are-friends", friendshipHandler.AreFriends).Methods("GET")
	protected.HandleFunc("/user/friends/{userID}/debug", friendshipHandler.DebugFriendship).Methods("GET")
	protected.HandleFunc("/user/friends/{userID}/repair", friendshipHandler.RepairFriendship).Methods("POST")

	protected.HandleFunc("/user/friend-requests", friendshipHandler.SendRequest).Methods("POST")
	protected.HandleFunc("/user/friend-requests/accept", friendshipHandler.AcceptRequest).Methods("POST")
	protected.HandleFunc("/user/friend-requests/reject", friendshipHandler.RejectRequest).Methods("POST")
	protected.HandleFunc("/user/friend-requests/incoming", friendshipHandler.IncomingRequests).Methods("GET")
	protected.HandleFunc("/user/friend-requests/outgoing", friendshipHandler.OutgoingRequests).Methods("GET")
	protected.HandleFunc("/user/friend-requests/{userID}", friendshipHandler.RevokeRequest).Methods("DELETE")

	protected.HandleFunc("/user/streaks", streakHandler.GetAllStreaks).Methods("GET")
	protected.HandleFunc("/user/streaks/{type}", streakHandler.GetStreak).Methods("GET")
	protected.HandleFunc("/user/streaks/{type}/update", streakHandler.RecordActivity).Methods("POST")
	protected.HandleFunc("/user/streaks/{type}/reset", streakHandler.ResetStreak).Methods("POST")

	protected.HandleFunc("/user/water", waterHandler.LogWater).Methods("POST")
	protected.HandleFunc("/user/water/today", waterHandler.GetToday).Methods("GET")
	protected.HandleFunc("/user/water/history", waterHandler.GetHistory).Methods("GET")
	protected.HandleFunc("/user/water/session", waterHandler.GetSession).Methods("GET")
	protected.HandleFunc("/user/water/flush", waterHandler.FlushSession).Methods("POST")
	protected.HandleFunc("/user/water/events", waterHandler.GetEvents).Methods("GET")

	protected.HandleFunc("/user/workouts", workoutHandler.LogWorkout).Methods("POST")
	protected.HandleFunc("/user/workouts", workoutHandler.GetHistory).Methods("GET")
	protected.HandleFunc("/user/workouts/latest", workoutHandler.GetLatest).Methods("GET")
	protected.HandleFunc("/user/workouts/today", workoutHandler.LoggedToday).Methods("GET")
	protected.HandleFunc("/user/workouts/consistency", workoutHandler.GetConsistency).Methods("GET")

	protected.HandleFunc("/user/body-fat", workoutHandler.LogBodyFat).Methods("POST")
	protected.HandleFunc("/user/body-fat/latest", workoutHandler.LatestBodyFat).Methods("GET")
	protected.HandleFunc("/user/body-fat/history", workoutHandler.BodyFatHistory).Methods("GET")

	protected.HandleFunc("/user/feed", feedHandler.GetFeed).Methods("GET")

	protected.HandleFunc("/user/goals", goalHandler.CreateGoal).Methods("POST")
	protected.HandleFunc("/user/goals", goalHandler.ListGoals).Methods("GET")
	protected.HandleFunc("/user/goals/stats", goalHandler.GoalStats).Methods("GET")
	protected.HandleFunc("/user/goals/{id}", goalHandler.GetGoal).Methods("GET")
	protected.HandleFunc("/user/goals/{id}", goalHandler.UpdateGoal).Methods("PUT")
	protected.HandleFunc("/user/goals/{id}", goalHandler.DeleteGoal).Methods("DELETE")

	protected.HandleFunc("/user/routines", routineHandler.CreateRoutine).Methods("POST")
	protected.HandleFunc("/user/routines", routineHandler.ListRoutines).Methods("GET")
	protected.HandleFunc("/user/routines/{id}", routineHandler.GetRoutine).Methods("GET")
	protected.HandleFunc("/user/routines/{id}", routineHandler.UpdateRoutine).Methods("PUT")
	protected.HandleFunc("/user/routines/{id}", routineHandler.DeleteRoutine).Methods("DELETE")
	protected.HandleFunc("/user/schedule", routineHandler.SaveSchedule).Methods("PUT")
	protected.HandleFunc("/user/schedule", routineHandler.GetSchedule).Methods("GET")
	protected.HandleFunc("/user/schedule/today", routineHandler.TodayRoutine).Methods("GET")

	protected.HandleFunc("/notifications", notificationHandler.GetNotifications).Methods("GET")
	protected.HandleFunc("/notifications/read-all", notificationHandler.MarkAllAsRead).Methods("PUT")
	protected.HandleFunc("/notifications/register-device", notificationHandler.RegisterDevice).Methods("POST")
	protected.HandleFunc("/notifications/register-device", notificationHandler.UnregisterDevice).Methods("DELETE")
	protected.HandleFunc("/notifications/{id}/read", notificationHandler.MarkAsRead).Methods("PUT")
	protected.HandleFunc("/notifications/{id}", notificationHandler.DeleteNotification).Methods("DELETE")

	// CORS configuration
	corsHandler := gorillaHandlers.CORS(
		gorillaHandlers.AllowedOrigins(a.cfg.AllowOrigins),
		gorillaHandlers.AllowedMethods([]string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}),
		gorillaHandlers.AllowedHeaders([]string{"Content-Type", "Authorization", "X-Pprof-Secret"}),
		gorillaHandlers.ExposedHeaders([]string{"Content-Length"}),
	)

	return corsHandler(r)
}

// health reads a sentinel document; a missing document still proves the store
// answers.
func (a *app) health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	w.Header().Set("Content-Type", "application/json")
	if _, err := a.store.Get(ctx, "health", "ping"); err != nil && !errors.Is(err, docstore.ErrNotFound) {
		w.WriteHeader(http.StatusServiceUnavailable)
		w.Write([]byte(`{"status": "unhealthy", "error": "document store unavailable"}`))
		return
	}

	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status": "healthy", "service": "kyool-api"}`))
}
