package services

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	streakTransitions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "streak_transitions_total",
			Help: "Streak state transitions by activity type",
		},
		[]string{"activity_type", "transition"},
	)
	friendRequestTransitions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "friend_request_transitions_total",
			Help: "Friend request state changes",
		},
		[]string{"transition"},
	)
	waterSessionsFlushed = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "water_sessions_flushed_total",
			Help: "Water sessions flushed into feed events",
		},
	)
	notificationsDispatched = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notifications_dispatched_total",
			Help: "Notifications processed by the dispatcher",
		},
		[]string{"status"},
	)
)

// RegisterMetrics registers the service counters. Call this from main.go
func RegisterMetrics(reg prometheus.Registerer) {
	reg.MustRegister(streakTransitions)
	reg.MustRegister(friendRequestTransitions)
	reg.MustRegister(waterSessionsFlushed)
	reg.MustRegister(notificationsDispatched)
}
