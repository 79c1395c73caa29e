package services

import "kyoolAPI/internal/docstore"

const (
	usersCollection          = "users"
	friendRequestsCollection = "friend_requests"
	waitlistCollection       = "waitlist"
	countersCollection       = "counters"
)

func streaksCollection(userID string) string {
	return docstore.Path(usersCollection, userID, "streaks")
}

func notificationsCollection(userID string) string {
	return docstore.Path(usersCollection, userID, "notifications")
}

func devicesCollection(userID string) string {
	return docstore.Path(usersCollection, userID, "devices")
}

func waterDailyCollection(userID string) string {
	return docstore.Path(usersCollection, userID, "water_daily")
}

func waterSessionCollection(userID string) string {
	return docstore.Path(usersCollection, userID, "water_session")
}

func waterEventsCollection(userID string) string {
	return docstore.Path(usersCollection, userID, "water_events")
}

func workoutsCollection(userID string) string {
	return docstore.Path(usersCollection, userID, "workouts")
}

func bodyFatCollection(userID string) string {
	return docstore.Path(usersCollection, userID, "bodyfat_logs")
}

func goalsCollection(userID string) string {
	return docstore.Path(usersCollection, userID, "goals")
}

func routinesCollection(userID string) string {
	return docstore.Path(usersCollection, userID, "routines")
}

func scheduleCollection(userID string) string {
	return docstore.Path(usersCollection, userID, "schedule")
}

// userSubcollections lists every per-user collection removed with the account.
func userSubcollections(userID string) []string {
	return []string{
		streaksCollection(userID),
		notificationsCollection(userID),
		devicesCollection(userID),
		waterDailyCollection(userID),
		waterSessionCollection(userID),
		waterEventsCollection(userID),
		workoutsCollection(userID),
		bodyFatCollection(userID),
		goalsCollection(userID),
		routinesCollection(userID),
		scheduleCollection(userID),
	}
}
