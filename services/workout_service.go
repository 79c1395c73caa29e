package services

import (
	"context"
	"log"
	"sort"

	"github.com/google/uuid"

	"kyoolAPI/internal/docstore"
	"kyoolAPI/internal/events"
	"kyoolAPI/internal/timezone"
	"kyoolAPI/internal/types/streak"
	"kyoolAPI/internal/types/workout"
)

const (
	workoutActivityType = "workout"
	defaultHistoryLimit = 20
)

type WorkoutService struct {
	store     docstore.Store
	clock     timezone.Clock
	streaks   *StreakService
	publisher events.Publisher
}

func NewWorkoutService(store docstore.Store, clock timezone.Clock, streaks *StreakService) *WorkoutService {
	return &WorkoutService{
		store:     store,
		clock:     clock,
		streaks:   streaks,
		publisher: events.NopPublisher{},
	}
}

func (s *WorkoutService) SetPublisher(p events.Publisher) {
	s.publisher = p
}

// LogWorkout stores a completed workout and records the workout streak.
func (s *WorkoutService) LogWorkout(ctx context.Context, userID string, req *workout.LogRequest) (*workout.Workout, error) {
	if len(req.ExercisesCompleted) == 0 {
		return nil, invalid("at least one exercise is required")
	}

	now := s.clock.Now().UTC()
	w := &workout.Workout{
		ID:                 uuid.NewString(),
		UserID:             userID,
		RoutineName:        req.RoutineName,
		ExercisesCompleted: req.ExercisesCompleted,
		DurationMinutes:    req.DurationMinutes,
		SharedWith:         req.SharedWith,
		CreatedAt:          now,
	}
	if w.SharedWith == nil {
		w.SharedWith = []string{}
	}

	var streakResp *streak.UpdateResponse
	err := s.store.RunTransaction(ctx, func(ctx context.Context, tx docstore.Tx) error {
		u, err := loadUser(tx, userID)
		if err != nil {
			return err
		}
		w.LocalDate = timezone.LocalDate(u.Timezone, now)

		streakResp, err = recordActivityTx(tx, userID, workoutActivityType, now)
		if err != nil {
			return err
		}
		return putDocument(tx, workoutsCollection(userID), w.ID, w)
	})
	if err != nil {
		log.Printf("LogWorkout: Failed to log workout for %s: %v", userID, err)
		return nil, asServiceError("failed to log workout", err)
	}

	s.streaks.afterRecord(userID, streakResp)
	publishEvent(s.publisher, events.WorkoutLogged, userID, map[string]any{
		"workout_id":       w.ID,
		"routine_name":     w.RoutineName,
		"duration_minutes": w.DurationMinutes,
		"exercises":        len(w.ExercisesCompleted),
	})
	return w, nil
}

// WorkoutHistory lists workouts newest first.
func (s *WorkoutService) WorkoutHistory(ctx context.Context, userID string, limit int) ([]*workout.Workout, error) {
	if limit <= 0 {
		limit = defaultHistoryLimit
	}
	all, err := s.workouts(ctx, userID)
	if err != nil {
		return nil, err
	}
	if len(all) > limit {
		all = all[:limit]
	}
	return all, nil
}

func (s *WorkoutService) LatestWorkout(ctx context.Context, userID string) (*workout.Workout, error) {
	all, err := s.workouts(ctx, userID)
	if err != nil {
		return nil, err
	}
	if len(all) == 0 {
		return nil, ErrNotFoundGeneric
	}
	return all[0], nil
}

// LoggedToday reports whether a workout exists for the user's local today.
func (s *WorkoutService) LoggedToday(ctx context.Context, userID string) (bool, error) {
	u, err := getUser(ctx, s.store, userID)
	if err != nil {
		return false, err
	}
	today := timezone.LocalDate(u.Timezone, s.clock.Now().UTC())
	snaps, err := s.store.QueryEqual(ctx, workoutsCollection(userID), "local_date", today)
	if err != nil {
		return false, storeErr("failed to query workouts", err)
	}
	return len(snaps) > 0, nil
}

// Consistency returns one entry per local day for the last days days, most
// recent first.
func (s *WorkoutService) Consistency(ctx context.Context, userID string, days int) ([]workout.ConsistencyDay, error) {
	if days <= 0 || days > maxHistoryDays {
		return nil, invalid("days must be between 1 and %d", maxHistoryDays)
	}
	u, err := getUser(ctx, s.store, userID)
	if err != nil {
		return nil, err
	}
	all, err := s.workouts(ctx, userID)
	if err != nil {
		return nil, err
	}
	counts := make(map[string]int)
	for _, w := range all {
		counts[w.LocalDate]++
	}

	dates := timezone.LocalDateRange(u.Timezone, days, s.clock.Now().UTC())
	out := make([]workout.ConsistencyDay, len(dates))
	for i, date := range dates {
		out[i] = workout.ConsistencyDay{Date: date, Completed: counts[date] > 0, Count: counts[date]}
	}
	return out, nil
}

func (s *WorkoutService) workouts(ctx context.Context, userID string) ([]*workout.Workout, error) {
	snaps, err := s.store.List(ctx, workoutsCollection(userID))
	if err != nil {
		return nil, storeErr("failed to list workouts", err)
	}
	list := make([]*workout.Workout, 0, len(snaps))
	for _, snap := range snaps {
		var w workout.Workout
		if err := docstore.Decode(snap.Data, &w); err != nil {
			log.Printf("workouts: Skipping malformed workout %s for %s: %v", snap.Key, userID, err)
			continue
		}
		list = append(list, &w)
	}
	sort.Slice(list, func(i, j int) bool { return list[i].CreatedAt.After(list[j].CreatedAt) })
	return list, nil
}
