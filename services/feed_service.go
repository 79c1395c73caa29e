package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"

	"kyoolAPI/internal/types/feed"
	"kyoolAPI/internal/user"
)

const defaultFeedLimit = 50

// FeedService merges the water events and workouts of a user and their friends.
type FeedService struct {
	users    *UserService
	water    *WaterService
	workouts *WorkoutService
}

func NewFeedService(users *UserService, water *WaterService, workouts *WorkoutService) *FeedService {
	return &FeedService{users: users, water: water, workouts: workouts}
}

// GetFeed returns the newest items first. The owner's idle water session is
// flushed first so it shows up.
func (s *FeedService) GetFeed(ctx context.Context, userID string, limit int) ([]*feed.Item, error) {
	if limit <= 0 || limit > 200 {
		limit = defaultFeedLimit
	}

	owner, err := s.users.GetUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if _, err := s.water.FlushSession(ctx, userID, false); err != nil {
		log.Printf("GetFeed: Failed to flush water session for %s: %v", userID, err)
	}

	members := []*user.User{owner}
	for _, friendID := range owner.Friends {
		f, err := s.users.GetUser(ctx, friendID)
		if errors.Is(err, ErrUserNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		members = append(members, f)
	}

	items := []*feed.Item{}
	for _, m := range members {
		waterEvents, err := s.water.WaterEvents(ctx, m.ID, limit)
		if err != nil {
			return nil, err
		}
		for _, e := range waterEvents {
			items = append(items, &feed.Item{
				ID:        e.ID,
				Type:      feed.ItemWater,
				UserID:    m.ID,
				Username:  m.Username,
				Summary:   fmt.Sprintf("%s drank %g glasses of water", m.Username, e.Glasses),
				Data:      map[string]any{"glasses": e.Glasses},
				CreatedAt: e.CreatedAt,
			})
		}

		workouts, err := s.workouts.WorkoutHistory(ctx, m.ID, limit)
		if err != nil {
			return nil, err
		}
		for _, w := range workouts {
			items = append(items, &feed.Item{
				ID:       w.ID,
				Type:     feed.ItemWorkout,
				UserID:   m.ID,
				Username: m.Username,
				Summary:  fmt.Sprintf("%s completed %s", m.Username, w.RoutineName),
				Data: map[string]any{
					"routine_name":     w.RoutineName,
					"duration_minutes": w.DurationMinutes,
					"exercises":        len(w.ExercisesCompleted),
				},
				CreatedAt: w.CreatedAt,
			})
		}
	}

	sort.SliceStable(items, func(i, j int) bool { return items[i].CreatedAt.After(items[j].CreatedAt) })
	if len(items) > limit {
		items = items[:limit]
	}
	return items, nil
}
