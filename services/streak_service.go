package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"regexp"
	"sort"
	"time"

	"kyoolAPI/internal/docstore"
	"kyoolAPI/internal/events"
	"kyoolAPI/internal/notification"
	"kyoolAPI/internal/timezone"
	"kyoolAPI/internal/types/streak"
)

var activityTypePattern = regexp.MustCompile(`^[a-z][a-z0-9_-]{0,31}$`)

// streakMilestones trigger a notification when the current streak reaches them.
var streakMilestones = map[int]bool{7: true, 30: true, 100: true, 365: true}

type StreakService struct {
	store     docstore.Store
	clock     timezone.Clock
	notifier  Notifier
	publisher events.Publisher
}

func NewStreakService(store docstore.Store, clock timezone.Clock) *StreakService {
	return &StreakService{
		store:     store,
		clock:     clock,
		notifier:  nopNotifier{},
		publisher: events.NopPublisher{},
	}
}

func (s *StreakService) SetNotifier(n Notifier) {
	s.notifier = n
}

func (s *StreakService) SetPublisher(p events.Publisher) {
	s.publisher = p
}

func ValidActivityType(activityType string) bool {
	return activityTypePattern.MatchString(activityType)
}

// RecordActivity applies one day's activity to the (user, type) streak. The
// read-modify-write runs in a store transaction so concurrent calls on the same
// day cannot double count.
func (s *StreakService) RecordActivity(ctx context.Context, userID, activityType string) (*streak.UpdateResponse, error) {
	if !ValidActivityType(activityType) {
		return nil, ErrInvalidActivityType
	}

	now := s.clock.Now()
	var resp *streak.UpdateResponse
	err := s.store.RunTransaction(ctx, func(ctx context.Context, tx docstore.Tx) error {
		r, err := recordActivityTx(tx, userID, activityType, now)
		if err != nil {
			return err
		}
		resp = r
		return nil
	})
	if err != nil {
		log.Printf("RecordActivity: Failed to update %s streak for %s: %v", activityType, userID, err)
		return nil, asServiceError("failed to update streak", err)
	}

	s.afterRecord(userID, resp)
	return resp, nil
}

// recordActivityTx is shared with the water and workout services, which update a
// streak as part of their own transaction. It reads before it writes.
func recordActivityTx(tx docstore.Tx, userID, activityType string, now time.Time) (*streak.UpdateResponse, error) {
	u, err := loadUser(tx, userID)
	if err != nil {
		return nil, err
	}
	current, exists, err := loadStreak(tx, userID, activityType)
	if err != nil {
		return nil, err
	}

	today := timezone.LocalDate(u.Timezone, now.UTC())
	next, transition := nextStreak(current, exists, today)
	if transition == streak.TransitionNoop {
		return &streak.UpdateResponse{Streak: current, Transition: transition}, nil
	}

	next.UpdatedAt = now.UTC()
	doc, err := docstore.Encode(next)
	if err != nil {
		return nil, fmt.Errorf("failed to encode streak: %w", err)
	}
	if err := tx.Set(streaksCollection(userID), activityType, doc); err != nil {
		return nil, err
	}
	return &streak.UpdateResponse{Streak: next, Transition: transition}, nil
}

// nextStreak is the pure transition function.
func nextStreak(current *streak.Streak, exists bool, today string) (*streak.Streak, streak.Transition) {
	next := *current
	if !exists || current.LastLoggedDate == nil {
		next.CurrentStreak = 1
		next.LastLoggedDate = &today
		next.StartDate = &today
		if next.LongestStreak < 1 {
			next.LongestStreak = 1
		}
		if !exists {
			return &next, streak.TransitionInitial
		}
		return &next, streak.TransitionReset
	}

	last := *current.LastLoggedDate
	if last == today {
		return current, streak.TransitionNoop
	}

	transition := streak.TransitionReset
	if yesterday, err := timezone.AddDays(today, -1); err == nil && last == yesterday {
		transition = streak.TransitionContinue
	}

	if transition == streak.TransitionContinue {
		next.CurrentStreak = current.CurrentStreak + 1
		if next.StartDate == nil {
			next.StartDate = current.LastLoggedDate
		}
	} else {
		next.CurrentStreak = 1
		next.StartDate = &today
	}
	next.LastLoggedDate = &today
	if next.CurrentStreak > next.LongestStreak {
		next.LongestStreak = next.CurrentStreak
	}
	return &next, transition
}

func (s *StreakService) afterRecord(userID string, resp *streak.UpdateResponse) {
	streakTransitions.WithLabelValues(resp.Streak.ActivityType, string(resp.Transition)).Inc()
	if resp.Transition == streak.TransitionNoop {
		return
	}

	publishEvent(s.publisher, events.StreakUpdated, userID, map[string]any{
		"activity_type":  resp.Streak.ActivityType,
		"current_streak": resp.Streak.CurrentStreak,
		"transition":     string(resp.Transition),
	})

	days := resp.Streak.CurrentStreak
	if resp.Transition == streak.TransitionContinue && streakMilestones[days] {
		sendNotification(s.notifier, userID, notification.TypeStreakMilestone,
			fmt.Sprintf("%d day %s streak!", days, resp.Streak.ActivityType),
			fmt.Sprintf("You have logged %s %d days in a row. Keep it going!", resp.Streak.ActivityType, days),
			map[string]any{"activity_type": resp.Streak.ActivityType, "days": days},
			nil,
		)
	}
}

// GetStreak returns the stored streak or the zero state without creating it.
func (s *StreakService) GetStreak(ctx context.Context, userID, activityType string) (*streak.Streak, error) {
	if !ValidActivityType(activityType) {
		return nil, ErrInvalidActivityType
	}
	doc, err := s.store.Get(ctx, streaksCollection(userID), activityType)
	if errors.Is(err, docstore.ErrNotFound) {
		return streak.Zero(activityType), nil
	}
	if err != nil {
		return nil, storeErr("failed to get streak", err)
	}
	return decodeStreak(doc, activityType)
}

// ResetStreak forces the zero state. LongestStreak is kept.
func (s *StreakService) ResetStreak(ctx context.Context, userID, activityType string) (*streak.Streak, error) {
	if !ValidActivityType(activityType) {
		return nil, ErrInvalidActivityType
	}

	now := s.clock.Now().UTC()
	var reset *streak.Streak
	err := s.store.RunTransaction(ctx, func(ctx context.Context, tx docstore.Tx) error {
		current, _, err := loadStreak(tx, userID, activityType)
		if err != nil {
			return err
		}
		reset = streak.Zero(activityType)
		reset.LongestStreak = current.LongestStreak
		reset.UpdatedAt = now
		doc, err := docstore.Encode(reset)
		if err != nil {
			return err
		}
		return tx.Set(streaksCollection(userID), activityType, doc)
	})
	if err != nil {
		log.Printf("ResetStreak: Failed to reset %s streak for %s: %v", activityType, userID, err)
		return nil, asServiceError("failed to reset streak", err)
	}
	return reset, nil
}

// GetAllStreaks maps every activity type the user has logged to its streak.
func (s *StreakService) GetAllStreaks(ctx context.Context, userID string) (map[string]*streak.Streak, error) {
	snaps, err := s.store.List(ctx, streaksCollection(userID))
	if err != nil {
		return nil, storeErr("failed to list streaks", err)
	}
	out := make(map[string]*streak.Streak, len(snaps))
	for _, snap := range snaps {
		st, err := decodeStreak(snap.Data, snap.Key)
		if err != nil {
			log.Printf("GetAllStreaks: Skipping malformed streak %s for %s: %v", snap.Key, userID, err)
			continue
		}
		out[snap.Key] = st
	}
	return out, nil
}

// SortedStreaks is GetAllStreaks ordered by current streak, longest first.
func (s *StreakService) SortedStreaks(ctx context.Context, userID string) ([]*streak.Streak, error) {
	all, err := s.GetAllStreaks(ctx, userID)
	if err != nil {
		return nil, err
	}
	list := make([]*streak.Streak, 0, len(all))
	for _, st := range all {
		list = append(list, st)
	}
	sort.Slice(list, func(i, j int) bool {
		if list[i].CurrentStreak != list[j].CurrentStreak {
			return list[i].CurrentStreak > list[j].CurrentStreak
		}
		return list[i].ActivityType < list[j].ActivityType
	})
	return list, nil
}

func loadStreak(tx docstore.Tx, userID, activityType string) (*streak.Streak, bool, error) {
	doc, err := tx.Get(streaksCollection(userID), activityType)
	if errors.Is(err, docstore.ErrNotFound) {
		return streak.Zero(activityType), false, nil
	}
	if err != nil {
		return nil, false, err
	}
	st, err := decodeStreak(doc, activityType)
	if err != nil {
		return nil, false, err
	}
	return st, true, nil
}

func decodeStreak(doc docstore.Document, activityType string) (*streak.Streak, error) {
	var st streak.Streak
	if err := docstore.Decode(doc, &st); err != nil {
		return nil, storeErr("malformed streak document", err)
	}
	st.ActivityType = activityType
	st.Normalize()
	return &st, nil
}
