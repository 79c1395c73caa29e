package services

import (
	"context"
	"errors"
	"log"
	"sort"
	"time"

	"github.com/google/uuid"

	"kyoolAPI/internal/docstore"
	"kyoolAPI/internal/events"
	"kyoolAPI/internal/timezone"
	"kyoolAPI/internal/types/goal"
)

type GoalService struct {
	store     docstore.Store
	clock     timezone.Clock
	publisher events.Publisher
}

func NewGoalService(store docstore.Store, clock timezone.Clock) *GoalService {
	return &GoalService{
		store:     store,
		clock:     clock,
		publisher: events.NopPublisher{},
	}
}

func (s *GoalService) SetPublisher(p events.Publisher) {
	s.publisher = p
}

// CreateGoal stores a new goal. A goal created at or past its target starts
// out completed.
func (s *GoalService) CreateGoal(ctx context.Context, userID string, req *goal.CreateRequest) (*goal.Goal, error) {
	if req.TargetValue <= 0 {
		return nil, invalid("target_value must be positive")
	}
	if _, err := time.Parse(timezone.DateLayout, req.Deadline); err != nil {
		return nil, invalid("deadline must be a date (YYYY-MM-DD)")
	}

	now := s.clock.Now().UTC()
	g := &goal.Goal{
		ID:           uuid.NewString(),
		UserID:       userID,
		Title:        req.Title,
		Description:  req.Description,
		Category:     req.Category,
		TargetValue:  req.TargetValue,
		CurrentValue: req.CurrentValue,
		Unit:         req.Unit,
		Deadline:     req.Deadline,
		Priority:     req.Priority,
		Status:       goal.StatusActive,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if g.Priority == "" {
		g.Priority = "medium"
	}
	completeIfReached(g, now)

	err := s.store.RunTransaction(ctx, func(ctx context.Context, tx docstore.Tx) error {
		if _, err := loadUser(tx, userID); err != nil {
			return err
		}
		return putDocument(tx, goalsCollection(userID), g.ID, g)
	})
	if err != nil {
		log.Printf("CreateGoal: Failed to create goal for %s: %v", userID, err)
		return nil, asServiceError("failed to create goal", err)
	}
	return g, nil
}

// ListGoals returns the user's goals ordered by deadline, optionally only
// those with the given status.
func (s *GoalService) ListGoals(ctx context.Context, userID string, status goal.Status) ([]*goal.Goal, error) {
	if status != "" && !status.Valid() {
		return nil, invalid("status must be one of active, completed, paused")
	}
	var snaps []docstore.Snapshot
	var err error
	if status == "" {
		snaps, err = s.store.List(ctx, goalsCollection(userID))
	} else {
		snaps, err = s.store.QueryEqual(ctx, goalsCollection(userID), "status", string(status))
	}
	if err != nil {
		return nil, storeErr("failed to list goals", err)
	}

	goals := make([]*goal.Goal, 0, len(snaps))
	for _, snap := range snaps {
		var g goal.Goal
		if err := docstore.Decode(snap.Data, &g); err != nil {
			log.Printf("ListGoals: Skipping malformed goal %s for %s: %v", snap.Key, userID, err)
			continue
		}
		goals = append(goals, &g)
	}
	sort.Slice(goals, func(i, j int) bool {
		if goals[i].Deadline != goals[j].Deadline {
			return goals[i].Deadline < goals[j].Deadline
		}
		return goals[i].CreatedAt.Before(goals[j].CreatedAt)
	})
	return goals, nil
}

func (s *GoalService) GetGoal(ctx context.Context, userID, goalID string) (*goal.Goal, error) {
	doc, err := s.store.Get(ctx, goalsCollection(userID), goalID)
	return decodeGoal(doc, err)
}

// UpdateGoal records progress or a status change. Reaching the target
// completes an active goal; reopening a goal clears its completion time.
func (s *GoalService) UpdateGoal(ctx context.Context, userID, goalID string, req *goal.UpdateRequest) (*goal.Goal, error) {
	if req.CurrentValue == nil && req.Status == nil {
		return nil, invalid("nothing to update")
	}
	if req.CurrentValue != nil && *req.CurrentValue < 0 {
		return nil, invalid("current_value must not be negative")
	}
	if req.Status != nil && !req.Status.Valid() {
		return nil, invalid("status must be one of active, completed, paused")
	}

	now := s.clock.Now().UTC()
	var updated *goal.Goal
	var justCompleted bool
	err := s.store.RunTransaction(ctx, func(ctx context.Context, tx docstore.Tx) error {
		g, err := decodeGoal(tx.Get(goalsCollection(userID), goalID))
		if err != nil {
			return err
		}
		wasCompleted := g.Status == goal.StatusCompleted

		if req.CurrentValue != nil {
			g.CurrentValue = *req.CurrentValue
		}
		if req.Status != nil {
			g.Status = *req.Status
		}
		switch {
		case g.Status == goal.StatusCompleted && g.CompletedAt == nil:
			g.CompletedAt = &now
		case g.Status != goal.StatusCompleted:
			g.CompletedAt = nil
			if req.Status == nil {
				completeIfReached(g, now)
			}
		}
		g.UpdatedAt = now

		updated = g
		justCompleted = !wasCompleted && g.Status == goal.StatusCompleted
		return putDocument(tx, goalsCollection(userID), goalID, g)
	})
	if err != nil {
		log.Printf("UpdateGoal: Failed to update goal %s for %s: %v", goalID, userID, err)
		return nil, asServiceError("failed to update goal", err)
	}

	if justCompleted {
		publishEvent(s.publisher, events.GoalCompleted, userID, map[string]any{
			"goal_id":  updated.ID,
			"title":    updated.Title,
			"category": updated.Category,
		})
	}
	return updated, nil
}

func (s *GoalService) DeleteGoal(ctx context.Context, userID, goalID string) error {
	err := s.store.RunTransaction(ctx, func(ctx context.Context, tx docstore.Tx) error {
		if _, err := decodeGoal(tx.Get(goalsCollection(userID), goalID)); err != nil {
			return err
		}
		return tx.Delete(goalsCollection(userID), goalID)
	})
	if err != nil {
		log.Printf("DeleteGoal: Failed to delete goal %s for %s: %v", goalID, userID, err)
		return asServiceError("failed to delete goal", err)
	}
	return nil
}

// GoalStats counts goals by status and category. Overdue counts active goals
// whose deadline is before the user's local today.
func (s *GoalService) GoalStats(ctx context.Context, userID string) (*goal.Stats, error) {
	u, err := getUser(ctx, s.store, userID)
	if err != nil {
		return nil, err
	}
	goals, err := s.ListGoals(ctx, userID, "")
	if err != nil {
		return nil, err
	}

	today := timezone.LocalDate(u.Timezone, s.clock.Now().UTC())
	stats := &goal.Stats{Total: len(goals), ByCategory: make(map[string]int)}
	for _, g := range goals {
		stats.ByCategory[g.Category]++
		switch g.Status {
		case goal.StatusActive:
			stats.Active++
			if g.Deadline < today {
				stats.Overdue++
			}
		case goal.StatusCompleted:
			stats.Completed++
		case goal.StatusPaused:
			stats.Paused++
		}
	}
	if stats.Total > 0 {
		stats.CompletionRate = float64(stats.Completed) / float64(stats.Total)
	}
	return stats, nil
}

func completeIfReached(g *goal.Goal, now time.Time) {
	if g.Status == goal.StatusActive && g.CurrentValue >= g.TargetValue {
		g.Status = goal.StatusCompleted
		g.CompletedAt = &now
	}
}

func decodeGoal(doc docstore.Document, err error) (*goal.Goal, error) {
	if errors.Is(err, docstore.ErrNotFound) {
		return nil, ErrGoalNotFound
	}
	if err != nil {
		return nil, storeErr("failed to load goal", err)
	}
	var g goal.Goal
	if err := docstore.Decode(doc, &g); err != nil {
		return nil, storeErr("malformed goal document", err)
	}
	return &g, nil
}
