package services

import (
	"context"
	"errors"
	"log"
	"sort"
	"strings"

	"github.com/google/uuid"

	"kyoolAPI/internal/docstore"
	"kyoolAPI/internal/timezone"
	"kyoolAPI/internal/types/routine"
)

const weeklyScheduleKey = "weekly"

type RoutineService struct {
	store docstore.Store
	clock timezone.Clock
}

func NewRoutineService(store docstore.Store, clock timezone.Clock) *RoutineService {
	return &RoutineService{store: store, clock: clock}
}

func (s *RoutineService) CreateRoutine(ctx context.Context, userID string, req *routine.SaveRequest) (*routine.Routine, error) {
	if err := checkRoutineRequest(req); err != nil {
		return nil, err
	}

	now := s.clock.Now().UTC()
	r := &routine.Routine{
		ID:        uuid.NewString(),
		UserID:    userID,
		Name:      strings.TrimSpace(req.Name),
		Exercises: numberSets(req.Exercises),
		Notes:     req.Notes,
		CreatedAt: now,
		UpdatedAt: now,
	}

	err := s.store.RunTransaction(ctx, func(ctx context.Context, tx docstore.Tx) error {
		if _, err := loadUser(tx, userID); err != nil {
			return err
		}
		return putDocument(tx, routinesCollection(userID), r.ID, r)
	})
	if err != nil {
		log.Printf("CreateRoutine: Failed to save routine for %s: %v", userID, err)
		return nil, asServiceError("failed to save routine", err)
	}
	return r, nil
}

// ListRoutines returns the user's routines by name.
func (s *RoutineService) ListRoutines(ctx context.Context, userID string) ([]*routine.Routine, error) {
	snaps, err := s.store.List(ctx, routinesCollection(userID))
	if err != nil {
		return nil, storeErr("failed to list routines", err)
	}
	list := make([]*routine.Routine, 0, len(snaps))
	for _, snap := range snaps {
		var r routine.Routine
		if err := docstore.Decode(snap.Data, &r); err != nil {
			log.Printf("ListRoutines: Skipping malformed routine %s for %s: %v", snap.Key, userID, err)
			continue
		}
		list = append(list, &r)
	}
	sort.Slice(list, func(i, j int) bool {
		return strings.ToLower(list[i].Name) < strings.ToLower(list[j].Name)
	})
	return list, nil
}

func (s *RoutineService) GetRoutine(ctx context.Context, userID, routineID string) (*routine.Routine, error) {
	doc, err := s.store.Get(ctx, routinesCollection(userID), routineID)
	return decodeRoutine(doc, err)
}

// UpdateRoutine replaces the routine's name, exercises and notes.
func (s *RoutineService) UpdateRoutine(ctx context.Context, userID, routineID string, req *routine.SaveRequest) (*routine.Routine, error) {
	if err := checkRoutineRequest(req); err != nil {
		return nil, err
	}

	now := s.clock.Now().UTC()
	var updated *routine.Routine
	err := s.store.RunTransaction(ctx, func(ctx context.Context, tx docstore.Tx) error {
		r, err := decodeRoutine(tx.Get(routinesCollection(userID), routineID))
		if err != nil {
			return err
		}
		r.Name = strings.TrimSpace(req.Name)
		r.Exercises = numberSets(req.Exercises)
		r.Notes = req.Notes
		r.UpdatedAt = now
		updated = r
		return putDocument(tx, routinesCollection(userID), routineID, r)
	})
	if err != nil {
		log.Printf("UpdateRoutine: Failed to update routine %s for %s: %v", routineID, userID, err)
		return nil, asServiceError("failed to update routine", err)
	}
	return updated, nil
}

// DeleteRoutine removes the routine and turns the days it was planned on into
// rest days.
func (s *RoutineService) DeleteRoutine(ctx context.Context, userID, routineID string) error {
	err := s.store.RunTransaction(ctx, func(ctx context.Context, tx docstore.Tx) error {
		if _, err := decodeRoutine(tx.Get(routinesCollection(userID), routineID)); err != nil {
			return err
		}
		schedule, err := loadSchedule(tx, userID)
		if err != nil {
			return err
		}

		if err := tx.Delete(routinesCollection(userID), routineID); err != nil {
			return err
		}
		if schedule != nil && schedule.Clear(routineID) {
			schedule.UpdatedAt = s.clock.Now().UTC()
			return putDocument(tx, scheduleCollection(userID), weeklyScheduleKey, schedule)
		}
		return nil
	})
	if err != nil {
		log.Printf("DeleteRoutine: Failed to delete routine %s for %s: %v", routineID, userID, err)
		return asServiceError("failed to delete routine", err)
	}
	return nil
}

// SaveSchedule replaces the weekly plan. Every non-empty day must name one of
// the user's routines.
func (s *RoutineService) SaveSchedule(ctx context.Context, userID string, schedule *routine.Schedule) (*routine.Schedule, error) {
	saved := *schedule
	saved.UpdatedAt = s.clock.Now().UTC()

	err := s.store.RunTransaction(ctx, func(ctx context.Context, tx docstore.Tx) error {
		if _, err := loadUser(tx, userID); err != nil {
			return err
		}
		for _, id := range saved.RoutineIDs() {
			if _, err := decodeRoutine(tx.Get(routinesCollection(userID), id)); err != nil {
				if errors.Is(err, ErrRoutineNotFound) {
					return ErrUnknownRoutine
				}
				return err
			}
		}
		return putDocument(tx, scheduleCollection(userID), weeklyScheduleKey, &saved)
	})
	if err != nil {
		log.Printf("SaveSchedule: Failed to save schedule for %s: %v", userID, err)
		return nil, asServiceError("failed to save schedule", err)
	}
	return &saved, nil
}

// GetSchedule returns the weekly plan; a user without one gets all rest days.
func (s *RoutineService) GetSchedule(ctx context.Context, userID string) (*routine.Schedule, error) {
	var schedule *routine.Schedule
	err := s.store.RunTransaction(ctx, func(ctx context.Context, tx docstore.Tx) error {
		var err error
		schedule, err = loadSchedule(tx, userID)
		return err
	})
	if err != nil {
		return nil, asServiceError("failed to load schedule", err)
	}
	if schedule == nil {
		return &routine.Schedule{}, nil
	}
	return schedule, nil
}

// TodayRoutine resolves the routine planned for the user's local weekday.
// Routine is nil on a rest day.
func (s *RoutineService) TodayRoutine(ctx context.Context, userID string) (*routine.Today, error) {
	u, err := getUser(ctx, s.store, userID)
	if err != nil {
		return nil, err
	}
	schedule, err := s.GetSchedule(ctx, userID)
	if err != nil {
		return nil, err
	}

	local := s.clock.Now().In(timezone.Location(u.Timezone))
	today := &routine.Today{
		Date:    local.Format(timezone.DateLayout),
		Weekday: strings.ToLower(local.Weekday().String()),
	}
	id := schedule.RoutineFor(local.Weekday())
	if id == "" {
		return today, nil
	}
	r, err := s.GetRoutine(ctx, userID, id)
	if errors.Is(err, ErrRoutineNotFound) {
		log.Printf("TodayRoutine: Schedule for %s names missing routine %s", userID, id)
		return today, nil
	}
	if err != nil {
		return nil, err
	}
	today.Routine = r
	return today, nil
}

func checkRoutineRequest(req *routine.SaveRequest) error {
	if strings.TrimSpace(req.Name) == "" {
		return invalid("name is required")
	}
	if len(req.Exercises) == 0 {
		return invalid("at least one exercise is required")
	}
	return nil
}

// numberSets fills missing set numbers in order.
func numberSets(exercises []routine.Exercise) []routine.Exercise {
	out := make([]routine.Exercise, len(exercises))
	for i, ex := range exercises {
		sets := make([]routine.PlannedSet, len(ex.Sets))
		for j, set := range ex.Sets {
			if set.SetNumber <= 0 {
				set.SetNumber = j + 1
			}
			sets[j] = set
		}
		ex.Sets = sets
		out[i] = ex
	}
	return out
}

func loadSchedule(tx docstore.Tx, userID string) (*routine.Schedule, error) {
	doc, err := tx.Get(scheduleCollection(userID), weeklyScheduleKey)
	if errors.Is(err, docstore.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, storeErr("failed to load schedule", err)
	}
	var schedule routine.Schedule
	if err := docstore.Decode(doc, &schedule); err != nil {
		return nil, storeErr("malformed schedule document", err)
	}
	return &schedule, nil
}

func decodeRoutine(doc docstore.Document, err error) (*routine.Routine, error) {
	if errors.Is(err, docstore.ErrNotFound) {
		return nil, ErrRoutineNotFound
	}
	if err != nil {
		return nil, storeErr("failed to load routine", err)
	}
	var r routine.Routine
	if err := docstore.Decode(doc, &r); err != nil {
		return nil, storeErr("malformed routine document", err)
	}
	return &r, nil
}
