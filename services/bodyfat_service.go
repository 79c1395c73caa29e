package services

import (
	"context"
	"log"
	"sort"

	"kyoolAPI/internal/docstore"
	"kyoolAPI/internal/timezone"
	"kyoolAPI/internal/types/bodyfat"
)

// BodyFatService keeps one measurement per user per local day.
type BodyFatService struct {
	store docstore.Store
	clock timezone.Clock
}

func NewBodyFatService(store docstore.Store, clock timezone.Clock) *BodyFatService {
	return &BodyFatService{store: store, clock: clock}
}

func (s *BodyFatService) LogMeasurement(ctx context.Context, userID string, req *bodyfat.LogRequest) (*bodyfat.Measurement, error) {
	if req.BodyFatPercentage <= 0 || req.BodyFatPercentage >= 100 {
		return nil, invalid("body fat percentage must be between 0 and 100")
	}
	if req.Height <= 0 || req.Neck <= 0 || req.Waist <= 0 {
		return nil, invalid("height, neck and waist must be positive")
	}

	u, err := getUser(ctx, s.store, userID)
	if err != nil {
		return nil, err
	}
	now := s.clock.Now().UTC()
	m := &bodyfat.Measurement{
		Date:              timezone.LocalDate(u.Timezone, now),
		Height:            req.Height,
		Neck:              req.Neck,
		Waist:             req.Waist,
		Hip:               req.Hip,
		BodyFatPercentage: req.BodyFatPercentage,
		LoggedAt:          now,
	}

	doc, err := docstore.Encode(m)
	if err != nil {
		return nil, err
	}
	if err := s.store.Set(ctx, bodyFatCollection(userID), m.Date, doc); err != nil {
		log.Printf("LogMeasurement: Failed to store body fat for %s: %v", userID, err)
		return nil, storeErr("failed to log body fat", err)
	}
	return m, nil
}

func (s *BodyFatService) Latest(ctx context.Context, userID string) (*bodyfat.Measurement, error) {
	history, err := s.History(ctx, userID, 1)
	if err != nil {
		return nil, err
	}
	if len(history) == 0 {
		return nil, ErrNotFoundGeneric
	}
	return history[0], nil
}

// History lists measurements newest first.
func (s *BodyFatService) History(ctx context.Context, userID string, limit int) ([]*bodyfat.Measurement, error) {
	snaps, err := s.store.List(ctx, bodyFatCollection(userID))
	if err != nil {
		return nil, storeErr("failed to list body fat logs", err)
	}
	list := make([]*bodyfat.Measurement, 0, len(snaps))
	for _, snap := range snaps {
		var m bodyfat.Measurement
		if err := docstore.Decode(snap.Data, &m); err != nil {
			log.Printf("History: Skipping malformed body fat log %s for %s: %v", snap.Key, userID, err)
			continue
		}
		m.Date = snap.Key
		list = append(list, &m)
	}
	sort.Slice(list, func(i, j int) bool { return list[i].Date > list[j].Date })
	if limit > 0 && len(list) > limit {
		list = list[:limit]
	}
	return list, nil
}
