package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"
	"time"

	"github.com/google/uuid"

	"kyoolAPI/internal/docstore"
	"kyoolAPI/internal/events"
	"kyoolAPI/internal/timezone"
	"kyoolAPI/internal/types/streak"
	"kyoolAPI/internal/types/water"
)

const (
	DefaultWaterSessionWindow = 30 * time.Second
	waterActivityType         = "water"
	currentSessionKey         = "current"
	maxGlassesPerLog          = 20
	maxHistoryDays            = 365
)

// WaterService records water intake. Rapid logs are coalesced into one session;
// a session becomes an immutable feed event once it has been idle for the
// session window (measured from the last add) or the user's local day changes.
type WaterService struct {
	store     docstore.Store
	clock     timezone.Clock
	streaks   *StreakService
	publisher events.Publisher
	window    time.Duration
}

func NewWaterService(store docstore.Store, clock timezone.Clock, streaks *StreakService, window time.Duration) *WaterService {
	if window <= 0 {
		window = DefaultWaterSessionWindow
	}
	return &WaterService{
		store:     store,
		clock:     clock,
		streaks:   streaks,
		publisher: events.NopPublisher{},
		window:    window,
	}
}

func (s *WaterService) SetPublisher(p events.Publisher) {
	s.publisher = p
}

// LogWater adds glasses to today's total, the current session and the water
// streak in one transaction.
func (s *WaterService) LogWater(ctx context.Context, userID string, glasses float64) (*water.LogResponse, error) {
	if glasses <= 0 || glasses > maxGlassesPerLog {
		return nil, ErrInvalidAmount
	}

	now := s.clock.Now().UTC()
	var resp *water.LogResponse
	var streakResp *streak.UpdateResponse
	err := s.store.RunTransaction(ctx, func(ctx context.Context, tx docstore.Tx) error {
		u, err := loadUser(tx, userID)
		if err != nil {
			return err
		}
		today := timezone.LocalDate(u.Timezone, now)

		daily, err := loadDaily(tx, userID, today, now)
		if err != nil {
			return err
		}
		session, err := loadSession(tx, userID)
		if err != nil {
			return err
		}

		// Last read; the streak write is the first write.
		streakResp, err = recordActivityTx(tx, userID, waterActivityType, now)
		if err != nil {
			return err
		}

		daily.Glasses += glasses
		daily.LastUpdated = now
		if err := putDocument(tx, waterDailyCollection(userID), today, daily); err != nil {
			return err
		}

		var flushed *water.Event
		switch {
		case session == nil:
			session = &water.Session{Glasses: glasses, CreatedAt: now, LastAddedAt: now}
		case s.sessionExpired(session, u.Timezone, now):
			flushed = newWaterEvent(userID, session, now)
			if err := putDocument(tx, waterEventsCollection(userID), flushed.ID, flushed); err != nil {
				return err
			}
			session = &water.Session{Glasses: glasses, CreatedAt: now, LastAddedAt: now}
		default:
			session.Glasses += glasses
			session.LastAddedAt = now
		}
		if err := putDocument(tx, waterSessionCollection(userID), currentSessionKey, session); err != nil {
			return err
		}

		resp = &water.LogResponse{Today: daily, Session: session, Flushed: flushed}
		return nil
	})
	if err != nil {
		log.Printf("LogWater: Failed to log water for %s: %v", userID, err)
		return nil, asServiceError("failed to log water", err)
	}

	s.streaks.afterRecord(userID, streakResp)
	publishEvent(s.publisher, events.WaterLogged, userID, map[string]any{
		"glasses":     glasses,
		"date":        resp.Today.Date,
		"daily_total": resp.Today.Glasses,
	})
	if resp.Flushed != nil {
		s.afterFlush(userID, resp.Flushed)
	}
	return resp, nil
}

func (s *WaterService) sessionExpired(session *water.Session, tz string, now time.Time) bool {
	if now.Sub(session.LastAddedAt) >= s.window {
		return true
	}
	return timezone.ShouldResetDaily(timezone.FormatISO(session.LastAddedAt), tz, now)
}

func (s *WaterService) afterFlush(userID string, event *water.Event) {
	waterSessionsFlushed.Inc()
	publishEvent(s.publisher, events.WaterSessionFlushed, userID, map[string]any{
		"event_id":   event.ID,
		"glasses":    event.Glasses,
		"created_at": timezone.FormatISO(event.CreatedAt),
	})
}

// FlushSession turns the current session into an event. Without force only an
// expired session is flushed. Returns nil when nothing was flushed.
func (s *WaterService) FlushSession(ctx context.Context, userID string, force bool) (*water.Event, error) {
	now := s.clock.Now().UTC()
	var flushed *water.Event
	err := s.store.RunTransaction(ctx, func(ctx context.Context, tx docstore.Tx) error {
		flushed = nil
		u, err := loadUser(tx, userID)
		if err != nil {
			return err
		}
		session, err := loadSession(tx, userID)
		if err != nil || session == nil {
			return err
		}
		if !force && !s.sessionExpired(session, u.Timezone, now) {
			return nil
		}

		flushed = newWaterEvent(userID, session, now)
		if err := putDocument(tx, waterEventsCollection(userID), flushed.ID, flushed); err != nil {
			return err
		}
		return tx.Delete(waterSessionCollection(userID), currentSessionKey)
	})
	if err != nil {
		log.Printf("FlushSession: Failed to flush water session for %s: %v", userID, err)
		return nil, asServiceError("failed to flush water session", err)
	}
	if flushed != nil {
		s.afterFlush(userID, flushed)
	}
	return flushed, nil
}

// WaterToday returns today's total, zero when nothing was logged.
func (s *WaterService) WaterToday(ctx context.Context, userID string) (*water.DailyTotal, error) {
	u, err := getUser(ctx, s.store, userID)
	if err != nil {
		return nil, err
	}
	now := s.clock.Now().UTC()
	today := timezone.LocalDate(u.Timezone, now)

	doc, err := s.store.Get(ctx, waterDailyCollection(userID), today)
	if errors.Is(err, docstore.ErrNotFound) {
		return &water.DailyTotal{Date: today}, nil
	}
	if err != nil {
		return nil, storeErr("failed to get water total", err)
	}
	var daily water.DailyTotal
	if err := docstore.Decode(doc, &daily); err != nil {
		return nil, storeErr("malformed water total", err)
	}
	daily.Date = today
	return &daily, nil
}

// WaterHistory returns one entry per local day, most recent first, with zero for
// days without logs.
func (s *WaterService) WaterHistory(ctx context.Context, userID string, days int) ([]water.HistoryDay, error) {
	if days <= 0 || days > maxHistoryDays {
		return nil, invalid("days must be between 1 and %d", maxHistoryDays)
	}
	u, err := getUser(ctx, s.store, userID)
	if err != nil {
		return nil, err
	}

	snaps, err := s.store.List(ctx, waterDailyCollection(userID))
	if err != nil {
		return nil, storeErr("failed to list water totals", err)
	}
	totals := make(map[string]float64, len(snaps))
	for _, snap := range snaps {
		var daily water.DailyTotal
		if err := docstore.Decode(snap.Data, &daily); err != nil {
			log.Printf("WaterHistory: Skipping malformed total %s for %s: %v", snap.Key, userID, err)
			continue
		}
		totals[snap.Key] = daily.Glasses
	}

	dates := timezone.LocalDateRange(u.Timezone, days, s.clock.Now().UTC())
	history := make([]water.HistoryDay, len(dates))
	for i, date := range dates {
		history[i] = water.HistoryDay{Date: date, Glasses: totals[date]}
	}
	return history, nil
}

// CurrentSession returns the open session or nil.
func (s *WaterService) CurrentSession(ctx context.Context, userID string) (*water.Session, error) {
	doc, err := s.store.Get(ctx, waterSessionCollection(userID), currentSessionKey)
	if errors.Is(err, docstore.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, storeErr("failed to get water session", err)
	}
	var session water.Session
	if err := docstore.Decode(doc, &session); err != nil {
		return nil, storeErr("malformed water session", err)
	}
	return &session, nil
}

// WaterEvents lists flushed sessions by when they started, newest first, the
// order the feed shows them in.
func (s *WaterService) WaterEvents(ctx context.Context, userID string, limit int) ([]*water.Event, error) {
	snaps, err := s.store.List(ctx, waterEventsCollection(userID))
	if err != nil {
		return nil, storeErr("failed to list water events", err)
	}
	list := make([]*water.Event, 0, len(snaps))
	for _, snap := range snaps {
		var e water.Event
		if err := docstore.Decode(snap.Data, &e); err != nil {
			log.Printf("WaterEvents: Skipping malformed event %s for %s: %v", snap.Key, userID, err)
			continue
		}
		list = append(list, &e)
	}
	sort.Slice(list, func(i, j int) bool { return list[i].CreatedAt.After(list[j].CreatedAt) })
	if limit > 0 && len(list) > limit {
		list = list[:limit]
	}
	return list, nil
}

func newWaterEvent(userID string, session *water.Session, now time.Time) *water.Event {
	return &water.Event{
		ID:        uuid.NewString(),
		UserID:    userID,
		Glasses:   session.Glasses,
		CreatedAt: session.CreatedAt,
		FlushedAt: now,
	}
}

func loadDaily(tx docstore.Tx, userID, date string, now time.Time) (*water.DailyTotal, error) {
	doc, err := tx.Get(waterDailyCollection(userID), date)
	if errors.Is(err, docstore.ErrNotFound) {
		return &water.DailyTotal{Date: date, CreatedAt: now, LastUpdated: now}, nil
	}
	if err != nil {
		return nil, err
	}
	var daily water.DailyTotal
	if err := docstore.Decode(doc, &daily); err != nil {
		return nil, storeErr("malformed water total", err)
	}
	daily.Date = date
	return &daily, nil
}

func loadSession(tx docstore.Tx, userID string) (*water.Session, error) {
	doc, err := tx.Get(waterSessionCollection(userID), currentSessionKey)
	if errors.Is(err, docstore.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var session water.Session
	if err := docstore.Decode(doc, &session); err != nil {
		return nil, storeErr("malformed water session", err)
	}
	return &session, nil
}

func putDocument(tx docstore.Tx, collection, key string, v any) error {
	doc, err := docstore.Encode(v)
	if err != nil {
		return fmt.Errorf("failed to encode %s/%s: %w", collection, key, err)
	}
	return tx.Set(collection, key, doc)
}

// FlushIdleSessions flushes every expired session. It returns how many were
// flushed; users that fail are logged and skipped.
func (s *WaterService) FlushIdleSessions(ctx context.Context) (int, error) {
	users, err := s.store.List(ctx, usersCollection)
	if err != nil {
		return 0, storeErr("failed to list users", err)
	}
	flushed := 0
	for _, u := range users {
		if ctx.Err() != nil {
			return flushed, ctx.Err()
		}
		event, err := s.FlushSession(ctx, u.Key, false)
		if err != nil {
			log.Printf("FlushIdleSessions: Skipping %s: %v", u.Key, err)
			continue
		}
		if event != nil {
			flushed++
		}
	}
	return flushed, nil
}
