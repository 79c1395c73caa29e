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
	"kyoolAPI/internal/types/waitlist"
)

const (
	waitlistCounterKey     = "waitlist"
	defaultWaitlistEntries = 50
	maxWaitlistEntries     = 500
)

var (
	personTypeScores = map[string]int{"executive": 10, "professional": 7, "student": 3}
	budgetScores     = map[string]int{
		"flexible": 15,
		"500-plus": 12,
		"200-500":  8,
		"100-200":  5,
		"50-100":   3,
		"under-50": 1,
	}
	urgentSituations = map[string]bool{"stressed": true, "health-concerns": true, "no-time": true}
	highValueBudgets = map[string]bool{"500-plus": true, "flexible": true, "200-500": true}
)

type WaitlistService struct {
	store docstore.Store
	clock timezone.Clock
}

func NewWaitlistService(store docstore.Store, clock timezone.Clock) *WaitlistService {
	return &WaitlistService{store: store, clock: clock}
}

// Join adds an email to the waitlist. The entry key is derived from the email so
// a second join with the same address conflicts inside the transaction, and the
// position is taken from the counter in that same transaction.
func (s *WaitlistService) Join(ctx context.Context, req *waitlist.JoinRequest) (*waitlist.JoinResponse, error) {
	email := strings.ToLower(strings.TrimSpace(req.Email))
	if email == "" {
		return nil, invalid("email is required")
	}

	entry := &waitlist.Entry{
		ID:               uuid.NewSHA1(uuid.NameSpaceURL, []byte("mailto:"+email)).String(),
		Email:            email,
		Phone:            req.Phone,
		PersonType:       req.PersonType,
		ActivityLevel:    req.ActivityLevel,
		CurrentSituation: req.CurrentSituation,
		DesiredResults:   req.DesiredResults,
		BiggestChallenge: req.BiggestChallenge,
		PreviousAttempts: req.PreviousAttempts,
		Budget:           req.Budget,
		Status:           waitlist.StatusActive,
		PriorityScore:    PriorityScore(req.PersonType, req.Budget, req.CurrentSituation),
		Tags:             WaitlistTags(req.PersonType, req.ActivityLevel, req.CurrentSituation, req.DesiredResults),
		JoinedAt:         s.clock.Now().UTC(),
	}

	err := s.store.RunTransaction(ctx, func(ctx context.Context, tx docstore.Tx) error {
		if _, err := tx.Get(waitlistCollection, entry.ID); err == nil {
			return ErrWaitlistDuplicate
		} else if !errors.Is(err, docstore.ErrNotFound) {
			return err
		}
		total := 0
		counter, err := tx.Get(countersCollection, waitlistCounterKey)
		switch {
		case err == nil:
			total = int(toInt(counter["total"]))
		case !errors.Is(err, docstore.ErrNotFound):
			return err
		}

		entry.Position = total + 1
		if err := putDocument(tx, waitlistCollection, entry.ID, entry); err != nil {
			return err
		}
		return tx.Set(countersCollection, waitlistCounterKey, docstore.Document{"total": entry.Position})
	})
	if err != nil {
		log.Printf("Join: Failed to add %s to waitlist: %v", email, err)
		return nil, asServiceError("failed to join waitlist", err)
	}

	return &waitlist.JoinResponse{WaitlistID: entry.ID, Position: entry.Position}, nil
}

// Entries lists waitlist entries newest first, optionally filtered by status.
func (s *WaitlistService) Entries(ctx context.Context, status waitlist.Status, limit int) (*waitlist.EntriesResponse, error) {
	if status != "" && !status.Valid() {
		return nil, invalid("status must be one of active, contacted, converted")
	}
	if limit <= 0 {
		limit = defaultWaitlistEntries
	}
	if limit > maxWaitlistEntries {
		limit = maxWaitlistEntries
	}

	entries, err := s.entries(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]*waitlist.Entry, 0, limit)
	for _, e := range entries {
		if status != "" && e.Status != status {
			continue
		}
		out = append(out, e)
		if len(out) == limit {
			break
		}
	}
	return &waitlist.EntriesResponse{Entries: out, Count: len(out)}, nil
}

func (s *WaitlistService) UpdateStatus(ctx context.Context, entryID string, status waitlist.Status) (*waitlist.Entry, error) {
	if !status.Valid() {
		return nil, invalid("status must be one of active, contacted, converted")
	}

	now := s.clock.Now().UTC()
	var updated *waitlist.Entry
	err := s.store.RunTransaction(ctx, func(ctx context.Context, tx docstore.Tx) error {
		doc, err := tx.Get(waitlistCollection, entryID)
		if errors.Is(err, docstore.ErrNotFound) {
			return ErrWaitlistEntryNotFound
		}
		if err != nil {
			return err
		}
		var e waitlist.Entry
		if err := docstore.Decode(doc, &e); err != nil {
			return storeErr("malformed waitlist entry", err)
		}
		e.Status = status
		e.UpdatedAt = &now
		updated = &e
		return putDocument(tx, waitlistCollection, entryID, &e)
	})
	if err != nil {
		log.Printf("UpdateStatus: Failed to update waitlist entry %s: %v", entryID, err)
		return nil, asServiceError("failed to update waitlist status", err)
	}
	return updated, nil
}

func (s *WaitlistService) Stats(ctx context.Context) (*waitlist.Stats, error) {
	entries, err := s.entries(ctx)
	if err != nil {
		return nil, err
	}
	stats := &waitlist.Stats{
		Total:        len(entries),
		ByPersonType: make(map[string]int),
		ByStatus:     make(map[string]int),
	}
	for _, e := range entries {
		stats.ByPersonType[e.PersonType]++
		stats.ByStatus[string(e.Status)]++
		if highValueBudgets[e.Budget] {
			stats.HighValueProspects++
		}
	}
	return stats, nil
}

func (s *WaitlistService) entries(ctx context.Context) ([]*waitlist.Entry, error) {
	snaps, err := s.store.List(ctx, waitlistCollection)
	if err != nil {
		return nil, storeErr("failed to list waitlist", err)
	}
	entries := make([]*waitlist.Entry, 0, len(snaps))
	for _, snap := range snaps {
		var e waitlist.Entry
		if err := docstore.Decode(snap.Data, &e); err != nil {
			log.Printf("entries: Skipping malformed waitlist entry %s: %v", snap.Key, err)
			continue
		}
		entries = append(entries, &e)
	}
	sort.Slice(entries, func(i, j int) bool {
		if !entries[i].JoinedAt.Equal(entries[j].JoinedAt) {
			return entries[i].JoinedAt.After(entries[j].JoinedAt)
		}
		return entries[i].Position > entries[j].Position
	})
	return entries, nil
}

// PriorityScore ranks an entry by person type, budget and urgency.
func PriorityScore(personType, budget, situation string) int {
	score := personTypeScores[personType] + budgetScores[budget]
	if urgentSituations[situation] {
		score += 5
	}
	return score
}

// WaitlistTags returns the answers plus derived segment tags, sorted and
// without duplicates or blanks.
func WaitlistTags(personType, activityLevel, situation, desiredResults string) []string {
	tags := []string{personType, activityLevel, situation, desiredResults}
	if personType == "executive" && situation == "no-time" {
		tags = append(tags, "time-pressed-executive")
	}
	if activityLevel == "sedentary" && desiredResults == "fitness-routine" {
		tags = append(tags, "fitness-beginner")
	}
	if situation == "stressed" && desiredResults == "stress-management" {
		tags = append(tags, "stress-focused")
	}

	seen := make(map[string]bool)
	out := make([]string, 0, len(tags))
	for _, t := range tags {
		if t != "" && !seen[t] {
			seen[t] = true
			out = append(out, t)
		}
	}
	sort.Strings(out)
	return out
}

func toInt(v any) int64 {
	switch n := v.(type) {
	case int:
		return int64(n)
	case int64:
		return n
	case float64:
		return int64(n)
	default:
		return 0
	}
}
