package streak

import "time"

// Transition names the state change applied by a RecordActivity call.
type Transition string

const (
	TransitionInitial  Transition = "initial"
	TransitionNoop     Transition = "noop"
	TransitionContinue Transition = "continue"
	TransitionReset    Transition = "reset"
)

// Streak is the per-user, per-activity-type daily streak. CurrentStreak is zero
// exactly when LastLoggedDate is nil. Dates are local to the user's timezone.
type Streak struct {
	ActivityType   string    `json:"activity_type"`
	CurrentStreak  int       `json:"current_streak"`
	LongestStreak  int       `json:"longest_streak"`
	LastLoggedDate *string   `json:"last_logged_date"`
	StartDate      *string   `json:"start_date"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// Zero returns the state of a streak that was never logged (or was reset).
func Zero(activityType string) *Streak {
	return &Streak{ActivityType: activityType}
}

// Normalize restores the CurrentStreak/LastLoggedDate invariant on records
// written by older clients.
func (s *Streak) Normalize() {
	if s.CurrentStreak < 0 {
		s.CurrentStreak = 0
	}
	if s.LastLoggedDate != nil && *s.LastLoggedDate == "" {
		s.LastLoggedDate = nil
	}
	if s.CurrentStreak == 0 || s.LastLoggedDate == nil {
		s.CurrentStreak = 0
		s.LastLoggedDate = nil
		s.StartDate = nil
	}
	if s.LongestStreak < s.CurrentStreak {
		s.LongestStreak = s.CurrentStreak
	}
}

type UpdateResponse struct {
	Streak     *Streak    `json:"streak"`
	Transition Transition `json:"transition"`
}
