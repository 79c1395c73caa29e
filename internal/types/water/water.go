package water

import "time"

// DailyTotal is keyed by user and local date.
type DailyTotal struct {
	Date        string    `json:"date"`
	Glasses     float64   `json:"glasses"`
	CreatedAt   time.Time `json:"created_at"`
	LastUpdated time.Time `json:"last_updated"`
}

// Session is the single mutable burst of logging per user.
type Session struct {
	Glasses     float64   `json:"glasses"`
	CreatedAt   time.Time `json:"created_at"`
	LastAddedAt time.Time `json:"last_added_at"`
}

// Event is an immutable flushed session, shown in the activity feed.
type Event struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Glasses   float64   `json:"glasses"`
	CreatedAt time.Time `json:"created_at"`
	FlushedAt time.Time `json:"flushed_at"`
}

type LogRequest struct {
	Glasses float64 `json:"glasses" validate:"required,gt=0,lte=20"`
}

type LogResponse struct {
	Today   *DailyTotal `json:"today"`
	Session *Session    `json:"session"`
	Flushed *Event      `json:"flushed_event,omitempty"`
}

type HistoryDay struct {
	Date    string  `json:"date"`
	Glasses float64 `json:"glasses"`
}
