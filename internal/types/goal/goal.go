package goal

import "time"

type Status string

const (
	StatusActive    Status = "active"
	StatusCompleted Status = "completed"
	StatusPaused    Status = "paused"
)

func (s Status) Valid() bool {
	switch s {
	case StatusActive, StatusCompleted, StatusPaused:
		return true
	}
	return false
}

type Goal struct {
	ID           string     `json:"id"`
	UserID       string     `json:"user_id"`
	Title        string     `json:"title"`
	Description  string     `json:"description"`
	Category     string     `json:"category"`
	TargetValue  int        `json:"target_value"`
	CurrentValue int        `json:"current_value"`
	Unit         string     `json:"unit"`
	Deadline     string     `json:"deadline"`
	Priority     string     `json:"priority"`
	Status       Status     `json:"status"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
	CompletedAt  *time.Time `json:"completed_at"`
}

// Progress is the share of the target reached, capped at 1.
func (g *Goal) Progress() float64 {
	if g.TargetValue <= 0 {
		return 0
	}
	p := float64(g.CurrentValue) / float64(g.TargetValue)
	if p > 1 {
		return 1
	}
	return p
}

type CreateRequest struct {
	Title        string `json:"title" validate:"required,max=100"`
	Description  string `json:"description" validate:"max=500"`
	Category     string `json:"category" validate:"required,oneof=fitness nutrition hydration sleep wellness weight"`
	TargetValue  int    `json:"target_value" validate:"required,gt=0"`
	CurrentValue int    `json:"current_value" validate:"gte=0"`
	Unit         string `json:"unit" validate:"required,max=20"`
	Deadline     string `json:"deadline" validate:"required,datetime=2006-01-02"`
	Priority     string `json:"priority" validate:"omitempty,oneof=low medium high"`
}

type UpdateRequest struct {
	CurrentValue *int    `json:"current_value" validate:"omitempty,gte=0"`
	Status       *Status `json:"status" validate:"omitempty,oneof=active completed paused"`
}

type Stats struct {
	Total          int            `json:"total"`
	Active         int            `json:"active"`
	Completed      int            `json:"completed"`
	Paused         int            `json:"paused"`
	Overdue        int            `json:"overdue"`
	CompletionRate float64        `json:"completion_rate"`
	ByCategory     map[string]int `json:"by_category"`
}
