package feed

import "time"

type ItemType string

const (
	ItemWater   ItemType = "water"
	ItemWorkout ItemType = "workout"
)

type Item struct {
	ID        string         `json:"id"`
	Type      ItemType       `json:"type"`
	UserID    string         `json:"user_id"`
	Username  string         `json:"username"`
	Summary   string         `json:"summary"`
	Data      map[string]any `json:"data"`
	CreatedAt time.Time      `json:"created_at"`
}
