package bodyfat

import "time"

// Measurement is stored once per local day; a second log on the same day
// replaces the first.
type Measurement struct {
	Date              string    `json:"date"`
	Height            float64   `json:"height"`
	Neck              float64   `json:"neck"`
	Waist             float64   `json:"waist"`
	Hip               *float64  `json:"hip"`
	BodyFatPercentage float64   `json:"body_fat_percentage"`
	LoggedAt          time.Time `json:"logged_at"`
}

type LogRequest struct {
	Height            float64  `json:"height" validate:"required,gt=0"`
	Neck              float64  `json:"neck" validate:"required,gt=0"`
	Waist             float64  `json:"waist" validate:"required,gt=0"`
	Hip               *float64 `json:"hip" validate:"omitempty,gt=0"`
	BodyFatPercentage float64  `json:"body_fat_percentage" validate:"required,gt=0,lt=100"`
}
