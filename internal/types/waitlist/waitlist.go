package waitlist

import "time"

type Status string

const (
	StatusActive    Status = "active"
	StatusContacted Status = "contacted"
	StatusConverted Status = "converted"
)

func (s Status) Valid() bool {
	switch s {
	case StatusActive, StatusContacted, StatusConverted:
		return true
	}
	return false
}

type Entry struct {
	ID               string     `json:"id"`
	Email            string     `json:"email"`
	Phone            *string    `json:"phone"`
	PersonType       string     `json:"person_type"`
	ActivityLevel    string     `json:"activity_level"`
	CurrentSituation string     `json:"current_situation"`
	DesiredResults   string     `json:"desired_results"`
	BiggestChallenge string     `json:"biggest_challenge"`
	PreviousAttempts string     `json:"previous_attempts"`
	Budget           string     `json:"budget"`
	Status           Status     `json:"status"`
	Position         int        `json:"position"`
	PriorityScore    int        `json:"priority_score"`
	Tags             []string   `json:"tags"`
	JoinedAt         time.Time  `json:"joined_at"`
	UpdatedAt        *time.Time `json:"updated_at"`
}

type JoinRequest struct {
	Email            string  `json:"email" validate:"required,email"`
	Phone            *string `json:"phone"`
	PersonType       string  `json:"person_type" validate:"required"`
	ActivityLevel    string  `json:"activity_level" validate:"required"`
	CurrentSituation string  `json:"current_situation"`
	DesiredResults   string  `json:"desired_results"`
	BiggestChallenge string  `json:"biggest_challenge"`
	PreviousAttempts string  `json:"previous_attempts"`
	Budget           string  `json:"budget"`
}

type JoinResponse struct {
	WaitlistID string `json:"waitlist_id"`
	Position   int    `json:"position"`
}

type UpdateStatusRequest struct {
	Status Status `json:"status" validate:"required,oneof=active contacted converted"`
}

type EntriesResponse struct {
	Entries []*Entry `json:"entries"`
	Count   int      `json:"count"`
}

type Stats struct {
	Total              int            `json:"total"`
	ByPersonType       map[string]int `json:"by_person_type"`
	ByStatus           map[string]int `json:"by_status"`
	HighValueProspects int            `json:"high_value_prospects"`
}
