package routine

import "time"

type PlannedSet struct {
	SetNumber int     `json:"set_number" validate:"gte=0"`
	Weight    float64 `json:"weight" validate:"gte=0"`
	Reps      int     `json:"reps" validate:"gte=0"`
}

type Exercise struct {
	ID        string       `json:"id"`
	Name      string       `json:"name" validate:"required,max=100"`
	Target    string       `json:"target"`
	Equipment string       `json:"equipment"`
	Sets      []PlannedSet `json:"sets" validate:"dive"`
}

// Routine is a reusable workout template.
type Routine struct {
	ID        string     `json:"id"`
	UserID    string     `json:"user_id"`
	Name      string     `json:"name"`
	Exercises []Exercise `json:"exercises"`
	Notes     string     `json:"notes"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

type SaveRequest struct {
	Name      string     `json:"name" validate:"required,max=100"`
	Exercises []Exercise `json:"exercises" validate:"required,min=1,dive"`
	Notes     string     `json:"notes" validate:"max=1000"`
}

// Schedule maps each weekday to a routine id. An empty id is a rest day.
type Schedule struct {
	Monday    string    `json:"monday"`
	Tuesday   string    `json:"tuesday"`
	Wednesday string    `json:"wednesday"`
	Thursday  string    `json:"thursday"`
	Friday    string    `json:"friday"`
	Saturday  string    `json:"saturday"`
	Sunday    string    `json:"sunday"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (s *Schedule) days() []*string {
	return []*string{&s.Sunday, &s.Monday, &s.Tuesday, &s.Wednesday, &s.Thursday, &s.Friday, &s.Saturday}
}

// RoutineFor returns the routine id planned for the weekday.
func (s *Schedule) RoutineFor(day time.Weekday) string {
	return *s.days()[day]
}

// RoutineIDs lists the distinct non-empty routine ids in the schedule.
func (s *Schedule) RoutineIDs() []string {
	seen := make(map[string]bool)
	var ids []string
	for _, d := range s.days() {
		if *d != "" && !seen[*d] {
			seen[*d] = true
			ids = append(ids, *d)
		}
	}
	return ids
}

// Clear turns every day planned with routineID into a rest day and reports
// whether anything changed.
func (s *Schedule) Clear(routineID string) bool {
	changed := false
	for _, d := range s.days() {
		if *d == routineID {
			*d = ""
			changed = true
		}
	}
	return changed
}

type Today struct {
	Date    string   `json:"date"`
	Weekday string   `json:"weekday"`
	Routine *Routine `json:"routine"`
}
