package workout

import "time"

type ExerciseCompleted struct {
	Name   string `json:"name" validate:"required"`
	Sets   int    `json:"sets" validate:"gte=0"`
	Reps   string `json:"reps"`
	Weight string `json:"weight"`
}

type Workout struct {
	ID                 string              `json:"id"`
	UserID             string              `json:"user_id"`
	RoutineName        string              `json:"routine_name"`
	ExercisesCompleted []ExerciseCompleted `json:"exercises_completed"`
	DurationMinutes    int                 `json:"duration_minutes"`
	SharedWith         []string            `json:"shared_with"`
	LocalDate          string              `json:"local_date"`
	CreatedAt          time.Time           `json:"created_at"`
}

type LogRequest struct {
	RoutineName        string              `json:"routine_name" validate:"required,max=100"`
	ExercisesCompleted []ExerciseCompleted `json:"exercises_completed" validate:"required,min=1,dive"`
	DurationMinutes    int                 `json:"duration_minutes" validate:"gte=0,lte=1440"`
	SharedWith         []string            `json:"shared_with"`
}

type ConsistencyDay struct {
	Date      string `json:"date"`
	Completed bool   `json:"completed"`
	Count     int    `json:"count"`
}
