package handlers

import (
	"net/http"

	"kyoolAPI/internal/types/bodyfat"
	"kyoolAPI/internal/types/workout"
	"kyoolAPI/services"
)

type WorkoutHandler struct {
	workoutService *services.WorkoutService
	bodyFatService *services.BodyFatService
}

func NewWorkoutHandler(workoutService *services.WorkoutService, bodyFatService *services.BodyFatService) *WorkoutHandler {
	return &WorkoutHandler{
		workoutService: workoutService,
		bodyFatService: bodyFatService,
	}
}

// POST /api/v1/user/workouts
func (h *WorkoutHandler) LogWorkout(w http.ResponseWriter, r *http.Request) {
	ctx, cancel, userID, ok := authedContext(w, r)
	if !ok {
		return
	}
	defer cancel()

	var req workout.LogRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	wk, err := h.workoutService.LogWorkout(ctx, userID, &req)
	if err != nil {
		respondWithServiceError(w, "LogWorkout", err)
		return
	}

	respondWithJSON(w, http.StatusCreated, wk)
}

// GET /api/v1/user/workouts?limit=20
func (h *WorkoutHandler) GetHistory(w http.ResponseWriter, r *http.Request) {
	ctx, cancel, userID, ok := authedContext(w, r)
	if !ok {
		return
	}
	defer cancel()

	limit, err := queryInt(r, "limit", 0)
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid limit")
		return
	}

	history, err := h.workoutService.WorkoutHistory(ctx, userID, limit)
	if err != nil {
		respondWithServiceError(w, "GetWorkoutHistory", err)
		return
	}

	respondWithJSON(w, http.StatusOK, history)
}

func (h *WorkoutHandler) GetLatest(w http.ResponseWriter, r *http.Request) {
	ctx, cancel, userID, ok := authedContext(w, r)
	if !ok {
		return
	}
	defer cancel()

	wk, err := h.workoutService.LatestWorkout(ctx, userID)
	if err != nil {
		respondWithServiceError(w, "GetLatestWorkout", err)
		return
	}

	respondWithJSON(w, http.StatusOK, wk)
}

func (h *WorkoutHandler) LoggedToday(w http.ResponseWriter, r *http.Request) {
	ctx, cancel, userID, ok := authedContext(w, r)
	if !ok {
		return
	}
	defer cancel()

	logged, err := h.workoutService.LoggedToday(ctx, userID)
	if err != nil {
		respondWithServiceError(w, "LoggedToday", err)
		return
	}

	respondWithJSON(w, http.StatusOK, map[string]bool{"logged_today": logged})
}

// GET /api/v1/user/workouts/consistency?days=7
func (h *WorkoutHandler) GetConsistency(w http.ResponseWriter, r *http.Request) {
	ctx, cancel, userID, ok := authedContext(w, r)
	if !ok {
		return
	}
	defer cancel()

	days, err := queryInt(r, "days", 7)
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid days")
		return
	}

	consistency, err := h.workoutService.Consistency(ctx, userID, days)
	if err != nil {
		respondWithServiceError(w, "GetConsistency", err)
		return
	}

	respondWithJSON(w, http.StatusOK, consistency)
}

// POST /api/v1/user/body-fat
func (h *WorkoutHandler) LogBodyFat(w http.ResponseWriter, r *http.Request) {
	ctx, cancel, userID, ok := authedContext(w, r)
	if !ok {
		return
	}
	defer cancel()

	var req bodyfat.LogRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	m, err := h.bodyFatService.LogMeasurement(ctx, userID, &req)
	if err != nil {
		respondWithServiceError(w, "LogBodyFat", err)
		return
	}

	respondWithJSON(w, http.StatusOK, m)
}

func (h *WorkoutHandler) LatestBodyFat(w http.ResponseWriter, r *http.Request) {
	ctx, cancel, userID, ok := authedContext(w, r)
	if !ok {
		return
	}
	defer cancel()

	m, err := h.bodyFatService.Latest(ctx, userID)
	if err != nil {
		respondWithServiceError(w, "LatestBodyFat", err)
		return
	}

	respondWithJSON(w, http.StatusOK, m)
}

func (h *WorkoutHandler) BodyFatHistory(w http.ResponseWriter, r *http.Request) {
	ctx, cancel, userID, ok := authedContext(w, r)
	if !ok {
		return
	}
	defer cancel()

	limit, err := queryInt(r, "limit", 0)
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid limit")
		return
	}

	history, err := h.bodyFatService.History(ctx, userID, limit)
	if err != nil {
		respondWithServiceError(w, "BodyFatHistory", err)
		return
	}

	respondWithJSON(w, http.StatusOK, history)
}
