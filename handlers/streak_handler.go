package handlers

import (
	"net/http"

	"github.com/gorilla/mux"

	"kyoolAPI/services"
)

type StreakHandler struct {
	streakService *services.StreakService
}

func NewStreakHandler(streakService *services.StreakService) *StreakHandler {
	return &StreakHandler{
		streakService: streakService,
	}
}

// GET /api/v1/user/streaks
func (h *StreakHandler) GetAllStreaks(w http.ResponseWriter, r *http.Request) {
	ctx, cancel, userID, ok := authedContext(w, r)
	if !ok {
		return
	}
	defer cancel()

	streaks, err := h.streakService.GetAllStreaks(ctx, userID)
	if err != nil {
		respondWithServiceError(w, "GetAllStreaks", err)
		return
	}

	respondWithJSON(w, http.StatusOK, map[string]any{"streaks": streaks})
}

// GET /api/v1/user/streaks/{type}
func (h *StreakHandler) GetStreak(w http.ResponseWriter, r *http.Request) {
	ctx, cancel, userID, ok := authedContext(w, r)
	if !ok {
		return
	}
	defer cancel()

	st, err := h.streakService.GetStreak(ctx, userID, mux.Vars(r)["type"])
	if err != nil {
		respondWithServiceError(w, "GetStreak", err)
		return
	}

	respondWithJSON(w, http.StatusOK, st)
}

// POST /api/v1/user/streaks/{type}/update
func (h *StreakHandler) RecordActivity(w http.ResponseWriter, r *http.Request) {
	ctx, cancel, userID, ok := authedContext(w, r)
	if !ok {
		return
	}
	defer cancel()

	resp, err := h.streakService.RecordActivity(ctx, userID, mux.Vars(r)["type"])
	if err != nil {
		respondWithServiceError(w, "RecordActivity", err)
		return
	}

	respondWithJSON(w, http.StatusOK, resp)
}

// POST /api/v1/user/streaks/{type}/reset
func (h *StreakHandler) ResetStreak(w http.ResponseWriter, r *http.Request) {
	ctx, cancel, userID, ok := authedContext(w, r)
	if !ok {
		return
	}
	defer cancel()

	st, err := h.streakService.ResetStreak(ctx, userID, mux.Vars(r)["type"])
	if err != nil {
		respondWithServiceError(w, "ResetStreak", err)
		return
	}

	respondWithJSON(w, http.StatusOK, st)
}
