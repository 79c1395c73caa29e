package handlers

import (
	"net/http"

	"github.com/gorilla/mux"

	"kyoolAPI/internal/types/goal"
	"kyoolAPI/services"
)

type GoalHandler struct {
	goalService *services.GoalService
}

func NewGoalHandler(goalService *services.GoalService) *GoalHandler {
	return &GoalHandler{
		goalService: goalService,
	}
}

// POST /api/v1/user/goals
func (h *GoalHandler) CreateGoal(w http.ResponseWriter, r *http.Request) {
	ctx, cancel, userID, ok := authedContext(w, r)
	if !ok {
		return
	}
	defer cancel()

	var req goal.CreateRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	g, err := h.goalService.CreateGoal(ctx, userID, &req)
	if err != nil {
		respondWithServiceError(w, "CreateGoal", err)
		return
	}

	respondWithJSON(w, http.StatusCreated, g)
}

// GET /api/v1/user/goals?status=active
func (h *GoalHandler) ListGoals(w http.ResponseWriter, r *http.Request) {
	ctx, cancel, userID, ok := authedContext(w, r)
	if !ok {
		return
	}
	defer cancel()

	status := goal.Status(r.URL.Query().Get("status"))
	goals, err := h.goalService.ListGoals(ctx, userID, status)
	if err != nil {
		respondWithServiceError(w, "ListGoals", err)
		return
	}

	respondWithJSON(w, http.StatusOK, map[string]any{"goals": goals})
}

func (h *GoalHandler) GetGoal(w http.ResponseWriter, r *http.Request) {
	ctx, cancel, userID, ok := authedContext(w, r)
	if !ok {
		return
	}
	defer cancel()

	g, err := h.goalService.GetGoal(ctx, userID, mux.Vars(r)["id"])
	if err != nil {
		respondWithServiceError(w, "GetGoal", err)
		return
	}

	respondWithJSON(w, http.StatusOK, g)
}

// PUT /api/v1/user/goals/{id}
func (h *GoalHandler) UpdateGoal(w http.ResponseWriter, r *http.Request) {
	ctx, cancel, userID, ok := authedContext(w, r)
	if !ok {
		return
	}
	defer cancel()

	var req goal.UpdateRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	g, err := h.goalService.UpdateGoal(ctx, userID, mux.Vars(r)["id"], &req)
	if err != nil {
		respondWithServiceError(w, "UpdateGoal", err)
		return
	}

	respondWithJSON(w, http.StatusOK, g)
}

func (h *GoalHandler) DeleteGoal(w http.ResponseWriter, r *http.Request) {
	ctx, cancel, userID, ok := authedContext(w, r)
	if !ok {
		return
	}
	defer cancel()

	if err := h.goalService.DeleteGoal(ctx, userID, mux.Vars(r)["id"]); err != nil {
		respondWithServiceError(w, "DeleteGoal", err)
		return
	}

	respondOK(w, "Goal deleted")
}

func (h *GoalHandler) GoalStats(w http.ResponseWriter, r *http.Request) {
	ctx, cancel, userID, ok := authedContext(w, r)
	if !ok {
		return
	}
	defer cancel()

	stats, err := h.goalService.GoalStats(ctx, userID)
	if err != nil {
		respondWithServiceError(w, "GoalStats", err)
		return
	}

	respondWithJSON(w, http.StatusOK, stats)
}
