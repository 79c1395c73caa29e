package handlers

import (
	"net/http"

	"github.com/gorilla/mux"

	"kyoolAPI/internal/types/routine"
	"kyoolAPI/services"
)

type RoutineHandler struct {
	routineService *services.RoutineService
}

func NewRoutineHandler(routineService *services.RoutineService) *RoutineHandler {
	return &RoutineHandler{
		routineService: routineService,
	}
}

// POST /api/v1/user/routines
func (h *RoutineHandler) CreateRoutine(w http.ResponseWriter, r *http.Request) {
	ctx, cancel, userID, ok := authedContext(w, r)
	if !ok {
		return
	}
	defer cancel()

	var req routine.SaveRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	rt, err := h.routineService.CreateRoutine(ctx, userID, &req)
	if err != nil {
		respondWithServiceError(w, "CreateRoutine", err)
		return
	}

	respondWithJSON(w, http.StatusCreated, rt)
}

func (h *RoutineHandler) ListRoutines(w http.ResponseWriter, r *http.Request) {
	ctx, cancel, userID, ok := authedContext(w, r)
	if !ok {
		return
	}
	defer cancel()

	routines, err := h.routineService.ListRoutines(ctx, userID)
	if err != nil {
		respondWithServiceError(w, "ListRoutines", err)
		return
	}

	respondWithJSON(w, http.StatusOK, map[string]any{"routines": routines, "total": len(routines)})
}

func (h *RoutineHandler) GetRoutine(w http.ResponseWriter, r *http.Request) {
	ctx, cancel, userID, ok := authedContext(w, r)
	if !ok {
		return
	}
	defer cancel()

	rt, err := h.routineService.GetRoutine(ctx, userID, mux.Vars(r)["id"])
	if err != nil {
		respondWithServiceError(w, "GetRoutine", err)
		return
	}

	respondWithJSON(w, http.StatusOK, rt)
}

// PUT /api/v1/user/routines/{id}
func (h *RoutineHandler) UpdateRoutine(w http.ResponseWriter, r *http.Request) {
	ctx, cancel, userID, ok := authedContext(w, r)
	if !ok {
		return
	}
	defer cancel()

	var req routine.SaveRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	rt, err := h.routineService.UpdateRoutine(ctx, userID, mux.Vars(r)["id"], &req)
	if err != nil {
		respondWithServiceError(w, "UpdateRoutine", err)
		return
	}

	respondWithJSON(w, http.StatusOK, rt)
}

func (h *RoutineHandler) DeleteRoutine(w http.ResponseWriter, r *http.Request) {
	ctx, cancel, userID, ok := authedContext(w, r)
	if !ok {
		return
	}
	defer cancel()

	if err := h.routineService.DeleteRoutine(ctx, userID, mux.Vars(r)["id"]); err != nil {
		respondWithServiceError(w, "DeleteRoutine", err)
		return
	}

	respondOK(w, "Routine deleted")
}

// PUT /api/v1/user/schedule
func (h *RoutineHandler) SaveSchedule(w http.ResponseWriter, r *http.Request) {
	ctx, cancel, userID, ok := authedContext(w, r)
	if !ok {
		return
	}
	defer cancel()

	var req routine.Schedule
	if !decodeAndValidate(w, r, &req) {
		return
	}

	schedule, err := h.routineService.SaveSchedule(ctx, userID, &req)
	if err != nil {
		respondWithServiceError(w, "SaveSchedule", err)
		return
	}

	respondWithJSON(w, http.StatusOK, schedule)
}

func (h *RoutineHandler) GetSchedule(w http.ResponseWriter, r *http.Request) {
	ctx, cancel, userID, ok := authedContext(w, r)
	if !ok {
		return
	}
	defer cancel()

	schedule, err := h.routineService.GetSchedule(ctx, userID)
	if err != nil {
		respondWithServiceError(w, "GetSchedule", err)
		return
	}

	respondWithJSON(w, http.StatusOK, schedule)
}

func (h *RoutineHandler) TodayRoutine(w http.ResponseWriter, r *http.Request) {
	ctx, cancel, userID, ok := authedContext(w, r)
	if !ok {
		return
	}
	defer cancel()

	today, err := h.routineService.TodayRoutine(ctx, userID)
	if err != nil {
		respondWithServiceError(w, "TodayRoutine", err)
		return
	}

	respondWithJSON(w, http.StatusOK, today)
}
