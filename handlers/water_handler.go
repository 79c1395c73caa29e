package handlers

import (
	"net/http"

	"kyoolAPI/internal/types/water"
	"kyoolAPI/services"
)

type WaterHandler struct {
	waterService *services.WaterService
}

func NewWaterHandler(waterService *services.WaterService) *WaterHandler {
	return &WaterHandler{
		waterService: waterService,
	}
}

// POST /api/v1/user/water
func (h *WaterHandler) LogWater(w http.ResponseWriter, r *http.Request) {
	ctx, cancel, userID, ok := authedContext(w, r)
	if !ok {
		return
	}
	defer cancel()

	var req water.LogRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	resp, err := h.waterService.LogWater(ctx, userID, req.Glasses)
	if err != nil {
		respondWithServiceError(w, "LogWater", err)
		return
	}

	respondWithJSON(w, http.StatusOK, resp)
}

func (h *WaterHandler) GetToday(w http.ResponseWriter, r *http.Request) {
	ctx, cancel, userID, ok := authedContext(w, r)
	if !ok {
		return
	}
	defer cancel()

	today, err := h.waterService.WaterToday(ctx, userID)
	if err != nil {
		respondWithServiceError(w, "GetToday", err)
		return
	}

	respondWithJSON(w, http.StatusOK, today)
}

// GET /api/v1/user/water/history?days=7
func (h *WaterHandler) GetHistory(w http.ResponseWriter, r *http.Request) {
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

	history, err := h.waterService.WaterHistory(ctx, userID, days)
	if err != nil {
		respondWithServiceError(w, "GetHistory", err)
		return
	}

	respondWithJSON(w, http.StatusOK, history)
}

// GET /api/v1/user/water/session - null when no session is open
func (h *WaterHandler) GetSession(w http.ResponseWriter, r *http.Request) {
	ctx, cancel, userID, ok := authedContext(w, r)
	if !ok {
		return
	}
	defer cancel()

	session, err := h.waterService.CurrentSession(ctx, userID)
	if err != nil {
		respondWithServiceError(w, "GetSession", err)
		return
	}

	respondWithJSON(w, http.StatusOK, map[string]any{"session": session})
}

// POST /api/v1/user/water/flush - closes the open session now
func (h *WaterHandler) FlushSession(w http.ResponseWriter, r *http.Request) {
	ctx, cancel, userID, ok := authedContext(w, r)
	if !ok {
		return
	}
	defer cancel()

	event, err := h.waterService.FlushSession(ctx, userID, true)
	if err != nil {
		respondWithServiceError(w, "FlushSession", err)
		return
	}

	respondWithJSON(w, http.StatusOK, map[string]any{"flushed": event})
}

func (h *WaterHandler) GetEvents(w http.ResponseWriter, r *http.Request) {
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

	evts, err := h.waterService.WaterEvents(ctx, userID, limit)
	if err != nil {
		respondWithServiceError(w, "GetEvents", err)
		return
	}

	respondWithJSON(w, http.StatusOK, evts)
}
