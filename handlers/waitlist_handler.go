package handlers

import (
	"net/http"

	"github.com/gorilla/mux"

	"kyoolAPI/internal/types/waitlist"
	"kyoolAPI/services"
)

type WaitlistHandler struct {
	waitlistService *services.WaitlistService
}

func NewWaitlistHandler(waitlistService *services.WaitlistService) *WaitlistHandler {
	return &WaitlistHandler{
		waitlistService: waitlistService,
	}
}

// POST /api/v1/waitlist - public
func (h *WaitlistHandler) Join(w http.ResponseWriter, r *http.Request) {
	var req waitlist.JoinRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	resp, err := h.waitlistService.Join(r.Context(), &req)
	if err != nil {
		respondWithServiceError(w, "JoinWaitlist", err)
		return
	}

	respondWithJSON(w, http.StatusCreated, resp)
}

func (h *WaitlistHandler) Stats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.waitlistService.Stats(r.Context())
	if err != nil {
		respondWithServiceError(w, "WaitlistStats", err)
		return
	}

	respondWithJSON(w, http.StatusOK, stats)
}

// GET /api/v1/admin/waitlist/entries?status=active&limit=50
func (h *WaitlistHandler) Entries(w http.ResponseWriter, r *http.Request) {
	limit, err := queryInt(r, "limit", 0)
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid limit")
		return
	}

	status := waitlist.Status(r.URL.Query().Get("status"))
	resp, err := h.waitlistService.Entries(r.Context(), status, limit)
	if err != nil {
		respondWithServiceError(w, "WaitlistEntries", err)
		return
	}

	respondWithJSON(w, http.StatusOK, resp)
}

// PUT /api/v1/admin/waitlist/entries/{id}/status
func (h *WaitlistHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	var req waitlist.UpdateStatusRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	entry, err := h.waitlistService.UpdateStatus(r.Context(), mux.Vars(r)["id"], req.Status)
	if err != nil {
		respondWithServiceError(w, "UpdateWaitlistStatus", err)
		return
	}

	respondWithJSON(w, http.StatusOK, entry)
}
