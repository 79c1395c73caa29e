package handlers

import (
	"log"
	"net/http"
	"strings"

	"kyoolAPI/internal/user"
	"kyoolAPI/services"
)

type UserHandler struct {
	userService *services.UserService
}

func NewUserHandler(userService *services.UserService) *UserHandler {
	return &UserHandler{
		userService: userService,
	}
}

// POST /api/v1/user - Create the caller's profile
func (h *UserHandler) CreateProfile(w http.ResponseWriter, r *http.Request) {
	ctx, cancel, userID, ok := authedContext(w, r)
	if !ok {
		return
	}
	defer cancel()

	var req user.CreateUserRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	u, err := h.userService.CreateUser(ctx, userID, &req)
	if err != nil {
		respondWithServiceError(w, "CreateProfile", err)
		return
	}

	log.Printf("CreateProfile: created user %s (%s)", u.ID, u.Username)
	respondWithJSON(w, http.StatusCreated, u)
}

func (h *UserHandler) GetProfile(w http.ResponseWriter, r *http.Request) {
	ctx, cancel, userID, ok := authedContext(w, r)
	if !ok {
		return
	}
	defer cancel()

	u, err := h.userService.GetUser(ctx, userID)
	if err != nil {
		respondWithServiceError(w, "GetProfile", err)
		return
	}

	respondWithJSON(w, http.StatusOK, u)
}

func (h *UserHandler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	ctx, cancel, userID, ok := authedContext(w, r)
	if !ok {
		return
	}
	defer cancel()

	var req user.UpdateProfileRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	u, err := h.userService.UpdateProfile(ctx, userID, &req)
	if err != nil {
		respondWithServiceError(w, "UpdateProfile", err)
		return
	}

	respondWithJSON(w, http.StatusOK, u)
}

func (h *UserHandler) UpdateTimezone(w http.ResponseWriter, r *http.Request) {
	ctx, cancel, userID, ok := authedContext(w, r)
	if !ok {
		return
	}
	defer cancel()

	var req user.UpdateTimezoneRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	u, err := h.userService.UpdateTimezone(ctx, userID, req.Timezone)
	if err != nil {
		respondWithServiceError(w, "UpdateTimezone", err)
		return
	}

	respondWithJSON(w, http.StatusOK, u)
}

func (h *UserHandler) DeleteAccount(w http.ResponseWriter, r *http.Request) {
	ctx, cancel, userID, ok := authedContext(w, r)
	if !ok {
		return
	}
	defer cancel()

	if err := h.userService.DeleteUser(ctx, userID); err != nil {
		respondWithServiceError(w, "DeleteAccount", err)
		return
	}

	respondOK(w, "Account deleted successfully")
}

// POST /api/v1/user/heartbeat - body is optional, online defaults to true
func (h *UserHandler) Heartbeat(w http.ResponseWriter, r *http.Request) {
	ctx, cancel, userID, ok := authedContext(w, r)
	if !ok {
		return
	}
	defer cancel()

	online := true
	if r.ContentLength > 0 {
		var req user.HeartbeatRequest
		if !decodeAndValidate(w, r, &req) {
			return
		}
		if req.Online != nil {
			online = *req.Online
		}
	}

	if err := h.userService.Heartbeat(ctx, userID, online); err != nil {
		respondWithServiceError(w, "Heartbeat", err)
		return
	}

	respondOK(w, "ok")
}

func (h *UserHandler) SearchUsers(w http.ResponseWriter, r *http.Request) {
	ctx, cancel, userID, ok := authedContext(w, r)
	if !ok {
		return
	}
	defer cancel()

	query := r.URL.Query().Get("q")
	if strings.TrimSpace(query) == "" {
		respondWithError(w, http.StatusBadRequest, "Search query parameter 'q' is required")
		return
	}
	limit, err := queryInt(r, "limit", 0)
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid limit")
		return
	}

	results, err := h.userService.SearchUsers(ctx, userID, query, limit)
	if err != nil {
		respondWithServiceError(w, "SearchUsers", err)
		return
	}

	respondWithJSON(w, http.StatusOK, user.SearchResponse{Results: results})
}

func (h *UserHandler) GetUserByEmail(w http.ResponseWriter, r *http.Request) {
	ctx, cancel, _, ok := authedContext(w, r)
	if !ok {
		return
	}
	defer cancel()

	email := r.URL.Query().Get("email")
	if email == "" {
		respondWithError(w, http.StatusBadRequest, "Query parameter 'email' is required")
		return
	}

	u, err := h.userService.GetUserByEmail(ctx, email)
	if err != nil {
		respondWithServiceError(w, "GetUserByEmail", err)
		return
	}

	respondWithJSON(w, http.StatusOK, u.Public())
}

// GET /api/v1/user/username-available - public, used during sign up
func (h *UserHandler) UsernameAvailable(w http.ResponseWriter, r *http.Request) {
	username := r.URL.Query().Get("username")
	if username == "" {
		respondWithError(w, http.StatusBadRequest, "Query parameter 'username' is required")
		return
	}

	available, err := h.userService.UsernameAvailable(r.Context(), username)
	if err != nil {
		respondWithServiceError(w, "UsernameAvailable", err)
		return
	}

	respondWithJSON(w, http.StatusOK, user.UsernameAvailableResponse{Available: available})
}

func (h *UserHandler) GetFriends(w http.ResponseWriter, r *http.Request) {
	ctx, cancel, userID, ok := authedContext(w, r)
	if !ok {
		return
	}
	defer cancel()

	friends, err := h.userService.GetFriends(ctx, userID)
	if err != nil {
		respondWithServiceError(w, "GetFriends", err)
		return
	}

	respondWithJSON(w, http.StatusOK, friends)
}
