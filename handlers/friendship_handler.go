package handlers

import (
	"log"
	"net/http"

	"github.com/gorilla/mux"

	"kyoolAPI/internal/types/friendship"
	"kyoolAPI/services"
)

type FriendshipHandler struct {
	friendshipService *services.FriendshipService
}

func NewFriendshipHandler(friendshipService *services.FriendshipService) *FriendshipHandler {
	return &FriendshipHandler{
		friendshipService: friendshipService,
	}
}

// POST /api/v1/user/friend-requests
func (h *FriendshipHandler) SendRequest(w http.ResponseWriter, r *http.Request) {
	ctx, cancel, userID, ok := authedContext(w, r)
	if !ok {
		return
	}
	defer cancel()

	var req friendship.SendRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	log.Printf("SendRequest Handler: %s -> %s", userID, req.ReceiverID)

	fr, err := h.friendshipService.SendRequest(ctx, userID, req.ReceiverID)
	if err != nil {
		respondWithServiceError(w, "SendRequest", err)
		return
	}

	respondWithJSON(w, http.StatusCreated, fr)
}

// POST /api/v1/user/friend-requests/accept
func (h *FriendshipHandler) AcceptRequest(w http.ResponseWriter, r *http.Request) {
	ctx, cancel, userID, ok := authedContext(w, r)
	if !ok {
		return
	}
	defer cancel()

	var req friendship.RespondRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	fr, err := h.friendshipService.AcceptRequest(ctx, userID, req.SenderID)
	if err != nil {
		respondWithServiceError(w, "AcceptRequest", err)
		return
	}

	respondWithJSON(w, http.StatusOK, fr)
}

// POST /api/v1/user/friend-requests/reject
func (h *FriendshipHandler) RejectRequest(w http.ResponseWriter, r *http.Request) {
	ctx, cancel, userID, ok := authedContext(w, r)
	if !ok {
		return
	}
	defer cancel()

	var req friendship.RespondRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	fr, err := h.friendshipService.RejectRequest(ctx, userID, req.SenderID)
	if err != nil {
		respondWithServiceError(w, "RejectRequest", err)
		return
	}

	respondWithJSON(w, http.StatusOK, fr)
}

// DELETE /api/v1/user/friend-requests/{userID} - revoke an outgoing request
func (h *FriendshipHandler) RevokeRequest(w http.ResponseWriter, r *http.Request) {
	ctx, cancel, userID, ok := authedContext(w, r)
	if !ok {
		return
	}
	defer cancel()

	if err := h.friendshipService.RevokeRequest(ctx, userID, mux.Vars(r)["userID"]); err != nil {
		respondWithServiceError(w, "RevokeRequest", err)
		return
	}

	respondOK(w, "Friend request revoked")
}

func (h *FriendshipHandler) IncomingRequests(w http.ResponseWriter, r *http.Request) {
	ctx, cancel, userID, ok := authedContext(w, r)
	if !ok {
		return
	}
	defer cancel()

	requests, err := h.friendshipService.IncomingRequests(ctx, userID)
	if err != nil {
		respondWithServiceError(w, "IncomingRequests", err)
		return
	}

	respondWithJSON(w, http.StatusOK, friendship.RequestsResponse{Requests: requests})
}

func (h *FriendshipHandler) OutgoingRequests(w http.ResponseWriter, r *http.Request) {
	ctx, cancel, userID, ok := authedContext(w, r)
	if !ok {
		return
	}
	defer cancel()

	requests, err := h.friendshipService.OutgoingRequests(ctx, userID)
	if err != nil {
		respondWithServiceError(w, "OutgoingRequests", err)
		return
	}

	respondWithJSON(w, http.StatusOK, friendship.RequestsResponse{Requests: requests})
}

// DELETE /api/v1/user/friends
func (h *FriendshipHandler) RemoveFriend(w http.ResponseWriter, r *http.Request) {
	ctx, cancel, userID, ok := authedContext(w, r)
	if !ok {
		return
	}
	defer cancel()

	var req friendship.RemoveFriendRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	if err := h.friendshipService.RemoveFriend(ctx, userID, req.FriendID); err != nil {
		respondWithServiceError(w, "RemoveFriend", err)
		return
	}

	respondOK(w, "Friend removed")
}

// GET /api/v1/user/friends/{userID}/status
func (h *FriendshipHandler) GetRequestStatus(w http.ResponseWriter, r *http.Request) {
	ctx, cancel, userID, ok := authedContext(w, r)
	if !ok {
		return
	}
	defer cancel()

	status, err := h.friendshipService.GetRequestStatus(ctx, userID, mux.Vars(r)["userID"])
	if err != nil {
		respondWithServiceError(w, "GetRequestStatus", err)
		return
	}

	respondWithJSON(w, http.StatusOK, friendship.StatusResponse{Status: status})
}

// GET /api/v1/user/friends/{userID}/are-friends
func (h *FriendshipHandler) AreFriends(w http.ResponseWriter, r *http.Request) {
	ctx, cancel, userID, ok := authedContext(w, r)
	if !ok {
		return
	}
	defer cancel()

	friends, err := h.friendshipService.AreFriends(ctx, userID, mux.Vars(r)["userID"])
	if err != nil {
		respondWithServiceError(w, "AreFriends", err)
		return
	}

	respondWithJSON(w, http.StatusOK, friendship.AreFriendsResponse{AreFriends: friends})
}

// GET /api/v1/user/friends/{userID}/debug
func (h *FriendshipHandler) DebugFriendship(w http.ResponseWriter, r *http.Request) {
	ctx, cancel, userID, ok := authedContext(w, r)
	if !ok {
		return
	}
	defer cancel()

	debug, err := h.friendshipService.DebugFriendship(ctx, userID, mux.Vars(r)["userID"])
	if err != nil {
		respondWithServiceError(w, "DebugFriendship", err)
		return
	}

	respondWithJSON(w, http.StatusOK, debug)
}

// POST /api/v1/user/friends/{userID}/repair
func (h *FriendshipHandler) RepairFriendship(w http.ResponseWriter, r *http.Request) {
	ctx, cancel, userID, ok := authedContext(w, r)
	if !ok {
		return
	}
	defer cancel()

	debug, err := h.friendshipService.RepairFriendship(ctx, userID, mux.Vars(r)["userID"])
	if err != nil {
		respondWithServiceError(w, "RepairFriendship", err)
		return
	}

	log.Printf("RepairFriendship Handler: %s <-> %s symmetric=%v", userID, debug.OtherUserID, debug.Symmetric)
	respondWithJSON(w, http.StatusOK, debug)
}
