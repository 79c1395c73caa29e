package handlers

import (
	"net/http"

	"github.com/gorilla/mux"

	"kyoolAPI/internal/notification"
	"kyoolAPI/services"
)

type NotificationHandler struct {
	notificationService *services.NotificationService
}

func NewNotificationHandler(notificationService *services.NotificationService) *NotificationHandler {
	return &NotificationHandler{
		notificationService: notificationService,
	}
}

// GET /api/v1/notifications - Get user's notifications
func (h *NotificationHandler) GetNotifications(w http.ResponseWriter, r *http.Request) {
	ctx, cancel, userID, ok := authedContext(w, r)
	if !ok {
		return
	}
	defer cancel()

	limit, err := queryInt(r, "limit", 20)
	if err != nil || limit < 1 || limit > 100 {
		limit = 20
	}
	unreadOnly := r.URL.Query().Get("unread_only") == "true"

	response, err := h.notificationService.GetNotifications(ctx, userID, limit, unreadOnly)
	if err != nil {
		respondWithServiceError(w, "GetNotifications", err)
		return
	}

	respondWithJSON(w, http.StatusOK, response)
}

// PUT /api/v1/notifications/{id}/read - Mark notification as read
func (h *NotificationHandler) MarkAsRead(w http.ResponseWriter, r *http.Request) {
	ctx, cancel, userID, ok := authedContext(w, r)
	if !ok {
		return
	}
	defer cancel()

	if err := h.notificationService.MarkAsRead(ctx, userID, mux.Vars(r)["id"]); err != nil {
		respondWithServiceError(w, "MarkAsRead", err)
		return
	}

	respondOK(w, "Notification marked as read")
}

// PUT /api/v1/notifications/read-all - Mark all as read
func (h *NotificationHandler) MarkAllAsRead(w http.ResponseWriter, r *http.Request) {
	ctx, cancel, userID, ok := authedContext(w, r)
	if !ok {
		return
	}
	defer cancel()

	if err := h.notificationService.MarkAllAsRead(ctx, userID); err != nil {
		respondWithServiceError(w, "MarkAllAsRead", err)
		return
	}

	respondOK(w, "All notifications marked as read")
}

// DELETE /api/v1/notifications/{id} - Delete notification
func (h *NotificationHandler) DeleteNotification(w http.ResponseWriter, r *http.Request) {
	ctx, cancel, userID, ok := authedContext(w, r)
	if !ok {
		return
	}
	defer cancel()

	if err := h.notificationService.DeleteNotification(ctx, userID, mux.Vars(r)["id"]); err != nil {
		respondWithServiceError(w, "DeleteNotification", err)
		return
	}

	respondOK(w, "Notification deleted")
}

// POST /api/v1/notifications/register-device - Register device for push notifications
func (h *NotificationHandler) RegisterDevice(w http.ResponseWriter, r *http.Request) {
	ctx, cancel, userID, ok := authedContext(w, r)
	if !ok {
		return
	}
	defer cancel()

	var req notification.RegisterDeviceRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	if err := h.notificationService.RegisterDevice(ctx, userID, req); err != nil {
		respondWithServiceError(w, "RegisterDevice", err)
		return
	}

	respondOK(w, "Device registered successfully")
}

// DELETE /api/v1/notifications/register-device - Stop pushing to a device
func (h *NotificationHandler) UnregisterDevice(w http.ResponseWriter, r *http.Request) {
	ctx, cancel, userID, ok := authedContext(w, r)
	if !ok {
		return
	}
	defer cancel()

	var req struct {
		Token string `json:"token" validate:"required"`
	}
	if !decodeAndValidate(w, r, &req) {
		return
	}

	if err := h.notificationService.UnregisterDevice(ctx, userID, req.Token); err != nil {
		respondWithServiceError(w, "UnregisterDevice", err)
		return
	}

	respondOK(w, "Device unregistered")
}
