package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"
	"time"

	"github.com/google/uuid"

	"kyoolAPI/internal/docstore"
	"kyoolAPI/internal/notification"
	"kyoolAPI/internal/timezone"
)

// Notifier is what the engines use to tell a user something happened.
type Notifier interface {
	Notify(ctx context.Context, userID string, notifType notification.NotificationType, title, body string, data map[string]any, actorID *string) (*notification.Notification, error)
}

type nopNotifier struct{}

func (nopNotifier) Notify(ctx context.Context, userID string, notifType notification.NotificationType, title, body string, data map[string]any, actorID *string) (*notification.Notification, error) {
	return nil, nil
}

type NotificationService struct {
	store      docstore.Store
	clock      timezone.Clock
	dispatcher *NotificationDispatcher
}

func NewNotificationService(store docstore.Store, clock timezone.Clock) *NotificationService {
	return &NotificationService{
		store:      store,
		clock:      clock,
		dispatcher: NewNotificationDispatcher(store),
	}
}

func (s *NotificationService) Dispatcher() *NotificationDispatcher {
	return s.dispatcher
}

// Notify stores a pending notification and queues it for push delivery.
func (s *NotificationService) Notify(ctx context.Context, userID string, notifType notification.NotificationType, title, body string, data map[string]any, actorID *string) (*notification.Notification, error) {
	if data == nil {
		data = map[string]any{}
	}
	notif := &notification.Notification{
		ID:        uuid.NewString(),
		UserID:    userID,
		Type:      notifType,
		Status:    notification.StatusPending,
		Title:     title,
		Body:      body,
		Data:      data,
		ActorID:   actorID,
		CreatedAt: s.clock.Now().UTC(),
	}

	doc, err := docstore.Encode(notif)
	if err != nil {
		return nil, fmt.Errorf("failed to encode notification: %w", err)
	}
	if err := s.store.Set(ctx, notificationsCollection(userID), notif.ID, doc); err != nil {
		log.Printf("Notify: Failed to store notification for %s: %v", userID, err)
		return nil, storeErr("failed to create notification", err)
	}

	devices, err := s.devices(ctx, userID)
	if err != nil {
		log.Printf("Notify: Failed to load devices for %s: %v", userID, err)
	}
	s.dispatcher.DispatchNotification(ctx, notif, devices)

	return notif, nil
}

func (s *NotificationService) GetNotifications(ctx context.Context, userID string, limit int, unreadOnly bool) (*notification.NotificationListResponse, error) {
	snaps, err := s.store.List(ctx, notificationsCollection(userID))
	if err != nil {
		return nil, storeErr("failed to list notifications", err)
	}

	resp := &notification.NotificationListResponse{Notifications: []*notification.Notification{}}
	for _, snap := range snaps {
		var n notification.Notification
		if err := docstore.Decode(snap.Data, &n); err != nil {
			log.Printf("GetNotifications: Skipping malformed notification %s: %v", snap.Key, err)
			continue
		}
		if n.ReadAt == nil {
			resp.UnreadCount++
		} else if unreadOnly {
			continue
		}
		resp.Notifications = append(resp.Notifications, &n)
	}

	sort.Slice(resp.Notifications, func(i, j int) bool {
		return resp.Notifications[i].CreatedAt.After(resp.Notifications[j].CreatedAt)
	})
	if limit > 0 && len(resp.Notifications) > limit {
		resp.Notifications = resp.Notifications[:limit]
	}
	return resp, nil
}

func (s *NotificationService) MarkAsRead(ctx context.Context, userID, notificationID string) error {
	err := s.store.Update(ctx, notificationsCollection(userID), notificationID, docstore.Document{
		"status":  string(notification.StatusRead),
		"read_at": s.clock.Now().UTC(),
	})
	if errors.Is(err, docstore.ErrNotFound) {
		return ErrNotFoundGeneric
	}
	if err != nil {
		return storeErr("failed to mark notification as read", err)
	}
	return nil
}

func (s *NotificationService) MarkAllAsRead(ctx context.Context, userID string) error {
	resp, err := s.GetNotifications(ctx, userID, 0, true)
	if err != nil {
		return err
	}
	for _, n := range resp.Notifications {
		if err := s.MarkAsRead(ctx, userID, n.ID); err != nil {
			return err
		}
	}
	return nil
}

func (s *NotificationService) DeleteNotification(ctx context.Context, userID, notificationID string) error {
	if err := s.store.Delete(ctx, notificationsCollection(userID), notificationID); err != nil {
		return storeErr("failed to delete notification", err)
	}
	return nil
}

// RegisterDevice stores a push token. Registering the same token twice keeps one
// record.
func (s *NotificationService) RegisterDevice(ctx context.Context, userID string, req notification.RegisterDeviceRequest) error {
	device := notification.DeviceToken{
		Token:        req.Token,
		Platform:     req.Platform,
		RegisteredAt: s.clock.Now().UTC(),
	}
	doc, err := docstore.Encode(device)
	if err != nil {
		return fmt.Errorf("failed to encode device: %w", err)
	}
	if err := s.store.Set(ctx, devicesCollection(userID), deviceKey(req.Token), doc); err != nil {
		return storeErr("failed to register device", err)
	}
	return nil
}

func (s *NotificationService) UnregisterDevice(ctx context.Context, userID, token string) error {
	if err := s.store.Delete(ctx, devicesCollection(userID), deviceKey(token)); err != nil {
		return storeErr("failed to unregister device", err)
	}
	return nil
}

func (s *NotificationService) devices(ctx context.Context, userID string) ([]notification.DeviceToken, error) {
	snaps, err := s.store.List(ctx, devicesCollection(userID))
	if err != nil {
		return nil, err
	}
	devices := make([]notification.DeviceToken, 0, len(snaps))
	for _, snap := range snaps {
		var d notification.DeviceToken
		if err := docstore.Decode(snap.Data, &d); err != nil {
			continue
		}
		devices = append(devices, d)
	}
	return devices, nil
}

// Push tokens may contain characters that are not valid in document keys.
func deviceKey(token string) string {
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte(token)).String()
}

// Stop shuts down the dispatcher workers.
func (s *NotificationService) Stop() {
	s.dispatcher.Stop()
}

// sendNotification is called after a commit; failures never undo the write.
func sendNotification(n Notifier, userID string, notifType notification.NotificationType, title, body string, data map[string]any, actorID *string) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if _, err := n.Notify(ctx, userID, notifType, title, body, data, actorID); err != nil {
		log.Printf("Notify: Failed to notify %s (%s): %v", userID, notifType, err)
	}
}
