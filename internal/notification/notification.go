package notification

import "time"

type NotificationType string

const (
	TypeFriendRequest   NotificationType = "friend_request"
	TypeFriendAccepted  NotificationType = "friend_accepted"
	TypeStreakMilestone NotificationType = "streak_milestone"
)

type NotificationStatus string

const (
	StatusPending NotificationStatus = "pending"
	StatusSent    NotificationStatus = "sent"
	StatusFailed  NotificationStatus = "failed"
	StatusRead    NotificationStatus = "read"
)

type Notification struct {
	ID            string             `json:"id"`
	UserID        string             `json:"user_id"`
	Type          NotificationType   `json:"type"`
	Status        NotificationStatus `json:"status"`
	Title         string             `json:"title"`
	Body          string             `json:"body"`
	Data          map[string]any     `json:"data"`
	ActorID       *string            `json:"actor_id"`
	CreatedAt     time.Time          `json:"created_at"`
	SentAt        *time.Time         `json:"sent_at"`
	ReadAt        *time.Time         `json:"read_at"`
	FailureReason *string            `json:"failure_reason"`
}

type DeviceToken struct {
	Token        string    `json:"token"`
	Platform     string    `json:"platform"`
	RegisteredAt time.Time `json:"registered_at"`
}
