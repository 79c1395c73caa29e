package friendship

import "time"

type RequestStatus string

const (
	RequestPending  RequestStatus = "pending"
	RequestAccepted RequestStatus = "accepted"
	RequestRejected RequestStatus = "rejected"
	// RequestNone is reported when no request exists between two users.
	RequestNone RequestStatus = "none"
)

// FriendRequest is a directed proposal. Revoked requests are deleted, so there is
// no stored "revoked" status.
type FriendRequest struct {
	SenderID   string        `json:"sender_id"`
	ReceiverID string        `json:"receiver_id"`
	Status     RequestStatus `json:"status"`
	CreatedAt  time.Time     `json:"created_at"`
	UpdatedAt  time.Time     `json:"updated_at"`
}

type SendRequest struct {
	ReceiverID string `json:"receiver_id" validate:"required"`
}

type RespondRequest struct {
	SenderID string `json:"sender_id" validate:"required"`
}

type RemoveFriendRequest struct {
	FriendID string `json:"friend_id" validate:"required"`
}

type StatusResponse struct {
	Status RequestStatus `json:"status"`
}

type AreFriendsResponse struct {
	AreFriends bool `json:"are_friends"`
}

type RequestsResponse struct {
	Requests []*FriendRequest `json:"requests"`
}

// Debug is the raw state between two users, used to spot asymmetric friend lists.
type Debug struct {
	UserID       string         `json:"user_id"`
	OtherUserID  string         `json:"other_user_id"`
	UserFriends  []string       `json:"user_friends"`
	OtherFriends []string       `json:"other_friends"`
	UserHasOther bool           `json:"user_has_other"`
	OtherHasUser bool           `json:"other_has_user"`
	Symmetric    bool           `json:"symmetric"`
	Outgoing     *FriendRequest `json:"outgoing_request"`
	Incoming     *FriendRequest `json:"incoming_request"`
}
