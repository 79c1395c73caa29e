package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"

	"kyoolAPI/internal/docstore"
	"kyoolAPI/internal/events"
	"kyoolAPI/internal/notification"
	"kyoolAPI/internal/timezone"
	"kyoolAPI/internal/types/friendship"
	"kyoolAPI/internal/user"
)

// FriendshipService owns friend requests and the symmetric friend lists. Every
// mutation runs in one store transaction, so both friend lists and the request
// record change together or not at all.
type FriendshipService struct {
	store     docstore.Store
	clock     timezone.Clock
	notifier  Notifier
	publisher events.Publisher
}

func NewFriendshipService(store docstore.Store, clock timezone.Clock) *FriendshipService {
	return &FriendshipService{
		store:     store,
		clock:     clock,
		notifier:  nopNotifier{},
		publisher: events.NopPublisher{},
	}
}

func (s *FriendshipService) SetNotifier(n Notifier) {
	s.notifier = n
}

func (s *FriendshipService) SetPublisher(p events.Publisher) {
	s.publisher = p
}

// requestKey is deterministic per direction, so each ordered pair has at most one
// record.
func requestKey(senderID, receiverID string) string {
	return senderID + "_" + receiverID
}

func (s *FriendshipService) SendRequest(ctx context.Context, senderID, receiverID string) (*friendship.FriendRequest, error) {
	if senderID == receiverID {
		return nil, ErrSelfRequest
	}

	now := s.clock.Now().UTC()
	var req *friendship.FriendRequest
	var senderName string
	err := s.store.RunTransaction(ctx, func(ctx context.Context, tx docstore.Tx) error {
		sender, err := loadUser(tx, senderID)
		if err != nil {
			return err
		}
		receiver, err := loadUser(tx, receiverID)
		if err != nil {
			return err
		}
		if sender.HasFriend(receiverID) && receiver.HasFriend(senderID) {
			return ErrAlreadyFriends
		}

		outgoing, err := loadRequest(tx, senderID, receiverID)
		if err != nil {
			return err
		}
		if outgoing != nil && outgoing.Status == friendship.RequestPending {
			return ErrDuplicateRequest
		}
		incoming, err := loadRequest(tx, receiverID, senderID)
		if err != nil {
			return err
		}
		if incoming != nil && incoming.Status == friendship.RequestPending {
			return ErrInboundRequestPending
		}

		req = &friendship.FriendRequest{
			SenderID:   senderID,
			ReceiverID: receiverID,
			Status:     friendship.RequestPending,
			CreatedAt:  now,
			UpdatedAt:  now,
		}
		senderName = sender.Username
		if err := putRequest(tx, req); err != nil {
			return err
		}
		// A settled reverse request would otherwise shadow this one in
		// GetRequestStatus.
		if incoming != nil {
			return tx.Delete(friendRequestsCollection, requestKey(receiverID, senderID))
		}
		return nil
	})
	if err != nil {
		log.Printf("SendRequest: %s -> %s failed: %v", senderID, receiverID, err)
		return nil, asServiceError("failed to send friend request", err)
	}

	friendRequestTransitions.WithLabelValues("sent").Inc()
	actor := senderID
	sendNotification(s.notifier, receiverID, notification.TypeFriendRequest,
		"New friend request",
		fmt.Sprintf("%s wants to be your friend", senderName),
		map[string]any{"sender_id": senderID},
		&actor,
	)
	return req, nil
}

// AcceptRequest accepts the pending request sent by senderID to receiverID and
// adds each user to the other's friend list.
func (s *FriendshipService) AcceptRequest(ctx context.Context, receiverID, senderID string) (*friendship.FriendRequest, error) {
	now := s.clock.Now().UTC()
	var req *friendship.FriendRequest
	var receiverName string
	err := s.store.RunTransaction(ctx, func(ctx context.Context, tx docstore.Tx) error {
		r, err := loadPendingRequest(tx, senderID, receiverID)
		if err != nil {
			return err
		}
		receiver, err := loadUser(tx, receiverID)
		if err != nil {
			return err
		}
		sender, err := loadUser(tx, senderID)
		if err != nil {
			return err
		}

		r.Status = friendship.RequestAccepted
		r.UpdatedAt = now
		if err := putRequest(tx, r); err != nil {
			return err
		}
		if err := tx.Update(usersCollection, receiverID, docstore.Document{"friends": appendUnique(receiver.Friends, senderID)}); err != nil {
			return err
		}
		if err := tx.Update(usersCollection, senderID, docstore.Document{"friends": appendUnique(sender.Friends, receiverID)}); err != nil {
			return err
		}
		req = r
		receiverName = receiver.Username
		return nil
	})
	if err != nil {
		log.Printf("AcceptRequest: %s accepting %s failed: %v", receiverID, senderID, err)
		return nil, asServiceError("failed to accept friend request", err)
	}

	friendRequestTransitions.WithLabelValues("accepted").Inc()
	publishEvent(s.publisher, events.FriendAccepted, receiverID, map[string]any{"friend_id": senderID})
	actor := receiverID
	sendNotification(s.notifier, senderID, notification.TypeFriendAccepted,
		"Friend request accepted",
		fmt.Sprintf("%s accepted your friend request", receiverName),
		map[string]any{"friend_id": receiverID},
		&actor,
	)
	return req, nil
}

// RejectRequest keeps the record with status rejected.
func (s *FriendshipService) RejectRequest(ctx context.Context, receiverID, senderID string) (*friendship.FriendRequest, error) {
	now := s.clock.Now().UTC()
	var req *friendship.FriendRequest
	err := s.store.RunTransaction(ctx, func(ctx context.Context, tx docstore.Tx) error {
		r, err := loadPendingRequest(tx, senderID, receiverID)
		if err != nil {
			return err
		}
		r.Status = friendship.RequestRejected
		r.UpdatedAt = now
		req = r
		return putRequest(tx, r)
	})
	if err != nil {
		log.Printf("RejectRequest: %s rejecting %s failed: %v", receiverID, senderID, err)
		return nil, asServiceError("failed to reject friend request", err)
	}
	friendRequestTransitions.WithLabelValues("rejected").Inc()
	return req, nil
}

// RevokeRequest deletes the sender's pending request.
func (s *FriendshipService) RevokeRequest(ctx context.Context, senderID, receiverID string) error {
	err := s.store.RunTransaction(ctx, func(ctx context.Context, tx docstore.Tx) error {
		if _, err := loadPendingRequest(tx, senderID, receiverID); err != nil {
			return err
		}
		return tx.Delete(friendRequestsCollection, requestKey(senderID, receiverID))
	})
	if err != nil {
		log.Printf("RevokeRequest: %s revoking request to %s failed: %v", senderID, receiverID, err)
		return asServiceError("failed to revoke friend request", err)
	}
	friendRequestTransitions.WithLabelValues("revoked").Inc()
	return nil
}

// RemoveFriend drops each user from the other's list and deletes every request
// record between them, so a new request can be sent right away. Removing a
// non-friend is not an error.
func (s *FriendshipService) RemoveFriend(ctx context.Context, userID, friendID string) error {
	if userID == friendID {
		return ErrSelfRequest
	}

	err := s.store.RunTransaction(ctx, func(ctx context.Context, tx docstore.Tx) error {
		u, err := loadUser(tx, userID)
		if err != nil {
			return err
		}
		friend, err := loadUser(tx, friendID)
		if err != nil && !errors.Is(err, ErrUserNotFound) {
			return err
		}

		if err := tx.Update(usersCollection, userID, docstore.Document{"friends": without(u.Friends, friendID)}); err != nil {
			return err
		}
		if friend != nil {
			if err := tx.Update(usersCollection, friendID, docstore.Document{"friends": without(friend.Friends, userID)}); err != nil {
				return err
			}
		}
		if err := tx.Delete(friendRequestsCollection, requestKey(userID, friendID)); err != nil {
			return err
		}
		return tx.Delete(friendRequestsCollection, requestKey(friendID, userID))
	})
	if err != nil {
		log.Printf("RemoveFriend: %s removing %s failed: %v", userID, friendID, err)
		return asServiceError("failed to remove friend", err)
	}

	friendRequestTransitions.WithLabelValues("removed").Inc()
	publishEvent(s.publisher, events.FriendRemoved, userID, map[string]any{"friend_id": friendID})
	return nil
}

// GetRequestStatus reports the request between a and b in either direction,
// preferring a's outgoing request.
func (s *FriendshipService) GetRequestStatus(ctx context.Context, a, b string) (friendship.RequestStatus, error) {
	for _, key := range []string{requestKey(a, b), requestKey(b, a)} {
		doc, err := s.store.Get(ctx, friendRequestsCollection, key)
		if errors.Is(err, docstore.ErrNotFound) {
			continue
		}
		if err != nil {
			return "", storeErr("failed to get friend request", err)
		}
		r, err := decodeRequest(doc)
		if err != nil {
			return "", err
		}
		return r.Status, nil
	}
	return friendship.RequestNone, nil
}

// AreFriends checks a's friend list only.
func (s *FriendshipService) AreFriends(ctx context.Context, a, b string) (bool, error) {
	u, err := getUser(ctx, s.store, a)
	if err != nil {
		return false, err
	}
	return u.HasFriend(b), nil
}

func (s *FriendshipService) IncomingRequests(ctx context.Context, userID string) ([]*friendship.FriendRequest, error) {
	return s.pendingRequests(ctx, "receiver_id", userID)
}

func (s *FriendshipService) OutgoingRequests(ctx context.Context, userID string) ([]*friendship.FriendRequest, error) {
	return s.pendingRequests(ctx, "sender_id", userID)
}

func (s *FriendshipService) pendingRequests(ctx context.Context, field, userID string) ([]*friendship.FriendRequest, error) {
	snaps, err := s.store.QueryEqual(ctx, friendRequestsCollection, field, userID)
	if err != nil {
		return nil, storeErr("failed to query friend requests", err)
	}
	requests := []*friendship.FriendRequest{}
	for _, snap := range snaps {
		r, err := decodeRequest(snap.Data)
		if err != nil {
			log.Printf("pendingRequests: Skipping malformed request %s: %v", snap.Key, err)
			continue
		}
		if r.Status == friendship.RequestPending {
			requests = append(requests, r)
		}
	}
	sort.Slice(requests, func(i, j int) bool {
		return requests[i].CreatedAt.After(requests[j].CreatedAt)
	})
	return requests, nil
}

// DebugFriendship returns the raw state between two users.
func (s *FriendshipService) DebugFriendship(ctx context.Context, userID, otherID string) (*friendship.Debug, error) {
	var debug *friendship.Debug
	err := s.store.RunTransaction(ctx, func(ctx context.Context, tx docstore.Tx) error {
		d, _, _, err := readPairState(tx, userID, otherID)
		debug = d
		return err
	})
	if err != nil {
		return nil, asServiceError("failed to read friendship", err)
	}
	return debug, nil
}

// RepairFriendship reconciles the two friend lists: an accepted request in
// either direction makes the pair symmetric, otherwise any one-sided membership
// is removed.
func (s *FriendshipService) RepairFriendship(ctx context.Context, userID, otherID string) (*friendship.Debug, error) {
	if userID == otherID {
		return nil, ErrSelfRequest
	}

	var debug *friendship.Debug
	err := s.store.RunTransaction(ctx, func(ctx context.Context, tx docstore.Tx) error {
		d, u, other, err := readPairState(tx, userID, otherID)
		if err != nil {
			return err
		}
		if d.Symmetric {
			debug = d
			return nil
		}

		accepted := (d.Outgoing != nil && d.Outgoing.Status == friendship.RequestAccepted) ||
			(d.Incoming != nil && d.Incoming.Status == friendship.RequestAccepted)
		if accepted {
			u.Friends = appendUnique(u.Friends, otherID)
			other.Friends = appendUnique(other.Friends, userID)
		} else {
			u.Friends = without(u.Friends, otherID)
			other.Friends = without(other.Friends, userID)
		}
		if err := tx.Update(usersCollection, userID, docstore.Document{"friends": u.Friends}); err != nil {
			return err
		}
		if err := tx.Update(usersCollection, otherID, docstore.Document{"friends": other.Friends}); err != nil {
			return err
		}

		log.Printf("RepairFriendship: %s <-> %s repaired (accepted=%v)", userID, otherID, accepted)
		d.UserFriends = u.Friends
		d.OtherFriends = other.Friends
		d.UserHasOther = accepted
		d.OtherHasUser = accepted
		d.Symmetric = true
		debug = d
		return nil
	})
	if err != nil {
		return nil, asServiceError("failed to repair friendship", err)
	}
	return debug, nil
}

func readPairState(tx docstore.Tx, userID, otherID string) (*friendship.Debug, *user.User, *user.User, error) {
	u, err := loadUser(tx, userID)
	if err != nil {
		return nil, nil, nil, err
	}
	other, err := loadUser(tx, otherID)
	if err != nil {
		return nil, nil, nil, err
	}
	outgoing, err := loadRequest(tx, userID, otherID)
	if err != nil {
		return nil, nil, nil, err
	}
	incoming, err := loadRequest(tx, otherID, userID)
	if err != nil {
		return nil, nil, nil, err
	}

	d := &friendship.Debug{
		UserID:       userID,
		OtherUserID:  otherID,
		UserFriends:  u.Friends,
		OtherFriends: other.Friends,
		UserHasOther: u.HasFriend(otherID),
		OtherHasUser: other.HasFriend(userID),
		Outgoing:     outgoing,
		Incoming:     incoming,
	}
	d.Symmetric = d.UserHasOther == d.OtherHasUser
	return d, u, other, nil
}

// loadRequest returns nil when no record exists.
func loadRequest(tx docstore.Tx, senderID, receiverID string) (*friendship.FriendRequest, error) {
	doc, err := tx.Get(friendRequestsCollection, requestKey(senderID, receiverID))
	if errors.Is(err, docstore.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return decodeRequest(doc)
}

func loadPendingRequest(tx docstore.Tx, senderID, receiverID string) (*friendship.FriendRequest, error) {
	r, err := loadRequest(tx, senderID, receiverID)
	if err != nil {
		return nil, err
	}
	if r == nil || r.Status != friendship.RequestPending {
		return nil, ErrRequestNotFound
	}
	return r, nil
}

func putRequest(tx docstore.Tx, r *friendship.FriendRequest) error {
	doc, err := docstore.Encode(r)
	if err != nil {
		return err
	}
	return tx.Set(friendRequestsCollection, requestKey(r.SenderID, r.ReceiverID), doc)
}

func decodeRequest(doc docstore.Document) (*friendship.FriendRequest, error) {
	var r friendship.FriendRequest
	if err := docstore.Decode(doc, &r); err != nil {
		return nil, storeErr("malformed friend request", err)
	}
	return &r, nil
}

