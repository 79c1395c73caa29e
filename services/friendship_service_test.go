package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kyoolAPI/internal/docstore"
	"kyoolAPI/internal/events"
	"kyoolAPI/internal/notification"
	"kyoolAPI/internal/types/friendship"
)

func newFriendEnv(t *testing.T) *testEnv {
	env := newTestEnv(t)
	env.createUser(t, "a", "alice", "UTC")
	env.createUser(t, "b", "bob", "UTC")
	env.createUser(t, "c", "carol", "Europe/Sofia")
	return env
}

func assertFriends(t *testing.T, env *testEnv, x, y string, want bool) {
	t.Helper()
	got, err := env.friendships.AreFriends(env.ctx, x, y)
	require.NoError(t, err)
	assert.Equal(t, want, got, "%s -> %s", x, y)
	got, err = env.friendships.AreFriends(env.ctx, y, x)
	require.NoError(t, err)
	assert.Equal(t, want, got, "%s -> %s", y, x)
}

func TestSendAndAcceptMakesSymmetricFriends(t *testing.T) {
	env := newFriendEnv(t)

	req, err := env.friendships.SendRequest(env.ctx, "a", "b")
	require.NoError(t, err)
	assert.Equal(t, friendship.RequestPending, req.Status)

	status, err := env.friendships.GetRequestStatus(env.ctx, "b", "a")
	require.NoError(t, err)
	assert.Equal(t, friendship.RequestPending, status)

	accepted, err := env.friendships.AcceptRequest(env.ctx, "b", "a")
	require.NoError(t, err)
	assert.Equal(t, friendship.RequestAccepted, accepted.Status)

	assertFriends(t, env, "a", "b", true)
	status, err = env.friendships.GetRequestStatus(env.ctx, "a", "b")
	require.NoError(t, err)
	assert.Equal(t, friendship.RequestAccepted, status)

	assert.Len(t, env.notifier.ofType(notification.TypeFriendRequest), 1)
	accepts := env.notifier.ofType(notification.TypeFriendAccepted)
	require.Len(t, accepts, 1)
	assert.Equal(t, "a", accepts[0].UserID)
	assert.Contains(t, env.events.Names(), events.FriendAccepted)
}

func TestAcceptIsIdempotentOnFriendLists(t *testing.T) {
	env := newFriendEnv(t)

	// A stale one-sided entry must not be duplicated by accept.
	require.NoError(t, env.store.Update(env.ctx, usersCollection, "a", docstore.Document{"friends": []string{"b"}}))

	_, err := env.friendships.SendRequest(env.ctx, "a", "b")
	require.NoError(t, err)
	_, err = env.friendships.AcceptRequest(env.ctx, "b", "a")
	require.NoError(t, err)

	a, err := env.users.GetUser(env.ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, []string{"b"}, a.Friends)
}

func TestSendRequestConflicts(t *testing.T) {
	env := newFriendEnv(t)

	_, err := env.friendships.SendRequest(env.ctx, "a", "a")
	assert.ErrorIs(t, err, ErrSelfRequest)
	assert.ErrorIs(t, err, ErrValidation)

	_, err = env.friendships.SendRequest(env.ctx, "a", "b")
	require.NoError(t, err)

	_, err = env.friendships.SendRequest(env.ctx, "a", "b")
	assert.ErrorIs(t, err, ErrDuplicateRequest)
	assert.ErrorIs(t, err, ErrConflict)

	_, err = env.friendships.SendRequest(env.ctx, "b", "a")
	assert.ErrorIs(t, err, ErrInboundRequestPending)
	assert.ErrorIs(t, err, ErrConflict)
	assert.NotErrorIs(t, err, ErrDuplicateRequest)

	_, err = env.friendships.AcceptRequest(env.ctx, "b", "a")
	require.NoError(t, err)
	_, err = env.friendships.SendRequest(env.ctx, "b", "a")
	assert.ErrorIs(t, err, ErrAlreadyFriends)

	_, err = env.friendships.SendRequest(env.ctx, "a", "ghost")
	assert.ErrorIs(t, err, ErrUserNotFound)
}

func TestAcceptRejectRevokeRequireMatchingPendingRequest(t *testing.T) {
	env := newFriendEnv(t)

	_, err := env.friendships.AcceptRequest(env.ctx, "b", "a")
	assert.ErrorIs(t, err, ErrRequestNotFound)
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = env.friendships.SendRequest(env.ctx, "a", "b")
	require.NoError(t, err)

	// Wrong direction.
	_, err = env.friendships.AcceptRequest(env.ctx, "a", "b")
	assert.ErrorIs(t, err, ErrRequestNotFound)
	_, err = env.friendships.RejectRequest(env.ctx, "a", "b")
	assert.ErrorIs(t, err, ErrRequestNotFound)
	assert.ErrorIs(t, env.friendships.RevokeRequest(env.ctx, "b", "a"), ErrRequestNotFound)

	rejected, err := env.friendships.RejectRequest(env.ctx, "b", "a")
	require.NoError(t, err)
	assert.Equal(t, friendship.RequestRejected, rejected.Status)

	// A rejected request is kept but is no longer pending.
	status, err := env.friendships.GetRequestStatus(env.ctx, "a", "b")
	require.NoError(t, err)
	assert.Equal(t, friendship.RequestRejected, status)
	_, err = env.friendships.AcceptRequest(env.ctx, "b", "a")
	assert.ErrorIs(t, err, ErrRequestNotFound)
	assertFriends(t, env, "a", "b", false)

	// The sender may try again after a rejection.
	_, err = env.friendships.SendRequest(env.ctx, "a", "b")
	require.NoError(t, err)
}

func TestRevokeDeletesRequest(t *testing.T) {
	env := newFriendEnv(t)

	_, err := env.friendships.SendRequest(env.ctx, "a", "c")
	require.NoError(t, err)
	require.NoError(t, env.friendships.RevokeRequest(env.ctx, "a", "c"))

	status, err := env.friendships.GetRequestStatus(env.ctx, "a", "c")
	require.NoError(t, err)
	assert.Equal(t, friendship.RequestNone, status)

	assert.ErrorIs(t, env.friendships.RevokeRequest(env.ctx, "a", "c"), ErrRequestNotFound)

	_, err = env.friendships.SendRequest(env.ctx, "c", "a")
	require.NoError(t, err)
}

func TestRemoveFriendClearsEverything(t *testing.T) {
	env := newFriendEnv(t)

	_, err := env.friendships.SendRequest(env.ctx, "a", "b")
	require.NoError(t, err)
	_, err = env.friendships.AcceptRequest(env.ctx, "b", "a")
	require.NoError(t, err)

	require.NoError(t, env.friendships.RemoveFriend(env.ctx, "b", "a"))
	assertFriends(t, env, "a", "b", false)

	snaps, err := env.store.List(env.ctx, friendRequestsCollection)
	require.NoError(t, err)
	assert.Empty(t, snaps)

	status, err := env.friendships.GetRequestStatus(env.ctx, "a", "b")
	require.NoError(t, err)
	assert.Equal(t, friendship.RequestNone, status)

	// Removing again is a no-op.
	require.NoError(t, env.friendships.RemoveFriend(env.ctx, "a", "b"))

	_, err = env.friendships.SendRequest(env.ctx, "a", "b")
	require.NoError(t, err)
}

func TestIncomingAndOutgoingRequests(t *testing.T) {
	env := newFriendEnv(t)

	_, err := env.friendships.SendRequest(env.ctx, "a", "c")
	require.NoError(t, err)
	env.clock.Advance(time.Minute)
	_, err = env.friendships.SendRequest(env.ctx, "b", "c")
	require.NoError(t, err)
	_, err = env.friendships.SendRequest(env.ctx, "c", "x")
	require.ErrorIs(t, err, ErrUserNotFound)

	incoming, err := env.friendships.IncomingRequests(env.ctx, "c")
	require.NoError(t, err)
	require.Len(t, incoming, 2)
	assert.Equal(t, "b", incoming[0].SenderID)
	assert.Equal(t, "a", incoming[1].SenderID)

	outgoing, err := env.friendships.OutgoingRequests(env.ctx, "a")
	require.NoError(t, err)
	require.Len(t, outgoing, 1)
	assert.Equal(t, "c", outgoing[0].ReceiverID)

	_, err = env.friendships.RejectRequest(env.ctx, "c", "a")
	require.NoError(t, err)
	incoming, err = env.friendships.IncomingRequests(env.ctx, "c")
	require.NoError(t, err)
	assert.Len(t, incoming, 1)
}

func TestConcurrentCrossRequestsLeaveOnePending(t *testing.T) {
	env := newFriendEnv(t)

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i, pair := range [][2]string{{"a", "b"}, {"b", "a"}} {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, errs[i] = env.friendships.SendRequest(context.Background(), pair[0], pair[1])
		}()
	}
	wg.Wait()

	failed := 0
	for _, err := range errs {
		if err != nil {
			failed++
			assert.ErrorIs(t, err, ErrInboundRequestPending)
		}
	}
	assert.Equal(t, 1, failed)
}

func TestDebugAndRepairFriendship(t *testing.T) {
	env := newFriendEnv(t)

	_, err := env.friendships.SendRequest(env.ctx, "a", "b")
	require.NoError(t, err)
	_, err = env.friendships.AcceptRequest(env.ctx, "b", "a")
	require.NoError(t, err)

	// Simulate a lost write on one side.
	require.NoError(t, env.store.Update(env.ctx, usersCollection, "b", docstore.Document{"friends": []string{}}))

	debug, err := env.friendships.DebugFriendship(env.ctx, "a", "b")
	require.NoError(t, err)
	assert.True(t, debug.UserHasOther)
	assert.False(t, debug.OtherHasUser)
	assert.False(t, debug.Symmetric)
	require.NotNil(t, debug.Outgoing)
	assert.Equal(t, friendship.RequestAccepted, debug.Outgoing.Status)

	repaired, err := env.friendships.RepairFriendship(env.ctx, "b", "a")
	require.NoError(t, err)
	assert.True(t, repaired.Symmetric)
	assertFriends(t, env, "a", "b", true)

	// Without an accepted request a one-sided entry is dropped.
	require.NoError(t, env.store.Update(env.ctx, usersCollection, "c", docstore.Document{"friends": []string{"a"}}))
	_, err = env.friendships.RepairFriendship(env.ctx, "a", "c")
	require.NoError(t, err)
	assertFriends(t, env, "a", "c", false)
}

func TestReverseRequestReplacesSettledOne(t *testing.T) {
	env := newFriendEnv(t)

	_, err := env.friendships.SendRequest(env.ctx, "a", "b")
	require.NoError(t, err)
	_, err = env.friendships.RejectRequest(env.ctx, "b", "a")
	require.NoError(t, err)

	_, err = env.friendships.SendRequest(env.ctx, "b", "a")
	require.NoError(t, err)
	_, err = env.store.Get(env.ctx, friendRequestsCollection, requestKey("a", "b"))
	assert.ErrorIs(t, err, docstore.ErrNotFound)

	_, err = env.friendships.AcceptRequest(env.ctx, "a", "b")
	require.NoError(t, err)
	assertFriends(t, env, "a", "b", true)

	for _, pair := range [][2]string{{"a", "b"}, {"b", "a"}} {
		status, err := env.friendships.GetRequestStatus(env.ctx, pair[0], pair[1])
		require.NoError(t, err)
		assert.Equal(t, friendship.RequestAccepted, status)
	}
}
