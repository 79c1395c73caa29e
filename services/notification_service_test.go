package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kyoolAPI/internal/docstore"
	"kyoolAPI/internal/notification"
	"kyoolAPI/internal/timezone"
)

type fakePush struct {
	mu     sync.Mutex
	calls  int
	tokens []string
	err    error
}

func (f *fakePush) SendPush(ctx context.Context, tokens []notification.DeviceToken, title, body string, data map[string]any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	for _, t := range tokens {
		f.tokens = append(f.tokens, t.Token)
	}
	return f.err
}

func newNotificationService(t *testing.T, push PushNotificationProvider) (*NotificationService, docstore.Store) {
	store := docstore.NewMemoryStore()
	clock := &timezone.FixedClock{At: time.Date(2025, 3, 10, 8, 0, 0, 0, time.UTC)}
	svc := NewNotificationService(store, clock)
	svc.Dispatcher().SetPushProvider(push)
	t.Cleanup(svc.Stop)
	return svc, store
}

func waitForStatus(t *testing.T, svc *NotificationService, userID, id string, want notification.NotificationStatus) {
	t.Helper()
	require.Eventually(t, func() bool {
		resp, err := svc.GetNotifications(context.Background(), userID, 0, false)
		if err != nil {
			return false
		}
		for _, n := range resp.Notifications {
			if n.ID == id {
				return n.Status == want
			}
		}
		return false
	}, 2*time.Second, 10*time.Millisecond)
}

func TestNotifyPushesToRegisteredDevices(t *testing.T) {
	push := &fakePush{}
	svc, _ := newNotificationService(t, push)
	ctx := context.Background()

	require.NoError(t, svc.RegisterDevice(ctx, "u1", notification.RegisterDeviceRequest{Token: "tok:abc/1", Platform: "ios"}))
	require.NoError(t, svc.RegisterDevice(ctx, "u1", notification.RegisterDeviceRequest{Token: "tok:abc/1", Platform: "ios"}))

	n, err := svc.Notify(ctx, "u1", notification.TypeFriendRequest, "Hi", "Body", nil, nil)
	require.NoError(t, err)
	waitForStatus(t, svc, "u1", n.ID, notification.StatusSent)

	push.mu.Lock()
	defer push.mu.Unlock()
	assert.Equal(t, 1, push.calls)
	assert.Equal(t, []string{"tok:abc/1"}, push.tokens)
}

func TestNotifyMarksFailedPush(t *testing.T) {
	push := &fakePush{err: errors.New("unregistered")}
	svc, _ := newNotificationService(t, push)
	ctx := context.Background()

	require.NoError(t, svc.RegisterDevice(ctx, "u1", notification.RegisterDeviceRequest{Token: "t1", Platform: "android"}))
	n, err := svc.Notify(ctx, "u1", notification.TypeStreakMilestone, "7 days", "Nice", map[string]any{"days": 7}, nil)
	require.NoError(t, err)
	waitForStatus(t, svc, "u1", n.ID, notification.StatusFailed)
}

func TestNotificationReadFlow(t *testing.T) {
	svc, store := newNotificationService(t, &fakePush{})
	ctx := context.Background()

	first, err := svc.Notify(ctx, "u1", notification.TypeFriendRequest, "one", "", nil, nil)
	require.NoError(t, err)
	_, err = svc.Notify(ctx, "u1", notification.TypeFriendAccepted, "two", "", nil, nil)
	require.NoError(t, err)

	resp, err := svc.GetNotifications(ctx, "u1", 0, false)
	require.NoError(t, err)
	assert.Equal(t, 2, resp.UnreadCount)

	require.NoError(t, svc.MarkAsRead(ctx, "u1", first.ID))
	resp, err = svc.GetNotifications(ctx, "u1", 0, true)
	require.NoError(t, err)
	assert.Equal(t, 1, resp.UnreadCount)
	assert.Len(t, resp.Notifications, 1)

	require.NoError(t, svc.MarkAllAsRead(ctx, "u1"))
	resp, err = svc.GetNotifications(ctx, "u1", 0, false)
	require.NoError(t, err)
	assert.Equal(t, 0, resp.UnreadCount)

	assert.ErrorIs(t, svc.MarkAsRead(ctx, "u1", "missing"), ErrNotFound)

	// Read notifications past retention are cleaned up.
	require.NoError(t, store.Set(ctx, usersCollection, "u1", docstore.Document{"username": "ana"}))
	removed := svc.Dispatcher().performCleanup(ctx, time.Now().Add(100*24*time.Hour))
	assert.Equal(t, 2, removed)
}
