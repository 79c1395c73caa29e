package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"kyoolAPI/internal/docstore"
	"kyoolAPI/internal/events"
	"kyoolAPI/internal/notification"
	"kyoolAPI/internal/timezone"
	"kyoolAPI/internal/user"
)

type testEnv struct {
	ctx      context.Context
	store    *docstore.MemoryStore
	clock    *timezone.FixedClock
	events   *events.Recorder
	notifier *recordingNotifier

	users       *UserService
	streaks     *StreakService
	friendships *FriendshipService
	water       *WaterService
	workouts    *WorkoutService
	bodyfat     *BodyFatService
	feed        *FeedService
	waitlist    *WaitlistService
	goals       *GoalService
	routines    *RoutineService
}

// newTestEnv starts at 2025-03-10 08:00 UTC.
func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	store := docstore.NewMemoryStore()
	clock := &timezone.FixedClock{At: time.Date(2025, 3, 10, 8, 0, 0, 0, time.UTC)}
	rec := &events.Recorder{}
	notifier := &recordingNotifier{}

	env := &testEnv{
		ctx:      context.Background(),
		store:    store,
		clock:    clock,
		events:   rec,
		notifier: notifier,
	}
	env.users = NewUserService(store, clock)
	env.streaks = NewStreakService(store, clock)
	env.streaks.SetNotifier(notifier)
	env.streaks.SetPublisher(rec)
	env.friendships = NewFriendshipService(store, clock)
	env.friendships.SetNotifier(notifier)
	env.friendships.SetPublisher(rec)
	env.water = NewWaterService(store, clock, env.streaks, DefaultWaterSessionWindow)
	env.water.SetPublisher(rec)
	env.workouts = NewWorkoutService(store, clock, env.streaks)
	env.workouts.SetPublisher(rec)
	env.bodyfat = NewBodyFatService(store, clock)
	env.feed = NewFeedService(env.users, env.water, env.workouts)
	env.waitlist = NewWaitlistService(store, clock)
	env.goals = NewGoalService(store, clock)
	env.goals.SetPublisher(rec)
	env.routines = NewRoutineService(store, clock)
	return env
}

func (e *testEnv) createUser(t *testing.T, id, username, tz string) *user.User {
	t.Helper()
	u, err := e.users.CreateUser(e.ctx, id, &user.CreateUserRequest{
		Username: username,
		Name:     username,
		Email:    username + "@example.com",
		Timezone: tz,
	})
	require.NoError(t, err)
	return u
}

type sentNotification struct {
	UserID string
	Type   notification.NotificationType
	Data   map[string]any
}

type recordingNotifier struct {
	mu   sync.Mutex
	sent []sentNotification
}

func (n *recordingNotifier) Notify(ctx context.Context, userID string, notifType notification.NotificationType, title, body string, data map[string]any, actorID *string) (*notification.Notification, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, sentNotification{UserID: userID, Type: notifType, Data: data})
	return &notification.Notification{UserID: userID, Type: notifType, Title: title, Body: body}, nil
}

func (n *recordingNotifier) ofType(notifType notification.NotificationType) []sentNotification {
	n.mu.Lock()
	defer n.mu.Unlock()
	var out []sentNotification
	for _, s := range n.sent {
		if s.Type == notifType {
			out = append(out, s)
		}
	}
	return out
}
