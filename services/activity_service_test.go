package services

import (
	"fmt"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kyoolAPI/internal/events"
	"kyoolAPI/internal/types/bodyfat"
	"kyoolAPI/internal/types/feed"
	"kyoolAPI/internal/types/waitlist"
	"kyoolAPI/internal/types/workout"
)

func legDay() *workout.LogRequest {
	return &workout.LogRequest{
		RoutineName:        "Leg day",
		ExercisesCompleted: []workout.ExerciseCompleted{{Name: "Squat", Sets: 5, Reps: "5", Weight: "100kg"}},
		DurationMinutes:    45,
	}
}

func TestLogWorkoutRecordsStreakAndHistory(t *testing.T) {
	env := newTestEnv(t)
	env.createUser(t, "u1", "ana", "UTC")

	logged, err := env.workouts.LoggedToday(env.ctx, "u1")
	require.NoError(t, err)
	assert.False(t, logged)

	w, err := env.workouts.LogWorkout(env.ctx, "u1", legDay())
	require.NoError(t, err)
	assert.Equal(t, "2025-03-10", w.LocalDate)
	assert.NotEmpty(t, w.ID)

	env.clock.Advance(24 * time.Hour)
	second := legDay()
	second.RoutineName = "Push"
	_, err = env.workouts.LogWorkout(env.ctx, "u1", second)
	require.NoError(t, err)

	logged, err = env.workouts.LoggedToday(env.ctx, "u1")
	require.NoError(t, err)
	assert.True(t, logged)

	latest, err := env.workouts.LatestWorkout(env.ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, "Push", latest.RoutineName)

	history, err := env.workouts.WorkoutHistory(env.ctx, "u1", 1)
	require.NoError(t, err)
	assert.Len(t, history, 1)

	st, err := env.streaks.GetStreak(env.ctx, "u1", "workout")
	require.NoError(t, err)
	assert.Equal(t, 2, st.CurrentStreak)
	assert.Contains(t, env.events.Names(), events.WorkoutLogged)

	days, err := env.workouts.Consistency(env.ctx, "u1", 3)
	require.NoError(t, err)
	require.Len(t, days, 3)
	assert.True(t, days[0].Completed)
	assert.True(t, days[1].Completed)
	assert.False(t, days[2].Completed)
	assert.Equal(t, "2025-03-09", days[2].Date)
}

func TestLatestWorkoutNotFound(t *testing.T) {
	env := newTestEnv(t)
	env.createUser(t, "u1", "ana", "UTC")

	_, err := env.workouts.LatestWorkout(env.ctx, "u1")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = env.workouts.LogWorkout(env.ctx, "u1", &workout.LogRequest{RoutineName: "Empty"})
	assert.ErrorIs(t, err, ErrValidation)
}

func TestBodyFatOnePerLocalDay(t *testing.T) {
	env := newTestEnv(t)
	env.createUser(t, "u1", "ana", "UTC")

	req := &bodyfat.LogRequest{Height: 170, Neck: 35, Waist: 80, BodyFatPercentage: 20}
	_, err := env.bodyfat.LogMeasurement(env.ctx, "u1", req)
	require.NoError(t, err)

	env.clock.Advance(time.Hour)
	req.BodyFatPercentage = 19.5
	_, err = env.bodyfat.LogMeasurement(env.ctx, "u1", req)
	require.NoError(t, err)

	history, err := env.bodyfat.History(env.ctx, "u1", 0)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, 19.5, history[0].BodyFatPercentage)

	env.clock.Advance(24 * time.Hour)
	req.BodyFatPercentage = 19
	_, err = env.bodyfat.LogMeasurement(env.ctx, "u1", req)
	require.NoError(t, err)

	latest, err := env.bodyfat.Latest(env.ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, "2025-03-11", latest.Date)
	assert.Equal(t, 19.0, latest.BodyFatPercentage)

	req.BodyFatPercentage = 120
	_, err = env.bodyfat.LogMeasurement(env.ctx, "u1", req)
	assert.ErrorIs(t, err, ErrValidation)
}

func TestFeedIncludesFriendsNewestFirst(t *testing.T) {
	env := newFriendEnv(t)

	_, err := env.friendships.SendRequest(env.ctx, "a", "b")
	require.NoError(t, err)
	_, err = env.friendships.AcceptRequest(env.ctx, "b", "a")
	require.NoError(t, err)

	_, err = env.workouts.LogWorkout(env.ctx, "b", legDay())
	require.NoError(t, err)
	env.clock.Advance(time.Minute)
	_, err = env.water.LogWater(env.ctx, "a", 2)
	require.NoError(t, err)
	env.clock.Advance(time.Minute)
	_, err = env.workouts.LogWorkout(env.ctx, "c", legDay())
	require.NoError(t, err)

	// a's idle session is flushed when a opens the feed.
	items, err := env.feed.GetFeed(env.ctx, "a", 10)
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, feed.ItemWater, items[0].Type)
	assert.Equal(t, "alice", items[0].Username)
	assert.Equal(t, feed.ItemWorkout, items[1].Type)
	assert.Equal(t, "bob", items[1].Username)
}

func TestWaitlistJoin(t *testing.T) {
	env := newTestEnv(t)

	req := &waitlist.JoinRequest{Email: "fit@example.com", PersonType: "executive", ActivityLevel: "high", Budget: "flexible"}
	resp, err := env.waitlist.Join(env.ctx, req)
	require.NoError(t, err)
	assert.Equal(t, 1, resp.Position)

	req.Email = "FIT@example.com"
	_, err = env.waitlist.Join(env.ctx, req)
	assert.ErrorIs(t, err, ErrWaitlistDuplicate)

	req.Email = "other@example.com"
	req.PersonType = "student"
	req.Budget = "under-50"
	resp, err = env.waitlist.Join(env.ctx, req)
	require.NoError(t, err)
	assert.Equal(t, 2, resp.Position)

	stats, err := env.waitlist.Stats(env.ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Total)
	assert.Equal(t, map[string]int{"executive": 1, "student": 1}, stats.ByPersonType)
	assert.Equal(t, map[string]int{"active": 2}, stats.ByStatus)
	assert.Equal(t, 1, stats.HighValueProspects)
}

func TestWaitlistConcurrentJoinsGetDistinctPositions(t *testing.T) {
	env := newTestEnv(t)

	const joins = 20
	positions := make([]int, joins)
	var wg sync.WaitGroup
	for i := 0; i < joins; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			resp, err := env.waitlist.Join(env.ctx, &waitlist.JoinRequest{
				Email:         fmt.Sprintf("user%d@example.com", i),
				PersonType:    "student",
				ActivityLevel: "low",
			})
			if assert.NoError(t, err) {
				positions[i] = resp.Position
			}
		}(i)
	}
	wg.Wait()

	sort.Ints(positions)
	for i, p := range positions {
		assert.Equal(t, i+1, p)
	}
}

func TestWaitlistEntriesAndStatus(t *testing.T) {
	env := newTestEnv(t)
	first, err := env.waitlist.Join(env.ctx, &waitlist.JoinRequest{
		Email: "a@example.com", PersonType: "executive", ActivityLevel: "sedentary",
		CurrentSituation: "no-time", DesiredResults: "fitness-routine", Budget: "500-plus",
	})
	require.NoError(t, err)
	env.clock.Advance(time.Minute)
	_, err = env.waitlist.Join(env.ctx, &waitlist.JoinRequest{Email: "b@example.com", PersonType: "student", ActivityLevel: "high"})
	require.NoError(t, err)

	list, err := env.waitlist.Entries(env.ctx, "", 0)
	require.NoError(t, err)
	require.Equal(t, 2, list.Count)
	assert.Equal(t, "b@example.com", list.Entries[0].Email)
	exec := list.Entries[1]
	assert.Equal(t, 10+12+5, exec.PriorityScore)
	assert.Equal(t, []string{"executive", "fitness-beginner", "fitness-routine", "no-time", "sedentary", "time-pressed-executive"}, exec.Tags)

	entry, err := env.waitlist.UpdateStatus(env.ctx, first.WaitlistID, waitlist.StatusContacted)
	require.NoError(t, err)
	assert.Equal(t, waitlist.StatusContacted, entry.Status)
	require.NotNil(t, entry.UpdatedAt)

	contacted, err := env.waitlist.Entries(env.ctx, waitlist.StatusContacted, 10)
	require.NoError(t, err)
	require.Equal(t, 1, contacted.Count)
	assert.Equal(t, "a@example.com", contacted.Entries[0].Email)

	limited, err := env.waitlist.Entries(env.ctx, "", 1)
	require.NoError(t, err)
	assert.Equal(t, 1, limited.Count)

	_, err = env.waitlist.UpdateStatus(env.ctx, "missing", waitlist.StatusConverted)
	assert.ErrorIs(t, err, ErrWaitlistEntryNotFound)
	_, err = env.waitlist.UpdateStatus(env.ctx, first.WaitlistID, "archived")
	assert.ErrorIs(t, err, ErrValidation)
	_, err = env.waitlist.Entries(env.ctx, "archived", 0)
	assert.ErrorIs(t, err, ErrValidation)
}

func TestPriorityScore(t *testing.T) {
	cases := []struct {
		personType, budget, situation string
		want                          int
	}{
		{"executive", "flexible", "stressed", 30},
		{"professional", "200-500", "", 15},
		{"student", "under-50", "health-concerns", 9},
		{"retired", "unknown", "", 0},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, PriorityScore(tc.personType, tc.budget, tc.situation), tc)
	}
}
