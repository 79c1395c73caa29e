package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kyoolAPI/internal/config"
	"kyoolAPI/internal/docstore"
	"kyoolAPI/internal/events"
	"kyoolAPI/internal/timezone"
)

// tokenVerifier accepts "token-<uid>" for any uid.
type tokenVerifier struct{}

func (tokenVerifier) VerifyToken(ctx context.Context, token string) (string, error) {
	if len(token) > len("token-") && token[:len("token-")] == "token-" {
		return token[len("token-"):], nil
	}
	return "", errors.New("bad token")
}

type testServer struct {
	t       *testing.T
	handler http.Handler
	events  *events.Recorder
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	env := map[string]string{
		"RATE_LIMIT_BURST": "1000",
		"ADMIN_USER":       "admin",
		"ADMIN_PASS":       "secret",
	}
	cfg, err := config.FromEnv(func(key string) string { return env[key] })
	require.NoError(t, err)

	rec := &events.Recorder{}
	a := newApp(cfg, docstore.NewMemoryStore(), timezone.SystemClock(), rec, tokenVerifier{})
	t.Cleanup(a.notifications.Stop)
	return &testServer{t: t, handler: a.routes(), events: rec}
}

func (s *testServer) do(method, path, uid string, body any) *httptest.ResponseRecorder {
	s.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(s.t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if uid != "" {
		req.Header.Set("Authorization", "Bearer token-"+uid)
	}
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	return rec
}

func (s *testServer) createProfile(uid, username string) {
	s.t.Helper()
	rec := s.do(http.MethodPost, "/api/v1/user", uid, map[string]any{
		"username": username,
		"name":     username,
		"email":    username + "@example.com",
		"timezone": "Europe/Sofia",
	})
	require.Equal(s.t, http.StatusCreated, rec.Code, rec.Body.String())
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func TestHealth(t *testing.T) {
	s := newTestServer(t)
	rec := s.do(http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestProtectedRoutesRequireAuth(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(http.MethodGet, "/api/v1/user", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = s.do(http.MethodGet, "/api/v1/user", "ghost", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	body := decode[map[string]string](t, rec)
	assert.Equal(t, "user_not_found", body["code"])
}

func TestProfileLifecycle(t *testing.T) {
	s := newTestServer(t)
	s.createProfile("u1", "ana")

	rec := s.do(http.MethodGet, "/api/v1/user/username-available?username=ANA", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.False(t, decode[map[string]bool](t, rec)["available"])

	rec = s.do(http.MethodPost, "/api/v1/user", "u2", map[string]any{
		"username": "ana", "name": "Other", "email": "o@example.com",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "username_taken", decode[map[string]string](t, rec)["code"])

	rec = s.do(http.MethodPut, "/api/v1/user/timezone", "u1", map[string]string{"timezone": "Nowhere/Land"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(http.MethodPut, "/api/v1/user/timezone", "u1", map[string]string{"timezone": "Asia/Tokyo"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Asia/Tokyo", decode[map[string]any](t, rec)["timezone"])

	rec = s.do(http.MethodDelete, "/api/v1/user/delete-account", "u1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	rec = s.do(http.MethodGet, "/api/v1/user", "u1", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestFriendRequestFlow(t *testing.T) {
	s := newTestServer(t)
	s.createProfile("a", "alice")
	s.createProfile("b", "bob")

	rec := s.do(http.MethodPost, "/api/v1/user/friend-requests", "a", map[string]string{"receiver_id": "a"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "self_request", decode[map[string]string](t, rec)["code"])

	rec = s.do(http.MethodPost, "/api/v1/user/friend-requests", "a", map[string]string{"receiver_id": "b"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = s.do(http.MethodGet, "/api/v1/user/friends/b/status", "a", nil)
	assert.Equal(t, "pending", decode[map[string]string](t, rec)["status"])

	rec = s.do(http.MethodGet, "/api/v1/user/friend-requests/incoming", "b", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	incoming := decode[map[string][]map[string]any](t, rec)["requests"]
	require.Len(t, incoming, 1)
	assert.Equal(t, "a", incoming[0]["sender_id"])

	rec = s.do(http.MethodPost, "/api/v1/user/friend-requests/accept", "b", map[string]string{"sender_id": "a"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = s.do(http.MethodGet, "/api/v1/user/friends/b/are-friends", "a", nil)
	assert.True(t, decode[map[string]bool](t, rec)["are_friends"])
	rec = s.do(http.MethodGet, "/api/v1/user/friends", "b", nil)
	friends := decode[[]map[string]any](t, rec)
	require.Len(t, friends, 1)
	assert.Equal(t, "alice", friends[0]["username"])
	assert.Contains(t, s.events.Names(), events.FriendAccepted)

	rec = s.do(http.MethodPost, "/api/v1/user/friend-requests/accept", "b", map[string]string{"sender_id": "ghost"})
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = s.do(http.MethodDelete, "/api/v1/user/friends", "a", map[string]string{"friend_id": "b"})
	require.Equal(t, http.StatusOK, rec.Code)
	rec = s.do(http.MethodGet, "/api/v1/user/friends/a/debug", "b", nil)
	debug := decode[map[string]any](t, rec)
	assert.Equal(t, true, debug["symmetric"])
	assert.Equal(t, false, debug["user_has_other"])
}

func TestWaterAndStreakRoutes(t *testing.T) {
	s := newTestServer(t)
	s.createProfile("u1", "ana")

	rec := s.do(http.MethodPost, "/api/v1/user/water", "u1", map[string]float64{"glasses": 0})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(http.MethodPost, "/api/v1/user/water", "u1", map[string]float64{"glasses": 2})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	logged := decode[map[string]map[string]any](t, rec)
	assert.Equal(t, 2.0, logged["today"]["glasses"])

	rec = s.do(http.MethodGet, "/api/v1/user/streaks/water", "u1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1.0, decode[map[string]any](t, rec)["current_streak"])

	rec = s.do(http.MethodGet, "/api/v1/user/streaks/Not-Valid", "u1", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(http.MethodPost, "/api/v1/user/water/flush", "u1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	flushed := decode[map[string]map[string]any](t, rec)["flushed"]
	assert.Equal(t, 2.0, flushed["glasses"])

	rec = s.do(http.MethodGet, "/api/v1/user/feed", "u1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]map[string]any](t, rec), 1)

	rec = s.do(http.MethodPost, "/api/v1/user/streaks/water/reset", "u1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	reset := decode[map[string]any](t, rec)
	assert.Equal(t, 0.0, reset["current_streak"])
	assert.Equal(t, 1.0, reset["longest_streak"])
}

func TestWaitlistRoutes(t *testing.T) {
	s := newTestServer(t)
	body := map[string]string{"email": "fit@example.com", "person_type": "athlete", "activity_level": "high"}

	rec := s.do(http.MethodPost, "/api/v1/waitlist", "", body)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Equal(t, 1.0, decode[map[string]any](t, rec)["position"])

	rec = s.do(http.MethodPost, "/api/v1/waitlist", "", body)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(http.MethodPost, "/api/v1/waitlist", "", map[string]string{"email": "not-an-email"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestNotificationRoutes(t *testing.T) {
	s := newTestServer(t)
	s.createProfile("a", "alice")
	s.createProfile("b", "bob")

	rec := s.do(http.MethodPost, "/api/v1/notifications/register-device", "b", map[string]string{"token": "t1", "platform": "ios"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = s.do(http.MethodPost, "/api/v1/user/friend-requests", "a", map[string]string{"receiver_id": "b"})
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = s.do(http.MethodGet, "/api/v1/notifications?unread_only=true", "b", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	list := decode[struct {
		Notifications []struct {
			ID   string `json:"id"`
			Type string `json:"type"`
		} `json:"notifications"`
		UnreadCount int `json:"unread_count"`
	}](t, rec)
	require.Len(t, list.Notifications, 1)
	assert.Equal(t, 1, list.UnreadCount)

	rec = s.do(http.MethodPut, "/api/v1/notifications/"+list.Notifications[0].ID+"/read", "b", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	rec = s.do(http.MethodPut, "/api/v1/notifications/missing/read", "b", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestWaitlistAdminRoutes(t *testing.T) {
	s := newTestServer(t)
	rec := s.do(http.MethodPost, "/api/v1/waitlist", "", map[string]string{
		"email": "fit@example.com", "person_type": "executive", "activity_level": "high", "budget": "flexible",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	id := decode[map[string]any](t, rec)["waitlist_id"].(string)

	rec = s.do(http.MethodGet, "/api/v1/admin/waitlist/entries", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	admin := func(method, path string, body any) *httptest.ResponseRecorder {
		var buf bytes.Buffer
		if body != nil {
			require.NoError(t, json.NewEncoder(&buf).Encode(body))
		}
		req := httptest.NewRequest(method, path, &buf)
		req.SetBasicAuth("admin", "secret")
		rec := httptest.NewRecorder()
		s.handler.ServeHTTP(rec, req)
		return rec
	}

	rec = admin(http.MethodPut, "/api/v1/admin/waitlist/entries/"+id+"/status", map[string]string{"status": "converted"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = admin(http.MethodPut, "/api/v1/admin/waitlist/entries/"+id+"/status", map[string]string{"status": "archived"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = admin(http.MethodGet, "/api/v1/admin/waitlist/entries?status=converted", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	entries := decode[struct {
		Entries []struct {
			Email         string   `json:"email"`
			PriorityScore int      `json:"priority_score"`
			Tags          []string `json:"tags"`
		} `json:"entries"`
		Count int `json:"count"`
	}](t, rec)
	require.Equal(t, 1, entries.Count)
	assert.Equal(t, 25, entries.Entries[0].PriorityScore)
	assert.Equal(t, []string{"executive", "high"}, entries.Entries[0].Tags)
}

func TestGoalAndRoutineRoutes(t *testing.T) {
	s := newTestServer(t)
	s.createProfile("u1", "ana")

	rec := s.do(http.MethodPost, "/api/v1/user/goals", "u1", map[string]any{
		"title": "Drink more", "category": "hydration", "target_value": 8, "unit": "glasses", "deadline": "2030-01-01",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	goalID := decode[map[string]any](t, rec)["id"].(string)

	rec = s.do(http.MethodPost, "/api/v1/user/goals", "u1", map[string]any{
		"title": "Bad", "category": "gaming", "target_value": 1, "unit": "x", "deadline": "2030-01-01",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(http.MethodPut, "/api/v1/user/goals/"+goalID, "u1", map[string]int{"current_value": 8})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "completed", decode[map[string]any](t, rec)["status"])

	rec = s.do(http.MethodGet, "/api/v1/user/goals/stats", "u1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1.0, decode[map[string]any](t, rec)["completed"])

	rec = s.do(http.MethodGet, "/api/v1/user/goals?status=active", "u1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, decode[map[string][]any](t, rec)["goals"])

	rec = s.do(http.MethodPost, "/api/v1/user/routines", "u1", map[string]any{
		"name":      "Push day",
		"exercises": []map[string]any{{"name": "Bench press", "sets": []map[string]any{{"weight": 80, "reps": 8}}}},
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	routineID := decode[map[string]any](t, rec)["id"].(string)

	rec = s.do(http.MethodPut, "/api/v1/user/schedule", "u1", map[string]string{"monday": "nope"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "unknown_routine", decode[map[string]string](t, rec)["code"])

	rec = s.do(http.MethodPut, "/api/v1/user/schedule", "u1", map[string]string{"monday": routineID})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = s.do(http.MethodGet, "/api/v1/user/schedule/today", "u1", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = s.do(http.MethodDelete, "/api/v1/user/routines/"+routineID, "u1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	rec = s.do(http.MethodGet, "/api/v1/user/schedule", "u1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "", decode[map[string]any](t, rec)["monday"])

	rec = s.do(http.MethodDelete, "/api/v1/user/goals/"+goalID, "u1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	rec = s.do(http.MethodGet, "/api/v1/user/goals/"+goalID, "u1", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
