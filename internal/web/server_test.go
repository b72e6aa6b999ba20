package web

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/conorfennell/studyhash/internal/domain"
	"github.com/conorfennell/studyhash/internal/practice"
	"github.com/conorfennell/studyhash/internal/storage"
	"github.com/conorfennell/studyhash/internal/study"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var now = time.Date(2025, 6, 15, 10, 0, 0, 0, time.UTC)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	srv, _ := newTestServerWithDB(t)
	return srv
}

func newTestServerWithDB(t *testing.T) (*Server, *storage.DB) {
	t.Helper()
	db, err := storage.Open(filepath.Join(t.TempDir(), "web.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	ctx := context.Background()
	require.NoError(t, db.UpsertProject(ctx, "p1", "alice", "Biology"))
	require.NoError(t, db.UpsertGroup(ctx, domain.FlashcardGroup{ID: "g1", ProjectID: "p1", Title: "Cells"}))
	group := "g1"
	for _, id := range []string{"c1", "c2"} {
		_, err := db.InsertCard(ctx, domain.Flashcard{ID: id, ProjectID: "p1", GroupID: &group, Front: "front " + id, Back: "back " + id})
		require.NoError(t, err)
	}

	svc := study.New(db, study.Options{
		Now:      func() time.Time { return now },
		Practice: practice.Options{WriteBackoff: time.Millisecond},
	}, nil)
	srv := NewServer(svc, nil)
	t.Cleanup(func() { srv.Close(context.Background()) })
	return srv, db
}

func do(t *testing.T, srv *Server, method, path, user string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if user != "" {
		req.Header.Set(UserHeader, user)
	}
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)
	return rec
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func TestHealth(t *testing.T) {
	t.Parallel()
	srv := newTestServer(t)
	rec := do(t, srv, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestErrorMapping(t *testing.T) {
	t.Parallel()
	srv := newTestServer(t)

	tests := []struct {
		name   string
		method string
		path   string
		user   string
		body   any
		status int
		code   string
	}{
		{"no user", http.MethodGet, "/api/projects/p1/agenda/groups", "", nil, http.StatusUnauthorized, "not_authenticated"},
		{"foreign project", http.MethodGet, "/api/projects/p1/agenda/groups", "mallory", nil, http.StatusNotFound, "not_found"},
		{"bad days", http.MethodGet, "/api/projects/p1/agenda/days?days=999", "alice", nil, http.StatusBadRequest, "validation"},
		{"days not a number", http.MethodGet, "/api/projects/p1/agenda/days?days=x", "alice", nil, http.StatusBadRequest, "validation"},
		{"bad rating", http.MethodPost, "/api/cards/c1/rate", "alice", map[string]string{"rating": "Perfect"}, http.StatusBadRequest, "validation"},
		{"unknown card", http.MethodPost, "/api/cards/zz/rate", "alice", map[string]string{"rating": "Good"}, http.StatusNotFound, "not_found"},
		{"unknown session", http.MethodGet, "/api/practice/nope/next", "alice", nil, http.StatusNotFound, "not_found"},
		{"unknown field", http.MethodPost, "/api/practice", "alice", map[string]string{"project": "p1"}, http.StatusBadRequest, "validation"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, srv, tt.method, tt.path, tt.user, tt.body)
			assert.Equal(t, tt.status, rec.Code, rec.Body.String())
			assert.Equal(t, tt.code, decodeBody[errorBody](t, rec).Code)
		})
	}
}

func TestAgendaAndRate(t *testing.T) {
	t.Parallel()
	srv := newTestServer(t)

	rec := do(t, srv, http.MethodPost, "/api/cards/c1/rate", "alice", map[string]string{"rating": "3"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	state := decodeBody[domain.SchedulingState](t, rec)
	assert.Equal(t, domain.Learning, state.Stage)

	rec = do(t, srv, http.MethodGet, "/api/projects/p1/agenda?days=3", "alice", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	agenda := decodeBody[agendaResponse](t, rec)
	require.Len(t, agenda.Groups, 1)
	assert.Equal(t, 2, agenda.Groups[0].TotalCards)
	assert.Equal(t, 1, agenda.Groups[0].NewCount)
	require.Len(t, agenda.Days, 3)
	assert.Equal(t, "2025-06-15", agenda.Days[0].Day.String())
	assert.Equal(t, 1, agenda.Days[0].DueLearning)

	rec = do(t, srv, http.MethodGet, "/api/projects/p1/groups/g1/due?include_new=5", "alice", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decodeBody[[]domain.Flashcard](t, rec), 1)
}

func TestPomodoroEndpoints(t *testing.T) {
	t.Parallel()
	srv := newTestServer(t)

	rec := do(t, srv, http.MethodGet, "/api/pomodoro/settings", "alice", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, domain.DefaultPomodoroSettings(), decodeBody[domain.PomodoroSettings](t, rec))

	rec = do(t, srv, http.MethodPut, "/api/pomodoro/settings", "alice", domain.PomodoroSettings{FocusMinutes: 999, ShortBreakMinutes: 5, LongBreakMinutes: 15, CyclesBeforeLongBreak: 4})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, domain.MaxFocusMinutes, decodeBody[domain.PomodoroSettings](t, rec).FocusMinutes)

	rec = do(t, srv, http.MethodPost, "/api/pomodoro/sessions", "alice", map[string]any{
		"started_at":    now.Add(-25 * time.Minute),
		"ended_at":      now,
		"focus_seconds": 1500,
		"project_id":    "p1",
	})
	assert.Equal(t, http.StatusNoContent, rec.Code, rec.Body.String())
}

func TestPracticeFlow(t *testing.T) {
	t.Parallel()
	srv := newTestServer(t)

	rec := do(t, srv, http.MethodPost, "/api/practice", "alice", startPracticeRequest{ProjectID: "p1", GroupID: "g1"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	started := decodeBody[practiceResponse](t, rec)
	assert.Equal(t, 2, started.Remaining)
	base := "/api/practice/" + started.SessionID

	// Sessions are private to their owner.
	rec = do(t, srv, http.MethodGet, base+"/next", "bob", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	for i := 0; i < 2; i++ {
		rec = do(t, srv, http.MethodGet, base+"/next", "alice", nil)
		require.Equal(t, http.StatusOK, rec.Code)
		next := decodeBody[practiceResponse](t, rec)
		require.NotNil(t, next.Card)

		rec = do(t, srv, http.MethodPost, base+"/rate", "alice", rateRequest{CardID: next.Card.ID, Rating: "Good"})
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		rated := decodeBody[practiceResponse](t, rec)
		require.NotNil(t, rated.Scheduled)
		assert.Equal(t, domain.Learning, rated.Scheduled.Stage)
	}

	rec = do(t, srv, http.MethodGet, base+"/next", "alice", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	done := decodeBody[practiceResponse](t, rec)
	assert.Nil(t, done.Card)
	require.NotNil(t, done.Summary)
	assert.Equal(t, 2, done.Summary.Reviewed)
	assert.Empty(t, done.Summary.Unsynced)

	// Completed sessions leave the registry.
	rec = do(t, srv, http.MethodDelete, base, "alice", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestClosePracticeEarly(t *testing.T) {
	t.Parallel()
	srv := newTestServer(t)

	rec := do(t, srv, http.MethodPost, "/api/practice", "alice", startPracticeRequest{ProjectID: "p1", GroupID: "g1"})
	require.Equal(t, http.StatusCreated, rec.Code)
	id := decodeBody[practiceResponse](t, rec).SessionID

	rec = do(t, srv, http.MethodDelete, "/api/practice/"+id, "alice", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	closed := decodeBody[practiceResponse](t, rec)
	require.NotNil(t, closed.Summary)
	assert.Equal(t, 2, closed.Summary.Discarded)
}

func TestHistoryEndpoints(t *testing.T) {
	t.Parallel()
	srv, db := newTestServerWithDB(t)
	require.NoError(t, db.AddDeckSource(context.Background(), "p1", "/decks/biology"))

	rec := do(t, srv, http.MethodPost, "/api/cards/c1/rate", "alice", map[string]string{"rating": "Good"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = do(t, srv, http.MethodGet, "/api/cards/c1/reviews", "alice", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	logs := decodeBody[[]domain.ReviewLog](t, rec)
	require.Len(t, logs, 1)
	assert.Equal(t, domain.Good, logs[0].Rating)
	assert.Equal(t, domain.Learning, logs[0].StageAfter)

	rec = do(t, srv, http.MethodGet, "/api/cards/c1/reviews", "mallory", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	for i := 0; i < 3; i++ {
		rec = do(t, srv, http.MethodPost, "/api/pomodoro/sessions", "alice", map[string]any{
			"started_at":    now.Add(-25 * time.Minute),
			"ended_at":      now,
			"focus_seconds": 1500 + i,
		})
		require.Equal(t, http.StatusNoContent, rec.Code, rec.Body.String())
	}
	rec = do(t, srv, http.MethodGet, "/api/pomodoro/sessions?limit=2", "alice", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	sessions := decodeBody[[]domain.PomodoroSession](t, rec)
	require.Len(t, sessions, 2)
	assert.Equal(t, 1502, sessions[0].FocusSeconds)

	rec = do(t, srv, http.MethodGet, "/api/pomodoro/sessions?limit=501", "alice", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, srv, http.MethodGet, "/api/projects/p1/sources", "alice", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	sources := decodeBody[[]domain.DeckSource](t, rec)
	require.Len(t, sources, 1)
	assert.Equal(t, "/decks/biology", sources[0].Path)
	assert.Nil(t, sources[0].LastScanned)
}

func TestIdlePracticeSessionsAreClosed(t *testing.T) {
	t.Parallel()
	srv := newTestServer(t)
	clock := now
	srv.sessions.now = func() time.Time { return clock }

	start := func() string {
		rec := do(t, srv, http.MethodPost, "/api/practice", "alice", startPracticeRequest{ProjectID: "p1", GroupID: "g1"})
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
		return "/api/practice/" + decodeBody[practiceResponse](t, rec).SessionID
	}
	idle, active := start(), start()

	rec := do(t, srv, http.MethodGet, idle+"/next", "alice", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	card := decodeBody[practiceResponse](t, rec).Card
	require.NotNil(t, card)
	rec = do(t, srv, http.MethodPost, idle+"/rate", "alice", rateRequest{CardID: card.ID, Rating: "Good"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	clock = clock.Add(20 * time.Minute)
	rec = do(t, srv, http.MethodGet, active+"/next", "alice", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	clock = clock.Add(15 * time.Minute)
	assert.Equal(t, 1, srv.sessions.reapIdle(context.Background(), 30*time.Minute))

	rec = do(t, srv, http.MethodGet, idle+"/next", "alice", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	rec = do(t, srv, http.MethodGet, active+"/next", "alice", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	// Closing the idle session flushed its rating.
	rec = do(t, srv, http.MethodGet, "/api/cards/"+card.ID+"/reviews", "alice", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decodeBody[[]domain.ReviewLog](t, rec), 1)
}
