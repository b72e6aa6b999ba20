package storage

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/conorfennell/studyhash/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func seedGroup(t *testing.T, db *DB) (projectID, groupID string) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, db.UpsertProject(ctx, "p1", "u1", "Biology"))
	require.NoError(t, db.UpsertGroup(ctx, domain.FlashcardGroup{ID: "g1", ProjectID: "p1", Title: "Cells", Position: 1}))
	return "p1", "g1"
}

func strPtr(s string) *string { return &s }

func TestProjectOwner(t *testing.T) {
	t.Parallel()
	db := openTestDB(t)
	ctx := context.Background()

	require.NoError(t, db.UpsertProject(ctx, "p1", "u1", "Biology"))

	owner, err := db.ProjectOwner(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, "u1", owner)

	_, err = db.ProjectOwner(ctx, "missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestGroups(t *testing.T) {
	t.Parallel()
	db := openTestDB(t)
	ctx := context.Background()
	seedGroup(t, db)

	require.NoError(t, db.UpsertGroup(ctx, domain.FlashcardGroup{ID: "g0", ProjectID: "p1", Title: "Intro", Position: 0}))

	groups, err := db.ListGroups(ctx, "p1")
	require.NoError(t, err)
	require.Len(t, groups, 2)
	assert.Equal(t, "g0", groups[0].ID)
	assert.Equal(t, "Cells", groups[1].Title)

	g, err := db.GetGroup(ctx, "g1")
	require.NoError(t, err)
	assert.Equal(t, "p1", g.ProjectID)

	_, err = db.GetGroup(ctx, "nope")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestInsertCardIsIdempotent(t *testing.T) {
	t.Parallel()
	db := openTestDB(t)
	ctx := context.Background()
	projectID, groupID := seedGroup(t, db)

	card := domain.Flashcard{ID: "c1", ProjectID: projectID, GroupID: strPtr(groupID), Front: "Q", Back: "A"}
	inserted, err := db.InsertCard(ctx, card)
	require.NoError(t, err)
	assert.True(t, inserted)

	inserted, err = db.InsertCard(ctx, card)
	require.NoError(t, err)
	assert.False(t, inserted)

	got, err := db.GetCard(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, domain.New, got.Stage)
	assert.Nil(t, got.DueAt)
	assert.Equal(t, int64(1), got.Version)
	require.NotNil(t, got.GroupID)
	assert.Equal(t, groupID, *got.GroupID)
}

func TestUpdateSchedulingCompareAndSwap(t *testing.T) {
	t.Parallel()
	db := openTestDB(t)
	ctx := context.Background()
	projectID, groupID := seedGroup(t, db)

	_, err := db.InsertCard(ctx, domain.Flashcard{ID: "c1", ProjectID: projectID, GroupID: strPtr(groupID), Front: "Q"})
	require.NoError(t, err)

	now := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)
	due := now.Add(10 * time.Minute)
	next := domain.SchedulingState{Stage: domain.Learning, DueAt: &due}
	review := domain.ReviewLog{CardID: "c1", UserID: "u1", Rating: domain.Good, StageBefore: domain.New, ReviewedAt: now}

	updated, err := db.UpdateScheduling(ctx, "c1", 1, next, review)
	require.NoError(t, err)
	assert.Equal(t, domain.Learning, updated.Stage)
	assert.Equal(t, int64(2), updated.Version)
	require.NotNil(t, updated.DueAt)
	assert.True(t, updated.DueAt.Equal(due))

	// A second writer holding the old version loses.
	_, err = db.UpdateScheduling(ctx, "c1", 1, next, review)
	assert.ErrorIs(t, err, domain.ErrVersionConflict)

	_, err = db.UpdateScheduling(ctx, "missing", 1, next, review)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	logs, err := db.ListReviewLogs(ctx, "c1")
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.Equal(t, domain.Good, logs[0].Rating)
	assert.Equal(t, domain.New, logs[0].StageBefore)
	assert.Equal(t, domain.Learning, logs[0].StageAfter)
}

func TestFetchDueCards(t *testing.T) {
	t.Parallel()
	db := openTestDB(t)
	ctx := context.Background()
	projectID, groupID := seedGroup(t, db)
	now := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)

	for _, id := range []string{"late", "early", "future", "new1", "new2", "new3"} {
		_, err := db.InsertCard(ctx, domain.Flashcard{ID: id, ProjectID: projectID, GroupID: strPtr(groupID), Front: id})
		require.NoError(t, err)
	}
	schedule := func(id string, due time.Time) {
		_, err := db.UpdateScheduling(ctx, id, 1,
			domain.SchedulingState{Stage: domain.Review, DueAt: &due, IntervalDays: 1, Ease: 2.5},
			domain.ReviewLog{CardID: id, UserID: "u1", Rating: domain.Good, ReviewedAt: now})
		require.NoError(t, err)
	}
	schedule("late", now.Add(-time.Hour))
	schedule("early", now.Add(-48*time.Hour))
	schedule("future", now.Add(time.Hour))

	cards, err := db.FetchDueCards(ctx, projectID, groupID, now, 2)
	require.NoError(t, err)
	require.Len(t, cards, 4)
	assert.Equal(t, "early", cards[0].ID)
	assert.Equal(t, "late", cards[1].ID)
	assert.Equal(t, domain.New, cards[2].Stage)
	assert.Equal(t, domain.New, cards[3].Stage)

	cards, err = db.FetchDueCards(ctx, projectID, groupID, now, 0)
	require.NoError(t, err)
	assert.Len(t, cards, 2)

	all, err := db.ListProjectCards(ctx, projectID)
	require.NoError(t, err)
	assert.Len(t, all, 6)
}

func TestPomodoroSettings(t *testing.T) {
	t.Parallel()
	db := openTestDB(t)
	ctx := context.Background()

	got, err := db.GetPomodoroSettings(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, domain.DefaultPomodoroSettings(), got)

	custom := domain.PomodoroSettings{FocusMinutes: 50, ShortBreakMinutes: 10, LongBreakMinutes: 30, CyclesBeforeLongBreak: 3, EnableNotifications: true}
	first, err := db.SavePomodoroSettings(ctx, "u1", custom)
	require.NoError(t, err)
	second, err := db.SavePomodoroSettings(ctx, "u1", custom)
	require.NoError(t, err)
	assert.Equal(t, custom, first)
	assert.Equal(t, first, second)

	got, err = db.GetPomodoroSettings(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, custom, got)

	_, err = db.SavePomodoroSettings(ctx, "u1", domain.PomodoroSettings{FocusMinutes: 0, ShortBreakMinutes: 5, LongBreakMinutes: 15, CyclesBeforeLongBreak: 4})
	assert.True(t, domain.IsValidation(err))
}

func TestPomodoroSessions(t *testing.T) {
	t.Parallel()
	db := openTestDB(t)
	ctx := context.Background()
	start := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)

	_, err := db.InsertPomodoroSession(ctx, "u1", domain.PomodoroSession{
		StartedAt: start, EndedAt: start.Add(25 * time.Minute), FocusSeconds: 1500, ProjectID: strPtr("p1"),
	})
	require.NoError(t, err)
	_, err = db.InsertPomodoroSession(ctx, "u1", domain.PomodoroSession{
		StartedAt: start.Add(time.Hour), EndedAt: start.Add(time.Hour + time.Minute), FocusSeconds: 60,
	})
	require.NoError(t, err)

	_, err = db.InsertPomodoroSession(ctx, "u1", domain.PomodoroSession{StartedAt: start, EndedAt: start, FocusSeconds: 0})
	assert.True(t, domain.IsValidation(err))

	sessions, err := db.ListPomodoroSessions(ctx, "u1", 10)
	require.NoError(t, err)
	require.Len(t, sessions, 2)
	assert.Equal(t, 60, sessions[0].FocusSeconds)
	assert.Nil(t, sessions[0].ProjectID)
	require.NotNil(t, sessions[1].ProjectID)
	assert.Equal(t, "p1", *sessions[1].ProjectID)
}

func TestDeckSources(t *testing.T) {
	t.Parallel()
	db := openTestDB(t)
	ctx := context.Background()
	require.NoError(t, db.UpsertProject(ctx, "p1", "u1", "Biology"))

	require.NoError(t, db.AddDeckSource(ctx, "p1", "/decks/b"))
	require.NoError(t, db.AddDeckSource(ctx, "p1", "/decks/a"))
	require.NoError(t, db.AddDeckSource(ctx, "p1", "/decks/a"))

	sources, err := db.ListDeckSources(ctx, "p1")
	require.NoError(t, err)
	require.Len(t, sources, 2)
	assert.Equal(t, "/decks/a", sources[0].Path)
	assert.Nil(t, sources[0].LastScanned)

	at := time.Date(2025, 6, 15, 10, 0, 0, 0, time.UTC)
	require.NoError(t, db.MarkDeckSourceScanned(ctx, "p1", "/decks/a", at))
	sources, err = db.ListDeckSources(ctx, "p1")
	require.NoError(t, err)
	require.NotNil(t, sources[0].LastScanned)
	assert.True(t, at.Equal(*sources[0].LastScanned))

	err = db.MarkDeckSourceScanned(ctx, "p1", "/decks/missing", at)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	empty, err := db.ListDeckSources(ctx, "other")
	require.NoError(t, err)
	assert.Empty(t, empty)
}
