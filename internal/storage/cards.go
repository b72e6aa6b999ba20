package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/conorfennell/studyhash/internal/domain"
)

const cardColumns = `id, project_id, group_id, front, back, stage, due_at, interval_days, ease, lapses, version, created_at, updated_at`

// cardRow mirrors a flashcards row, with nullable columns kept as sql types.
type cardRow struct {
	ID           string         `db:"id"`
	ProjectID    string         `db:"project_id"`
	GroupID      sql.NullString `db:"group_id"`
	Front        string         `db:"front"`
	Back         string         `db:"back"`
	Stage        int            `db:"stage"`
	DueAt        sql.NullTime   `db:"due_at"`
	IntervalDays int            `db:"interval_days"`
	Ease         float64        `db:"ease"`
	Lapses       int            `db:"lapses"`
	Version      int64          `db:"version"`
	CreatedAt    time.Time      `db:"created_at"`
	UpdatedAt    time.Time      `db:"updated_at"`
}

func (r cardRow) toDomain() domain.Flashcard {
	c := domain.Flashcard{
		ID:        r.ID,
		ProjectID: r.ProjectID,
		Front:     r.Front,
		Back:      r.Back,
		SchedulingState: domain.SchedulingState{
			Stage:        domain.Stage(r.Stage),
			IntervalDays: r.IntervalDays,
			Ease:         r.Ease,
			Lapses:       r.Lapses,
		},
		Version:   r.Version,
		CreatedAt: r.CreatedAt.UTC(),
		UpdatedAt: r.UpdatedAt.UTC(),
	}
	if r.GroupID.Valid {
		g := r.GroupID.String
		c.GroupID = &g
	}
	if r.DueAt.Valid {
		due := r.DueAt.Time.UTC()
		c.DueAt = &due
	}
	return c
}

func toDomainCards(rows []cardRow) []domain.Flashcard {
	cards := make([]domain.Flashcard, 0, len(rows))
	for _, r := range rows {
		cards = append(cards, r.toDomain())
	}
	return cards
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t.UTC(), Valid: true}
}

func nullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

// InsertCard stores a new card in the New stage. It reports false without
// touching the existing row when a card with the same ID is already stored,
// so re-importing content never resets scheduling state.
func (db *DB) InsertCard(ctx context.Context, card domain.Flashcard) (bool, error) {
	now := time.Now().UTC()
	res, err := db.conn.ExecContext(ctx, `
		INSERT INTO flashcards (id, project_id, group_id, front, back, stage, due_at, interval_days, ease, lapses, version, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, NULL, 0, 0, 0, 1, ?, ?)
		ON CONFLICT (id) DO NOTHING
	`,
		card.ID,
		card.ProjectID,
		nullString(card.GroupID),
		card.Front,
		card.Back,
		int(domain.New),
		now,
		now,
	)
	if err != nil {
		return false, wrapErr(fmt.Sprintf("insert card %s", card.ID), err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, wrapErr(fmt.Sprintf("insert card %s", card.ID), err)
	}
	return n == 1, nil
}

// GetCard retrieves a card by its ID.
func (db *DB) GetCard(ctx context.Context, cardID string) (domain.Flashcard, error) {
	var row cardRow
	err := db.conn.GetContext(ctx, &row, `SELECT `+cardColumns+` FROM flashcards WHERE id = ?`, cardID)
	if err != nil {
		return domain.Flashcard{}, wrapErr(fmt.Sprintf("find card %s", cardID), err)
	}
	return row.toDomain(), nil
}

// ListProjectCards returns every card of a project, grouped or not.
func (db *DB) ListProjectCards(ctx context.Context, projectID string) ([]domain.Flashcard, error) {
	var rows []cardRow
	err := db.conn.SelectContext(ctx, &rows, `
		SELECT `+cardColumns+`
		FROM flashcards
		WHERE project_id = ?
		ORDER BY id
	`, projectID)
	if err != nil {
		return nil, wrapErr(fmt.Sprintf("list cards for project %s", projectID), err)
	}
	return toDomainCards(rows), nil
}

// FetchDueCards returns the scheduled cards of a group that are due at now,
// oldest due first, followed by up to newLimit New cards in creation order.
func (db *DB) FetchDueCards(ctx context.Context, projectID, groupID string, now time.Time, newLimit int) ([]domain.Flashcard, error) {
	var due []cardRow
	err := db.conn.SelectContext(ctx, &due, `
		SELECT `+cardColumns+`
		FROM flashcards
		WHERE project_id = ? AND group_id = ? AND stage != ? AND due_at <= ?
		ORDER BY due_at, id
	`, projectID, groupID, int(domain.New), now.UTC())
	if err != nil {
		return nil, wrapErr(fmt.Sprintf("fetch due cards for group %s", groupID), err)
	}

	cards := toDomainCards(due)
	if newLimit <= 0 {
		return cards, nil
	}

	var fresh []cardRow
	err = db.conn.SelectContext(ctx, &fresh, `
		SELECT `+cardColumns+`
		FROM flashcards
		WHERE project_id = ? AND group_id = ? AND stage = ?
		ORDER BY created_at, id
		LIMIT ?
	`, projectID, groupID, int(domain.New), newLimit)
	if err != nil {
		return nil, wrapErr(fmt.Sprintf("fetch new cards for group %s", groupID), err)
	}
	return append(cards, toDomainCards(fresh)...), nil
}

// UpdateScheduling writes a new scheduling state for a card if, and only if,
// the stored version still equals expectedVersion. The card update and its
// review log are committed in one transaction. A stale version yields
// ErrVersionConflict; a missing card yields ErrNotFound.
func (db *DB) UpdateScheduling(ctx context.Context, cardID string, expectedVersion int64, next domain.SchedulingState, review domain.ReviewLog) (domain.Flashcard, error) {
	op := fmt.Sprintf("update card state for %s", cardID)

	tx, err := db.conn.BeginTxx(ctx, nil)
	if err != nil {
		return domain.Flashcard{}, wrapErr(op, err)
	}
	defer tx.Rollback()

	now := time.Now().UTC()
	res, err := tx.ExecContext(ctx, `
		UPDATE flashcards
		SET stage = ?, due_at = ?, interval_days = ?, ease = ?, lapses = ?, version = version + 1, updated_at = ?
		WHERE id = ? AND version = ?
	`,
		int(next.Stage),
		nullTime(next.DueAt),
		next.IntervalDays,
		next.Ease,
		next.Lapses,
		now,
		cardID,
		expectedVersion,
	)
	if err != nil {
		return domain.Flashcard{}, wrapErr(op, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return domain.Flashcard{}, wrapErr(op, err)
	}
	if n == 0 {
		var version int64
		err := tx.GetContext(ctx, &version, `SELECT version FROM flashcards WHERE id = ?`, cardID)
		if err != nil {
			return domain.Flashcard{}, wrapErr(op, err)
		}
		return domain.Flashcard{}, fmt.Errorf("%s: %w: expected version %d, stored %d", op, domain.ErrVersionConflict, expectedVersion, version)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO review_logs (card_id, user_id, rating, stage_before, stage_after, reviewed_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, cardID, review.UserID, int(review.Rating), int(review.StageBefore), int(next.Stage), review.ReviewedAt.UTC())
	if err != nil {
		return domain.Flashcard{}, wrapErr(op, err)
	}

	var row cardRow
	if err := tx.GetContext(ctx, &row, `SELECT `+cardColumns+` FROM flashcards WHERE id = ?`, cardID); err != nil {
		return domain.Flashcard{}, wrapErr(op, err)
	}

	if err := tx.Commit(); err != nil {
		return domain.Flashcard{}, wrapErr(op, err)
	}
	return row.toDomain(), nil
}

// reviewLogRow mirrors a review_logs row.
type reviewLogRow struct {
	CardID      string    `db:"card_id"`
	UserID      string    `db:"user_id"`
	Rating      int       `db:"rating"`
	StageBefore int       `db:"stage_before"`
	StageAfter  int       `db:"stage_after"`
	ReviewedAt  time.Time `db:"reviewed_at"`
}

// ListReviewLogs returns the review history of a card, oldest first.
func (db *DB) ListReviewLogs(ctx context.Context, cardID string) ([]domain.ReviewLog, error) {
	var rows []reviewLogRow
	err := db.conn.SelectContext(ctx, &rows, `
		SELECT card_id, user_id, rating, stage_before, stage_after, reviewed_at
		FROM review_logs
		WHERE card_id = ?
		ORDER BY id
	`, cardID)
	if err != nil {
		return nil, wrapErr(fmt.Sprintf("list review logs for card %s", cardID), err)
	}

	logs := make([]domain.ReviewLog, 0, len(rows))
	for _, r := range rows {
		logs = append(logs, domain.ReviewLog{
			CardID:      r.CardID,
			UserID:      r.UserID,
			Rating:      domain.Rating(r.Rating),
			StageBefore: domain.Stage(r.StageBefore),
			StageAfter:  domain.Stage(r.StageAfter),
			ReviewedAt:  r.ReviewedAt.UTC(),
		})
	}
	return logs, nil
}

