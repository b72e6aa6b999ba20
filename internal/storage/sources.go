package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/conorfennell/studyhash/internal/domain"
)

// AddDeckSource registers path as a deck source of the project. Registering
// the same path twice is a no-op.
func (db *DB) AddDeckSource(ctx context.Context, projectID, path string) error {
	_, err := db.conn.ExecContext(ctx, `
		INSERT INTO deck_sources (project_id, path)
		VALUES (?, ?)
		ON CONFLICT (project_id, path) DO NOTHING
	`, projectID, path)
	if err != nil {
		return wrapErr(fmt.Sprintf("add deck source %s to project %s", path, projectID), err)
	}
	return nil
}

// MarkDeckSourceScanned records the time of a successful import of a source.
func (db *DB) MarkDeckSourceScanned(ctx context.Context, projectID, path string, at time.Time) error {
	op := fmt.Sprintf("mark deck source %s scanned", path)
	res, err := db.conn.ExecContext(ctx, `
		UPDATE deck_sources SET last_scanned = ?
		WHERE project_id = ? AND path = ?
	`, at.UTC(), projectID, path)
	if err != nil {
		return wrapErr(op, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return wrapErr(op, err)
	}
	if n == 0 {
		return fmt.Errorf("%s: %w", op, domain.ErrNotFound)
	}
	return nil
}

type deckSourceRow struct {
	ProjectID   string       `db:"project_id"`
	Path        string       `db:"path"`
	LastScanned sql.NullTime `db:"last_scanned"`
}

// ListDeckSources returns the registered sources of a project ordered by path.
func (db *DB) ListDeckSources(ctx context.Context, projectID string) ([]domain.DeckSource, error) {
	var rows []deckSourceRow
	err := db.conn.SelectContext(ctx, &rows, `
		SELECT project_id, path, last_scanned
		FROM deck_sources
		WHERE project_id = ?
		ORDER BY path
	`, projectID)
	if err != nil {
		return nil, wrapErr(fmt.Sprintf("list deck sources for project %s", projectID), err)
	}

	sources := make([]domain.DeckSource, 0, len(rows))
	for _, r := range rows {
		s := domain.DeckSource{ProjectID: r.ProjectID, Path: r.Path}
		if r.LastScanned.Valid {
			t := r.LastScanned.Time.UTC()
			s.LastScanned = &t
		}
		sources = append(sources, s)
	}
	return sources, nil
}
