package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/conorfennell/studyhash/internal/domain"
	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite" // Registers the sqlite driver
)

// DB represents a wrapper around the SQL database connection.
type DB struct {
	conn     *sqlx.DB
	validate *validator.Validate
}

// Open creates a new database connection and ensures the schema is up to date.
func Open(dsn string) (*DB, error) {
	db, err := sqlx.Open("sqlite", withPragmas(dsn))
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// SQLite serializes writers; a single connection keeps CAS updates and
	// review log inserts from tripping over SQLITE_BUSY.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// Execute the schema to create tables if they don't exist.
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}

	return &DB{conn: db, validate: validator.New()}, nil
}

// Close closes the database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

func withPragmas(dsn string) string {
	sep := "?"
	if strings.Contains(dsn, "?") {
		sep = "&"
	}
	return dsn + sep + "_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"
}

// wrapErr maps driver errors onto the domain taxonomy. A missing row becomes
// ErrNotFound, anything else is treated as transient.
func wrapErr(op string, err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%s: %w", op, domain.ErrNotFound)
	}
	return fmt.Errorf("%s: %w: %w", op, domain.ErrTransient, err)
}

// UpsertProject records the owner of a project. An empty title keeps the
// stored one.
func (db *DB) UpsertProject(ctx context.Context, id, ownerID, title string) error {
	_, err := db.conn.ExecContext(ctx, `
		INSERT INTO projects (id, owner_id, title)
		VALUES (?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			owner_id = excluded.owner_id,
			title = CASE WHEN excluded.title = '' THEN projects.title ELSE excluded.title END
	`, id, ownerID, title)
	if err != nil {
		return wrapErr(fmt.Sprintf("upsert project %s", id), err)
	}
	return nil
}

// ProjectOwner returns the owner of a project, or ErrNotFound.
func (db *DB) ProjectOwner(ctx context.Context, projectID string) (string, error) {
	var owner string
	err := db.conn.GetContext(ctx, &owner, `SELECT owner_id FROM projects WHERE id = ?`, projectID)
	if err != nil {
		return "", wrapErr(fmt.Sprintf("find project %s", projectID), err)
	}
	return owner, nil
}

// UpsertGroup inserts a group or refreshes its title and position.
func (db *DB) UpsertGroup(ctx context.Context, g domain.FlashcardGroup) error {
	_, err := db.conn.ExecContext(ctx, `
		INSERT INTO flashcard_groups (id, project_id, title, position)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET title = excluded.title, position = excluded.position
	`, g.ID, g.ProjectID, g.Title, g.Position)
	if err != nil {
		return wrapErr(fmt.Sprintf("upsert group %s", g.ID), err)
	}
	return nil
}

// ListGroups returns the groups of a project ordered by position.
func (db *DB) ListGroups(ctx context.Context, projectID string) ([]domain.FlashcardGroup, error) {
	var groups []domain.FlashcardGroup
	err := db.conn.SelectContext(ctx, &groups, `
		SELECT id, project_id, title, position
		FROM flashcard_groups
		WHERE project_id = ?
		ORDER BY position, id
	`, projectID)
	if err != nil {
		return nil, wrapErr(fmt.Sprintf("list groups for project %s", projectID), err)
	}
	return groups, nil
}

// GetGroup retrieves a single group.
func (db *DB) GetGroup(ctx context.Context, groupID string) (domain.FlashcardGroup, error) {
	var g domain.FlashcardGroup
	err := db.conn.GetContext(ctx, &g, `
		SELECT id, project_id, title, position FROM flashcard_groups WHERE id = ?
	`, groupID)
	if err != nil {
		return domain.FlashcardGroup{}, wrapErr(fmt.Sprintf("find group %s", groupID), err)
	}
	return g, nil
}
