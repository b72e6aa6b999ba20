package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/conorfennell/studyhash/internal/domain"
)

// GetPomodoroSettings returns a user's timer settings, creating the default
// record on first read.
func (db *DB) GetPomodoroSettings(ctx context.Context, userID string) (domain.PomodoroSettings, error) {
	op := fmt.Sprintf("get pomodoro settings for %s", userID)
	d := domain.DefaultPomodoroSettings()

	_, err := db.conn.ExecContext(ctx, `
		INSERT INTO pomodoro_settings (user_id, focus_minutes, short_break_minutes, long_break_minutes,
			cycles_before_long_break, enable_notifications, enable_sound, dock_is_open, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (user_id) DO NOTHING
	`, userID, d.FocusMinutes, d.ShortBreakMinutes, d.LongBreakMinutes, d.CyclesBeforeLongBreak,
		d.EnableNotifications, d.EnableSound, d.DockIsOpen, time.Now().UTC())
	if err != nil {
		return domain.PomodoroSettings{}, wrapErr(op, err)
	}

	return db.readPomodoroSettings(ctx, op, userID)
}

// SavePomodoroSettings stores a user's settings. Callers clamp first; values
// out of bounds are rejected here as a ValidationError and never written.
func (db *DB) SavePomodoroSettings(ctx context.Context, userID string, s domain.PomodoroSettings) (domain.PomodoroSettings, error) {
	op := fmt.Sprintf("save pomodoro settings for %s", userID)
	if err := db.validate.Struct(s); err != nil {
		return domain.PomodoroSettings{}, validationError(err)
	}

	_, err := db.conn.ExecContext(ctx, `
		INSERT INTO pomodoro_settings (user_id, focus_minutes, short_break_minutes, long_break_minutes,
			cycles_before_long_break, enable_notifications, enable_sound, dock_is_open, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (user_id) DO UPDATE SET
			focus_minutes = excluded.focus_minutes,
			short_break_minutes = excluded.short_break_minutes,
			long_break_minutes = excluded.long_break_minutes,
			cycles_before_long_break = excluded.cycles_before_long_break,
			enable_notifications = excluded.enable_notifications,
			enable_sound = excluded.enable_sound,
			dock_is_open = excluded.dock_is_open,
			updated_at = excluded.updated_at
	`, userID, s.FocusMinutes, s.ShortBreakMinutes, s.LongBreakMinutes, s.CyclesBeforeLongBreak,
		s.EnableNotifications, s.EnableSound, s.DockIsOpen, time.Now().UTC())
	if err != nil {
		return domain.PomodoroSettings{}, wrapErr(op, err)
	}

	return db.readPomodoroSettings(ctx, op, userID)
}

func (db *DB) readPomodoroSettings(ctx context.Context, op, userID string) (domain.PomodoroSettings, error) {
	var s domain.PomodoroSettings
	err := db.conn.GetContext(ctx, &s, `
		SELECT focus_minutes, short_break_minutes, long_break_minutes, cycles_before_long_break,
			enable_notifications, enable_sound, dock_is_open
		FROM pomodoro_settings WHERE user_id = ?
	`, userID)
	if err != nil {
		return domain.PomodoroSettings{}, wrapErr(op, err)
	}
	return s, nil
}

// InsertPomodoroSession appends a completed focus interval to the user's log.
func (db *DB) InsertPomodoroSession(ctx context.Context, userID string, s domain.PomodoroSession) (int64, error) {
	op := fmt.Sprintf("insert pomodoro session for %s", userID)
	if s.FocusSeconds < domain.MinFocusSeconds || s.FocusSeconds > domain.MaxFocusSeconds {
		return 0, &domain.ValidationError{Field: "focus_seconds", Message: fmt.Sprintf("%d out of range [1, 86400]", s.FocusSeconds)}
	}

	res, err := db.conn.ExecContext(ctx, `
		INSERT INTO pomodoro_sessions (user_id, started_at, ended_at, focus_seconds, project_id)
		VALUES (?, ?, ?, ?, ?)
	`, userID, s.StartedAt.UTC(), s.EndedAt.UTC(), s.FocusSeconds, nullString(s.ProjectID))
	if err != nil {
		return 0, wrapErr(op, err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, wrapErr(op, err)
	}
	return id, nil
}

type sessionRow struct {
	StartedAt    time.Time      `db:"started_at"`
	EndedAt      time.Time      `db:"ended_at"`
	FocusSeconds int            `db:"focus_seconds"`
	ProjectID    sql.NullString `db:"project_id"`
}

// ListPomodoroSessions returns the most recent sessions of a user, newest first.
func (db *DB) ListPomodoroSessions(ctx context.Context, userID string, limit int) ([]domain.PomodoroSession, error) {
	var rows []sessionRow
	err := db.conn.SelectContext(ctx, &rows, `
		SELECT started_at, ended_at, focus_seconds, project_id
		FROM pomodoro_sessions
		WHERE user_id = ?
		ORDER BY id DESC
		LIMIT ?
	`, userID, limit)
	if err != nil {
		return nil, wrapErr(fmt.Sprintf("list pomodoro sessions for %s", userID), err)
	}

	sessions := make([]domain.PomodoroSession, 0, len(rows))
	for _, r := range rows {
		s := domain.PomodoroSession{
			StartedAt:    r.StartedAt.UTC(),
			EndedAt:      r.EndedAt.UTC(),
			FocusSeconds: r.FocusSeconds,
		}
		if r.ProjectID.Valid {
			p := r.ProjectID.String
			s.ProjectID = &p
		}
		sessions = append(sessions, s)
	}
	return sessions, nil
}
