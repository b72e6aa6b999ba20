package storage

const schema = `
-- Projects are owned by the content layer; only ownership is mirrored here.
CREATE TABLE IF NOT EXISTS projects (
    id TEXT PRIMARY KEY,
    owner_id TEXT NOT NULL,
    title TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS flashcard_groups (
    id TEXT PRIMARY KEY,
    project_id TEXT NOT NULL,
    title TEXT NOT NULL,
    position INTEGER NOT NULL DEFAULT 0,

    FOREIGN KEY(project_id) REFERENCES projects(id)
);

-- The 'flashcards' table stores card content and its scheduling state.
CREATE TABLE IF NOT EXISTS flashcards (
    id TEXT PRIMARY KEY,
    project_id TEXT NOT NULL,
    group_id TEXT,
    front TEXT NOT NULL,
    back TEXT NOT NULL DEFAULT '',
    stage INTEGER NOT NULL DEFAULT 0, -- 0: New, 1: Learning, 2: Review, 3: Relearning
    due_at DATETIME,                  -- NULL while New
    interval_days INTEGER NOT NULL DEFAULT 0,
    ease REAL NOT NULL DEFAULT 0,
    lapses INTEGER NOT NULL DEFAULT 0,
    version INTEGER NOT NULL DEFAULT 1,
    created_at DATETIME NOT NULL,
    updated_at DATETIME NOT NULL,

    FOREIGN KEY(project_id) REFERENCES projects(id),
    FOREIGN KEY(group_id) REFERENCES flashcard_groups(id)
);

CREATE INDEX IF NOT EXISTS idx_flashcards_group_due ON flashcards(group_id, stage, due_at);
CREATE INDEX IF NOT EXISTS idx_flashcards_project ON flashcards(project_id);

CREATE TABLE IF NOT EXISTS review_logs (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    card_id TEXT NOT NULL,
    user_id TEXT NOT NULL,
    rating INTEGER NOT NULL,
    stage_before INTEGER NOT NULL,
    stage_after INTEGER NOT NULL,
    reviewed_at DATETIME NOT NULL,

    FOREIGN KEY(card_id) REFERENCES flashcards(id)
);

CREATE TABLE IF NOT EXISTS pomodoro_settings (
    user_id TEXT PRIMARY KEY,
    focus_minutes INTEGER NOT NULL,
    short_break_minutes INTEGER NOT NULL,
    long_break_minutes INTEGER NOT NULL,
    cycles_before_long_break INTEGER NOT NULL,
    enable_notifications INTEGER NOT NULL,
    enable_sound INTEGER NOT NULL,
    dock_is_open INTEGER NOT NULL,
    updated_at DATETIME NOT NULL
);

-- Directories and git URLs a project's decks are imported from.
CREATE TABLE IF NOT EXISTS deck_sources (
    project_id TEXT NOT NULL,
    path TEXT NOT NULL,
    last_scanned DATETIME,

    PRIMARY KEY (project_id, path),
    FOREIGN KEY(project_id) REFERENCES projects(id)
);

-- Append-only log of completed focus intervals.
CREATE TABLE IF NOT EXISTS pomodoro_sessions (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    user_id TEXT NOT NULL,
    started_at DATETIME NOT NULL,
    ended_at DATETIME NOT NULL,
    focus_seconds INTEGER NOT NULL CHECK (focus_seconds BETWEEN 1 AND 86400),
    project_id TEXT
);
`
