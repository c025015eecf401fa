package store

import (
	"context"
	"database/sql"
	"fmt"
)

const (
	tableProfiles    = "profiles"
	tableScores      = "scores"
	tableLLMEvents   = "llm_request_events"
	tableExamEvents  = "exam_events"
	tableSequenceRow = "global_sequence"
)

var ddl = []string{
	`CREATE TABLE IF NOT EXISTS profiles (
		user_id      INTEGER PRIMARY KEY,
		display_name TEXT NOT NULL DEFAULT '',
		has_access   BOOLEAN NOT NULL DEFAULT 0,
		created_at   DATETIME NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS scores (
		user_id     INTEGER NOT NULL REFERENCES profiles(user_id) ON DELETE CASCADE,
		task_id     INTEGER NOT NULL,
		part_index  INTEGER NOT NULL,
		report      TEXT NOT NULL,
		recorded_at DATETIME NOT NULL,
		PRIMARY KEY (user_id, task_id, part_index)
	)`,
	`CREATE TABLE IF NOT EXISTS llm_request_events (
		id            INTEGER PRIMARY KEY AUTOINCREMENT,
		sequence      INTEGER NOT NULL UNIQUE,
		timestamp     DATETIME NOT NULL,
		provider      TEXT NOT NULL,
		model         TEXT NOT NULL,
		purpose       TEXT NOT NULL,
		input_tokens  INTEGER NOT NULL DEFAULT 0,
		output_tokens INTEGER NOT NULL DEFAULT 0,
		latency_ms    INTEGER NOT NULL DEFAULT 0,
		success       BOOLEAN NOT NULL,
		error_message TEXT NOT NULL DEFAULT '',
		request_body  TEXT NOT NULL DEFAULT '',
		response_body TEXT NOT NULL DEFAULT ''
	)`,
	`CREATE INDEX IF NOT EXISTS llm_request_events_purpose ON llm_request_events (purpose)`,
	`CREATE TABLE IF NOT EXISTS exam_events (
		id             INTEGER PRIMARY KEY AUTOINCREMENT,
		sequence       INTEGER NOT NULL UNIQUE,
		timestamp      DATETIME NOT NULL,
		session_id     TEXT NOT NULL,
		user_id        INTEGER NOT NULL,
		task_id        INTEGER NOT NULL,
		part_index     INTEGER NOT NULL,
		question_index INTEGER NOT NULL DEFAULT -1,
		action         TEXT NOT NULL,
		detail         TEXT NOT NULL DEFAULT ''
	)`,
	`CREATE INDEX IF NOT EXISTS exam_events_user ON exam_events (user_id)`,
	`CREATE INDEX IF NOT EXISTS exam_events_session ON exam_events (session_id)`,
}

// migrate creates any missing tables and indexes.
func migrate(ctx context.Context, db *sql.DB) error {
	for _, stmt := range ddl {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("exec ddl: %w", err)
		}
	}
	return nil
}
