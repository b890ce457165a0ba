package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
)

var schema = []string{
	`CREATE TABLE IF NOT EXISTS problem_statements (
		id TEXT PRIMARY KEY,
		title TEXT NOT NULL DEFAULT '',
		description TEXT NOT NULL DEFAULT '',
		max_selections INTEGER NOT NULL DEFAULT 1 CHECK (max_selections >= 1),
		category TEXT,
		difficulty TEXT,
		technologies TEXT[] NOT NULL DEFAULT '{}',
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE TABLE IF NOT EXISTS registrations (
		team_number TEXT PRIMARY KEY,
		team_name TEXT NOT NULL DEFAULT '',
		team_leader TEXT NOT NULL DEFAULT '',
		problem_statement_id TEXT NOT NULL,
		registration_datetime TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_registrations_problem
		ON registrations (problem_statement_id)`,
}

// Migrate bootstraps the portal schema. The team_number primary key is the
// second line of defense against duplicate-team races: a conflicting insert
// fails instead of silently succeeding.
func Migrate(ctx context.Context, db *sqlx.DB) error {
	for _, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("apply schema: %w", err)
		}
	}
	return nil
}
