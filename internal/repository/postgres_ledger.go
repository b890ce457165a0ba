package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/hackvento/portal-api/internal/models"
)

// PostgresLedger persists registrations in PostgreSQL. Allocate serializes
// concurrent attempts on the same problem statement by locking its catalog
// row for the duration of the transaction.
type PostgresLedger struct {
	db *sqlx.DB
}

// NewPostgresLedger constructs the ledger repository.
func NewPostgresLedger(db *sqlx.DB) *PostgresLedger {
	return &PostgresLedger{db: db}
}

// Allocate atomically validates and commits a registration. Precondition
// order: duplicate team, unknown problem, capacity. A benign serialization
// conflict is retried once before surfacing.
func (r *PostgresLedger) Allocate(ctx context.Context, reg *models.Registration) error {
	err := r.allocate(ctx, reg)
	if err != nil && isSerializationFailure(err) {
		err = r.allocate(ctx, reg)
	}
	return err
}

func (r *PostgresLedger) allocate(ctx context.Context, reg *models.Registration) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin allocation: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	var exists int
	err = tx.GetContext(ctx, &exists, `SELECT 1 FROM registrations WHERE team_number = $1 LIMIT 1`, reg.TeamNumber)
	if err == nil {
		return ErrDuplicateTeam
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("check duplicate team: %w", err)
	}

	// Row lock on the statement serializes the count/insert against
	// concurrent allocations for the same problem.
	var maxSelections int
	err = tx.GetContext(ctx, &maxSelections,
		`SELECT max_selections FROM problem_statements WHERE id = $1 FOR UPDATE`, reg.ProblemStatementID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrProblemNotFound
		}
		return fmt.Errorf("lock problem statement: %w", err)
	}

	var selected int
	if err := tx.GetContext(ctx, &selected,
		`SELECT COUNT(*) FROM registrations WHERE problem_statement_id = $1`, reg.ProblemStatementID); err != nil {
		return fmt.Errorf("count registrations: %w", err)
	}
	if selected >= maxSelections {
		return ErrProblemFull
	}

	if reg.RegistrationDateTime.IsZero() {
		reg.RegistrationDateTime = time.Now().UTC()
	}
	const insert = `INSERT INTO registrations (team_number, team_name, team_leader, problem_statement_id, registration_datetime)
        VALUES (:team_number, :team_name, :team_leader, :problem_statement_id, :registration_datetime)`
	if _, err := tx.NamedExecContext(ctx, insert, reg); err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicateTeam
		}
		return fmt.Errorf("insert registration: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit allocation: %w", err)
	}
	return nil
}

// DeleteByTeam removes a registration and returns the deleted row count.
func (r *PostgresLedger) DeleteByTeam(ctx context.Context, teamNumber string) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM registrations WHERE team_number = $1`, teamNumber)
	if err != nil {
		return 0, fmt.Errorf("delete registration: %w", err)
	}
	deleted, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("delete registration: %w", err)
	}
	return deleted, nil
}

// List returns all registrations joined with their problem statement's
// display fields. The join is LEFT so registrations survive a statement
// deleted out from under them.
func (r *PostgresLedger) List(ctx context.Context) ([]models.RegistrationDetail, error) {
	const query = `SELECT g.team_number, g.team_name, g.team_leader, g.problem_statement_id, g.registration_datetime,
        p.title AS problem_title, p.category AS problem_category, p.difficulty AS problem_difficulty
        FROM registrations g
        LEFT JOIN problem_statements p ON p.id = g.problem_statement_id
        ORDER BY g.registration_datetime, g.team_number`
	var details []models.RegistrationDetail
	if err := r.db.SelectContext(ctx, &details, query); err != nil {
		return nil, fmt.Errorf("list registrations: %w", err)
	}
	return details, nil
}
