package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/hackvento/portal-api/internal/models"
)

// PostgresCatalog persists problem statements in PostgreSQL.
type PostgresCatalog struct {
	db *sqlx.DB
}

// NewPostgresCatalog constructs the catalog repository.
func NewPostgresCatalog(db *sqlx.DB) *PostgresCatalog {
	return &PostgresCatalog{db: db}
}

// List returns all problem statements joined with their live registration
// counts. The derived fields are computed per call, never cached.
func (r *PostgresCatalog) List(ctx context.Context) ([]models.ProblemStatementView, error) {
	const query = `SELECT p.id, p.title, p.description, p.max_selections, p.category, p.difficulty,
        p.technologies, p.created_at, COUNT(g.team_number) AS selected_count
        FROM problem_statements p
        LEFT JOIN registrations g ON g.problem_statement_id = p.id
        GROUP BY p.id
        ORDER BY p.created_at, p.id`
	var views []models.ProblemStatementView
	if err := r.db.SelectContext(ctx, &views, query); err != nil {
		return nil, fmt.Errorf("list problem statements: %w", err)
	}
	for i := range views {
		views[i].IsAvailable = views[i].SelectedCount < views[i].MaxSelections
	}
	return views, nil
}

// FindByID returns a problem statement by its ID.
func (r *PostgresCatalog) FindByID(ctx context.Context, id string) (*models.ProblemStatement, error) {
	const query = `SELECT id, title, description, max_selections, category, difficulty, technologies, created_at
        FROM problem_statements WHERE id = $1`
	var ps models.ProblemStatement
	if err := r.db.GetContext(ctx, &ps, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrProblemNotFound
		}
		return nil, fmt.Errorf("find problem statement: %w", err)
	}
	return &ps, nil
}

// Create inserts a new problem statement, rejecting duplicate IDs.
func (r *PostgresCatalog) Create(ctx context.Context, ps *models.ProblemStatement) error {
	ps.ClampMaxSelections()
	if ps.CreatedAt.IsZero() {
		ps.CreatedAt = time.Now().UTC()
	}
	if ps.Technologies == nil {
		ps.Technologies = pq.StringArray{}
	}
	const query = `INSERT INTO problem_statements (id, title, description, max_selections, category, difficulty, technologies, created_at)
        VALUES (:id, :title, :description, :max_selections, :category, :difficulty, :technologies, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, ps); err != nil {
		if isUniqueViolation(err) {
			return ErrAlreadyExists
		}
		return fmt.Errorf("create problem statement: %w", err)
	}
	return nil
}

// Update merges only the provided fields and returns the changed row count.
func (r *PostgresCatalog) Update(ctx context.Context, id string, update models.ProblemStatementUpdate) (int64, error) {
	var sets []string
	var args []interface{}

	add := func(column string, value interface{}) {
		args = append(args, value)
		sets = append(sets, fmt.Sprintf("%s = $%d", column, len(args)))
	}

	if update.Title != nil {
		add("title", *update.Title)
	}
	if update.Description != nil {
		add("description", *update.Description)
	}
	if update.MaxSelections != nil {
		max := *update.MaxSelections
		if max < 1 {
			max = 1
		}
		add("max_selections", max)
	}
	if update.Category != nil {
		add("category", *update.Category)
	}
	if update.Difficulty != nil {
		add("difficulty", *update.Difficulty)
	}
	if update.Technologies != nil {
		add("technologies", pq.StringArray(*update.Technologies))
	}
	if len(sets) == 0 {
		return 0, nil
	}

	args = append(args, id)
	query := fmt.Sprintf("UPDATE problem_statements SET %s WHERE id = $%d", strings.Join(sets, ", "), len(args))
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("update problem statement: %w", err)
	}
	changed, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("update problem statement: %w", err)
	}
	return changed, nil
}

// Delete removes a problem statement and its registrations in one
// transaction. Registrations go first so a partial failure never leaves a
// dangling foreign key.
func (r *PostgresCatalog) Delete(ctx context.Context, id string) (int64, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin delete: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := tx.ExecContext(ctx, `DELETE FROM registrations WHERE problem_statement_id = $1`, id); err != nil {
		return 0, fmt.Errorf("cascade registrations: %w", err)
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM problem_statements WHERE id = $1`, id)
	if err != nil {
		return 0, fmt.Errorf("delete problem statement: %w", err)
	}
	deleted, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("delete problem statement: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit delete: %w", err)
	}
	return deleted, nil
}

// BulkImport inserts statements whose IDs are not already present. Existing
// records are left untouched.
func (r *PostgresCatalog) BulkImport(ctx context.Context, statements []models.ProblemStatement) (int, error) {
	if len(statements) == 0 {
		return 0, nil
	}
	const query = `INSERT INTO problem_statements (id, title, description, max_selections, category, difficulty, technologies, created_at)
        VALUES (:id, :title, :description, :max_selections, :category, :difficulty, :technologies, :created_at)
        ON CONFLICT (id) DO NOTHING`
	imported := 0
	for i := range statements {
		ps := statements[i]
		ps.ClampMaxSelections()
		if ps.CreatedAt.IsZero() {
			ps.CreatedAt = time.Now().UTC()
		}
		if ps.Technologies == nil {
			ps.Technologies = pq.StringArray{}
		}
		res, err := r.db.NamedExecContext(ctx, query, ps)
		if err != nil {
			return imported, fmt.Errorf("import problem statement %s: %w", ps.ID, err)
		}
		if rows, err := res.RowsAffected(); err == nil && rows > 0 {
			imported++
		}
	}
	return imported, nil
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23505"
}

func isSerializationFailure(err error) bool {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) {
		return false
	}
	return pqErr.Code == "40001" || pqErr.Code == "40P01"
}
