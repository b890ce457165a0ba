package repository

import (
	"context"
	"errors"

	"github.com/hackvento/portal-api/internal/models"
)

// Sentinel errors returned by storage backends. Services translate these
// into HTTP-aware domain errors; they are expected outcomes, not faults.
var (
	ErrDuplicateTeam   = errors.New("team number already registered")
	ErrProblemNotFound = errors.New("problem statement not found")
	ErrProblemFull     = errors.New("problem statement is full")
	ErrAlreadyExists   = errors.New("problem statement id already exists")
	ErrNotFound        = errors.New("record not found")
)

// Catalog provides access to problem-statement records.
type Catalog interface {
	List(ctx context.Context) ([]models.ProblemStatementView, error)
	FindByID(ctx context.Context, id string) (*models.ProblemStatement, error)
	Create(ctx context.Context, ps *models.ProblemStatement) error
	Update(ctx context.Context, id string, update models.ProblemStatementUpdate) (int64, error)
	Delete(ctx context.Context, id string) (int64, error)
	BulkImport(ctx context.Context, statements []models.ProblemStatement) (int, error)
}

// Ledger provides access to registration records. Allocate is the atomic
// check-and-commit primitive: the duplicate, existence and capacity checks
// and the insert are indivisible with respect to concurrent calls.
type Ledger interface {
	Allocate(ctx context.Context, reg *models.Registration) error
	DeleteByTeam(ctx context.Context, teamNumber string) (int64, error)
	List(ctx context.Context) ([]models.RegistrationDetail, error)
}
