package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/hackvento/portal-api/internal/models"
	appErrors "github.com/hackvento/portal-api/pkg/errors"
)

type catalogLister interface {
	List(ctx context.Context) ([]models.ProblemStatementView, error)
}

type registrationLister interface {
	List(ctx context.Context) ([]models.RegistrationDetail, error)
}

// ProjectionService derives the externally visible read model by joining the
// catalog against the ledger. Nothing is cached: every call reflects the
// latest committed state.
type ProjectionService struct {
	catalog   catalogLister
	ledger    registrationLister
	logger    *zap.Logger
	opTimeout time.Duration
}

// NewProjectionService constructs ProjectionService.
func NewProjectionService(catalog catalogLister, ledger registrationLister, logger *zap.Logger, opTimeout time.Duration) *ProjectionService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opTimeout <= 0 {
		opTimeout = 5 * time.Second
	}
	return &ProjectionService{catalog: catalog, ledger: ledger, logger: logger, opTimeout: opTimeout}
}

// ListProblemStatements returns catalog entries with live selected counts.
func (s *ProjectionService) ListProblemStatements(ctx context.Context) ([]models.ProblemStatementView, error) {
	opCtx, cancel := context.WithTimeout(ctx, s.opTimeout)
	defer cancel()

	views, err := s.catalog.List(opCtx)
	if err != nil {
		return nil, s.mapStoreError(err, "failed to list problem statements")
	}
	if views == nil {
		views = []models.ProblemStatementView{}
	}
	return views, nil
}

// ListRegistrations returns registrations joined with catalog display fields.
func (s *ProjectionService) ListRegistrations(ctx context.Context) ([]models.RegistrationDetail, error) {
	opCtx, cancel := context.WithTimeout(ctx, s.opTimeout)
	defer cancel()

	details, err := s.ledger.List(opCtx)
	if err != nil {
		return nil, s.mapStoreError(err, "failed to list registrations")
	}
	if details == nil {
		details = []models.RegistrationDetail{}
	}
	return details, nil
}

// Snapshot assembles the full refreshed state carried by mutation events.
func (s *ProjectionService) Snapshot(ctx context.Context) (*models.Snapshot, error) {
	views, err := s.ListProblemStatements(ctx)
	if err != nil {
		return nil, err
	}
	details, err := s.ListRegistrations(ctx)
	if err != nil {
		return nil, err
	}
	return &models.Snapshot{
		ProblemStatements: views,
		Registrations:     details,
		GeneratedAt:       time.Now().UTC(),
	}, nil
}

func (s *ProjectionService) mapStoreError(err error, message string) error {
	if isStoreTimeout(err) {
		return appErrors.Wrap(err, appErrors.ErrStoreUnavailable.Code, appErrors.ErrStoreUnavailable.Status, appErrors.ErrStoreUnavailable.Message)
	}
	return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, message)
}
