package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/hackvento/portal-api/internal/models"
	"github.com/hackvento/portal-api/internal/repository"
	appErrors "github.com/hackvento/portal-api/pkg/errors"
)

type catalogRepository interface {
	FindByID(ctx context.Context, id string) (*models.ProblemStatement, error)
	Create(ctx context.Context, ps *models.ProblemStatement) error
	Update(ctx context.Context, id string, update models.ProblemStatementUpdate) (int64, error)
	Delete(ctx context.Context, id string) (int64, error)
	BulkImport(ctx context.Context, statements []models.ProblemStatement) (int, error)
}

// CreateProblemStatementRequest describes catalog creation input.
type CreateProblemStatementRequest struct {
	ID            string   `json:"id"`
	Title         string   `json:"title" validate:"required"`
	Description   string   `json:"description"`
	MaxSelections int      `json:"maxSelections"`
	Category      *string  `json:"category"`
	Difficulty    *string  `json:"difficulty"`
	Technologies  []string `json:"technologies"`
}

// CatalogService manages the problem-statement catalog.
type CatalogService struct {
	repo      catalogRepository
	events    eventPublisher
	validator *validator.Validate
	logger    *zap.Logger
	opTimeout time.Duration
}

// NewCatalogService constructs CatalogService.
func NewCatalogService(repo catalogRepository, events eventPublisher, validate *validator.Validate, logger *zap.Logger, opTimeout time.Duration) *CatalogService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if opTimeout <= 0 {
		opTimeout = 5 * time.Second
	}
	return &CatalogService{repo: repo, events: events, validator: validate, logger: logger, opTimeout: opTimeout}
}

// Create inserts a new problem statement. A colliding id is surfaced as
// ALREADY_EXISTS rather than silently changing nothing.
func (s *CatalogService) Create(ctx context.Context, req CreateProblemStatementRequest) (*models.ProblemStatement, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid problem statement payload")
	}
	id := strings.TrimSpace(req.ID)
	if id == "" {
		id = uuid.NewString()
	}
	ps := &models.ProblemStatement{
		ID:            id,
		Title:         req.Title,
		Description:   req.Description,
		MaxSelections: req.MaxSelections,
		Category:      req.Category,
		Difficulty:    req.Difficulty,
		Technologies:  req.Technologies,
		CreatedAt:     time.Now().UTC(),
	}
	ps.ClampMaxSelections()

	opCtx, cancel := context.WithTimeout(ctx, s.opTimeout)
	defer cancel()

	if err := s.repo.Create(opCtx, ps); err != nil {
		if errors.Is(err, repository.ErrAlreadyExists) {
			return nil, appErrors.Clone(appErrors.ErrAlreadyExists, "problem statement id already exists")
		}
		if isStoreTimeout(err) {
			return nil, appErrors.Wrap(err, appErrors.ErrStoreUnavailable.Code, appErrors.ErrStoreUnavailable.Status, appErrors.ErrStoreUnavailable.Message)
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create problem statement")
	}

	s.logger.Info("problem statement created", zap.String("id", ps.ID))
	if s.events != nil {
		s.events.Publish(models.EventProblemStatementCreated)
	}
	return ps, nil
}

// Update merges the provided fields and returns the changed record count.
func (s *CatalogService) Update(ctx context.Context, id string, update models.ProblemStatementUpdate) (int64, error) {
	opCtx, cancel := context.WithTimeout(ctx, s.opTimeout)
	defer cancel()

	changed, err := s.repo.Update(opCtx, id, update)
	if err != nil {
		if isStoreTimeout(err) {
			return 0, appErrors.Wrap(err, appErrors.ErrStoreUnavailable.Code, appErrors.ErrStoreUnavailable.Status, appErrors.ErrStoreUnavailable.Message)
		}
		return 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update problem statement")
	}
	if changed > 0 {
		s.logger.Info("problem statement updated", zap.String("id", id))
		if s.events != nil {
			s.events.Publish(models.EventProblemStatementUpdated)
		}
	}
	return changed, nil
}

// Delete removes a problem statement, cascading to its registrations.
func (s *CatalogService) Delete(ctx context.Context, id string) (int64, error) {
	opCtx, cancel := context.WithTimeout(ctx, s.opTimeout)
	defer cancel()

	deleted, err := s.repo.Delete(opCtx, id)
	if err != nil {
		if isStoreTimeout(err) {
			return 0, appErrors.Wrap(err, appErrors.ErrStoreUnavailable.Code, appErrors.ErrStoreUnavailable.Status, appErrors.ErrStoreUnavailable.Message)
		}
		return 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete problem statement")
	}
	if deleted > 0 {
		s.logger.Info("problem statement deleted", zap.String("id", id))
		if s.events != nil {
			s.events.Publish(models.EventProblemStatementDeleted)
		}
	}
	return deleted, nil
}

// BulkImport inserts statements with new ids and skips existing ones.
func (s *CatalogService) BulkImport(ctx context.Context, reqs []CreateProblemStatementRequest) (int, error) {
	statements := make([]models.ProblemStatement, 0, len(reqs))
	for _, req := range reqs {
		id := strings.TrimSpace(req.ID)
		if id == "" {
			id = uuid.NewString()
		}
		ps := models.ProblemStatement{
			ID:            id,
			Title:         req.Title,
			Description:   req.Description,
			MaxSelections: req.MaxSelections,
			Category:      req.Category,
			Difficulty:    req.Difficulty,
			Technologies:  req.Technologies,
			CreatedAt:     time.Now().UTC(),
		}
		ps.ClampMaxSelections()
		statements = append(statements, ps)
	}

	opCtx, cancel := context.WithTimeout(ctx, s.opTimeout)
	defer cancel()

	imported, err := s.repo.BulkImport(opCtx, statements)
	if err != nil {
		if isStoreTimeout(err) {
			return imported, appErrors.Wrap(err, appErrors.ErrStoreUnavailable.Code, appErrors.ErrStoreUnavailable.Status, appErrors.ErrStoreUnavailable.Message)
		}
		return imported, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to import problem statements")
	}
	if imported > 0 {
		s.logger.Info("problem statements imported", zap.Int("count", imported))
		if s.events != nil {
			s.events.Publish(models.EventProblemStatementCreated)
		}
	}
	return imported, nil
}
