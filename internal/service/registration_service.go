package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/hackvento/portal-api/internal/models"
	"github.com/hackvento/portal-api/internal/repository"
	appErrors "github.com/hackvento/portal-api/pkg/errors"
)

type ledgerRepository interface {
	Allocate(ctx context.Context, reg *models.Registration) error
	DeleteByTeam(ctx context.Context, teamNumber string) (int64, error)
}

type eventPublisher interface {
	Publish(eventType string)
}

// RegisterTeamRequest describes a registration attempt.
type RegisterTeamRequest struct {
	TeamNumber         string `json:"teamNumber" validate:"required"`
	TeamName           string `json:"teamName" validate:"required"`
	TeamLeader         string `json:"teamLeader" validate:"required"`
	ProblemStatementID string `json:"problemStatementId" validate:"required"`
}

// RegistrationService is the allocation engine: it validates a registration
// request and hands it to the ledger's atomic check-and-commit primitive.
// Expected rejections come back as typed errors, never panics.
type RegistrationService struct {
	ledger    ledgerRepository
	events    eventPublisher
	metrics   *MetricsService
	validator *validator.Validate
	logger    *zap.Logger
	opTimeout time.Duration
}

// NewRegistrationService constructs RegistrationService.
func NewRegistrationService(ledger ledgerRepository, events eventPublisher, metrics *MetricsService, validate *validator.Validate, logger *zap.Logger, opTimeout time.Duration) *RegistrationService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if opTimeout <= 0 {
		opTimeout = 5 * time.Second
	}
	return &RegistrationService{ledger: ledger, events: events, metrics: metrics, validator: validate, logger: logger, opTimeout: opTimeout}
}

// Register atomically commits a registration or rejects it. Precondition
// order is enforced by the ledger: duplicate team, unknown problem, full
// problem. A committed registration is broadcast to all observers.
func (s *RegistrationService) Register(ctx context.Context, req RegisterTeamRequest) (*models.Registration, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid registration payload")
	}
	teamNumber := strings.TrimSpace(req.TeamNumber)
	if teamNumber == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "team number must not be blank")
	}

	reg := &models.Registration{
		TeamNumber:           teamNumber,
		TeamName:             strings.TrimSpace(req.TeamName),
		TeamLeader:           strings.TrimSpace(req.TeamLeader),
		ProblemStatementID:   strings.TrimSpace(req.ProblemStatementID),
		RegistrationDateTime: time.Now().UTC(),
	}

	// Detached from the request context: a client disconnect must not abort
	// an allocation already in flight. Only the op timeout bounds it.
	opCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.opTimeout)
	defer cancel()

	start := time.Now()
	err := s.ledger.Allocate(opCtx, reg)
	s.metrics.ObserveStoreOperation("allocate", time.Since(start))
	if err != nil {
		return nil, s.mapAllocationError(err, teamNumber)
	}

	s.metrics.RecordRegistration(OutcomeAccepted)
	s.logger.Info("registration committed",
		zap.String("team_number", reg.TeamNumber),
		zap.String("problem_statement_id", reg.ProblemStatementID),
	)
	if s.events != nil {
		s.events.Publish(models.EventRegistrationCreated)
	}
	return reg, nil
}

// Delete removes a registration by team number.
func (s *RegistrationService) Delete(ctx context.Context, teamNumber string) error {
	teamNumber = strings.TrimSpace(teamNumber)
	if teamNumber == "" {
		return appErrors.Clone(appErrors.ErrValidation, "team number must not be blank")
	}

	opCtx, cancel := context.WithTimeout(ctx, s.opTimeout)
	defer cancel()

	deleted, err := s.ledger.DeleteByTeam(opCtx, teamNumber)
	if err != nil {
		if isStoreTimeout(err) {
			return appErrors.Wrap(err, appErrors.ErrStoreUnavailable.Code, appErrors.ErrStoreUnavailable.Status, appErrors.ErrStoreUnavailable.Message)
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete registration")
	}
	if deleted == 0 {
		return appErrors.Clone(appErrors.ErrNotFound, "registration not found")
	}

	s.logger.Info("registration deleted", zap.String("team_number", teamNumber))
	if s.events != nil {
		s.events.Publish(models.EventRegistrationDeleted)
	}
	return nil
}

func (s *RegistrationService) mapAllocationError(err error, teamNumber string) error {
	switch {
	case errors.Is(err, repository.ErrDuplicateTeam):
		s.metrics.RecordRegistration(OutcomeDuplicateTeam)
		return appErrors.Clone(appErrors.ErrDuplicateTeam, "")
	case errors.Is(err, repository.ErrProblemNotFound):
		s.metrics.RecordRegistration(OutcomeUnknownProblem)
		return appErrors.Clone(appErrors.ErrNotFound, "problem statement not found")
	case errors.Is(err, repository.ErrProblemFull):
		s.metrics.RecordRegistration(OutcomeProblemFull)
		return appErrors.Clone(appErrors.ErrProblemFull, "")
	case isStoreTimeout(err):
		s.metrics.RecordRegistration(OutcomeStoreError)
		s.logger.Warn("allocation timed out", zap.String("team_number", teamNumber), zap.Error(err))
		return appErrors.Wrap(err, appErrors.ErrStoreUnavailable.Code, appErrors.ErrStoreUnavailable.Status, appErrors.ErrStoreUnavailable.Message)
	default:
		s.metrics.RecordRegistration(OutcomeStoreError)
		s.logger.Error("allocation failed", zap.String("team_number", teamNumber), zap.Error(err))
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to commit registration")
	}
}

func isStoreTimeout(err error) bool {
	return errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled)
}
