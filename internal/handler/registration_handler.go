package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/hackvento/portal-api/internal/models"
	"github.com/hackvento/portal-api/internal/service"
	appErrors "github.com/hackvento/portal-api/pkg/errors"
	"github.com/hackvento/portal-api/pkg/response"
)

type registrationService interface {
	Register(ctx context.Context, req service.RegisterTeamRequest) (*models.Registration, error)
	Delete(ctx context.Context, teamNumber string) error
}

type registrationLister interface {
	ListRegistrations(ctx context.Context) ([]models.RegistrationDetail, error)
}

// RegistrationHandler exposes registration endpoints.
type RegistrationHandler struct {
	registrations registrationService
	projections   registrationLister
}

// NewRegistrationHandler constructs RegistrationHandler.
func NewRegistrationHandler(registrations registrationService, projections registrationLister) *RegistrationHandler {
	return &RegistrationHandler{registrations: registrations, projections: projections}
}

// List returns all registrations joined with catalog display fields.
func (h *RegistrationHandler) List(c *gin.Context) {
	details, err := h.projections.ListRegistrations(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, details)
}

// Register commits a registration or returns the typed rejection.
func (h *RegistrationHandler) Register(c *gin.Context) {
	var req service.RegisterTeamRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	reg, err := h.registrations.Register(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, reg)
}

// Delete removes a registration by team number.
func (h *RegistrationHandler) Delete(c *gin.Context) {
	teamNumber := c.Param("teamNumber")
	if err := h.registrations.Delete(c.Request.Context(), teamNumber); err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, gin.H{"deleted": teamNumber})
}
