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

type catalogService interface {
	Create(ctx context.Context, req service.CreateProblemStatementRequest) (*models.ProblemStatement, error)
	Update(ctx context.Context, id string, update models.ProblemStatementUpdate) (int64, error)
	Delete(ctx context.Context, id string) (int64, error)
	BulkImport(ctx context.Context, reqs []service.CreateProblemStatementRequest) (int, error)
}

type problemStatementLister interface {
	ListProblemStatements(ctx context.Context) ([]models.ProblemStatementView, error)
}

// ProblemStatementHandler exposes catalog endpoints.
type ProblemStatementHandler struct {
	catalog     catalogService
	projections problemStatementLister
}

// NewProblemStatementHandler constructs ProblemStatementHandler.
func NewProblemStatementHandler(catalog catalogService, projections problemStatementLister) *ProblemStatementHandler {
	return &ProblemStatementHandler{catalog: catalog, projections: projections}
}

// List returns all problem statements with live availability.
func (h *ProblemStatementHandler) List(c *gin.Context) {
	views, err := h.projections.ListProblemStatements(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, views)
}

// Create inserts a new problem statement.
func (h *ProblemStatementHandler) Create(c *gin.Context) {
	var req service.CreateProblemStatementRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	ps, err := h.catalog.Create(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, ps)
}

// Update merges provided fields into an existing problem statement.
func (h *ProblemStatementHandler) Update(c *gin.Context) {
	var update models.ProblemStatementUpdate
	if err := c.ShouldBindJSON(&update); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	changed, err := h.catalog.Update(c.Request.Context(), c.Param("id"), update)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, gin.H{"updated": changed})
}

// Delete removes a problem statement and its registrations.
func (h *ProblemStatementHandler) Delete(c *gin.Context) {
	deleted, err := h.catalog.Delete(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, gin.H{"deleted": deleted})
}

// BulkImport inserts the statements whose ids are not already present.
func (h *ProblemStatementHandler) BulkImport(c *gin.Context) {
	var reqs []service.CreateProblemStatementRequest
	if err := c.ShouldBindJSON(&reqs); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	imported, err := h.catalog.BulkImport(c.Request.Context(), reqs)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, gin.H{"imported": imported})
}
