package handler

import (
	"context"

	"github.com/gin-gonic/gin"

	"github.com/hackvento/portal-api/internal/service"
	"github.com/hackvento/portal-api/pkg/response"
)

type exportService interface {
	Registrations(ctx context.Context, format string) (*service.ExportResult, error)
}

// ExportHandler serves registration exports inline.
type ExportHandler struct {
	exports exportService
}

// NewExportHandler constructs ExportHandler.
func NewExportHandler(exports exportService) *ExportHandler {
	return &ExportHandler{exports: exports}
}

// Registrations renders the registration list as csv (default) or pdf.
func (h *ExportHandler) Registrations(c *gin.Context) {
	format := c.DefaultQuery("format", service.ExportFormatCSV)
	result, err := h.exports.Registrations(c.Request.Context(), format)
	if err != nil {
		response.Error(c, err)
		return
	}
	c.Header("Content-Disposition", `attachment; filename="`+result.Filename+`"`)
	c.Data(200, result.ContentType, result.Content)
}
