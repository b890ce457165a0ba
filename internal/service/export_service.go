package service

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/hackvento/portal-api/internal/models"
	"github.com/hackvento/portal-api/pkg/export"
	appErrors "github.com/hackvento/portal-api/pkg/errors"
)

// Export formats.
const (
	ExportFormatCSV = "csv"
	ExportFormatPDF = "pdf"
)

var exportHeaders = []string{"Team Number", "Team Name", "Team Leader", "Problem Statement", "Registered At"}

// ExportResult carries rendered export bytes and response metadata.
type ExportResult struct {
	Content     []byte
	ContentType string
	Filename    string
}

// ExportService renders the registration list as CSV or PDF.
type ExportService struct {
	projections *ProjectionService
	csv         *export.CSVExporter
	pdf         *export.PDFExporter
	logger      *zap.Logger
}

// NewExportService constructs ExportService.
func NewExportService(projections *ProjectionService, logger *zap.Logger) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ExportService{
		projections: projections,
		csv:         export.NewCSVExporter(),
		pdf:         export.NewPDFExporter(),
		logger:      logger,
	}
}

// Registrations renders the current registration list in the given format.
func (s *ExportService) Registrations(ctx context.Context, format string) (*ExportResult, error) {
	details, err := s.projections.ListRegistrations(ctx)
	if err != nil {
		return nil, err
	}
	dataset := buildRegistrationDataset(details)

	switch format {
	case ExportFormatCSV:
		content, err := s.csv.Render(dataset)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render csv export")
		}
		return &ExportResult{Content: content, ContentType: "text/csv", Filename: "registrations.csv"}, nil
	case ExportFormatPDF:
		content, err := s.pdf.Render(dataset, "Registrations")
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render pdf export")
		}
		return &ExportResult{Content: content, ContentType: "application/pdf", Filename: "registrations.pdf"}, nil
	default:
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unsupported export format %q", format))
	}
}

func buildRegistrationDataset(details []models.RegistrationDetail) export.Dataset {
	rows := make([]map[string]string, 0, len(details))
	for _, d := range details {
		title := ""
		if d.ProblemTitle != nil {
			title = *d.ProblemTitle
		}
		rows = append(rows, map[string]string{
			"Team Number":       d.TeamNumber,
			"Team Name":         d.TeamName,
			"Team Leader":       d.TeamLeader,
			"Problem Statement": title,
			"Registered At":     d.RegistrationDateTime.UTC().Format("2006-01-02 15:04:05"),
		})
	}
	return export.Dataset{Headers: exportHeaders, Rows: rows}
}
