package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/Flexitaim/api-flexitaim/internal/models"
	appErrors "github.com/Flexitaim/api-flexitaim/pkg/errors"
	"github.com/Flexitaim/api-flexitaim/pkg/export"
)

// ExportFormat enumerates supported roster formats.
type ExportFormat string

const (
	ExportFormatCSV ExportFormat = "csv"
	ExportFormatPDF ExportFormat = "pdf"
)

var rosterHeaders = []string{"date", "start_time", "end_time", "status", "client", "email", "notes"}

type rosterBookingReader interface {
	ListActiveByResource(ctx context.Context, resourceID string) ([]models.Booking, error)
}

type rosterResourceReader interface {
	FindActiveByID(ctx context.Context, id string) (*models.Resource, error)
}

type rosterUserReader interface {
	FindActiveByID(ctx context.Context, id string) (*models.User, error)
}

type csvRenderer interface {
	Render(data export.Dataset) ([]byte, error)
}

type pdfRenderer interface {
	Render(data export.Dataset, title string) ([]byte, error)
}

// ExportFile is a rendered document ready to stream.
type ExportFile struct {
	Filename    string
	ContentType string
	Data        []byte
}

// ExportService renders the booking roster of a resource.
type ExportService struct {
	resources rosterResourceReader
	bookings  rosterBookingReader
	users     rosterUserReader
	csv       csvRenderer
	pdf       pdfRenderer
	clock     func() time.Time
	logger    *zap.Logger
}

// NewExportService constructs an ExportService. Nil renderers fall back to the defaults.
func NewExportService(resources rosterResourceReader, bookings rosterBookingReader, users rosterUserReader, logger *zap.Logger, csv csvRenderer, pdf pdfRenderer) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if csv == nil {
		csv = export.NewCSVExporter()
	}
	if pdf == nil {
		pdf = export.NewPDFExporter()
	}
	return &ExportService{
		resources: resources,
		bookings:  bookings,
		users:     users,
		csv:       csv,
		pdf:       pdf,
		clock:     time.Now,
		logger:    logger,
	}
}

// ResourceRoster renders every active booking of the resource in calendar order.
func (s *ExportService) ResourceRoster(ctx context.Context, resourceID string, format ExportFormat) (*ExportFile, error) {
	if format == "" {
		format = ExportFormatCSV
	}
	if format != ExportFormatCSV && format != ExportFormatPDF {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unsupported format %s", format))
	}

	resource, err := s.resources.FindActiveByID(ctx, resourceID)
	if err != nil {
		return nil, notFoundOr(err, "resource not found", "failed to load resource")
	}
	bookings, err := s.bookings.ListActiveByResource(ctx, resourceID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list bookings")
	}

	dataset := export.Dataset{Headers: rosterHeaders, Rows: make([]map[string]string, 0, len(bookings))}
	clients := map[string]*models.User{}
	for _, b := range bookings {
		client, ok := clients[b.SubjectID]
		if !ok {
			client, err = s.users.FindActiveByID(ctx, b.SubjectID)
			if err != nil {
				s.logger.Warn("roster client lookup failed", zap.String("subject_id", b.SubjectID), zap.Error(err))
				client = nil
			}
			clients[b.SubjectID] = client
		}
		row := map[string]string{
			"date":       b.Date.String(),
			"start_time": b.StartTime.Short(),
			"end_time":   b.EndTime.Short(),
			"status":     string(b.Status),
			"client":     b.SubjectID,
		}
		if client != nil {
			row["client"] = client.FullName
			row["email"] = client.Email
		}
		if b.Notes != nil {
			row["notes"] = *b.Notes
		}
		dataset.Rows = append(dataset.Rows, row)
	}

	var (
		payload     []byte
		contentType string
	)
	switch format {
	case ExportFormatCSV:
		payload, err = s.csv.Render(dataset)
		contentType = "text/csv"
	case ExportFormatPDF:
		payload, err = s.pdf.Render(dataset, resource.Name)
		contentType = "application/pdf"
	}
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render roster")
	}

	filename := fmt.Sprintf("roster_%s_%s.%s", slug(resource.Name), s.clock().UTC().Format("20060102_150405"), format)
	s.logger.Info("roster exported",
		zap.String("resource_id", resourceID),
		zap.String("format", string(format)),
		zap.Int("rows", len(dataset.Rows)),
	)
	return &ExportFile{Filename: filename, ContentType: contentType, Data: payload}, nil
}

func slug(name string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(strings.TrimSpace(name)) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == ' ' || r == '-' || r == '_':
			b.WriteRune('_')
		}
	}
	if b.Len() == 0 {
		return "resource"
	}
	return b.String()
}
