package service

import (
	"fmt"
	"regexp"
	"strings"

	"go.uber.org/zap"

	"github.com/noah-isme/sma-adp-console/internal/dto"
	"github.com/noah-isme/sma-adp-console/internal/models"
	appErrors "github.com/noah-isme/sma-adp-console/pkg/errors"
	"github.com/noah-isme/sma-adp-console/pkg/export"
)

type datasetRenderer interface {
	Render(data export.Dataset) ([]byte, error)
}

// Export formats.
const (
	ExportFormatCSV = "csv"
	ExportFormatPDF = "pdf"
)

// ExportFile is a rendered timetable ready to be sent as an attachment.
type ExportFile struct {
	Filename    string
	ContentType string
	Content     []byte
}

// TimetableExportService renders the current grid of a workflow.
type TimetableExportService struct {
	csv    datasetRenderer
	pdf    datasetRenderer
	logger *zap.Logger
}

var unsafeFilenameChars = regexp.MustCompile(`[^A-Za-z0-9_-]+`)

// NewTimetableExportService constructs the service; nil renderers use the defaults.
func NewTimetableExportService(csv, pdf datasetRenderer, logger *zap.Logger) *TimetableExportService {
	if csv == nil {
		csv = export.NewCSVExporter()
	}
	if pdf == nil {
		pdf = export.NewPDFExporter(export.Landscape)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TimetableExportService{csv: csv, pdf: pdf, logger: logger}
}

// Export renders the view as CSV or PDF. Slots must have been generated or loaded.
func (s *TimetableExportService) Export(view dto.WorkflowView, format string) (*ExportFile, error) {
	format = strings.ToLower(strings.TrimSpace(format))
	if format == "" {
		format = ExportFormatPDF
	}
	if len(view.TimeSlots) == 0 {
		return nil, appErrors.Clone(appErrors.ErrPreconditionFailed, "generate time slots before exporting")
	}

	dataset := TimetableDataset(view)
	var (
		content     []byte
		err         error
		contentType string
	)
	switch format {
	case ExportFormatCSV:
		content, err = s.csv.Render(dataset)
		contentType = "text/csv"
	case ExportFormatPDF:
		content, err = s.pdf.Render(dataset)
		contentType = "application/pdf"
	default:
		return nil, appErrors.Clone(appErrors.ErrValidation, "format must be csv or pdf")
	}
	if err != nil {
		s.logger.Error("timetable export failed", zap.String("workflow_id", view.ID), zap.String("format", format), zap.Error(err))
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render timetable export")
	}

	return &ExportFile{
		Filename:    exportFilename(view.Configuration, format),
		ContentType: contentType,
		Content:     content,
	}, nil
}

// TimetableDataset lays the grid out as rows of slots and columns of days.
func TimetableDataset(view dto.WorkflowView) export.Dataset {
	days := view.Days
	if len(days) == 0 {
		days = models.WeekDays
	}
	headers := make([]string, 0, len(days)+1)
	headers = append(headers, "Time")
	for _, day := range days {
		headers = append(headers, day.String())
	}

	cells := make(map[models.SlotKey]models.PlacedEntry, len(view.Entries))
	for _, entry := range view.Entries {
		cells[models.SlotKey{Day: entry.Day, Slot: entry.Slot}] = entry
	}

	rows := make([]map[string]string, 0, len(view.TimeSlots))
	emphasis := make(map[int]bool)
	for idx, slot := range view.TimeSlots {
		row := map[string]string{"Time": fmt.Sprintf("%s\n%s", slot.Label, slot.Time)}
		if slot.IsBreak {
			row["Time"] = slot.Time
			row[headers[1]] = slot.Label
			emphasis[idx] = true
			rows = append(rows, row)
			continue
		}
		for _, day := range days {
			if entry, ok := cells[models.SlotKey{Day: day, Slot: idx}]; ok {
				row[day.String()] = cellText(entry)
			}
		}
		rows = append(rows, row)
	}

	cfg := view.Configuration
	subtitle := fmt.Sprintf("Class %s / Section %s / Semester %s / Year %s", cfg.ClassID, cfg.SectionID, cfg.Semester, cfg.AcademicYearID)
	if view.Identity.Status != "" {
		subtitle += fmt.Sprintf(" (%s)", view.Identity.Status)
	}
	return export.Dataset{
		Title:    "Class Timetable",
		Subtitle: subtitle,
		Headers:  headers,
		Rows:     rows,
		Emphasis: emphasis,
	}
}

func cellText(entry models.PlacedEntry) string {
	subject := entry.Subject.Name
	if subject == "" {
		subject = entry.Subject.ID
	}
	teacher := entry.Teacher.Name
	if teacher == "" {
		teacher = entry.Teacher.ID
	}
	lines := []string{subject, teacher}
	if entry.Room != "" {
		lines = append(lines, entry.Room)
	}
	if entry.Type != "" && entry.Type != models.ClassTypeRegular {
		lines = append(lines, string(entry.Type))
	}
	return strings.Join(lines, "\n")
}

func exportFilename(cfg models.Configuration, format string) string {
	parts := []string{"timetable"}
	for _, part := range []string{cfg.ClassID, cfg.SectionID, "sem" + cfg.Semester} {
		clean := strings.Trim(unsafeFilenameChars.ReplaceAllString(part, "-"), "-")
		if clean != "" && clean != "sem" {
			parts = append(parts, clean)
		}
	}
	return strings.Join(parts, "_") + "." + format
}
