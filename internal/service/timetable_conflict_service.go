package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/sma-adp-console/internal/dto"
	"github.com/noah-isme/sma-adp-console/internal/models"
	appErrors "github.com/noah-isme/sma-adp-console/pkg/errors"
	"github.com/noah-isme/sma-adp-console/pkg/validation"
)

type timetableConflictRepository interface {
	CheckTeacherConflict(ctx context.Context, req dto.TeacherConflictCheckRequest) (*dto.TeacherConflictCheckResponse, error)
	ValidateBulk(ctx context.Context, req dto.BulkValidationRequest) (*dto.BulkValidationResponse, error)
}

// ConflictCheckConfig tunes how transport failures are treated.
type ConflictCheckConfig struct {
	// FailOpen commits entries whose per-entry check could not reach the backend.
	FailOpen bool
}

// EntryConflictQuery describes the cell being committed.
type EntryConflictQuery struct {
	TeacherID          string
	Day                models.Day
	Slot               models.TimeSlot
	AcademicYearID     string
	Semester           string
	ExcludeTimetableID string
}

// BulkConflictQuery describes a whole-grid validation.
type BulkConflictQuery struct {
	ClassID        string
	SectionID      string
	AcademicYearID string
	Semester       string
	Entries        []models.PlacedEntry
}

// TimetableConflictService orchestrates the backend conflict checks.
type TimetableConflictService struct {
	repo      timetableConflictRepository
	validator *validation.Validator
	metrics   *MetricsService
	logger    *zap.Logger
	cfg       ConflictCheckConfig
	now       func() time.Time
}

// NewTimetableConflictService constructs the service.
func NewTimetableConflictService(repo timetableConflictRepository, validator *validation.Validator, metrics *MetricsService, cfg ConflictCheckConfig, logger *zap.Logger) *TimetableConflictService {
	if validator == nil {
		validator = validation.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TimetableConflictService{
		repo:      repo,
		validator: validator,
		metrics:   metrics,
		logger:    logger,
		cfg:       cfg,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// CheckEntry asks whether the teacher is already booked during the slot.
// A transport failure returns CONFLICT_CHECK_UNAVAILABLE unless the service
// fails open, in which case the report is marked unchecked.
func (s *TimetableConflictService) CheckEntry(ctx context.Context, q EntryConflictQuery) (models.ConflictReport, error) {
	start, end, err := q.Slot.Bounds()
	if err != nil {
		return models.ConflictReport{}, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, err.Error())
	}

	req := dto.TeacherConflictCheckRequest{
		TeacherID:          q.TeacherID,
		Day:                q.Day.String(),
		StartTime:          start,
		EndTime:            end,
		AcademicYearID:     q.AcademicYearID,
		Semester:           q.Semester,
		ExcludeTimetableID: q.ExcludeTimetableID,
	}
	if err := s.validator.Struct(req); err != nil {
		return models.ConflictReport{}, err
	}

	resp, err := s.repo.CheckTeacherConflict(ctx, req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return models.ConflictReport{}, ctxErr
		}
		if !isTransportFailure(err) {
			s.metrics.RecordConflictCheck("entry", "rejected")
			return models.ConflictReport{}, err
		}
		s.logger.Warn("teacher conflict check failed",
			zap.String("teacher_id", q.TeacherID),
			zap.String("day", req.Day),
			zap.String("slot", q.Slot.Label),
			zap.Bool("fail_open", s.cfg.FailOpen),
			zap.Error(err),
		)
		if !s.cfg.FailOpen {
			s.metrics.RecordConflictCheck("entry", "unavailable")
			return models.ConflictReport{}, appErrors.Wrap(err, appErrors.ErrConflictCheckUnavailable.Code, appErrors.ErrConflictCheckUnavailable.Status,
				"conflict check unavailable, entry was not saved; retry when the school backend is reachable")
		}
		s.metrics.RecordConflictCheck("entry", "unchecked")
		return models.ConflictReport{
			Unchecked: true,
			Conflicts: []models.ConflictDescriptor{},
			Warning:   fmt.Sprintf("entry saved without a conflict check: %s", appErrors.FromError(err).Message),
			CheckedAt: s.now(),
		}, nil
	}

	conflicts := resp.Conflicts
	if conflicts == nil {
		conflicts = []models.ConflictDescriptor{}
	}
	count := len(conflicts)
	if resp.ConflictCount != nil {
		count = *resp.ConflictCount
	}
	if resp.HasConflict && count < 1 {
		count = 1
	}
	report := models.ConflictReport{
		HasConflict: resp.HasConflict || count > 0,
		Count:       count,
		Conflicts:   conflicts,
		CheckedAt:   s.now(),
	}

	outcome := "clear"
	if report.HasConflict {
		outcome = "conflict"
	}
	s.metrics.RecordConflictCheck("entry", outcome)
	return report, nil
}

// CheckBulk validates the whole grid. Failures other than cancellation and
// authorization come back as an invalid result so the console can show them.
func (s *TimetableConflictService) CheckBulk(ctx context.Context, q BulkConflictQuery) (models.ValidationResult, error) {
	req := dto.BulkValidationRequest{
		ClassID:        q.ClassID,
		SectionID:      q.SectionID,
		AcademicYearID: q.AcademicYearID,
		Semester:       q.Semester,
		Entries:        entryPayloads(q.Entries),
	}

	resp, err := s.repo.ValidateBulk(ctx, req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return models.ValidationResult{}, ctxErr
		}
		if appErrors.HasCode(err, appErrors.ErrUnauthorized) || appErrors.HasCode(err, appErrors.ErrForbidden) {
			return models.ValidationResult{}, err
		}

		unreachable := isTransportFailure(err)
		message := appErrors.FromError(err).Message
		if unreachable {
			message = "validation service unreachable: " + message
			s.metrics.RecordConflictCheck("bulk", "unreachable")
		} else {
			s.metrics.RecordConflictCheck("bulk", "rejected")
		}
		s.logger.Warn("bulk timetable validation failed", zap.String("class_id", q.ClassID), zap.Bool("unreachable", unreachable), zap.Error(err))
		return models.ValidationResult{
			IsValid:           false,
			ValidationMessage: message,
			Unreachable:       unreachable,
			CheckedAt:         s.now(),
		}, nil
	}

	outcome := "invalid"
	if resp.IsValid {
		outcome = "valid"
	}
	s.metrics.RecordConflictCheck("bulk", outcome)
	return models.ValidationResult{
		IsValid:           resp.IsValid,
		ValidationMessage: resp.ValidationMessage,
		CheckedAt:         s.now(),
	}, nil
}

func entryPayloads(entries []models.PlacedEntry) []dto.TimetableEntryPayload {
	out := make([]dto.TimetableEntryPayload, 0, len(entries))
	for _, entry := range entries {
		entryType := entry.Type
		if entryType == "" {
			entryType = models.ClassTypeRegular
		}
		out = append(out, dto.TimetableEntryPayload{
			Day:       entry.Day,
			TimeSlot:  entry.TimeSlot,
			SubjectID: entry.Subject.ID,
			TeacherID: entry.Teacher.ID,
			Room:      entry.Room,
			Type:      entryType,
		})
	}
	return out
}

// isTransportFailure separates "backend unreachable or broken" from answers the backend gave on purpose.
func isTransportFailure(err error) bool {
	var appErr *appErrors.Error
	if !errors.As(err, &appErr) {
		return true
	}
	return appErr.Code == appErrors.ErrUpstreamUnavailable.Code
}
