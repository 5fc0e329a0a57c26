package repository

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/url"

	"github.com/noah-isme/sma-adp-console/internal/dto"
	"github.com/noah-isme/sma-adp-console/internal/models"
	"github.com/noah-isme/sma-adp-console/pkg/apiclient"
)

// Upstream operation labels used for metrics and logs.
const (
	OpGenerateSlots   = "timetable_generate_slots"
	OpCheckConflict   = "timetable_check_conflict"
	OpValidateBulk    = "timetable_validate_bulk"
	OpLookupTimetable = "timetable_lookup"
	OpSaveFinal       = "timetable_save_final"
	OpSaveDraft       = "timetable_save_draft"
)

// TimetableAPIRepository calls the timetable endpoints of the school backend.
type TimetableAPIRepository struct {
	client *apiclient.Client
}

// NewTimetableAPIRepository constructs the repository.
func NewTimetableAPIRepository(client *apiclient.Client) *TimetableAPIRepository {
	return &TimetableAPIRepository{client: client}
}

// GenerateTimeSlots asks the backend to lay out the rows for a configuration.
func (r *TimetableAPIRepository) GenerateTimeSlots(ctx context.Context, cfg models.Configuration) ([]models.TimeSlot, error) {
	var raw json.RawMessage
	if err := r.client.Post(ctx, OpGenerateSlots, "timetables/time-slots", cfg, &raw); err != nil {
		return nil, err
	}

	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		var slots []models.TimeSlot
		if err := json.Unmarshal(trimmed, &slots); err != nil {
			return nil, fmt.Errorf("decode time slots: %w", err)
		}
		return slots, nil
	}

	var resp dto.GenerateSlotsResponse
	if len(trimmed) > 0 {
		if err := json.Unmarshal(trimmed, &resp); err != nil {
			return nil, fmt.Errorf("decode time slots: %w", err)
		}
	}
	return resp.TimeSlots, nil
}

// CheckTeacherConflict runs the per-entry teacher double-booking check.
func (r *TimetableAPIRepository) CheckTeacherConflict(ctx context.Context, req dto.TeacherConflictCheckRequest) (*dto.TeacherConflictCheckResponse, error) {
	var resp dto.TeacherConflictCheckResponse
	if err := r.client.Post(ctx, OpCheckConflict, "timetables/conflicts/check", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// ValidateBulk validates the complete entry set of a class timetable.
func (r *TimetableAPIRepository) ValidateBulk(ctx context.Context, req dto.BulkValidationRequest) (*dto.BulkValidationResponse, error) {
	var resp dto.BulkValidationResponse
	if err := r.client.Post(ctx, OpValidateBulk, "timetables/conflicts/validate", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// FindExisting looks up the saved timetable for a class/section/year/semester.
// A missing timetable surfaces as NOT_FOUND.
func (r *TimetableAPIRepository) FindExisting(ctx context.Context, classID, sectionID, academicYearID, semester string) (*dto.TimetableRecord, error) {
	query := url.Values{}
	query.Set("classId", classID)
	query.Set("sectionId", sectionID)
	query.Set("academicYearId", academicYearID)
	query.Set("semester", semester)

	var record dto.TimetableRecord
	if err := r.client.Get(ctx, OpLookupTimetable, "timetables/lookup", query, &record); err != nil {
		return nil, err
	}
	return &record, nil
}

// SaveFinal creates a final timetable.
func (r *TimetableAPIRepository) SaveFinal(ctx context.Context, payload dto.TimetablePayload) (*dto.SaveTimetableResponse, error) {
	payload.IsDraft = false
	var resp dto.SaveTimetableResponse
	if err := r.client.Post(ctx, OpSaveFinal, "timetables", payload, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// SaveDraft creates or updates a draft timetable.
func (r *TimetableAPIRepository) SaveDraft(ctx context.Context, payload dto.TimetablePayload) (*dto.SaveTimetableResponse, error) {
	payload.IsDraft = true
	var resp dto.SaveTimetableResponse
	if err := r.client.Post(ctx, OpSaveDraft, "timetables/drafts", payload, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}
