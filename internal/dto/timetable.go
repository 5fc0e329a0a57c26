package dto

import (
	"time"

	"github.com/noah-isme/sma-adp-console/internal/models"
)

// ---- school backend payloads ----

// GenerateSlotsResponse lists the rows generated for a configuration.
type GenerateSlotsResponse struct {
	TimeSlots []models.TimeSlot `json:"timeSlots"`
}

// TeacherConflictCheckRequest asks whether a teacher is busy in a day/time range.
type TeacherConflictCheckRequest struct {
	TeacherID          string `json:"teacherId" validate:"required"`
	Day                string `json:"day" validate:"required"`
	StartTime          string `json:"startTime" validate:"required,clock"`
	EndTime            string `json:"endTime" validate:"required,clock,clockafter=StartTime"`
	AcademicYearID     string `json:"academicYearId" validate:"required"`
	Semester           string `json:"semester" validate:"required"`
	ExcludeTimetableID string `json:"excludeTimetableId,omitempty"`
}

// TeacherConflictCheckResponse is the backend answer to a per-entry check.
type TeacherConflictCheckResponse struct {
	HasConflict   bool                        `json:"hasConflict"`
	ConflictCount *int                        `json:"conflictCount,omitempty"`
	Conflicts     []models.ConflictDescriptor `json:"conflicts"`
}

// TimetableEntryPayload is one grid entry normalised to ids.
type TimetableEntryPayload struct {
	Day       models.Day       `json:"day"`
	TimeSlot  string           `json:"timeSlot"`
	SubjectID string           `json:"subjectId"`
	TeacherID string           `json:"teacherId"`
	Room      string           `json:"room"`
	Type      models.ClassType `json:"type"`
}

// BulkValidationRequest validates the whole grid.
type BulkValidationRequest struct {
	ClassID        string                  `json:"classId"`
	SectionID      string                  `json:"sectionId"`
	AcademicYearID string                  `json:"academicYearId"`
	Semester       string                  `json:"semester"`
	Entries        []TimetableEntryPayload `json:"entries"`
}

// BulkValidationResponse is the backend answer to a bulk validation.
type BulkValidationResponse struct {
	IsValid           bool   `json:"isValid"`
	ValidationMessage string `json:"validationMessage"`
}

// TimetableEntryRecord is an entry as stored by the backend, with display names.
type TimetableEntryRecord struct {
	Day         models.Day       `json:"day"`
	TimeSlot    string           `json:"timeSlot"`
	SubjectID   string           `json:"subjectId"`
	SubjectName string           `json:"subjectName"`
	SubjectCode string           `json:"subjectCode"`
	TeacherID   string           `json:"teacherId"`
	TeacherName string           `json:"teacherName"`
	Room        string           `json:"room"`
	Type        models.ClassType `json:"type"`
}

// TimetableRecord is the lookup result for an existing timetable.
type TimetableRecord struct {
	ID            string                 `json:"id"`
	Status        models.TimetableStatus `json:"status"`
	Configuration models.Configuration   `json:"configuration"`
	TimeSlots     []models.TimeSlot      `json:"timeSlots"`
	Entries       []TimetableEntryRecord `json:"entries"`
	UpdatedAt     *time.Time             `json:"updatedAt,omitempty"`
}

// TimetablePayload is the full body sent when saving a draft or final timetable.
type TimetablePayload struct {
	ID            string                  `json:"id,omitempty"`
	Configuration models.Configuration    `json:"configuration"`
	TimeSlots     []models.TimeSlot       `json:"timeSlots"`
	Entries       []TimetableEntryPayload `json:"entries"`
	IsDraft       bool                    `json:"isDraft"`
}

// SaveTimetableResponse returns the saved identity.
type SaveTimetableResponse struct {
	ID      string                 `json:"id"`
	Status  models.TimetableStatus `json:"status"`
	Message string                 `json:"message"`
}

// ---- console payloads ----

// ConfigurationPatch updates selected configuration fields; nil fields are left untouched.
type ConfigurationPatch struct {
	ClassID         *string `json:"classId"`
	SectionID       *string `json:"sectionId"`
	Semester        *string `json:"semester"`
	PeriodDuration  *int    `json:"periodDuration"`
	SchoolStartTime *string `json:"schoolStartTime"`
	LunchStartTime  *string `json:"lunchStartTime"`
	LunchDuration   *int    `json:"lunchDuration"`
	TotalPeriods    *int    `json:"totalPeriods"`
}

// TouchesSchedule reports whether the patch changes a schedule parameter.
func (p ConfigurationPatch) TouchesSchedule() bool {
	return p.PeriodDuration != nil || p.SchoolStartTime != nil || p.LunchStartTime != nil ||
		p.LunchDuration != nil || p.TotalPeriods != nil
}

// EntryForm is the cell editor content.
type EntryForm struct {
	SubjectID   string           `json:"subjectId" validate:"required"`
	SubjectName string           `json:"subjectName"`
	SubjectCode string           `json:"subjectCode"`
	TeacherID   string           `json:"teacherId" validate:"required"`
	TeacherName string           `json:"teacherName"`
	Room        string           `json:"room" validate:"max=64"`
	Type        models.ClassType `json:"type" validate:"omitempty,oneof=Regular Lab Tutorial"`
}

// EntryFormView is what the editor opens with for a cell.
type EntryFormView struct {
	Key      models.SlotKey  `json:"key"`
	TimeSlot models.TimeSlot `json:"timeSlot"`
	Existing bool            `json:"existing"`
	Form     EntryForm       `json:"form"`
}

// EntrySubmitResult reports whether a cell edit was committed.
type EntrySubmitResult struct {
	Committed bool                   `json:"committed"`
	Entry     *models.PlacedEntry    `json:"entry,omitempty"`
	Report    *models.ConflictReport `json:"report,omitempty"`
	Summary   string                 `json:"summary,omitempty"`
	Warning   string                 `json:"warning,omitempty"`
}

// WorkflowView is the full observable state of a workflow.
type WorkflowView struct {
	ID            string                     `json:"id"`
	Step          models.WorkflowStep        `json:"step"`
	Configuration models.Configuration       `json:"configuration"`
	TimeSlots     []models.TimeSlot          `json:"timeSlots"`
	Days          []models.Day               `json:"days"`
	Entries       []models.PlacedEntry       `json:"entries"`
	Validation    *models.ValidationResult   `json:"validation,omitempty"`
	Identity      models.TimetableIdentity   `json:"identity"`
	ReadOnly      bool                       `json:"readOnly"`
	InFlight      []models.WorkflowOperation `json:"inFlight"`
	CanValidate   bool                       `json:"canValidate"`
	CanSaveDraft  bool                       `json:"canSaveDraft"`
	CanSaveFinal  bool                       `json:"canSaveFinal"`
	UpdatedAt     time.Time                  `json:"updatedAt"`
}

// LoadExistingResult tells the console whether an existing timetable was opened.
type LoadExistingResult struct {
	Found    bool                   `json:"found"`
	Status   models.TimetableStatus `json:"status,omitempty"`
	ReadOnly bool                   `json:"readOnly"`
}

// SaveOutcome is returned after a successful draft or final save.
type SaveOutcome struct {
	TimetableID string                 `json:"timetableId"`
	Status      models.TimetableStatus `json:"status"`
	Message     string                 `json:"message"`
}

// StartWorkflowRequest opens a workflow, optionally with initial configuration values.
type StartWorkflowRequest struct {
	Configuration ConfigurationPatch `json:"configuration"`
}
