package models

import "time"

// Workflow audit actions.
const (
	AuditActionDraftSaved = "TIMETABLE_DRAFT_SAVED"
	AuditActionFinalSaved = "TIMETABLE_FINAL_SAVED"
	AuditActionStartNew   = "TIMETABLE_START_NEW"
	AuditActionSaveFailed = "TIMETABLE_SAVE_FAILED"
)

// WorkflowAuditEvent records a persistence-relevant step of a timetable workflow.
type WorkflowAuditEvent struct {
	ID             string    `db:"id" json:"id"`
	WorkflowID     string    `db:"workflow_id" json:"workflowId"`
	UserID         string    `db:"user_id" json:"userId"`
	Action         string    `db:"action" json:"action"`
	TimetableID    *string   `db:"timetable_id" json:"timetableId,omitempty"`
	ClassID        string    `db:"class_id" json:"classId"`
	SectionID      string    `db:"section_id" json:"sectionId"`
	AcademicYearID string    `db:"academic_year_id" json:"academicYearId"`
	Semester       string    `db:"semester" json:"semester"`
	EntryCount     int       `db:"entry_count" json:"entryCount"`
	Message        string    `db:"message" json:"message"`
	CreatedAt      time.Time `db:"created_at" json:"createdAt"`
}

// WorkflowAuditFilter narrows the audit history listing.
type WorkflowAuditFilter struct {
	ClassID   string `form:"classId"`
	SectionID string `form:"sectionId"`
	Limit     int    `form:"limit"`
}
