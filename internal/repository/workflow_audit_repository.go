package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/sma-adp-console/internal/models"
)

const workflowAuditSchema = `
CREATE TABLE IF NOT EXISTS timetable_workflow_audit (
	id TEXT PRIMARY KEY,
	workflow_id TEXT NOT NULL,
	user_id TEXT NOT NULL,
	action TEXT NOT NULL,
	timetable_id TEXT NULL,
	class_id TEXT NOT NULL,
	section_id TEXT NOT NULL,
	academic_year_id TEXT NOT NULL,
	semester TEXT NOT NULL,
	entry_count INTEGER NOT NULL DEFAULT 0,
	message TEXT NOT NULL DEFAULT '',
	created_at TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_timetable_workflow_audit_class ON timetable_workflow_audit (class_id, section_id, created_at DESC);`

// WorkflowAuditRepository persists timetable workflow audit events.
type WorkflowAuditRepository struct {
	db *sqlx.DB
}

// NewWorkflowAuditRepository constructs the repository.
func NewWorkflowAuditRepository(db *sqlx.DB) *WorkflowAuditRepository {
	return &WorkflowAuditRepository{db: db}
}

// EnsureSchema creates the audit table when missing.
func (r *WorkflowAuditRepository) EnsureSchema(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, workflowAuditSchema); err != nil {
		return fmt.Errorf("ensure workflow audit schema: %w", err)
	}
	return nil
}

// Insert stores one event.
func (r *WorkflowAuditRepository) Insert(ctx context.Context, event *models.WorkflowAuditEvent) error {
	if event == nil {
		return fmt.Errorf("audit event is nil")
	}
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now().UTC()
	}

	const query = `
INSERT INTO timetable_workflow_audit (id, workflow_id, user_id, action, timetable_id, class_id, section_id, academic_year_id, semester, entry_count, message, created_at)
VALUES (:id, :workflow_id, :user_id, :action, :timetable_id, :class_id, :section_id, :academic_year_id, :semester, :entry_count, :message, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, event); err != nil {
		return fmt.Errorf("insert workflow audit event: %w", err)
	}
	return nil
}

// ListRecent returns the newest events, optionally narrowed to a class and section.
func (r *WorkflowAuditRepository) ListRecent(ctx context.Context, filter models.WorkflowAuditFilter) ([]models.WorkflowAuditEvent, error) {
	limit := filter.Limit
	if limit <= 0 || limit > 200 {
		limit = 50
	}

	var (
		conditions []string
		args       []interface{}
	)
	if filter.ClassID != "" {
		args = append(args, filter.ClassID)
		conditions = append(conditions, fmt.Sprintf("class_id = $%d", len(args)))
	}
	if filter.SectionID != "" {
		args = append(args, filter.SectionID)
		conditions = append(conditions, fmt.Sprintf("section_id = $%d", len(args)))
	}

	var b strings.Builder
	b.WriteString(`SELECT id, workflow_id, user_id, action, timetable_id, class_id, section_id, academic_year_id, semester, entry_count, message, created_at FROM timetable_workflow_audit`)
	if len(conditions) > 0 {
		b.WriteString(" WHERE ")
		b.WriteString(strings.Join(conditions, " AND "))
	}
	args = append(args, limit)
	fmt.Fprintf(&b, " ORDER BY created_at DESC LIMIT $%d", len(args))

	var events []models.WorkflowAuditEvent
	if err := r.db.SelectContext(ctx, &events, b.String(), args...); err != nil {
		return nil, fmt.Errorf("list workflow audit events: %w", err)
	}
	return events, nil
}
