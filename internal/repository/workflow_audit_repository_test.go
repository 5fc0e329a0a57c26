package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sma-adp-console/internal/models"
)

func newWorkflowAuditRepoMock(t *testing.T) (*WorkflowAuditRepository, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return NewWorkflowAuditRepository(sqlx.NewDb(db, "sqlmock")), mock, func() { db.Close() }
}

func TestWorkflowAuditRepositoryInsert(t *testing.T) {
	repo, mock, cleanup := newWorkflowAuditRepoMock(t)
	defer cleanup()

	timetableID := "tt-1"
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO timetable_workflow_audit")).
		WithArgs(sqlmock.AnyArg(), "wf-1", "user-1", models.AuditActionFinalSaved, &timetableID, "class-1", "sec-a", "2024", "1", 3, "saved", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	event := &models.WorkflowAuditEvent{
		WorkflowID:     "wf-1",
		UserID:         "user-1",
		Action:         models.AuditActionFinalSaved,
		TimetableID:    &timetableID,
		ClassID:        "class-1",
		SectionID:      "sec-a",
		AcademicYearID: "2024",
		Semester:       "1",
		EntryCount:     3,
		Message:        "saved",
	}
	require.NoError(t, repo.Insert(context.Background(), event))
	assert.NotEmpty(t, event.ID)
	assert.False(t, event.CreatedAt.IsZero())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWorkflowAuditRepositoryListRecent(t *testing.T) {
	repo, mock, cleanup := newWorkflowAuditRepoMock(t)
	defer cleanup()

	now := time.Now().UTC()
	rows := sqlmock.NewRows([]string{"id", "workflow_id", "user_id", "action", "timetable_id", "class_id", "section_id", "academic_year_id", "semester", "entry_count", "message", "created_at"}).
		AddRow("ev-1", "wf-1", "user-1", models.AuditActionDraftSaved, "tt-1", "class-1", "sec-a", "2024", "1", 2, "draft", now)

	mock.ExpectQuery(regexp.QuoteMeta("FROM timetable_workflow_audit WHERE class_id = $1 AND section_id = $2 ORDER BY created_at DESC LIMIT $3")).
		WithArgs("class-1", "sec-a", 50).
		WillReturnRows(rows)

	events, err := repo.ListRecent(context.Background(), models.WorkflowAuditFilter{ClassID: "class-1", SectionID: "sec-a"})
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "ev-1", events[0].ID)
	require.NotNil(t, events[0].TimetableID)
	assert.Equal(t, "tt-1", *events[0].TimetableID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWorkflowAuditRepositoryListRecentUnfiltered(t *testing.T) {
	repo, mock, cleanup := newWorkflowAuditRepoMock(t)
	defer cleanup()

	mock.ExpectQuery(regexp.QuoteMeta("FROM timetable_workflow_audit ORDER BY created_at DESC LIMIT $1")).
		WithArgs(10).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	events, err := repo.ListRecent(context.Background(), models.WorkflowAuditFilter{Limit: 10})
	require.NoError(t, err)
	assert.Empty(t, events)
	assert.NoError(t, mock.ExpectationsWereMet())
}
