package service

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-adp-console/internal/dto"
	"github.com/noah-isme/sma-adp-console/internal/models"
	appErrors "github.com/noah-isme/sma-adp-console/pkg/errors"
)

// WorkflowSessionConfig tunes the workflow registry.
type WorkflowSessionConfig struct {
	TTL                   time.Duration
	DefaultAcademicYearID string
}

type workflowSession struct {
	workflow   *TimetableWorkflow
	lastAccess time.Time
}

// WorkflowSessionService keeps one timetable workflow per console session.
type WorkflowSessionService struct {
	deps   WorkflowDeps
	cfg    WorkflowSessionConfig
	logger *zap.Logger
	now    func() time.Time

	mu       sync.Mutex
	sessions map[string]*workflowSession
}

// NewWorkflowSessionService constructs the registry.
func NewWorkflowSessionService(deps WorkflowDeps, cfg WorkflowSessionConfig, logger *zap.Logger) *WorkflowSessionService {
	if cfg.TTL <= 0 {
		cfg.TTL = 2 * time.Hour
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if deps.Logger == nil {
		deps.Logger = logger
	}
	return &WorkflowSessionService{
		deps:     deps,
		cfg:      cfg,
		logger:   logger,
		now:      func() time.Time { return time.Now().UTC() },
		sessions: make(map[string]*workflowSession),
	}
}

// Start opens a new workflow owned by the session user and applies the
// optional initial configuration.
func (s *WorkflowSessionService) Start(ctx context.Context, session models.SessionContext, initial dto.ConfigurationPatch) (*TimetableWorkflow, error) {
	if session.User.ID == "" {
		return nil, appErrors.ErrUnauthorized
	}
	if session.AcademicYearID == "" {
		session.AcademicYearID = s.cfg.DefaultAcademicYearID
	}
	if session.AcademicYearID == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "no active academic year for this session")
	}

	s.Sweep()

	workflow := NewTimetableWorkflow(uuid.NewString(), session, s.deps)
	if _, err := workflow.UpdateConfiguration(initial); err != nil {
		workflow.Close()
		return nil, err
	}

	s.mu.Lock()
	s.sessions[workflow.ID()] = &workflowSession{workflow: workflow, lastAccess: s.now()}
	s.mu.Unlock()

	s.deps.Metrics.WorkflowOpened()
	s.logger.Info("timetable workflow started",
		zap.String("workflow_id", workflow.ID()),
		zap.String("user_id", session.User.ID),
		zap.String("academic_year_id", session.AcademicYearID),
	)
	return workflow, nil
}

// Get returns the workflow when it exists, has not expired and belongs to userID.
func (s *WorkflowSessionService) Get(id, userID string) (*TimetableWorkflow, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.sessions[id]
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "workflow not found")
	}
	if s.now().Sub(entry.lastAccess) > s.cfg.TTL {
		s.removeLocked(id, entry, "expired")
		return nil, appErrors.Clone(appErrors.ErrNotFound, "workflow expired")
	}
	if entry.workflow.OwnerID() != userID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "workflow belongs to another user")
	}
	entry.lastAccess = s.now()
	return entry.workflow, nil
}

// Close ends the workflow after checking ownership.
func (s *WorkflowSessionService) Close(id, userID string) error {
	if _, err := s.Get(id, userID); err != nil {
		return err
	}
	s.Complete(id)
	return nil
}

// Complete removes a finished workflow without an ownership check.
func (s *WorkflowSessionService) Complete(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if entry, ok := s.sessions[id]; ok {
		s.removeLocked(id, entry, "closed")
	}
}

// Sweep closes expired workflows and returns how many were removed.
func (s *WorkflowSessionService) Sweep() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	now := s.now()
	for id, entry := range s.sessions {
		if now.Sub(entry.lastAccess) > s.cfg.TTL {
			s.removeLocked(id, entry, "expired")
			removed++
		}
	}
	return removed
}

// Count returns the number of open workflows.
func (s *WorkflowSessionService) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

// CloseAll closes every workflow, used on shutdown.
func (s *WorkflowSessionService) CloseAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, entry := range s.sessions {
		s.removeLocked(id, entry, "shutdown")
	}
}

func (s *WorkflowSessionService) removeLocked(id string, entry *workflowSession, reason string) {
	entry.workflow.Close()
	delete(s.sessions, id)
	s.deps.Metrics.WorkflowClosed()
	s.logger.Info("timetable workflow removed", zap.String("workflow_id", id), zap.String("reason", reason))
}
