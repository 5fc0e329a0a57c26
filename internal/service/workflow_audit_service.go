package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-adp-console/internal/models"
	appErrors "github.com/noah-isme/sma-adp-console/pkg/errors"
	"github.com/noah-isme/sma-adp-console/pkg/jobs"
)

const auditJobType = "workflow_audit"

type workflowAuditStore interface {
	Insert(ctx context.Context, event *models.WorkflowAuditEvent) error
	ListRecent(ctx context.Context, filter models.WorkflowAuditFilter) ([]models.WorkflowAuditEvent, error)
}

// WorkflowAuditConfig controls the audit worker pool.
type WorkflowAuditConfig struct {
	Enabled    bool
	Workers    int
	MaxRetries int
	RetryDelay time.Duration
}

// WorkflowAuditService writes workflow audit events in the background.
type WorkflowAuditService struct {
	store   workflowAuditStore
	queue   *jobs.Queue
	enabled bool
	metrics *MetricsService
	logger  *zap.Logger
}

// NewWorkflowAuditService constructs the service. When disabled, Record is a no-op.
func NewWorkflowAuditService(store workflowAuditStore, cfg WorkflowAuditConfig, metrics *MetricsService, logger *zap.Logger) *WorkflowAuditService {
	if logger == nil {
		logger = zap.NewNop()
	}
	svc := &WorkflowAuditService{
		store:   store,
		enabled: cfg.Enabled && store != nil,
		metrics: metrics,
		logger:  logger,
	}
	if svc.enabled {
		svc.queue = jobs.NewQueue(auditJobType, svc.handle, jobs.QueueConfig{
			Workers:    cfg.Workers,
			MaxRetries: cfg.MaxRetries,
			RetryDelay: cfg.RetryDelay,
			Logger:     logger,
		})
	}
	return svc
}

// Enabled reports whether events are persisted.
func (s *WorkflowAuditService) Enabled() bool {
	return s != nil && s.enabled
}

// Start launches the workers.
func (s *WorkflowAuditService) Start(ctx context.Context) {
	if !s.Enabled() {
		return
	}
	s.queue.Start(ctx)
}

// Stop waits for the workers and persists events still buffered.
func (s *WorkflowAuditService) Stop() {
	if !s.Enabled() {
		return
	}
	s.queue.Stop()
}

// Record queues an event without blocking the workflow.
func (s *WorkflowAuditService) Record(ctx context.Context, event models.WorkflowAuditEvent) {
	if !s.Enabled() {
		return
	}
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now().UTC()
	}
	job := jobs.Job{ID: event.ID, Type: auditJobType, Payload: event, Enqueued: time.Now().UTC()}
	if err := s.queue.TryEnqueue(job); err != nil {
		s.logger.Warn("workflow audit event dropped",
			zap.String("workflow_id", event.WorkflowID),
			zap.String("action", event.Action),
			zap.Error(err),
		)
	}
}

// List returns recent events for the history view.
func (s *WorkflowAuditService) List(ctx context.Context, filter models.WorkflowAuditFilter) ([]models.WorkflowAuditEvent, error) {
	if !s.Enabled() {
		return []models.WorkflowAuditEvent{}, nil
	}
	start := time.Now()
	events, err := s.store.ListRecent(ctx, filter)
	s.metrics.ObserveDBQuery("workflow_audit_list", time.Since(start))
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load timetable history")
	}
	if events == nil {
		events = []models.WorkflowAuditEvent{}
	}
	return events, nil
}

// Stats exposes the worker counters.
func (s *WorkflowAuditService) Stats() jobs.Stats {
	if !s.Enabled() {
		return jobs.Stats{}
	}
	return s.queue.Stats()
}

func (s *WorkflowAuditService) handle(ctx context.Context, job jobs.Job) error {
	event, ok := job.Payload.(models.WorkflowAuditEvent)
	if !ok {
		return errors.New("unexpected audit payload")
	}
	start := time.Now()
	err := s.store.Insert(ctx, &event)
	s.metrics.ObserveDBQuery("workflow_audit_insert", time.Since(start))
	if err != nil {
		return fmt.Errorf("persist audit event %s: %w", event.ID, err)
	}
	return nil
}
