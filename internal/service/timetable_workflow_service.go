package service

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/sma-adp-console/internal/dto"
	"github.com/noah-isme/sma-adp-console/internal/models"
	"github.com/noah-isme/sma-adp-console/pkg/apiclient"
	appErrors "github.com/noah-isme/sma-adp-console/pkg/errors"
	"github.com/noah-isme/sma-adp-console/pkg/logger"
	"github.com/noah-isme/sma-adp-console/pkg/validation"
)

type timetableWorkflowRepository interface {
	GenerateTimeSlots(ctx context.Context, cfg models.Configuration) ([]models.TimeSlot, error)
	FindExisting(ctx context.Context, classID, sectionID, academicYearID, semester string) (*dto.TimetableRecord, error)
	SaveFinal(ctx context.Context, payload dto.TimetablePayload) (*dto.SaveTimetableResponse, error)
	SaveDraft(ctx context.Context, payload dto.TimetablePayload) (*dto.SaveTimetableResponse, error)
}

type timetableConflictChecker interface {
	CheckEntry(ctx context.Context, q EntryConflictQuery) (models.ConflictReport, error)
	CheckBulk(ctx context.Context, q BulkConflictQuery) (models.ValidationResult, error)
}

type workflowAuditRecorder interface {
	Record(ctx context.Context, event models.WorkflowAuditEvent)
}

// workflowTransitions lists the steps reachable from each step. Every step may
// fall back to CONFIGURATION through a reset.
var workflowTransitions = map[models.WorkflowStep][]models.WorkflowStep{
	models.StepConfiguration: {models.StepGridEditing},
	models.StepGridEditing:   {models.StepConfiguration, models.StepValidated, models.StepSaving},
	models.StepValidated:     {models.StepConfiguration, models.StepGridEditing, models.StepSaving},
	models.StepSaving:        {models.StepConfiguration, models.StepGridEditing, models.StepValidated, models.StepCompleted},
	models.StepCompleted:     {models.StepConfiguration},
}

func canTransition(from, to models.WorkflowStep) bool {
	if from == to {
		return true
	}
	for _, next := range workflowTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// WorkflowDeps are the collaborators shared by every workflow.
type WorkflowDeps struct {
	Repo      timetableWorkflowRepository
	Checker   timetableConflictChecker
	Audit     workflowAuditRecorder
	Validator *validation.Validator
	Metrics   *MetricsService
	Logger    *zap.Logger
}

// TimetableWorkflow drives one timetable construction from configuration to a
// saved draft or final timetable. Remote calls run without holding the state
// lock; their results are dropped when a reset happened in the meantime.
type TimetableWorkflow struct {
	id        string
	repo      timetableWorkflowRepository
	checker   timetableConflictChecker
	audit     workflowAuditRecorder
	validator *validation.Validator
	metrics   *MetricsService
	logger    *zap.Logger
	now       func() time.Time

	mu                sync.Mutex
	session           models.SessionContext
	step              models.WorkflowStep
	cfg               models.Configuration
	grid              *TimetableGrid
	validation        *models.ValidationResult
	validationVersion uint64
	gridVersion       uint64
	identity          models.TimetableIdentity
	epoch             uint64
	opSeq             uint64
	inFlight          map[models.WorkflowOperation]uint64
	closed            bool
	updatedAt         time.Time

	cancelMu sync.Mutex
	cancels  map[uint64]context.CancelFunc
	cancelID uint64

	cells *keyedMutex
}

// NewTimetableWorkflow opens a workflow in CONFIGURATION for the given session.
func NewTimetableWorkflow(id string, session models.SessionContext, deps WorkflowDeps) *TimetableWorkflow {
	if deps.Validator == nil {
		deps.Validator = validation.New()
	}
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	w := &TimetableWorkflow{
		id:        id,
		repo:      deps.Repo,
		checker:   deps.Checker,
		audit:     deps.Audit,
		validator: deps.Validator,
		metrics:   deps.Metrics,
		logger:    deps.Logger.With(logger.WorkflowFields(id, session.User.ID, "")...),
		now:       func() time.Time { return time.Now().UTC() },
		session:   session,
		step:      models.StepConfiguration,
		cfg:       models.Configuration{AcademicYearID: session.AcademicYearID},
		inFlight:  make(map[models.WorkflowOperation]uint64),
		cancels:   make(map[uint64]context.CancelFunc),
		cells:     newKeyedMutex(),
	}
	w.updatedAt = w.now()
	return w
}

// ID returns the workflow identifier.
func (w *TimetableWorkflow) ID() string {
	return w.id
}

// OwnerID returns the user that opened the workflow.
func (w *TimetableWorkflow) OwnerID() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.session.User.ID
}

// UpdateAccessToken replaces the bearer token forwarded to the backend.
func (w *TimetableWorkflow) UpdateAccessToken(token string) {
	if token == "" {
		return
	}
	w.mu.Lock()
	w.session.AccessToken = token
	w.mu.Unlock()
}

// Step returns the current step.
func (w *TimetableWorkflow) Step() models.WorkflowStep {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.step
}

// Snapshot returns the full observable state.
func (w *TimetableWorkflow) Snapshot() dto.WorkflowView {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.viewLocked()
}

// UpdateConfiguration merges the patch into the configuration. Any effective
// change made after slots were generated resets the workflow to CONFIGURATION.
func (w *TimetableWorkflow) UpdateConfiguration(patch dto.ConfigurationPatch) (dto.WorkflowView, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if err := w.checkOpenLocked(); err != nil {
		return dto.WorkflowView{}, err
	}
	if w.step == models.StepSaving {
		return dto.WorkflowView{}, appErrors.Clone(appErrors.ErrOperationInFlight, "timetable is being saved")
	}
	if w.readOnlyLocked() && patch.TouchesSchedule() {
		return dto.WorkflowView{}, appErrors.Clone(appErrors.ErrFinalized, "final timetable is read-only; start a new timetable to change the schedule")
	}

	next := applyPatch(w.cfg, patch)
	if next == w.cfg {
		return w.viewLocked(), nil
	}
	identityChanged := !next.SameIdentity(w.cfg)
	w.cfg = next

	w.resetLocked(identityChanged)
	w.logger.Info("timetable configuration changed", zap.Bool("identity_changed", identityChanged))
	return w.viewLocked(), nil
}

// LoadExisting opens the saved timetable for the configured class, section,
// year and semester. Final timetables open read-only, drafts open editable.
func (w *TimetableWorkflow) LoadExisting(ctx context.Context) (dto.LoadExistingResult, error) {
	w.mu.Lock()
	if err := w.checkOpenLocked(); err != nil {
		w.mu.Unlock()
		return dto.LoadExistingResult{}, err
	}
	if w.step != models.StepConfiguration {
		w.mu.Unlock()
		return dto.LoadExistingResult{}, appErrors.Clone(appErrors.ErrInvalidTransition, "existing timetables can only be loaded during configuration")
	}
	cfg := w.cfg
	if cfg.ClassID == "" || cfg.SectionID == "" || cfg.AcademicYearID == "" || cfg.Semester == "" {
		w.mu.Unlock()
		return dto.LoadExistingResult{}, appErrors.Clone(appErrors.ErrValidation, "class, section, academic year and semester are required to look up a timetable")
	}
	seq, err := w.beginLocked(models.OperationLoad)
	if err != nil {
		w.mu.Unlock()
		return dto.LoadExistingResult{}, err
	}
	epoch := w.epoch
	callCtx, release := w.track(ctx)
	w.mu.Unlock()

	record, err := w.repo.FindExisting(callCtx, cfg.ClassID, cfg.SectionID, cfg.AcademicYearID, cfg.Semester)
	release()

	w.mu.Lock()
	defer w.mu.Unlock()
	w.endLocked(models.OperationLoad, seq)
	if w.epoch != epoch {
		return dto.LoadExistingResult{}, appErrors.ErrStaleResult
	}
	if err != nil {
		if appErrors.HasCode(err, appErrors.ErrNotFound) {
			return dto.LoadExistingResult{Found: false}, nil
		}
		return dto.LoadExistingResult{}, err
	}
	if record == nil || len(record.TimeSlots) == 0 {
		w.logger.Warn("existing timetable has no time slots, ignoring it")
		return dto.LoadExistingResult{Found: false}, nil
	}

	grid := NewTimetableGrid(record.TimeSlots)
	for _, stored := range record.Entries {
		key, keyErr := grid.KeyForLabel(stored.Day, stored.TimeSlot)
		if keyErr != nil {
			w.logger.Warn("skipping stored entry outside the slot layout",
				zap.String("day", stored.Day.String()), zap.String("time_slot", stored.TimeSlot))
			continue
		}
		entry := models.Entry{
			Subject: models.SubjectRef{ID: stored.SubjectID, Name: stored.SubjectName, Code: stored.SubjectCode},
			Teacher: models.TeacherRef{ID: stored.TeacherID, Name: stored.TeacherName},
			Room:    stored.Room,
			Type:    stored.Type,
		}
		if upsertErr := grid.Upsert(key, entry); upsertErr != nil {
			w.logger.Warn("skipping stored entry", zap.String("key", key.String()), zap.Error(upsertErr))
		}
	}

	readOnly := record.Status == models.TimetableStatusFinal
	grid.SetReadOnly(readOnly)

	w.cfg = mergeStoredSchedule(w.cfg, record.Configuration)
	w.grid = grid
	w.gridVersion++
	w.validation = nil
	w.identity = models.TimetableIdentity{ID: record.ID, Status: record.Status}
	w.transitionLocked(models.StepGridEditing)

	w.logger.Info("existing timetable loaded",
		zap.String("timetable_id", record.ID),
		zap.String("status", string(record.Status)),
		zap.Int("entries", grid.Len()),
	)
	return dto.LoadExistingResult{Found: true, Status: record.Status, ReadOnly: readOnly}, nil
}

// GenerateSlots validates the configuration and asks the backend for the
// slot layout. On success with at least one slot the workflow enters GRID_EDITING.
func (w *TimetableWorkflow) GenerateSlots(ctx context.Context) (dto.WorkflowView, error) {
	w.mu.Lock()
	if err := w.checkOpenLocked(); err != nil {
		w.mu.Unlock()
		return dto.WorkflowView{}, err
	}
	if w.step != models.StepConfiguration {
		w.mu.Unlock()
		return dto.WorkflowView{}, appErrors.Clone(appErrors.ErrInvalidTransition, "time slots can only be generated during configuration")
	}
	cfg := w.cfg
	if err := w.validator.Struct(cfg); err != nil {
		w.mu.Unlock()
		return dto.WorkflowView{}, err
	}
	seq, err := w.beginLocked(models.OperationGenerate)
	if err != nil {
		w.mu.Unlock()
		return dto.WorkflowView{}, err
	}
	epoch := w.epoch
	callCtx, release := w.track(ctx)
	w.mu.Unlock()

	slots, err := w.repo.GenerateTimeSlots(callCtx, cfg)
	release()

	w.mu.Lock()
	defer w.mu.Unlock()
	w.endLocked(models.OperationGenerate, seq)
	if w.epoch != epoch {
		return dto.WorkflowView{}, appErrors.ErrStaleResult
	}
	if err != nil {
		w.logger.Warn("time slot generation failed", zap.Error(err))
		return dto.WorkflowView{}, err
	}
	if len(slots) == 0 {
		return dto.WorkflowView{}, appErrors.Clone(appErrors.ErrValidation, "no time slots were generated for this configuration")
	}

	w.grid = NewTimetableGrid(slots)
	w.gridVersion++
	w.validation = nil
	w.transitionLocked(models.StepGridEditing)
	w.logger.Info("time slots generated", zap.Int("slots", len(slots)))
	return w.viewLocked(), nil
}

// OpenEntryForm returns the editor content for a cell: the stored entry or defaults.
func (w *TimetableWorkflow) OpenEntryForm(day models.Day, slot int) (dto.EntryFormView, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if err := w.checkOpenLocked(); err != nil {
		return dto.EntryFormView{}, err
	}
	key, err := w.fillableKeyLocked(day, slot)
	if err != nil {
		return dto.EntryFormView{}, err
	}
	timeSlot, _ := w.grid.Slot(key.Slot)

	view := dto.EntryFormView{
		Key:      key,
		TimeSlot: timeSlot,
		Form:     dto.EntryForm{Type: models.ClassTypeRegular},
	}
	if entry, ok := w.grid.Get(key); ok {
		view.Existing = true
		view.Form = formFromEntry(entry)
	}
	return view, nil
}

// SubmitEntry checks the teacher for conflicts and commits the entry when the
// check is clear. Edits to the same cell are serialized.
func (w *TimetableWorkflow) SubmitEntry(ctx context.Context, day models.Day, slot int, form dto.EntryForm) (dto.EntrySubmitResult, error) {
	form.SubjectID = strings.TrimSpace(form.SubjectID)
	form.TeacherID = strings.TrimSpace(form.TeacherID)
	form.Room = strings.TrimSpace(form.Room)
	if form.Type == "" {
		form.Type = models.ClassTypeRegular
	}
	if err := w.validator.Struct(form); err != nil {
		return dto.EntrySubmitResult{}, err
	}

	w.mu.Lock()
	if err := w.checkOpenLocked(); err != nil {
		w.mu.Unlock()
		return dto.EntrySubmitResult{}, err
	}
	key, err := w.fillableKeyLocked(day, slot)
	w.mu.Unlock()
	if err != nil {
		return dto.EntrySubmitResult{}, err
	}

	unlockCell, err := w.cells.Lock(ctx, key)
	if err != nil {
		return dto.EntrySubmitResult{}, err
	}
	defer unlockCell()

	w.mu.Lock()
	if err := w.checkOpenLocked(); err != nil {
		w.mu.Unlock()
		return dto.EntrySubmitResult{}, err
	}
	if _, err := w.fillableKeyLocked(day, slot); err != nil {
		w.mu.Unlock()
		return dto.EntrySubmitResult{}, err
	}
	timeSlot, _ := w.grid.Slot(key.Slot)
	query := EntryConflictQuery{
		TeacherID:          form.TeacherID,
		Day:                key.Day,
		Slot:               timeSlot,
		AcademicYearID:     w.cfg.AcademicYearID,
		Semester:           w.cfg.Semester,
		ExcludeTimetableID: w.identity.ID,
	}
	epoch := w.epoch
	callCtx, release := w.track(ctx)
	w.mu.Unlock()

	report, err := w.checker.CheckEntry(callCtx, query)
	release()

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.epoch != epoch {
		return dto.EntrySubmitResult{}, appErrors.ErrStaleResult
	}
	if err != nil {
		return dto.EntrySubmitResult{}, err
	}
	if report.HasConflict {
		w.logger.Info("entry blocked by teacher conflict",
			zap.String("key", key.String()),
			zap.String("teacher_id", form.TeacherID),
			zap.Int("conflicts", report.Count),
		)
		return dto.EntrySubmitResult{Committed: false, Report: &report, Summary: report.Summary()}, nil
	}
	if _, err := w.fillableKeyLocked(day, slot); err != nil {
		return dto.EntrySubmitResult{}, err
	}

	if err := w.grid.Upsert(key, entryFromForm(form)); err != nil {
		return dto.EntrySubmitResult{}, err
	}
	w.gridChangedLocked()

	placed := w.placedLocked(key)
	result := dto.EntrySubmitResult{Committed: true, Entry: &placed}
	if report.Unchecked {
		result.Report = &report
		result.Summary = report.Summary()
		result.Warning = report.Warning
	}
	return result, nil
}

// DeleteEntry clears a cell. Deleting an empty cell is a no-op.
func (w *TimetableWorkflow) DeleteEntry(ctx context.Context, day models.Day, slot int) (dto.WorkflowView, error) {
	w.mu.Lock()
	if err := w.checkOpenLocked(); err != nil {
		w.mu.Unlock()
		return dto.WorkflowView{}, err
	}
	key, err := w.fillableKeyLocked(day, slot)
	w.mu.Unlock()
	if err != nil {
		return dto.WorkflowView{}, err
	}

	unlockCell, err := w.cells.Lock(ctx, key)
	if err != nil {
		return dto.WorkflowView{}, err
	}
	defer unlockCell()

	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.checkOpenLocked(); err != nil {
		return dto.WorkflowView{}, err
	}
	if _, err := w.fillableKeyLocked(day, slot); err != nil {
		return dto.WorkflowView{}, err
	}
	existed, err := w.grid.Delete(key)
	if err != nil {
		return dto.WorkflowView{}, err
	}
	if existed {
		w.gridChangedLocked()
	}
	return w.viewLocked(), nil
}

// Validate runs the bulk conflict validation over the current entries. The
// result is kept only when the grid did not change while the call was running.
func (w *TimetableWorkflow) Validate(ctx context.Context) (models.ValidationResult, error) {
	w.mu.Lock()
	if err := w.checkOpenLocked(); err != nil {
		w.mu.Unlock()
		return models.ValidationResult{}, err
	}
	if err := w.checkEditingStepLocked(); err != nil {
		w.mu.Unlock()
		return models.ValidationResult{}, err
	}
	if w.grid.Len() == 0 {
		w.mu.Unlock()
		return models.ValidationResult{}, appErrors.Clone(appErrors.ErrPreconditionFailed, "add at least one entry before validating")
	}
	seq, err := w.beginLocked(models.OperationValidate)
	if err != nil {
		w.mu.Unlock()
		return models.ValidationResult{}, err
	}
	query := BulkConflictQuery{
		ClassID:        w.cfg.ClassID,
		SectionID:      w.cfg.SectionID,
		AcademicYearID: w.cfg.AcademicYearID,
		Semester:       w.cfg.Semester,
		Entries:        w.grid.Entries(),
	}
	epoch := w.epoch
	version := w.gridVersion
	callCtx, release := w.track(ctx)
	w.mu.Unlock()

	result, err := w.checker.CheckBulk(callCtx, query)
	release()

	w.mu.Lock()
	defer w.mu.Unlock()
	w.endLocked(models.OperationValidate, seq)
	if w.epoch != epoch {
		return models.ValidationResult{}, appErrors.ErrStaleResult
	}
	if err != nil {
		return models.ValidationResult{}, err
	}
	if w.gridVersion != version || w.grid == nil {
		return models.ValidationResult{}, appErrors.Clone(appErrors.ErrStaleResult, "the grid changed while validating; validate again")
	}
	if w.step == models.StepSaving {
		return result, nil
	}

	w.validation = &result
	w.validationVersion = version
	if result.IsValid {
		w.transitionLocked(models.StepValidated)
	} else {
		w.transitionLocked(models.StepGridEditing)
	}
	return result, nil
}

// SaveDraft persists the current grid as a draft. It does not depend on validation.
func (w *TimetableWorkflow) SaveDraft(ctx context.Context) (dto.SaveOutcome, error) {
	return w.save(ctx, false)
}

// SaveFinal persists the current grid as a final timetable. It requires a valid
// validation of the current grid, unless the workflow is editing an existing draft.
func (w *TimetableWorkflow) SaveFinal(ctx context.Context) (dto.SaveOutcome, error) {
	return w.save(ctx, true)
}

func (w *TimetableWorkflow) save(ctx context.Context, final bool) (dto.SaveOutcome, error) {
	w.mu.Lock()
	if err := w.checkOpenLocked(); err != nil {
		w.mu.Unlock()
		return dto.SaveOutcome{}, err
	}
	if err := w.checkEditingStepLocked(); err != nil {
		w.mu.Unlock()
		return dto.SaveOutcome{}, err
	}
	if w.grid.ReadOnly() {
		w.mu.Unlock()
		return dto.SaveOutcome{}, appErrors.Clone(appErrors.ErrFinalized, "final timetable is read-only; start a new timetable instead")
	}
	if w.grid.Len() == 0 {
		w.mu.Unlock()
		return dto.SaveOutcome{}, appErrors.Clone(appErrors.ErrPreconditionFailed, "add at least one entry before saving")
	}
	if final && !w.canSaveFinalLocked() {
		w.mu.Unlock()
		return dto.SaveOutcome{}, appErrors.Clone(appErrors.ErrPreconditionFailed, "validate the timetable without conflicts before saving it as final")
	}
	seq, err := w.beginLocked(models.OperationSave)
	if err != nil {
		w.mu.Unlock()
		return dto.SaveOutcome{}, err
	}

	previous := w.step
	w.transitionLocked(models.StepSaving)
	entries := w.grid.Entries()
	payload := dto.TimetablePayload{
		Configuration: w.cfg,
		TimeSlots:     w.grid.Slots(),
		Entries:       entryPayloads(entries),
		IsDraft:       !final,
	}
	if w.identity.IsDraft() {
		payload.ID = w.identity.ID
	}
	epoch := w.epoch
	callCtx, release := w.track(ctx)
	w.mu.Unlock()

	var resp *dto.SaveTimetableResponse
	if final {
		resp, err = w.repo.SaveFinal(callCtx, payload)
	} else {
		resp, err = w.repo.SaveDraft(callCtx, payload)
	}
	release()

	w.mu.Lock()
	defer w.mu.Unlock()
	w.endLocked(models.OperationSave, seq)
	if w.epoch != epoch {
		return dto.SaveOutcome{}, appErrors.ErrStaleResult
	}

	status := models.TimetableStatusDraft
	action := models.AuditActionDraftSaved
	if final {
		status = models.TimetableStatusFinal
		action = models.AuditActionFinalSaved
	}

	if err != nil {
		w.transitionLocked(previous)
		w.logger.Warn("timetable save failed", zap.Bool("final", final), zap.Error(err))
		w.recordLocked(ctx, models.AuditActionSaveFailed, payload.ID, len(entries), appErrors.FromError(err).Message)
		return dto.SaveOutcome{}, err
	}

	outcome := dto.SaveOutcome{TimetableID: payload.ID, Status: status}
	if resp != nil {
		if resp.ID != "" {
			outcome.TimetableID = resp.ID
		}
		if resp.Status != "" {
			outcome.Status = resp.Status
		}
		outcome.Message = resp.Message
	}
	if outcome.Message == "" {
		outcome.Message = fmt.Sprintf("timetable saved as %s", outcome.Status)
	}

	w.identity = models.TimetableIdentity{ID: outcome.TimetableID, Status: outcome.Status}
	w.transitionLocked(models.StepCompleted)
	w.logger.Info("timetable saved", zap.String("timetable_id", outcome.TimetableID), zap.String("status", string(outcome.Status)))
	w.recordLocked(ctx, action, outcome.TimetableID, len(entries), outcome.Message)
	return outcome, nil
}

// StartNew resets to CONFIGURATION with a cleared identity so the next save
// creates a new timetable. The configuration values are kept.
func (w *TimetableWorkflow) StartNew(ctx context.Context) (dto.WorkflowView, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if err := w.checkOpenLocked(); err != nil {
		return dto.WorkflowView{}, err
	}
	previousID := w.identity.ID
	entryCount := 0
	if w.grid != nil {
		entryCount = w.grid.Len()
	}
	w.resetLocked(true)
	w.recordLocked(ctx, models.AuditActionStartNew, previousID, entryCount, "started a new timetable")
	return w.viewLocked(), nil
}

// Close cancels in-flight calls; their late results are discarded.
func (w *TimetableWorkflow) Close() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return
	}
	w.closed = true
	w.epoch++
	w.inFlight = make(map[models.WorkflowOperation]uint64)
	w.cancelAll()
	w.updatedAt = w.now()
}

// Closed reports whether Close was called.
func (w *TimetableWorkflow) Closed() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.closed
}

// ---- internals; the *Locked helpers expect w.mu to be held ----

func (w *TimetableWorkflow) checkOpenLocked() error {
	if w.closed {
		return appErrors.Clone(appErrors.ErrInvalidTransition, "workflow is closed")
	}
	return nil
}

func (w *TimetableWorkflow) readOnlyLocked() bool {
	return w.grid != nil && w.grid.ReadOnly()
}

func (w *TimetableWorkflow) checkEditingStepLocked() error {
	switch w.step {
	case models.StepGridEditing, models.StepValidated:
		if w.grid == nil {
			return appErrors.Clone(appErrors.ErrInvalidTransition, "generate time slots first")
		}
		return nil
	case models.StepSaving:
		return appErrors.Clone(appErrors.ErrOperationInFlight, "timetable is being saved")
	case models.StepCompleted:
		return appErrors.Clone(appErrors.ErrInvalidTransition, "timetable already saved; start a new timetable")
	default:
		return appErrors.Clone(appErrors.ErrInvalidTransition, "generate time slots first")
	}
}

func (w *TimetableWorkflow) fillableKeyLocked(day models.Day, slot int) (models.SlotKey, error) {
	if err := w.checkEditingStepLocked(); err != nil {
		return models.SlotKey{}, err
	}
	key, err := w.grid.Key(day, slot)
	if err != nil {
		return models.SlotKey{}, err
	}
	if w.grid.ReadOnly() {
		return models.SlotKey{}, appErrors.Clone(appErrors.ErrFinalized, "final timetable is read-only; start a new timetable instead")
	}
	if !w.grid.Fillable(key) {
		timeSlot, _ := w.grid.Slot(key.Slot)
		return models.SlotKey{}, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("%s is a break and cannot hold lessons", timeSlot.Label))
	}
	return key, nil
}

func (w *TimetableWorkflow) canSaveFinalLocked() bool {
	if w.grid == nil || w.grid.Len() == 0 || w.grid.ReadOnly() {
		return false
	}
	if w.step != models.StepGridEditing && w.step != models.StepValidated {
		return false
	}
	if w.identity.IsDraft() {
		return true
	}
	return w.validation != nil && w.validation.IsValid && w.validationVersion == w.gridVersion
}

func (w *TimetableWorkflow) gridChangedLocked() {
	w.gridVersion++
	w.validation = nil
	if w.step == models.StepValidated {
		w.transitionLocked(models.StepGridEditing)
	}
	w.updatedAt = w.now()
}

// resetLocked drops slots, entries and results and cancels in-flight calls.
func (w *TimetableWorkflow) resetLocked(clearIdentity bool) {
	w.epoch++
	w.inFlight = make(map[models.WorkflowOperation]uint64)
	w.cancelAll()
	w.grid = nil
	w.gridVersion++
	w.validation = nil
	if clearIdentity {
		w.identity = models.TimetableIdentity{}
	}
	w.transitionLocked(models.StepConfiguration)
}

func (w *TimetableWorkflow) transitionLocked(to models.WorkflowStep) {
	from := w.step
	if !canTransition(from, to) {
		w.logger.Error("rejected workflow transition", zap.String("from", string(from)), zap.String("to", string(to)))
		return
	}
	w.step = to
	w.updatedAt = w.now()
	if from != to {
		w.metrics.RecordTransition(from, to)
		w.logger.Debug("workflow transition", zap.String("from", string(from)), zap.String("to", string(to)))
	}
}

func (w *TimetableWorkflow) beginLocked(op models.WorkflowOperation) (uint64, error) {
	if _, busy := w.inFlight[op]; busy {
		return 0, appErrors.Clone(appErrors.ErrOperationInFlight, fmt.Sprintf("%s already in progress", op))
	}
	w.opSeq++
	w.inFlight[op] = w.opSeq
	return w.opSeq, nil
}

func (w *TimetableWorkflow) endLocked(op models.WorkflowOperation, seq uint64) {
	if current, ok := w.inFlight[op]; ok && current == seq {
		delete(w.inFlight, op)
	}
}

// track derives a cancellable context carrying the session token. It must be
// called with w.mu held; the returned release func does not take w.mu.
func (w *TimetableWorkflow) track(ctx context.Context) (context.Context, func()) {
	callCtx, cancel := context.WithCancel(apiclient.WithToken(ctx, w.session.AccessToken))

	w.cancelMu.Lock()
	w.cancelID++
	id := w.cancelID
	w.cancels[id] = cancel
	w.cancelMu.Unlock()

	return callCtx, func() {
		w.cancelMu.Lock()
		delete(w.cancels, id)
		w.cancelMu.Unlock()
		cancel()
	}
}

func (w *TimetableWorkflow) cancelAll() {
	w.cancelMu.Lock()
	defer w.cancelMu.Unlock()
	for id, cancel := range w.cancels {
		cancel()
		delete(w.cancels, id)
	}
}

func (w *TimetableWorkflow) recordLocked(ctx context.Context, action, timetableID string, entryCount int, message string) {
	if w.audit == nil {
		return
	}
	event := models.WorkflowAuditEvent{
		WorkflowID:     w.id,
		UserID:         w.session.User.ID,
		Action:         action,
		ClassID:        w.cfg.ClassID,
		SectionID:      w.cfg.SectionID,
		AcademicYearID: w.cfg.AcademicYearID,
		Semester:       w.cfg.Semester,
		EntryCount:     entryCount,
		Message:        message,
		CreatedAt:      w.now(),
	}
	if timetableID != "" {
		id := timetableID
		event.TimetableID = &id
	}
	w.audit.Record(ctx, event)
}

func (w *TimetableWorkflow) placedLocked(key models.SlotKey) models.PlacedEntry {
	entry, _ := w.grid.Get(key)
	timeSlot, _ := w.grid.Slot(key.Slot)
	return models.PlacedEntry{Day: key.Day, Slot: key.Slot, TimeSlot: timeSlot.Label, Time: timeSlot.Time, Entry: entry}
}

func (w *TimetableWorkflow) viewLocked() dto.WorkflowView {
	view := dto.WorkflowView{
		ID:            w.id,
		Step:          w.step,
		Configuration: w.cfg,
		TimeSlots:     []models.TimeSlot{},
		Days:          models.WeekDays,
		Entries:       []models.PlacedEntry{},
		Identity:      w.identity,
		InFlight:      make([]models.WorkflowOperation, 0, len(w.inFlight)),
		UpdatedAt:     w.updatedAt,
	}
	for op := range w.inFlight {
		view.InFlight = append(view.InFlight, op)
	}
	sort.Slice(view.InFlight, func(i, j int) bool { return view.InFlight[i] < view.InFlight[j] })

	if w.grid != nil {
		view.TimeSlots = w.grid.Slots()
		view.Entries = w.grid.Entries()
		view.ReadOnly = w.grid.ReadOnly()
		_, validating := w.inFlight[models.OperationValidate]
		editable := w.step == models.StepGridEditing || w.step == models.StepValidated
		view.CanValidate = editable && w.grid.Len() > 0 && !validating
		view.CanSaveDraft = editable && w.grid.Len() > 0 && !view.ReadOnly
		view.CanSaveFinal = w.canSaveFinalLocked()
	}
	if w.validation != nil {
		result := *w.validation
		view.Validation = &result
	}
	return view
}

func applyPatch(cfg models.Configuration, patch dto.ConfigurationPatch) models.Configuration {
	if patch.ClassID != nil {
		classID := strings.TrimSpace(*patch.ClassID)
		if classID != cfg.ClassID && patch.SectionID == nil {
			// sections belong to a class
			cfg.SectionID = ""
		}
		cfg.ClassID = classID
	}
	if patch.SectionID != nil {
		cfg.SectionID = strings.TrimSpace(*patch.SectionID)
	}
	if patch.Semester != nil {
		cfg.Semester = strings.TrimSpace(*patch.Semester)
	}
	if patch.PeriodDuration != nil {
		cfg.PeriodDuration = *patch.PeriodDuration
	}
	if patch.SchoolStartTime != nil {
		cfg.SchoolStartTime = strings.TrimSpace(*patch.SchoolStartTime)
	}
	if patch.LunchStartTime != nil {
		cfg.LunchStartTime = strings.TrimSpace(*patch.LunchStartTime)
	}
	if patch.LunchDuration != nil {
		cfg.LunchDuration = *patch.LunchDuration
	}
	if patch.TotalPeriods != nil {
		cfg.TotalPeriods = *patch.TotalPeriods
	}
	return cfg
}

// mergeStoredSchedule keeps the identity fields of current and takes the
// schedule parameters the backend stored, when present.
func mergeStoredSchedule(current, stored models.Configuration) models.Configuration {
	if stored.PeriodDuration > 0 {
		current.PeriodDuration = stored.PeriodDuration
	}
	if stored.SchoolStartTime != "" {
		current.SchoolStartTime = stored.SchoolStartTime
	}
	if stored.LunchStartTime != "" {
		current.LunchStartTime = stored.LunchStartTime
	}
	if stored.LunchDuration > 0 {
		current.LunchDuration = stored.LunchDuration
	}
	if stored.TotalPeriods > 0 {
		current.TotalPeriods = stored.TotalPeriods
	}
	return current
}

func entryFromForm(form dto.EntryForm) models.Entry {
	return models.Entry{
		Subject: models.SubjectRef{ID: form.SubjectID, Name: form.SubjectName, Code: form.SubjectCode},
		Teacher: models.TeacherRef{ID: form.TeacherID, Name: form.TeacherName},
		Room:    form.Room,
		Type:    form.Type,
	}
}

func formFromEntry(entry models.Entry) dto.EntryForm {
	return dto.EntryForm{
		SubjectID:   entry.Subject.ID,
		SubjectName: entry.Subject.Name,
		SubjectCode: entry.Subject.Code,
		TeacherID:   entry.Teacher.ID,
		TeacherName: entry.Teacher.Name,
		Room:        entry.Room,
		Type:        entry.Type,
	}
}

// keyedMutex serializes work per grid cell while letting other cells proceed.
type keyedMutex struct {
	mu    sync.Mutex
	locks map[models.SlotKey]*cellLock
}

type cellLock struct {
	ch   chan struct{}
	refs int
}

func newKeyedMutex() *keyedMutex {
	return &keyedMutex{locks: make(map[models.SlotKey]*cellLock)}
}

// Lock waits for the cell, giving up when ctx is done.
func (k *keyedMutex) Lock(ctx context.Context, key models.SlotKey) (func(), error) {
	k.mu.Lock()
	l, ok := k.locks[key]
	if !ok {
		l = &cellLock{ch: make(chan struct{}, 1)}
		k.locks[key] = l
	}
	l.refs++
	k.mu.Unlock()

	select {
	case l.ch <- struct{}{}:
		return func() {
			<-l.ch
			k.release(key, l)
		}, nil
	case <-ctx.Done():
		k.release(key, l)
		return nil, ctx.Err()
	}
}

func (k *keyedMutex) release(key models.SlotKey, l *cellLock) {
	k.mu.Lock()
	defer k.mu.Unlock()
	l.refs--
	if l.refs == 0 {
		delete(k.locks, key)
	}
}
