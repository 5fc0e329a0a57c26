package handler

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/sma-adp-console/internal/dto"
	"github.com/noah-isme/sma-adp-console/internal/middleware"
	"github.com/noah-isme/sma-adp-console/internal/models"
	"github.com/noah-isme/sma-adp-console/internal/service"
	appErrors "github.com/noah-isme/sma-adp-console/pkg/errors"
	"github.com/noah-isme/sma-adp-console/pkg/response"
)

type workflowRegistry interface {
	Start(ctx context.Context, session models.SessionContext, initial dto.ConfigurationPatch) (*service.TimetableWorkflow, error)
	Get(id, userID string) (*service.TimetableWorkflow, error)
	Close(id, userID string) error
	Complete(id string)
}

type timetableExporter interface {
	Export(view dto.WorkflowView, format string) (*service.ExportFile, error)
}

type loadExistingResponse struct {
	Result   dto.LoadExistingResult `json:"result"`
	Workflow dto.WorkflowView       `json:"workflow"`
}

type validationResponse struct {
	Result   models.ValidationResult `json:"result"`
	Workflow dto.WorkflowView        `json:"workflow"`
}

// TimetableWorkflowHandler exposes the timetable construction workflow.
type TimetableWorkflowHandler struct {
	sessions workflowRegistry
	exporter timetableExporter
}

// NewTimetableWorkflowHandler constructs the handler. exporter may be nil when exports are disabled.
func NewTimetableWorkflowHandler(sessions *service.WorkflowSessionService, exporter *service.TimetableExportService) *TimetableWorkflowHandler {
	h := &TimetableWorkflowHandler{sessions: sessions}
	if exporter != nil {
		h.exporter = exporter
	}
	return h
}

// Start godoc
// @Summary Start a timetable workflow
// @Description Opens a workflow in CONFIGURATION, optionally applying initial configuration values.
// @Tags Timetable
// @Accept json
// @Produce json
// @Param payload body dto.StartWorkflowRequest false "Initial configuration"
// @Success 201 {object} response.Envelope
// @Router /timetable/workflows [post]
func (h *TimetableWorkflowHandler) Start(c *gin.Context) {
	session, err := sessionFromContext(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	var req dto.StartWorkflowRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid workflow payload"))
		return
	}
	wf, err := h.sessions.Start(c.Request.Context(), session, req.Configuration)
	if err != nil {
		response.Error(c, err)
		return
	}
	c.Header(middleware.WorkflowIDHeader, wf.ID())
	response.Created(c, wf.Snapshot())
}

// Get godoc
// @Summary Get workflow state
// @Tags Timetable
// @Produce json
// @Param id path string true "Workflow ID"
// @Success 200 {object} response.Envelope
// @Router /timetable/workflows/{id} [get]
func (h *TimetableWorkflowHandler) Get(c *gin.Context) {
	wf, ok := h.workflow(c)
	if !ok {
		return
	}
	response.JSON(c, http.StatusOK, wf.Snapshot())
}

// Close godoc
// @Summary Close a workflow
// @Description Cancels in-flight calls and discards the workflow.
// @Tags Timetable
// @Param id path string true "Workflow ID"
// @Success 204
// @Router /timetable/workflows/{id} [delete]
func (h *TimetableWorkflowHandler) Close(c *gin.Context) {
	session, err := sessionFromContext(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	if err := h.sessions.Close(c.Param("id"), session.User.ID); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// UpdateConfiguration godoc
// @Summary Update workflow configuration
// @Description Changing any value after slots were generated resets the grid.
// @Tags Timetable
// @Accept json
// @Produce json
// @Param id path string true "Workflow ID"
// @Param payload body dto.ConfigurationPatch true "Configuration fields"
// @Success 200 {object} response.Envelope
// @Router /timetable/workflows/{id}/configuration [patch]
func (h *TimetableWorkflowHandler) UpdateConfiguration(c *gin.Context) {
	wf, ok := h.workflow(c)
	if !ok {
		return
	}
	var patch dto.ConfigurationPatch
	if err := c.ShouldBindJSON(&patch); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid configuration payload"))
		return
	}
	view, err := wf.UpdateConfiguration(patch)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, view)
}

// LoadExisting godoc
// @Summary Load the existing timetable for the configured class
// @Description Final timetables open read-only, drafts open editable.
// @Tags Timetable
// @Produce json
// @Param id path string true "Workflow ID"
// @Success 200 {object} response.Envelope
// @Router /timetable/workflows/{id}/existing [post]
func (h *TimetableWorkflowHandler) LoadExisting(c *gin.Context) {
	wf, ok := h.workflow(c)
	if !ok {
		return
	}
	result, err := wf.LoadExisting(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, loadExistingResponse{Result: result, Workflow: wf.Snapshot()})
}

// GenerateSlots godoc
// @Summary Generate time slots
// @Tags Timetable
// @Produce json
// @Param id path string true "Workflow ID"
// @Success 200 {object} response.Envelope
// @Router /timetable/workflows/{id}/time-slots [post]
func (h *TimetableWorkflowHandler) GenerateSlots(c *gin.Context) {
	wf, ok := h.workflow(c)
	if !ok {
		return
	}
	view, err := wf.GenerateSlots(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, view)
}

// OpenEntry godoc
// @Summary Open the entry editor for a cell
// @Tags Timetable
// @Produce json
// @Param id path string true "Workflow ID"
// @Param day path string true "Day name or number"
// @Param slot path int true "Time slot row index"
// @Success 200 {object} response.Envelope
// @Router /timetable/workflows/{id}/entries/{day}/{slot} [get]
func (h *TimetableWorkflowHandler) OpenEntry(c *gin.Context) {
	wf, ok := h.workflow(c)
	if !ok {
		return
	}
	day, slot, err := cellFromParams(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	form, err := wf.OpenEntryForm(day, slot)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, form)
}

// SubmitEntry godoc
// @Summary Commit an entry to a cell
// @Description Runs the teacher conflict check first. A conflict answers 409 with the report in data.
// @Tags Timetable
// @Accept json
// @Produce json
// @Param id path string true "Workflow ID"
// @Param day path string true "Day name or number"
// @Param slot path int true "Time slot row index"
// @Param payload body dto.EntryForm true "Entry"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /timetable/workflows/{id}/entries/{day}/{slot} [put]
func (h *TimetableWorkflowHandler) SubmitEntry(c *gin.Context) {
	wf, ok := h.workflow(c)
	if !ok {
		return
	}
	day, slot, err := cellFromParams(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	var form dto.EntryForm
	if err := c.ShouldBindJSON(&form); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid entry payload"))
		return
	}
	result, err := wf.SubmitEntry(c.Request.Context(), day, slot, form)
	if err != nil {
		response.Error(c, err)
		return
	}
	if !result.Committed {
		response.ErrorWithData(c, appErrors.Clone(appErrors.ErrConflict, result.Summary), result)
		return
	}
	response.JSON(c, http.StatusOK, result)
}

// DeleteEntry godoc
// @Summary Clear a cell
// @Tags Timetable
// @Produce json
// @Param id path string true "Workflow ID"
// @Param day path string true "Day name or number"
// @Param slot path int true "Time slot row index"
// @Success 200 {object} response.Envelope
// @Router /timetable/workflows/{id}/entries/{day}/{slot} [delete]
func (h *TimetableWorkflowHandler) DeleteEntry(c *gin.Context) {
	wf, ok := h.workflow(c)
	if !ok {
		return
	}
	day, slot, err := cellFromParams(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	view, err := wf.DeleteEntry(c.Request.Context(), day, slot)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, view)
}

// Validate godoc
// @Summary Validate the whole timetable
// @Description An invalid timetable still answers 200; inspect result.isValid.
// @Tags Timetable
// @Produce json
// @Param id path string true "Workflow ID"
// @Success 200 {object} response.Envelope
// @Router /timetable/workflows/{id}/validation [post]
func (h *TimetableWorkflowHandler) Validate(c *gin.Context) {
	wf, ok := h.workflow(c)
	if !ok {
		return
	}
	result, err := wf.Validate(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, validationResponse{Result: result, Workflow: wf.Snapshot()})
}

// SaveDraft godoc
// @Summary Save the timetable as a draft
// @Tags Timetable
// @Produce json
// @Param id path string true "Workflow ID"
// @Success 200 {object} response.Envelope
// @Router /timetable/workflows/{id}/draft [post]
func (h *TimetableWorkflowHandler) SaveDraft(c *gin.Context) {
	h.save(c, (*service.TimetableWorkflow).SaveDraft)
}

// SaveFinal godoc
// @Summary Save the timetable as final
// @Description Requires a valid validation of the current grid unless an existing draft is being finalized.
// @Tags Timetable
// @Produce json
// @Param id path string true "Workflow ID"
// @Success 200 {object} response.Envelope
// @Failure 412 {object} response.Envelope
// @Router /timetable/workflows/{id}/final [post]
func (h *TimetableWorkflowHandler) SaveFinal(c *gin.Context) {
	h.save(c, (*service.TimetableWorkflow).SaveFinal)
}

func (h *TimetableWorkflowHandler) save(c *gin.Context, saveFn func(*service.TimetableWorkflow, context.Context) (dto.SaveOutcome, error)) {
	wf, ok := h.workflow(c)
	if !ok {
		return
	}
	outcome, err := saveFn(wf, c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	h.sessions.Complete(wf.ID())
	response.JSON(c, http.StatusOK, outcome)
}

// Reset godoc
// @Summary Create a new timetable
// @Description Returns to configuration with a cleared identity; the next save creates a new timetable.
// @Tags Timetable
// @Produce json
// @Param id path string true "Workflow ID"
// @Success 200 {object} response.Envelope
// @Router /timetable/workflows/{id}/reset [post]
func (h *TimetableWorkflowHandler) Reset(c *gin.Context) {
	wf, ok := h.workflow(c)
	if !ok {
		return
	}
	view, err := wf.StartNew(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, view)
}

// Export godoc
// @Summary Export the current grid
// @Tags Timetable
// @Produce text/csv
// @Produce application/pdf
// @Param id path string true "Workflow ID"
// @Param format query string false "csv or pdf" default(pdf)
// @Success 200 {file} binary
// @Router /timetable/workflows/{id}/export [get]
func (h *TimetableWorkflowHandler) Export(c *gin.Context) {
	if h.exporter == nil {
		response.Error(c, appErrors.Clone(appErrors.ErrNotFound, "exports are disabled"))
		return
	}
	wf, ok := h.workflow(c)
	if !ok {
		return
	}
	file, err := h.exporter.Export(wf.Snapshot(), c.Query("format"))
	if err != nil {
		response.Error(c, err)
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", file.Filename))
	c.Data(http.StatusOK, file.ContentType, file.Content)
}

func (h *TimetableWorkflowHandler) workflow(c *gin.Context) (*service.TimetableWorkflow, bool) {
	session, err := sessionFromContext(c)
	if err != nil {
		response.Error(c, err)
		return nil, false
	}
	wf, err := h.sessions.Get(c.Param("id"), session.User.ID)
	if err != nil {
		response.Error(c, err)
		return nil, false
	}
	wf.UpdateAccessToken(session.AccessToken)
	c.Header(middleware.WorkflowIDHeader, wf.ID())
	return wf, true
}
