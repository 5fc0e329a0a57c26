package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/sma-adp-console/internal/middleware"
	"github.com/noah-isme/sma-adp-console/internal/models"
	"github.com/noah-isme/sma-adp-console/internal/service"
	appErrors "github.com/noah-isme/sma-adp-console/pkg/errors"
	"github.com/noah-isme/sma-adp-console/pkg/response"
)

type workflowHistoryReader interface {
	List(ctx context.Context, filter models.WorkflowAuditFilter) ([]models.WorkflowAuditEvent, error)
}

// TimetableHistoryHandler lists recent timetable saves.
type TimetableHistoryHandler struct {
	audit workflowHistoryReader
}

// NewTimetableHistoryHandler constructs the handler.
func NewTimetableHistoryHandler(audit *service.WorkflowAuditService) *TimetableHistoryHandler {
	return &TimetableHistoryHandler{audit: audit}
}

// List godoc
// @Summary List recent timetable workflow events
// @Tags Timetable
// @Produce json
// @Param classId query string false "Class ID"
// @Param sectionId query string false "Section ID"
// @Param limit query int false "Max events (default 50, max 200)"
// @Success 200 {object} response.Envelope
// @Router /timetable/history [get]
func (h *TimetableHistoryHandler) List(c *gin.Context) {
	var filter models.WorkflowAuditFilter
	if err := c.ShouldBindQuery(&filter); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid history filter"))
		return
	}
	events, err := h.audit.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	meta := middleware.MetaFrom(c)
	meta.Set("count", len(events))
	response.JSON(c, http.StatusOK, events, meta.Map())
}
