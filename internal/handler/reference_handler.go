package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/sma-adp-console/internal/middleware"
	"github.com/noah-isme/sma-adp-console/internal/models"
	"github.com/noah-isme/sma-adp-console/internal/service"
	"github.com/noah-isme/sma-adp-console/pkg/response"
)

type referenceDataProvider interface {
	Classes(ctx context.Context) (models.ReferenceList[models.Class], error)
	Sections(ctx context.Context, classID string) (models.ReferenceList[models.Section], error)
	Teachers(ctx context.Context) (models.ReferenceList[models.Teacher], error)
	Subjects(ctx context.Context, classID string) (models.ReferenceList[models.Subject], error)
	Invalidate(ctx context.Context) error
}

// ReferenceHandler serves the selection lists used by the configuration and entry forms.
type ReferenceHandler struct {
	service referenceDataProvider
}

// NewReferenceHandler constructs the handler.
func NewReferenceHandler(svc *service.ReferenceDataService) *ReferenceHandler {
	return &ReferenceHandler{service: svc}
}

// Classes godoc
// @Summary List classes
// @Tags Reference
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /reference/classes [get]
func (h *ReferenceHandler) Classes(c *gin.Context) {
	list, err := h.service.Classes(upstreamContext(c))
	respondList(c, list.Cached, list.Notice, list, err)
}

// Sections godoc
// @Summary List sections of a class
// @Tags Reference
// @Produce json
// @Param classId path string true "Class ID"
// @Success 200 {object} response.Envelope
// @Router /reference/classes/{classId}/sections [get]
func (h *ReferenceHandler) Sections(c *gin.Context) {
	list, err := h.service.Sections(upstreamContext(c), c.Param("classId"))
	respondList(c, list.Cached, list.Notice, list, err)
}

// Teachers godoc
// @Summary List teachers
// @Tags Reference
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /reference/teachers [get]
func (h *ReferenceHandler) Teachers(c *gin.Context) {
	list, err := h.service.Teachers(upstreamContext(c))
	respondList(c, list.Cached, list.Notice, list, err)
}

// Subjects godoc
// @Summary List subjects of a class
// @Tags Reference
// @Produce json
// @Param classId path string true "Class ID"
// @Success 200 {object} response.Envelope
// @Router /reference/classes/{classId}/subjects [get]
func (h *ReferenceHandler) Subjects(c *gin.Context) {
	list, err := h.service.Subjects(upstreamContext(c), c.Param("classId"))
	respondList(c, list.Cached, list.Notice, list, err)
}

// InvalidateCache godoc
// @Summary Drop cached reference lists
// @Tags Reference
// @Security BearerAuth
// @Success 204
// @Router /reference/cache [delete]
func (h *ReferenceHandler) InvalidateCache(c *gin.Context) {
	if err := h.service.Invalidate(c.Request.Context()); err != nil {
		response.Error(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func respondList(c *gin.Context, cached bool, notice string, list interface{}, err error) {
	if err != nil {
		response.Error(c, err)
		return
	}
	meta := middleware.MetaFrom(c)
	meta.MarkCache(cached)
	meta.AddNotice(notice)
	response.JSON(c, http.StatusOK, list, meta.Map())
}
