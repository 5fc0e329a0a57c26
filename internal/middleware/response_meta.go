package middleware

import (
	"strings"
	"time"

	"github.com/gin-gonic/gin"
)

const (
	responseMetaKey = "response_meta"

	// WorkflowIDHeader carries the workflow a response belongs to.
	WorkflowIDHeader = "X-Workflow-ID"
)

// ResponseMeta collects the envelope meta of one request.
type ResponseMeta struct {
	started  time.Time
	cacheHit *bool
	notices  []string
	extra    map[string]interface{}
}

// WithResponseMeta attaches an empty ResponseMeta to the request.
func WithResponseMeta() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set(responseMetaKey, &ResponseMeta{started: time.Now()})
		c.Next()
	}
}

// EchoWorkflowID copies the :id route parameter into the workflow header
// before the handler writes the response.
func EchoWorkflowID() gin.HandlerFunc {
	return func(c *gin.Context) {
		if id := c.Param("id"); id != "" {
			c.Header(WorkflowIDHeader, id)
		}
		c.Next()
	}
}

// MetaFrom returns the request's ResponseMeta, creating one when the
// middleware is not installed.
func MetaFrom(c *gin.Context) *ResponseMeta {
	if value, ok := c.Get(responseMetaKey); ok {
		if meta, ok := value.(*ResponseMeta); ok {
			return meta
		}
	}
	meta := &ResponseMeta{}
	c.Set(responseMetaKey, meta)
	return meta
}

// MarkCache records whether the payload came from the reference cache.
func (m *ResponseMeta) MarkCache(hit bool) {
	m.cacheHit = &hit
}

// AddNotice appends a user-facing notice; blank notices are ignored.
func (m *ResponseMeta) AddNotice(notice string) {
	if notice = strings.TrimSpace(notice); notice != "" {
		m.notices = append(m.notices, notice)
	}
}

// Set stores a free-form value, e.g. a result count.
func (m *ResponseMeta) Set(key string, value interface{}) {
	if m.extra == nil {
		m.extra = make(map[string]interface{})
	}
	m.extra[key] = value
}

// Map renders the meta for the envelope, or nil when nothing was recorded.
// processing_time_ms is measured at render time.
func (m *ResponseMeta) Map() map[string]interface{} {
	if m == nil || (m.cacheHit == nil && len(m.notices) == 0 && len(m.extra) == 0) {
		return nil
	}
	out := make(map[string]interface{}, len(m.extra)+3)
	for k, v := range m.extra {
		out[k] = v
	}
	if m.cacheHit != nil {
		out["cache_hit"] = *m.cacheHit
	}
	if len(m.notices) > 0 {
		out["notice"] = strings.Join(m.notices, "; ")
	}
	if !m.started.IsZero() {
		out["processing_time_ms"] = time.Since(m.started).Milliseconds()
	}
	return out
}
