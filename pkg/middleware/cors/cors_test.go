package cors

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"

	"github.com/noah-isme/sma-adp-console/pkg/config"
)

func newRouter(origins []string) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(New(config.CORSConfig{AllowedOrigins: origins, MaxAge: 10 * time.Minute}))
	r.GET("/ping", func(c *gin.Context) { c.Status(http.StatusOK) })
	return r
}

func send(r *gin.Engine, method, origin string, preflight bool) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(method, "/ping", nil)
	if origin != "" {
		req.Header.Set("Origin", origin)
	}
	if preflight {
		req.Header.Set("Access-Control-Request-Method", http.MethodPut)
	}
	r.ServeHTTP(w, req)
	return w
}

func TestCORSAllowedOrigin(t *testing.T) {
	r := newRouter([]string{"https://console.school.id/"})

	w := send(r, http.MethodGet, "https://console.school.id", false)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "https://console.school.id", w.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "true", w.Header().Get("Access-Control-Allow-Credentials"))
	assert.Contains(t, w.Header().Get("Access-Control-Expose-Headers"), "Content-Disposition")
	assert.Empty(t, w.Header().Get("Access-Control-Allow-Methods"), "method list only on preflight")
}

func TestCORSWildcardSubdomain(t *testing.T) {
	r := newRouter([]string{"https://*.school.id"})

	assert.Equal(t, "https://tu.school.id", send(r, http.MethodGet, "https://tu.school.id", false).Header().Get("Access-Control-Allow-Origin"))
	assert.Empty(t, send(r, http.MethodGet, "http://tu.school.id", false).Header().Get("Access-Control-Allow-Origin"))
	assert.Empty(t, send(r, http.MethodGet, "https://school.id", false).Header().Get("Access-Control-Allow-Origin"))
	assert.Empty(t, send(r, http.MethodGet, "https://evilschool.id", false).Header().Get("Access-Control-Allow-Origin"))
}

func TestCORSRejectsUnknownOrigin(t *testing.T) {
	r := newRouter([]string{"https://console.school.id"})

	w := send(r, http.MethodGet, "https://evil.example", false)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
	assert.Empty(t, w.Header().Get("Access-Control-Allow-Credentials"))

	w = send(r, http.MethodOptions, "https://evil.example", true)
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestCORSPreflight(t *testing.T) {
	r := newRouter(nil)

	w := send(r, http.MethodOptions, "http://localhost:5173", true)

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "http://localhost:5173", w.Header().Get("Access-Control-Allow-Origin"))
	assert.Contains(t, w.Header().Get("Access-Control-Allow-Headers"), "X-Workflow-ID")
	assert.Contains(t, w.Header().Get("Access-Control-Allow-Methods"), http.MethodPatch)
	assert.Equal(t, "600", w.Header().Get("Access-Control-Max-Age"))
}
