package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sma-adp-console/internal/models"
	appErrors "github.com/noah-isme/sma-adp-console/pkg/errors"
)

type tokenValidatorStub struct {
	claims *models.JWTClaims
	err    error
	seen   string
}

func (s *tokenValidatorStub) ValidateToken(token string) (*models.JWTClaims, error) {
	s.seen = token
	return s.claims, s.err
}

func newProtectedRouter(validator TokenValidator, roles ...models.UserRole) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(JWT(validator), RequireRoles(roles...))
	router.GET("/protected", func(c *gin.Context) {
		claims := c.MustGet(ContextUserKey).(*models.JWTClaims)
		c.String(http.StatusOK, claims.UserID+"|"+c.GetString(ContextTokenKey))
	})
	return router
}

func TestJWTStoresClaimsAndToken(t *testing.T) {
	validator := &tokenValidatorStub{claims: &models.JWTClaims{UserID: "admin-1", Role: models.RoleAdmin}}
	router := newProtectedRouter(validator, models.RoleAdmin, models.RoleSuperAdmin)

	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.Header.Set("Authorization", "Bearer abc.def")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "admin-1|abc.def", w.Body.String())
	assert.Equal(t, "abc.def", validator.seen)
}

func TestJWTRejectsMissingOrMalformedHeader(t *testing.T) {
	router := newProtectedRouter(&tokenValidatorStub{}, models.RoleAdmin)

	for _, header := range []string{"", "abc.def", "Basic abc", "Bearer   "} {
		req := httptest.NewRequest(http.MethodGet, "/protected", nil)
		if header != "" {
			req.Header.Set("Authorization", header)
		}
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		assert.Equal(t, http.StatusUnauthorized, w.Code, "header %q", header)
	}
}

func TestJWTPropagatesValidatorError(t *testing.T) {
	router := newProtectedRouter(&tokenValidatorStub{err: appErrors.Clone(appErrors.ErrUnauthorized, "token expired")}, models.RoleAdmin)

	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.Header.Set("Authorization", "Bearer expired")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Body.String(), "token expired")
}

func TestRequireRolesRejectsTeachers(t *testing.T) {
	validator := &tokenValidatorStub{claims: &models.JWTClaims{UserID: "teacher-1", Role: models.RoleTeacher}}
	router := newProtectedRouter(validator, models.RoleAdmin, models.RoleSuperAdmin)

	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.Header.Set("Authorization", "Bearer t")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Contains(t, w.Body.String(), "administrator role")
}

func TestRequireRolesWithoutClaims(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.GET("/protected", RequireRoles(models.RoleAdmin), func(c *gin.Context) { c.Status(http.StatusOK) })

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/protected", nil))
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}
