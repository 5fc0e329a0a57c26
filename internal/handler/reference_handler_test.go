package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sma-adp-console/internal/middleware"
	"github.com/noah-isme/sma-adp-console/internal/models"
	"github.com/noah-isme/sma-adp-console/pkg/apiclient"
	appErrors "github.com/noah-isme/sma-adp-console/pkg/errors"
)

type referenceProviderStub struct {
	classes       models.ReferenceList[models.Class]
	classesErr    error
	subjectsFor   string
	tokens        []string
	invalidated   int
	invalidateErr error
}

func (s *referenceProviderStub) Classes(ctx context.Context) (models.ReferenceList[models.Class], error) {
	s.tokens = append(s.tokens, apiclient.TokenFromContext(ctx))
	return s.classes, s.classesErr
}

func (s *referenceProviderStub) Sections(ctx context.Context, classID string) (models.ReferenceList[models.Section], error) {
	return models.ReferenceList[models.Section]{Items: []models.Section{{ID: "sec-a", Name: "A", ClassID: classID}}}, nil
}

func (s *referenceProviderStub) Teachers(ctx context.Context) (models.ReferenceList[models.Teacher], error) {
	return models.ReferenceList[models.Teacher]{
		Items:  []models.Teacher{},
		Notice: "could not load teachers: school backend unavailable",
	}, nil
}

func (s *referenceProviderStub) Subjects(ctx context.Context, classID string) (models.ReferenceList[models.Subject], error) {
	s.subjectsFor = classID
	return models.ReferenceList[models.Subject]{Items: []models.Subject{{ID: "math", Name: "Math"}}, Cached: true}, nil
}

func (s *referenceProviderStub) Invalidate(ctx context.Context) error {
	s.invalidated++
	return s.invalidateErr
}

func newReferenceRouter(stub *referenceProviderStub) *gin.Engine {
	gin.SetMode(gin.TestMode)
	h := &ReferenceHandler{service: stub}
	router := gin.New()
	router.Use(middleware.WithResponseMeta(), testAuth())
	router.GET("/reference/classes", h.Classes)
	router.GET("/reference/classes/:classId/sections", h.Sections)
	router.GET("/reference/classes/:classId/subjects", h.Subjects)
	router.GET("/reference/teachers", h.Teachers)
	router.DELETE("/reference/cache", h.InvalidateCache)
	return router
}

func getReference(t *testing.T, router *gin.Engine, path string) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	req.Header.Set("X-Test-User", "user-1")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	var env envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
	return w, env
}

func TestReferenceHandlerForwardsTokenAndMarksCacheMiss(t *testing.T) {
	stub := &referenceProviderStub{classes: models.ReferenceList[models.Class]{Items: []models.Class{{ID: "class-10", Name: "X IPA"}}}}
	router := newReferenceRouter(stub)

	w, env := getReference(t, router, "/reference/classes")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []string{"token-user-1"}, stub.tokens)
	assert.Equal(t, false, env.Meta["cache_hit"])
	assert.NotContains(t, env.Meta, "notice")

	var list models.ReferenceList[models.Class]
	require.NoError(t, json.Unmarshal(env.Data, &list))
	require.Len(t, list.Items, 1)
	assert.Equal(t, "X IPA", list.Items[0].Name)
}

func TestReferenceHandlerSurfacesNoticeAndCacheHit(t *testing.T) {
	stub := &referenceProviderStub{}
	router := newReferenceRouter(stub)

	w, env := getReference(t, router, "/reference/teachers")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "could not load teachers: school backend unavailable", env.Meta["notice"])

	w, env = getReference(t, router, "/reference/classes/class-10/subjects")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "class-10", stub.subjectsFor)
	assert.Equal(t, true, env.Meta["cache_hit"])
}

func TestReferenceHandlerPropagatesAuthErrors(t *testing.T) {
	stub := &referenceProviderStub{classesErr: appErrors.ErrUnauthorized}
	router := newReferenceRouter(stub)

	w, env := getReference(t, router, "/reference/classes")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	require.NotNil(t, env.Error)
	assert.Equal(t, appErrors.ErrUnauthorized.Code, env.Error.Code)
}

func TestReferenceHandlerInvalidateCache(t *testing.T) {
	stub := &referenceProviderStub{}
	router := newReferenceRouter(stub)

	req := httptest.NewRequest(http.MethodDelete, "/reference/cache", nil)
	req.Header.Set("X-Test-User", "user-1")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, 1, stub.invalidated)

	stub.invalidateErr = appErrors.Clone(appErrors.ErrInternal, "redis unavailable")
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, 2, stub.invalidated)
}
