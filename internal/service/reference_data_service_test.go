package service

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sma-adp-console/internal/models"
	appErrors "github.com/noah-isme/sma-adp-console/pkg/errors"
)

type memoryCacheRepo struct {
	mu    sync.Mutex
	items map[string][]byte
}

func newMemoryCacheRepo() *memoryCacheRepo {
	return &memoryCacheRepo{items: make(map[string][]byte)}
}

func (m *memoryCacheRepo) Get(ctx context.Context, key string, dest interface{}) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	raw, ok := m.items[key]
	if !ok {
		return appErrors.ErrCacheMiss
	}
	return json.Unmarshal(raw, dest)
}

func (m *memoryCacheRepo) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.items[key] = raw
	return nil
}

func (m *memoryCacheRepo) DeleteByPattern(ctx context.Context, pattern string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	prefix := strings.TrimSuffix(pattern, "*")
	for key := range m.items {
		if strings.HasPrefix(key, prefix) {
			delete(m.items, key)
		}
	}
	return nil
}

type referenceRepoStub struct {
	classCalls   int
	sectionCalls int
	classes      []models.Class
	sections     []models.Section
	teachers     []models.Teacher
	subjects     []models.Subject
	err          error
	lastClassID  string
}

func (s *referenceRepoStub) ListClasses(ctx context.Context) ([]models.Class, error) {
	s.classCalls++
	return s.classes, s.err
}

func (s *referenceRepoStub) ListSections(ctx context.Context, classID string) ([]models.Section, error) {
	s.sectionCalls++
	s.lastClassID = classID
	return s.sections, s.err
}

func (s *referenceRepoStub) ListTeachers(ctx context.Context) ([]models.Teacher, error) {
	return s.teachers, s.err
}

func (s *referenceRepoStub) ListSubjects(ctx context.Context, classID string) ([]models.Subject, error) {
	s.lastClassID = classID
	return s.subjects, s.err
}

func TestReferenceDataReadThroughCache(t *testing.T) {
	repo := &referenceRepoStub{classes: []models.Class{{ID: "class-10", Name: "X IPA"}}}
	metrics := NewMetricsService()
	cache := NewCacheService(newMemoryCacheRepo(), metrics, time.Minute, nil, true)
	svc := NewReferenceDataService(repo, cache, time.Minute, nil)

	first, err := svc.Classes(context.Background())
	require.NoError(t, err)
	assert.False(t, first.Cached)
	require.Len(t, first.Items, 1)

	second, err := svc.Classes(context.Background())
	require.NoError(t, err)
	assert.True(t, second.Cached)
	assert.Equal(t, first.Items, second.Items)
	assert.Equal(t, 1, repo.classCalls)
	assert.Equal(t, uint64(1), metrics.Snapshot().CacheHits)

	require.NoError(t, svc.Invalidate(context.Background()))
	_, err = svc.Classes(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, repo.classCalls)
}

func TestReferenceDataFailureDegradesToNotice(t *testing.T) {
	repo := &referenceRepoStub{err: upstreamDown()}
	cache := NewCacheService(newMemoryCacheRepo(), nil, time.Minute, nil, true)
	svc := NewReferenceDataService(repo, cache, time.Minute, nil)

	list, err := svc.Teachers(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, list.Items)
	assert.Empty(t, list.Items)
	assert.Contains(t, list.Notice, "could not load teachers")

	repo.err = nil
	repo.teachers = []models.Teacher{{ID: "T1", Name: "Budi"}}
	list, err = svc.Teachers(context.Background())
	require.NoError(t, err)
	assert.Len(t, list.Items, 1, "failures are not cached")
	assert.Empty(t, list.Notice)
}

func TestReferenceDataPropagatesAuthErrors(t *testing.T) {
	repo := &referenceRepoStub{err: appErrors.ErrUnauthorized}
	svc := NewReferenceDataService(repo, nil, time.Minute, nil)

	_, err := svc.Classes(context.Background())
	require.Error(t, err)
	assert.True(t, appErrors.HasCode(err, appErrors.ErrUnauthorized))
}

func TestReferenceDataScopedListsNeedClass(t *testing.T) {
	repo := &referenceRepoStub{sections: []models.Section{{ID: "s-a", ClassID: "class-10", Name: "A"}}}
	svc := NewReferenceDataService(repo, nil, time.Minute, nil)

	_, err := svc.Sections(context.Background(), " ")
	assert.True(t, appErrors.HasCode(err, appErrors.ErrValidation))
	assert.Zero(t, repo.sectionCalls)

	list, err := svc.Sections(context.Background(), "class-10")
	require.NoError(t, err)
	assert.Len(t, list.Items, 1)
	assert.Equal(t, "class-10", repo.lastClassID)

	subjects, err := svc.Subjects(context.Background(), "class-10")
	require.NoError(t, err)
	assert.NotNil(t, subjects.Items)
}
