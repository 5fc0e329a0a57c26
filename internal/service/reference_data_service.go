package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/sma-adp-console/internal/models"
	appErrors "github.com/noah-isme/sma-adp-console/pkg/errors"
)

type referenceRepository interface {
	ListClasses(ctx context.Context) ([]models.Class, error)
	ListSections(ctx context.Context, classID string) ([]models.Section, error)
	ListTeachers(ctx context.Context) ([]models.Teacher, error)
	ListSubjects(ctx context.Context, classID string) ([]models.Subject, error)
}

const referenceCachePrefix = "ref:"

// ReferenceDataService serves the selection lists of the console. Lists are
// cached and a failed fetch degrades to an empty list with a notice.
type ReferenceDataService struct {
	repo   referenceRepository
	cache  *CacheService
	ttl    time.Duration
	logger *zap.Logger
}

// NewReferenceDataService constructs the service. cache may be nil.
func NewReferenceDataService(repo referenceRepository, cache *CacheService, ttl time.Duration, logger *zap.Logger) *ReferenceDataService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ReferenceDataService{repo: repo, cache: cache, ttl: ttl, logger: logger}
}

// Classes lists the classes.
func (s *ReferenceDataService) Classes(ctx context.Context) (models.ReferenceList[models.Class], error) {
	return readThrough(ctx, s, "classes", "classes", s.repo.ListClasses)
}

// Sections lists the sections of a class.
func (s *ReferenceDataService) Sections(ctx context.Context, classID string) (models.ReferenceList[models.Section], error) {
	classID = strings.TrimSpace(classID)
	if classID == "" {
		return models.ReferenceList[models.Section]{}, appErrors.Clone(appErrors.ErrValidation, "classId is required")
	}
	return readThrough(ctx, s, "sections:"+classID, "sections", func(ctx context.Context) ([]models.Section, error) {
		return s.repo.ListSections(ctx, classID)
	})
}

// Teachers lists the teachers.
func (s *ReferenceDataService) Teachers(ctx context.Context) (models.ReferenceList[models.Teacher], error) {
	return readThrough(ctx, s, "teachers", "teachers", s.repo.ListTeachers)
}

// Subjects lists the subjects taught to a class.
func (s *ReferenceDataService) Subjects(ctx context.Context, classID string) (models.ReferenceList[models.Subject], error) {
	classID = strings.TrimSpace(classID)
	if classID == "" {
		return models.ReferenceList[models.Subject]{}, appErrors.Clone(appErrors.ErrValidation, "classId is required")
	}
	return readThrough(ctx, s, "subjects:"+classID, "subjects", func(ctx context.Context) ([]models.Subject, error) {
		return s.repo.ListSubjects(ctx, classID)
	})
}

// Invalidate drops every cached reference list.
func (s *ReferenceDataService) Invalidate(ctx context.Context) error {
	if s.cache == nil {
		return nil
	}
	return s.cache.Invalidate(ctx, referenceCachePrefix+"*")
}

func readThrough[T any](ctx context.Context, s *ReferenceDataService, key, label string, fetch func(context.Context) ([]T, error)) (models.ReferenceList[T], error) {
	cacheKey := referenceCachePrefix + key
	if s.cache != nil {
		var cached []T
		hit, err := s.cache.Get(ctx, cacheKey, &cached)
		if err == nil && hit {
			return models.ReferenceList[T]{Items: cached, Cached: true}, nil
		}
	}

	items, err := fetch(ctx)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return models.ReferenceList[T]{}, ctxErr
		}
		if appErrors.HasCode(err, appErrors.ErrUnauthorized) || appErrors.HasCode(err, appErrors.ErrForbidden) {
			return models.ReferenceList[T]{}, err
		}
		s.logger.Warn("reference list unavailable", zap.String("list", label), zap.Error(err))
		return models.ReferenceList[T]{
			Items:  []T{},
			Notice: fmt.Sprintf("could not load %s: %s", label, appErrors.FromError(err).Message),
		}, nil
	}
	if items == nil {
		items = []T{}
	}

	if s.cache != nil {
		_ = s.cache.Set(ctx, cacheKey, items, s.ttl)
	}
	return models.ReferenceList[T]{Items: items}, nil
}
