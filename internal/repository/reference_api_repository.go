package repository

import (
	"context"
	"net/url"

	"github.com/noah-isme/sma-adp-console/internal/models"
	"github.com/noah-isme/sma-adp-console/pkg/apiclient"
)

const (
	OpListClasses  = "reference_classes"
	OpListSections = "reference_sections"
	OpListTeachers = "reference_teachers"
	OpListSubjects = "reference_subjects"
)

// ReferenceAPIRepository reads reference lists from the school backend.
type ReferenceAPIRepository struct {
	client *apiclient.Client
}

// NewReferenceAPIRepository constructs the repository.
func NewReferenceAPIRepository(client *apiclient.Client) *ReferenceAPIRepository {
	return &ReferenceAPIRepository{client: client}
}

// ListClasses returns all classes.
func (r *ReferenceAPIRepository) ListClasses(ctx context.Context) ([]models.Class, error) {
	var classes []models.Class
	if err := r.client.Get(ctx, OpListClasses, "classes", nil, &classes); err != nil {
		return nil, err
	}
	return classes, nil
}

// ListSections returns the sections of a class.
func (r *ReferenceAPIRepository) ListSections(ctx context.Context, classID string) ([]models.Section, error) {
	var sections []models.Section
	if err := r.client.Get(ctx, OpListSections, "classes/"+url.PathEscape(classID)+"/sections", nil, &sections); err != nil {
		return nil, err
	}
	return sections, nil
}

// ListTeachers returns all teachers.
func (r *ReferenceAPIRepository) ListTeachers(ctx context.Context) ([]models.Teacher, error) {
	var teachers []models.Teacher
	if err := r.client.Get(ctx, OpListTeachers, "teachers", nil, &teachers); err != nil {
		return nil, err
	}
	return teachers, nil
}

// ListSubjects returns the subjects taught to a class.
func (r *ReferenceAPIRepository) ListSubjects(ctx context.Context, classID string) ([]models.Subject, error) {
	var subjects []models.Subject
	if err := r.client.Get(ctx, OpListSubjects, "classes/"+url.PathEscape(classID)+"/subjects", nil, &subjects); err != nil {
		return nil, err
	}
	return subjects, nil
}
