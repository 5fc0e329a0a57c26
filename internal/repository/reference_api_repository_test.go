package repository

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sma-adp-console/internal/models"
)

func TestReferenceAPIRepositoryLists(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/v1/classes", func(w http.ResponseWriter, r *http.Request) {
		writeData(w, []models.Class{{ID: "c1", Name: "X IPA 1"}})
	})
	mux.HandleFunc("/api/v1/classes/c1/sections", func(w http.ResponseWriter, r *http.Request) {
		writeData(w, []models.Section{{ID: "s1", ClassID: "c1", Name: "A"}})
	})
	mux.HandleFunc("/api/v1/classes/c1/subjects", func(w http.ResponseWriter, r *http.Request) {
		writeData(w, []models.Subject{{ID: "math", Name: "Math", Code: "MTK"}})
	})
	mux.HandleFunc("/api/v1/teachers", func(w http.ResponseWriter, r *http.Request) {
		writeData(w, []models.Teacher{{ID: "t1", Name: "Budi"}})
	})
	repo := NewReferenceAPIRepository(newAPIClient(t, mux))
	ctx := context.Background()

	classes, err := repo.ListClasses(ctx)
	require.NoError(t, err)
	sections, err := repo.ListSections(ctx, "c1")
	require.NoError(t, err)
	subjects, err := repo.ListSubjects(ctx, "c1")
	require.NoError(t, err)
	teachers, err := repo.ListTeachers(ctx)
	require.NoError(t, err)

	assert.Equal(t, "X IPA 1", classes[0].Name)
	assert.Equal(t, "A", sections[0].Name)
	assert.Equal(t, "MTK", subjects[0].Code)
	assert.Equal(t, "Budi", teachers[0].Name)
}
