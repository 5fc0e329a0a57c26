package repository

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sma-adp-console/internal/dto"
	"github.com/noah-isme/sma-adp-console/internal/models"
	"github.com/noah-isme/sma-adp-console/pkg/apiclient"
	appErrors "github.com/noah-isme/sma-adp-console/pkg/errors"
)

func newAPIClient(t *testing.T, mux *http.ServeMux) *apiclient.Client {
	t.Helper()
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	client, err := apiclient.New(apiclient.Config{BaseURL: srv.URL + "/api/v1"})
	require.NoError(t, err)
	return client
}

func writeData(w http.ResponseWriter, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]interface{}{"data": data})
}

func TestTimetableAPIRepositoryGenerateAcceptsBothShapes(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/v1/timetables/time-slots", func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		var cfg models.Configuration
		require.NoError(t, json.NewDecoder(r.Body).Decode(&cfg))
		slots := []models.TimeSlot{{Label: "Period 1", Time: "09:00 - 09:45"}}
		if cfg.ClassID == "wrapped" {
			writeData(w, dto.GenerateSlotsResponse{TimeSlots: slots})
			return
		}
		writeData(w, slots)
	})
	repo := NewTimetableAPIRepository(newAPIClient(t, mux))

	bare, err := repo.GenerateTimeSlots(context.Background(), models.Configuration{ClassID: "bare"})
	require.NoError(t, err)
	wrapped, err := repo.GenerateTimeSlots(context.Background(), models.Configuration{ClassID: "wrapped"})
	require.NoError(t, err)

	assert.Equal(t, bare, wrapped)
	assert.Equal(t, "Period 1", bare[0].Label)
}

func TestTimetableAPIRepositoryCheckConflict(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/v1/timetables/conflicts/check", func(w http.ResponseWriter, r *http.Request) {
		var req dto.TeacherConflictCheckRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "T1", req.TeacherID)
		assert.Equal(t, "tt-9", req.ExcludeTimetableID)
		writeData(w, dto.TeacherConflictCheckResponse{
			HasConflict: true,
			Conflicts:   []models.ConflictDescriptor{{TeacherName: "Budi"}, {TeacherName: "Budi"}},
		})
	})
	repo := NewTimetableAPIRepository(newAPIClient(t, mux))

	resp, err := repo.CheckTeacherConflict(context.Background(), dto.TeacherConflictCheckRequest{TeacherID: "T1", ExcludeTimetableID: "tt-9"})
	require.NoError(t, err)
	assert.True(t, resp.HasConflict)
	assert.Len(t, resp.Conflicts, 2)
	assert.Nil(t, resp.ConflictCount)
}

func TestTimetableAPIRepositoryFindExistingNotFound(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/v1/timetables/lookup", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "c1", r.URL.Query().Get("classId"))
		assert.Equal(t, "2", r.URL.Query().Get("semester"))
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"error":{"code":"NOT_FOUND","message":"timetable not found"}}`))
	})
	repo := NewTimetableAPIRepository(newAPIClient(t, mux))

	_, err := repo.FindExisting(context.Background(), "c1", "s1", "2024", "2")
	require.Error(t, err)
	assert.True(t, appErrors.HasCode(err, appErrors.ErrNotFound))
}

func TestTimetableAPIRepositorySaveSetsDraftFlag(t *testing.T) {
	var finalDraftFlag, draftDraftFlag *bool
	mux := http.NewServeMux()
	mux.HandleFunc("/api/v1/timetables", func(w http.ResponseWriter, r *http.Request) {
		var payload dto.TimetablePayload
		require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
		finalDraftFlag = &payload.IsDraft
		writeData(w, dto.SaveTimetableResponse{ID: "tt-final", Status: models.TimetableStatusFinal, Message: "created"})
	})
	mux.HandleFunc("/api/v1/timetables/drafts", func(w http.ResponseWriter, r *http.Request) {
		var payload dto.TimetablePayload
		require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
		draftDraftFlag = &payload.IsDraft
		writeData(w, dto.SaveTimetableResponse{ID: "tt-draft", Status: models.TimetableStatusDraft})
	})
	repo := NewTimetableAPIRepository(newAPIClient(t, mux))

	final, err := repo.SaveFinal(context.Background(), dto.TimetablePayload{IsDraft: true})
	require.NoError(t, err)
	draft, err := repo.SaveDraft(context.Background(), dto.TimetablePayload{})
	require.NoError(t, err)

	assert.Equal(t, "tt-final", final.ID)
	assert.Equal(t, "tt-draft", draft.ID)
	require.NotNil(t, finalDraftFlag)
	require.NotNil(t, draftDraftFlag)
	assert.False(t, *finalDraftFlag)
	assert.True(t, *draftDraftFlag)
}

func TestTimetableAPIRepositoryValidateBulk(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/v1/timetables/conflicts/validate", func(w http.ResponseWriter, r *http.Request) {
		var req dto.BulkValidationRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.Len(t, req.Entries, 1)
		assert.Equal(t, models.Monday, req.Entries[0].Day)
		writeData(w, dto.BulkValidationResponse{IsValid: true, ValidationMessage: "no conflicts"})
	})
	repo := NewTimetableAPIRepository(newAPIClient(t, mux))

	resp, err := repo.ValidateBulk(context.Background(), dto.BulkValidationRequest{
		Entries: []dto.TimetableEntryPayload{{Day: models.Monday, TimeSlot: "Period 1", SubjectID: "s", TeacherID: "t", Type: models.ClassTypeRegular}},
	})
	require.NoError(t, err)
	assert.True(t, resp.IsValid)
}
