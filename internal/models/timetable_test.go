package models

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDayJSON(t *testing.T) {
	payload, err := json.Marshal(SlotKey{Day: Wednesday, Slot: 2})
	require.NoError(t, err)
	assert.JSONEq(t, `{"day":"Wednesday","slot":2}`, string(payload))

	var key SlotKey
	require.NoError(t, json.Unmarshal([]byte(`{"day":6,"slot":0}`), &key))
	assert.Equal(t, Saturday, key.Day)

	require.Error(t, json.Unmarshal([]byte(`{"day":"Sunday","slot":0}`), &key))
}

func TestParseDay(t *testing.T) {
	for raw, want := range map[string]Day{"monday": Monday, "TUE": Tuesday, "3": Wednesday, " Friday ": Friday} {
		got, err := ParseDay(raw)
		require.NoError(t, err, raw)
		assert.Equal(t, want, got)
	}
	_, err := ParseDay("7")
	assert.Error(t, err)
	_, err = ParseDay("mo")
	assert.Error(t, err)
}

func TestTimeSlotBounds(t *testing.T) {
	start, end, err := TimeSlot{Label: "Period 1", Time: "09:00 - 09:45"}.Bounds()
	require.NoError(t, err)
	assert.Equal(t, "09:00", start)
	assert.Equal(t, "09:45", end)

	_, _, err = TimeSlot{Label: "Lunch", Time: "12:30"}.Bounds()
	assert.Error(t, err)
}

func TestConflictReportSummary(t *testing.T) {
	assert.Equal(t, "2 conflicts found", ConflictReport{HasConflict: true, Count: 2}.Summary())
	assert.Equal(t, "1 conflict found", ConflictReport{HasConflict: true, Count: 1}.Summary())
	assert.Equal(t, "conflict check unavailable", ConflictReport{Unchecked: true}.Summary())
	assert.Equal(t, "conflict found", ConflictReport{HasConflict: true}.Summary())
}

func TestTimetableIdentity(t *testing.T) {
	assert.True(t, TimetableIdentity{ID: "t1", Status: TimetableStatusDraft}.IsDraft())
	assert.False(t, TimetableIdentity{ID: "t1", Status: TimetableStatusFinal}.IsDraft())
	assert.False(t, TimetableIdentity{Status: TimetableStatusDraft}.IsDraft())
}
