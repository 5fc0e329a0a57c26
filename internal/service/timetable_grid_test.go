package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sma-adp-console/internal/models"
	appErrors "github.com/noah-isme/sma-adp-console/pkg/errors"
)

func sampleSlots() []models.TimeSlot {
	return []models.TimeSlot{
		{Label: "Period 1", Time: "09:00 - 09:45"},
		{Label: "Period 2", Time: "09:45 - 10:30"},
		{Label: "Lunch", Time: "10:30 - 11:00", IsBreak: true},
		{Label: "Period 3", Time: "11:00 - 11:45"},
	}
}

func mathEntry() models.Entry {
	return models.Entry{
		Subject: models.SubjectRef{ID: "math", Name: "Math", Code: "MTK"},
		Teacher: models.TeacherRef{ID: "T1", Name: "Budi"},
		Room:    "R101",
		Type:    models.ClassTypeLab,
	}
}

func TestTimetableGridUpsertOverwrites(t *testing.T) {
	grid := NewTimetableGrid(sampleSlots())
	key, err := grid.Key(models.Monday, 0)
	require.NoError(t, err)

	require.NoError(t, grid.Upsert(key, mathEntry()))
	require.NoError(t, grid.Upsert(key, models.Entry{
		Subject: models.SubjectRef{ID: "sci", Name: "Science"},
		Teacher: models.TeacherRef{ID: "T2"},
	}))

	assert.Equal(t, 1, grid.Len())
	got, ok := grid.Get(key)
	require.True(t, ok)
	assert.Equal(t, "sci", got.Subject.ID)
	assert.Equal(t, "T2", got.Teacher.ID)
	assert.Empty(t, got.Room, "no stale fields are merged")
	assert.Empty(t, got.Subject.Code)
	assert.Equal(t, models.ClassTypeRegular, got.Type)
}

func TestTimetableGridFillable(t *testing.T) {
	grid := NewTimetableGrid(sampleSlots())

	assert.True(t, grid.Fillable(models.SlotKey{Day: models.Saturday, Slot: 3}))
	assert.False(t, grid.Fillable(models.SlotKey{Day: models.Monday, Slot: 2}), "break row")
	assert.False(t, grid.Fillable(models.SlotKey{Day: models.Monday, Slot: 4}), "out of range")
	assert.False(t, grid.Fillable(models.SlotKey{Day: models.Day(7), Slot: 0}), "sunday")

	grid.SetReadOnly(true)
	assert.False(t, grid.Fillable(models.SlotKey{Day: models.Monday, Slot: 0}))
}

func TestTimetableGridRejectsInvalidWrites(t *testing.T) {
	grid := NewTimetableGrid(sampleSlots())

	err := grid.Upsert(models.SlotKey{Day: models.Monday, Slot: 2}, mathEntry())
	assert.True(t, appErrors.HasCode(err, appErrors.ErrValidation))

	_, err = grid.Key(models.Monday, -1)
	assert.Error(t, err)

	grid.SetReadOnly(true)
	err = grid.Upsert(models.SlotKey{Day: models.Monday, Slot: 0}, mathEntry())
	assert.True(t, appErrors.HasCode(err, appErrors.ErrFinalized))
	_, err = grid.Delete(models.SlotKey{Day: models.Monday, Slot: 0})
	assert.True(t, appErrors.HasCode(err, appErrors.ErrFinalized))
}

func TestTimetableGridEntriesOrdered(t *testing.T) {
	grid := NewTimetableGrid(sampleSlots())
	require.NoError(t, grid.Upsert(models.SlotKey{Day: models.Tuesday, Slot: 0}, mathEntry()))
	require.NoError(t, grid.Upsert(models.SlotKey{Day: models.Monday, Slot: 3}, mathEntry()))
	require.NoError(t, grid.Upsert(models.SlotKey{Day: models.Monday, Slot: 1}, mathEntry()))

	entries := grid.Entries()
	require.Len(t, entries, 3)
	assert.Equal(t, models.Monday, entries[0].Day)
	assert.Equal(t, "Period 2", entries[0].TimeSlot)
	assert.Equal(t, "Period 3", entries[1].TimeSlot)
	assert.Equal(t, models.Tuesday, entries[2].Day)
	assert.Equal(t, "09:00 - 09:45", entries[2].Time)
}

func TestTimetableGridDeleteAndLabelLookup(t *testing.T) {
	grid := NewTimetableGrid(sampleSlots())
	key, err := grid.KeyForLabel(models.Friday, "Period 3")
	require.NoError(t, err)
	assert.Equal(t, models.SlotKey{Day: models.Friday, Slot: 3}, key)

	_, err = grid.KeyForLabel(models.Friday, "Period 9")
	assert.Error(t, err)

	require.NoError(t, grid.Upsert(key, mathEntry()))
	existed, err := grid.Delete(key)
	require.NoError(t, err)
	assert.True(t, existed)
	existed, err = grid.Delete(key)
	require.NoError(t, err)
	assert.False(t, existed)
	assert.Zero(t, grid.Len())
}
