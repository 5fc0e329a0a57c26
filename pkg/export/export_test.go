package export

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleDataset() Dataset {
	return Dataset{
		Title:    "Timetable",
		Subtitle: "Class X - A",
		Headers:  []string{"Time", "Monday", "Tuesday"},
		Rows: []map[string]string{
			{"Time": "07:00 - 07:45", "Monday": "Mathematics\nBudi", "Tuesday": ""},
			{"Time": "09:15 - 09:30", "Monday": "Break"},
		},
		Emphasis: map[int]bool{1: true},
	}
}

func TestCSVRender(t *testing.T) {
	out, err := NewCSVExporter().Render(sampleDataset())
	require.NoError(t, err)

	assert.Equal(t, "Time,Monday,Tuesday\n07:00 - 07:45,\"Mathematics\nBudi\",\n09:15 - 09:30,Break,\n", string(out))
}

func TestCSVRequiresHeaders(t *testing.T) {
	_, err := NewCSVExporter().Render(Dataset{})
	assert.Error(t, err)
}

func TestPDFRenderLandscape(t *testing.T) {
	out, err := NewPDFExporter(Landscape).Render(sampleDataset())
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(out, []byte("%PDF")))
}

func TestColumnWidths(t *testing.T) {
	widths := columnWidths(100, 3)
	assert.InDelta(t, 14, widths[0], 0.001)
	assert.InDelta(t, 43, widths[1], 0.001)
	assert.Equal(t, []float64{100}, columnWidths(100, 1))
}
