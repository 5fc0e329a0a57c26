package validation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appErrors "github.com/noah-isme/sma-adp-console/pkg/errors"
)

type window struct {
	ClassID   string `json:"classId" validate:"required"`
	StartTime string `json:"startTime" validate:"required,clock"`
	EndTime   string `json:"endTime" validate:"required,clock,clockafter=StartTime"`
	Periods   int    `json:"periods" validate:"min=1,max=12"`
}

func TestStructAcceptsValidWindow(t *testing.T) {
	v := New()
	require.NoError(t, v.Struct(window{ClassID: "c1", StartTime: "07:00", EndTime: "14:30", Periods: 8}))
}

func TestStructReportsTranslatedMessages(t *testing.T) {
	v := New()
	err := v.Struct(window{StartTime: "7am", EndTime: "06:00", Periods: 0})
	require.Error(t, err)
	assert.True(t, appErrors.HasCode(err, appErrors.ErrValidation))

	messages := v.Messages(err)
	assert.Equal(t, "classId is required", messages["classId"])
	assert.Equal(t, "startTime must be a time formatted as HH:MM", messages["startTime"])
	assert.Contains(t, messages, "periods")
}

func TestClockAfter(t *testing.T) {
	v := New()
	err := v.Struct(window{ClassID: "c1", StartTime: "10:00", EndTime: "09:59", Periods: 1})
	require.Error(t, err)
	assert.Equal(t, "endTime must be later than StartTime", v.Messages(err)["endTime"])
}

func TestParseClock(t *testing.T) {
	_, ok := ParseClock("23:59")
	assert.True(t, ok)
	_, ok = ParseClock("24:00")
	assert.False(t, ok)
	_, ok = ParseClock("7:00")
	assert.False(t, ok)
}
