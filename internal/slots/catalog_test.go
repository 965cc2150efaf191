package slots

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultCatalog(t *testing.T) {
	c := Default()

	times := c.Times()
	require.Len(t, times, 14)
	assert.Equal(t, "07:00 AM", times[0])
	assert.Equal(t, "08:00 PM", times[len(times)-1])

	assert.True(t, c.IsTime("09:00 AM"))
	assert.False(t, c.IsTime("09:30 AM"))
	assert.False(t, c.IsTime("9:00"))

	assert.True(t, c.IsHoliday("2025-12-25"))
	assert.True(t, c.IsHoliday("2025-01-01"))
	assert.False(t, c.IsHoliday("2025-12-01"))
	assert.Equal(t, []string{"2025-01-01", "2025-12-25"}, c.Holidays())
}

func TestCatalogTimesAreCopies(t *testing.T) {
	c := Default()
	times := c.Times()
	times[0] = "changed"

	assert.Equal(t, "07:00 AM", c.Times()[0])
}

func TestNewCatalogOrdersTimes(t *testing.T) {
	c, err := NewCatalog([]string{"01:00 PM", "09:00 AM", "12:00 PM"}, nil)
	require.NoError(t, err)

	assert.Equal(t, []string{"09:00 AM", "12:00 PM", "01:00 PM"}, c.Times())

	offset, ok := c.Offset("01:00 PM")
	require.True(t, ok)
	assert.Equal(t, 13*time.Hour, offset)
}

func TestNewCatalogRejectsBadInput(t *testing.T) {
	tests := []struct {
		name     string
		times    []string
		holidays []string
	}{
		{name: "no times", times: nil},
		{name: "bad time", times: []string{"25:00"}},
		{name: "duplicate time", times: []string{"09:00 AM", "09:00 AM"}},
		{name: "bad holiday", times: []string{"09:00 AM"}, holidays: []string{"25/12/2025"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewCatalog(tt.times, tt.holidays)
			assert.Error(t, err)
		})
	}
}
