package timeutil

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParsePeriod(t *testing.T) {
	tests := []struct {
		in   string
		want time.Duration
	}{
		{"30m", 30 * time.Minute},
		{"1h", time.Hour},
		{"24h", PeriodDay},
		{"1d", PeriodDay},
		{"7d", PeriodWeek},
		{" 2H ", 2 * time.Hour},
	}

	for _, tt := range tests {
		got, err := ParsePeriod(tt.in)
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}
}

func TestParsePeriod_Invalid(t *testing.T) {
	for _, in := range []string{"", "bogus", "-1h", "0m", "8d", "169h"} {
		_, err := ParsePeriod(in)
		assert.ErrorIs(t, err, ErrInvalidPeriod, in)
	}
}

func TestFormatPeriod(t *testing.T) {
	assert.Equal(t, "7d", FormatPeriod(PeriodWeek))
	assert.Equal(t, "36h", FormatPeriod(36*time.Hour))
	assert.Equal(t, "30m0s", FormatPeriod(30*time.Minute))
}

func TestInWindow(t *testing.T) {
	end := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	assert.True(t, InWindow(end.Add(-time.Hour), end, PeriodDay))
	assert.True(t, InWindow(end, end, PeriodDay))
	assert.False(t, InWindow(end.Add(-25*time.Hour), end, PeriodDay))
	assert.False(t, InWindow(end.Add(time.Minute), end, PeriodDay))
}
