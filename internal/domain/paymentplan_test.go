package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestFrequencyAdvance(t *testing.T) {
	start := time.Date(2025, 1, 15, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		frequency Frequency
		expected  time.Time
	}{
		{FrequencyWeekly, time.Date(2025, 1, 22, 0, 0, 0, 0, time.UTC)},
		{FrequencyBiweekly, time.Date(2025, 1, 29, 0, 0, 0, 0, time.UTC)},
		{FrequencyMonthly, time.Date(2025, 2, 15, 0, 0, 0, 0, time.UTC)},
		{FrequencyQuarterly, time.Date(2025, 4, 15, 0, 0, 0, 0, time.UTC)},
		{FrequencySemiannual, time.Date(2025, 7, 15, 0, 0, 0, 0, time.UTC)},
		{FrequencyAnnual, time.Date(2026, 1, 15, 0, 0, 0, 0, time.UTC)},
		{Frequency("UNKNOWN"), time.Date(2025, 2, 15, 0, 0, 0, 0, time.UTC)},
	}

	for _, tt := range tests {
		t.Run(string(tt.frequency), func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.frequency.Advance(start))
		})
	}
}

func TestFrequencyAdvance_MonthEndNormalization(t *testing.T) {
	// Advancing Jan 31 by one month lands in March because February has
	// no 31st; the Go calendar normalizes the overflow.
	start := time.Date(2025, 1, 31, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, time.Date(2025, 3, 3, 0, 0, 0, 0, time.UTC), FrequencyMonthly.Advance(start))
}
