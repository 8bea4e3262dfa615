package duration

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/voxscribe/api/internal/model"
)

func TestConvert(t *testing.T) {
	tests := []struct {
		name         string
		seconds      int
		minutes      int
		remainder    int
		usageMinutes float64
		text         string
	}{
		{
			name:         "two_and_a_half_minutes",
			seconds:      150,
			minutes:      2,
			remainder:    30,
			usageMinutes: 2.5,
			text:         "2m 30s",
		},
		{
			name:         "under_one_minute",
			seconds:      59,
			minutes:      0,
			remainder:    59,
			usageMinutes: 0.98,
			text:         "0m 59s",
		},
		{
			name:         "exact_minutes",
			seconds:      600,
			minutes:      10,
			remainder:    0,
			usageMinutes: 10,
			text:         "10m 0s",
		},
		{
			name:         "single_second",
			seconds:      1,
			minutes:      0,
			remainder:    1,
			usageMinutes: 0.02,
			text:         "0m 1s",
		},
		{
			name:         "fractional_rounding",
			seconds:      241,
			minutes:      4,
			remainder:    1,
			usageMinutes: 4.02,
			text:         "4m 1s",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			conv, err := Convert(tt.seconds)
			require.NoError(t, err)

			assert.Equal(t, tt.seconds, conv.RawSeconds)
			assert.Equal(t, tt.minutes, conv.Minutes)
			assert.Equal(t, tt.remainder, conv.Seconds)
			assert.InDelta(t, tt.usageMinutes, conv.UsageMinutes, 1e-9)
			assert.Equal(t, tt.text, conv.Text)
		})
	}
}

func TestConvert_InvalidDuration(t *testing.T) {
	for _, seconds := range []int{0, -1, -600} {
		_, err := Convert(seconds)
		assert.ErrorIs(t, err, model.ErrInvalidDuration)
	}
}
