// Package duration converts raw audio durations into the representations
// used for display and billing. The billing unit is fractional minutes
// rounded to two decimals, not whole minutes rounded up: a 150s file costs
// 2.5 minutes. The conversion runs once at submission time and the result
// is immutable for the job's lifetime (it backs both the pre-deduction and
// any later compensation).
package duration

import (
	"fmt"
	"math"

	"github.com/voxscribe/api/internal/model"
)

// Conversion holds every representation of one raw duration.
type Conversion struct {
	// RawSeconds is the input duration in seconds.
	RawSeconds int
	// Minutes is the full-minute portion (floor of seconds / 60).
	Minutes int
	// Seconds is the remainder after full minutes are taken out.
	Seconds int
	// UsageMinutes is the fractional minute value billed against the
	// subscription quota, rounded to two decimals.
	UsageMinutes float64
	// Text is a human-friendly form, e.g. "2m 30s".
	Text string
}

// Convert translates a duration in seconds. Durations must be positive;
// zero or negative input returns model.ErrInvalidDuration.
func Convert(durationSeconds int) (Conversion, error) {
	if durationSeconds <= 0 {
		return Conversion{}, fmt.Errorf("%w: %d seconds", model.ErrInvalidDuration, durationSeconds)
	}

	minutes := durationSeconds / 60
	seconds := durationSeconds % 60
	usageMinutes := math.Round(float64(durationSeconds)/60*100) / 100

	return Conversion{
		RawSeconds:   durationSeconds,
		Minutes:      minutes,
		Seconds:      seconds,
		UsageMinutes: usageMinutes,
		Text:         fmt.Sprintf("%dm %ds", minutes, seconds),
	}, nil
}
