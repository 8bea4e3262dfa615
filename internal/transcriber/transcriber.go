// Package transcriber runs the transcription work itself. The real model
// inference lives outside this system; the simulated implementation stands
// in for it with realistic latency and a tunable failure rate so the retry
// and compensation paths get exercised end to end.
package transcriber

import (
	"context"
	"fmt"
	"math/rand"
	"time"
)

// Transcriber converts an audio object into text.
type Transcriber interface {
	Transcribe(ctx context.Context, audioFileKey string, durationSeconds int) (string, error)
}

// Simulated is a stand-in executor. Processing time scales with the audio
// duration, capped so tests and local runs stay fast.
type Simulated struct {
	// FailureRate in [0,1); each attempt fails independently with this
	// probability.
	FailureRate float64
	// MaxProcessing caps the simulated work time.
	MaxProcessing time.Duration
}

func NewSimulated(failureRate float64) *Simulated {
	return &Simulated{FailureRate: failureRate, MaxProcessing: 5 * time.Second}
}

func (t *Simulated) Transcribe(ctx context.Context, audioFileKey string, durationSeconds int) (string, error) {
	work := time.Duration(durationSeconds) * time.Millisecond * 10
	if work > t.MaxProcessing {
		work = t.MaxProcessing
	}

	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case <-time.After(work):
	}

	if rand.Float64() < t.FailureRate {
		return "", fmt.Errorf("simulated transcription error for %s", audioFileKey)
	}
	return fmt.Sprintf("Transcript of %s (%ds of audio).", audioFileKey, durationSeconds), nil
}
