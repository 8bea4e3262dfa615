package model

import "errors"

// Sentinel errors shared across stores, services and handlers. Handlers map
// these to HTTP responses with errors.Is; everything else wraps them with
// fmt.Errorf("...: %w", err) so the chain stays inspectable.
var (
	// ErrQuotaExceeded is returned when a submission would exceed the
	// account's minute quota, or the quota is already exhausted.
	ErrQuotaExceeded = errors.New("quota exceeded")

	// ErrDuplicateJob is returned when a job already exists for the
	// submitted audio file key.
	ErrDuplicateJob = errors.New("job already exists")

	// ErrAccountNotFound is returned when no active subscription account
	// exists for the user. After CanAdmit this indicates a bug or race.
	ErrAccountNotFound = errors.New("subscription account not found")

	// ErrJobNotFound is returned when a job lookup misses.
	ErrJobNotFound = errors.New("transcription job not found")

	// ErrInvalidDuration is returned for non-positive audio durations.
	ErrInvalidDuration = errors.New("invalid audio duration")

	// ErrPlanNotFound is returned when a plan lookup misses.
	ErrPlanNotFound = errors.New("plan not found")

	// ErrPaymentNotFound is returned when a payment lookup misses.
	ErrPaymentNotFound = errors.New("payment not found")

	// ErrJobNotOwned is returned when a user requests a job that belongs
	// to someone else.
	ErrJobNotOwned = errors.New("job does not belong to user")
)
