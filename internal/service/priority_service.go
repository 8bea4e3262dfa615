package service

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// submissionCounterKey is the shared Redis key backing the global
// submission index. INCR is atomic across all API instances, so no two
// submissions ever observe the same value.
const submissionCounterKey = "transcription:submission_counter"

type counterClient interface {
	Incr(ctx context.Context, key string) *redis.IntCmd
}

// PriorityService assigns submission indices and scheduling priorities.
// Lower priority values are served sooner.
type PriorityService struct {
	redis    counterClient
	paidBase int64
	freeBase int64
}

func NewPriorityService(redisClient *redis.Client, paidBase, freeBase int64) *PriorityService {
	return &PriorityService{redis: redisClient, paidBase: paidBase, freeBase: freeBase}
}

// NextSubmissionIndex increments the global counter and returns the new
// value, a strict total order over submissions.
func (s *PriorityService) NextSubmissionIndex(ctx context.Context) (int64, error) {
	index, err := s.redis.Incr(ctx, submissionCounterKey).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to increment submission counter: %w", err)
	}
	return index, nil
}

// ComputePriority returns base + durationMinutes + submissionIndex. The
// base gap keeps paid submissions ahead of free ones submitted around the
// same time until the duration+index offset closes it; within a tier,
// earlier and shorter submissions win.
func (s *PriorityService) ComputePriority(isPaid bool, durationMinutes int, submissionIndex int64) int64 {
	base := s.freeBase
	if isPaid {
		base = s.paidBase
	}
	return base + int64(durationMinutes) + submissionIndex
}
