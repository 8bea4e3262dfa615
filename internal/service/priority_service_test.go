package service

import (
	"context"
	"errors"
	"testing"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeCounter struct {
	value int64
	err   error
}

func (f *fakeCounter) Incr(ctx context.Context, key string) *redis.IntCmd {
	if f.err != nil {
		return redis.NewIntResult(0, f.err)
	}
	f.value++
	return redis.NewIntResult(f.value, nil)
}

func TestComputePriority(t *testing.T) {
	svc := &PriorityService{paidBase: 100, freeBase: 300}

	tests := []struct {
		name            string
		isPaid          bool
		durationMinutes int
		submissionIndex int64
		want            int64
	}{
		{"paid short file", true, 2, 1, 103},
		{"free short file", false, 2, 1, 303},
		{"paid long file", true, 45, 10, 155},
		{"free long file", false, 45, 10, 355},
		{"zero minute file", true, 0, 7, 107},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := svc.ComputePriority(tt.isPaid, tt.durationMinutes, tt.submissionIndex)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestComputePriorityPaidBeatsFreeAtSameOffset(t *testing.T) {
	svc := &PriorityService{paidBase: 100, freeBase: 300}

	paid := svc.ComputePriority(true, 10, 50)
	free := svc.ComputePriority(false, 10, 50)
	assert.Less(t, paid, free)
}

func TestComputePriorityEarlierWinsWithinTier(t *testing.T) {
	svc := &PriorityService{paidBase: 100, freeBase: 300}

	first := svc.ComputePriority(false, 5, 1)
	second := svc.ComputePriority(false, 5, 2)
	assert.Less(t, first, second)
}

func TestNextSubmissionIndexIncrements(t *testing.T) {
	counter := &fakeCounter{}
	svc := &PriorityService{redis: counter, paidBase: 100, freeBase: 300}

	first, err := svc.NextSubmissionIndex(context.Background())
	require.NoError(t, err)
	second, err := svc.NextSubmissionIndex(context.Background())
	require.NoError(t, err)

	assert.Equal(t, int64(1), first)
	assert.Equal(t, int64(2), second)
}

func TestNextSubmissionIndexRedisError(t *testing.T) {
	counter := &fakeCounter{err: errors.New("connection refused")}
	svc := &PriorityService{redis: counter}

	_, err := svc.NextSubmissionIndex(context.Background())
	assert.Error(t, err)
}
