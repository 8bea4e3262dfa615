package queue

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
	"go.uber.org/zap"

	"github.com/voxscribe/api/internal/model"
)

// Client enqueues transcription tasks with the scheduling contract the
// admission service relies on: per-tier queues, dedupe on the audio file
// key, bounded retries and a short admission delay so the job row settles
// before a worker reads it.
type Client struct {
	asynq          *asynq.Client
	maxAttempts    int
	admissionDelay time.Duration
	retention      time.Duration
	logger         *zap.Logger
}

func NewClient(asynqClient *asynq.Client, maxAttempts int, admissionDelay, retention time.Duration, logger *zap.Logger) *Client {
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	return &Client{
		asynq:          asynqClient,
		maxAttempts:    maxAttempts,
		admissionDelay: admissionDelay,
		retention:      retention,
		logger:         logger,
	}
}

// EnqueueTranscription schedules one admitted job. asynq's MaxRetry counts
// retries after the first attempt, so the configured total attempt budget
// maps to maxAttempts-1. A TaskID collision means the same file key is
// already in flight and surfaces as ErrDuplicateJob.
func (c *Client) EnqueueTranscription(ctx context.Context, payload TranscriptionTaskPayload, isPaid bool, priority int64) error {
	task, err := NewTranscriptionTask(payload)
	if err != nil {
		return err
	}

	info, err := c.asynq.EnqueueContext(ctx, task,
		asynq.Queue(QueueForTier(isPaid)),
		asynq.TaskID(payload.AudioFileKey),
		asynq.MaxRetry(c.maxAttempts-1),
		asynq.ProcessIn(c.admissionDelay),
		asynq.Retention(c.retention),
	)
	if err != nil {
		if errors.Is(err, asynq.ErrTaskIDConflict) {
			return fmt.Errorf("%w: task already enqueued for %s", model.ErrDuplicateJob, payload.AudioFileKey)
		}
		return fmt.Errorf("failed to enqueue transcription task: %w", err)
	}

	c.logger.Info("transcription task enqueued",
		zap.String("jobId", payload.JobID),
		zap.String("queue", info.Queue),
		zap.Int64("priority", priority),
		zap.Int("maxRetry", info.MaxRetry))
	return nil
}
