package worker

import (
	"context"
	"errors"
	"fmt"

	"github.com/hibiken/asynq"
	"go.uber.org/zap"

	"github.com/voxscribe/api/internal/model"
	"github.com/voxscribe/api/internal/queue"
	"github.com/voxscribe/api/internal/transcriber"
)

// jobRunner is the slice of the job store the worker needs.
type jobRunner interface {
	GetByID(ctx context.Context, jobID string) (*model.TranscriptionJob, error)
	SetStatus(ctx context.Context, jobID string, status model.JobStatus) error
	SetCompleted(ctx context.Context, jobID, transcriptionText string) error
}

// statusNotifier pushes best-effort lifecycle updates to subscribers.
type statusNotifier interface {
	BroadcastStatus(jobID string, status model.JobStatus, transcriptionText *string)
}

// TranscriptionWorker executes queued transcription jobs. Handlers must be
// idempotent: the queue delivers at-least-once and every failed attempt may
// be retried until the budget is spent.
type TranscriptionWorker struct {
	jobs        jobRunner
	transcriber transcriber.Transcriber
	notifier    statusNotifier
	logger      *zap.Logger
}

func NewTranscriptionWorker(jobs jobRunner, t transcriber.Transcriber, notifier statusNotifier, logger *zap.Logger) *TranscriptionWorker {
	return &TranscriptionWorker{jobs: jobs, transcriber: t, notifier: notifier, logger: logger}
}

// ProcessTask handles one delivery attempt. Returning an error hands the
// task back to the queue for retry; the outcome handler decides whether the
// failure was terminal.
func (w *TranscriptionWorker) ProcessTask(ctx context.Context, t *asynq.Task) error {
	payload, err := queue.ParseTranscriptionTask(t)
	if err != nil {
		return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
	}

	job, err := w.jobs.GetByID(ctx, payload.JobID)
	if err != nil {
		if errors.Is(err, model.ErrJobNotFound) {
			// Should not happen: every enqueue commits its job row first.
			w.logger.Error("job record vanished before processing",
				zap.String("jobId", payload.JobID))
			return fmt.Errorf("job %s not found: %w", payload.JobID, asynq.SkipRetry)
		}
		return err
	}

	retried, _ := asynq.GetRetryCount(ctx)
	w.logger.Info("processing transcription job",
		zap.String("jobId", job.ID),
		zap.String("audioFileKey", job.AudioFileKey),
		zap.Int("attempt", retried+1))

	if err := w.jobs.SetStatus(ctx, job.ID, model.JobStatusProcessing); err != nil {
		return err
	}
	w.notifier.BroadcastStatus(job.ID, model.JobStatusProcessing, nil)

	text, err := w.transcriber.Transcribe(ctx, job.AudioFileKey, job.DurationSeconds)
	if err != nil {
		return fmt.Errorf("transcription attempt failed: %w", err)
	}

	if err := w.jobs.SetCompleted(ctx, job.ID, text); err != nil {
		return err
	}
	w.notifier.BroadcastStatus(job.ID, model.JobStatusCompleted, &text)

	w.logger.Info("transcription job completed", zap.String("jobId", job.ID))
	return nil
}
