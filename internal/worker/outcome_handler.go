package worker

import (
	"context"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
	"go.uber.org/zap"

	"github.com/voxscribe/api/internal/model"
	"github.com/voxscribe/api/internal/queue"
)

// jobFailer is the slice of the job store the outcome handler needs.
type jobFailer interface {
	SetFailed(ctx context.Context, jobID, errMsg string) error
	ClearQuotaDeducted(ctx context.Context, jobID string) (bool, error)
}

// usageRefunder returns committed minutes to the ledger.
type usageRefunder interface {
	DecrementUsage(ctx context.Context, userID string, minutes float64) error
}

// errorRecorder appends immutable terminal-failure records.
type errorRecorder interface {
	Insert(ctx context.Context, record *model.TranscriptionError) error
}

// errorNotifier pushes a best-effort terminal-failure message.
type errorNotifier interface {
	BroadcastError(jobID, code, message string)
}

// OutcomeHandler receives every failed attempt from the queue and splits
// "will retry" from "exhausted". Quota is refunded only on the terminal
// failure, and at most once: the quota_deducted flag is cleared with an
// atomic conditional update before the ledger is touched, so duplicate
// terminal deliveries are no-ops.
type OutcomeHandler struct {
	jobs     jobFailer
	ledger   usageRefunder
	errors   errorRecorder
	notifier errorNotifier
	logger   *zap.Logger
}

func NewOutcomeHandler(jobs jobFailer, ledger usageRefunder, errors errorRecorder, notifier errorNotifier, logger *zap.Logger) *OutcomeHandler {
	return &OutcomeHandler{jobs: jobs, ledger: ledger, errors: errors, notifier: notifier, logger: logger}
}

// HandleError implements asynq.ErrorHandler. It runs after every failed
// attempt, with retry metadata available on the context.
func (h *OutcomeHandler) HandleError(ctx context.Context, task *asynq.Task, err error) {
	if task.Type() != queue.TaskTypeTranscription {
		return
	}

	payload, perr := queue.ParseTranscriptionTask(task)
	if perr != nil {
		h.logger.Error("failed task has unreadable payload", zap.Error(perr))
		return
	}

	retried, _ := asynq.GetRetryCount(ctx)
	maxRetry, _ := asynq.GetMaxRetry(ctx)

	if retried < maxRetry {
		// Minutes stay committed: the retry may still consume them.
		h.logger.Warn("transcription attempt failed, will retry",
			zap.String("jobId", payload.JobID),
			zap.Int("attempt", retried+1),
			zap.Int("maxAttempts", maxRetry+1),
			zap.Error(err))
		return
	}

	h.handleTerminalFailure(ctx, payload, err)
}

func (h *OutcomeHandler) handleTerminalFailure(ctx context.Context, payload queue.TranscriptionTaskPayload, cause error) {
	h.logger.Error("transcription job failed terminally",
		zap.String("jobId", payload.JobID),
		zap.String("userId", payload.UserID),
		zap.Error(cause))

	if err := h.jobs.SetFailed(ctx, payload.JobID, cause.Error()); err != nil {
		h.logger.Error("failed to mark job failed",
			zap.String("jobId", payload.JobID), zap.Error(err))
	}

	won, err := h.jobs.ClearQuotaDeducted(ctx, payload.JobID)
	if err != nil {
		h.logger.Error("failed to clear quota flag, compensation not applied",
			zap.String("jobId", payload.JobID), zap.Error(err))
	} else if won {
		if err := h.ledger.DecrementUsage(ctx, payload.UserID, payload.UsageMinutes); err != nil {
			// The flag is already cleared, so nothing will retry this
			// refund: the user's minutes are stranded until an operator
			// reconciles the ledger.
			h.logger.Error("quota compensation failed, minutes stranded",
				zap.String("jobId", payload.JobID),
				zap.String("userId", payload.UserID),
				zap.Float64("usageMinutes", payload.UsageMinutes),
				zap.Error(err))
		} else {
			h.logger.Info("quota compensated",
				zap.String("jobId", payload.JobID),
				zap.Float64("usageMinutes", payload.UsageMinutes))
		}
	}

	record := &model.TranscriptionError{
		JobID:          payload.JobID,
		UserID:         payload.UserID,
		ErrorMessage:   cause.Error(),
		StackTrace:     fmt.Sprintf("%+v", cause),
		AdditionalData: fmt.Sprintf("audioFileKey=%s usageMinutes=%.2f", payload.AudioFileKey, payload.UsageMinutes),
		Unrecoverable:  true,
		MarkedAt:       time.Now(),
	}
	if err := h.errors.Insert(ctx, record); err != nil {
		h.logger.Error("failed to persist error record",
			zap.String("jobId", payload.JobID), zap.Error(err))
	}

	h.notifier.BroadcastError(payload.JobID, "TRANSCRIPTION_FAILED", cause.Error())
}
