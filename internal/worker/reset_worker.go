package worker

import (
	"context"

	"github.com/hibiken/asynq"
	"go.uber.org/zap"
)

// usageResetter zeroes free-tier usage across all accounts.
type usageResetter interface {
	ResetFreeTierUsage(ctx context.Context) (int64, error)
}

// ResetWorker handles the scheduled free-tier usage reset task.
type ResetWorker struct {
	subscriptions usageResetter
	logger        *zap.Logger
}

func NewResetWorker(subscriptions usageResetter, logger *zap.Logger) *ResetWorker {
	return &ResetWorker{subscriptions: subscriptions, logger: logger}
}

func (w *ResetWorker) ProcessTask(ctx context.Context, t *asynq.Task) error {
	count, err := w.subscriptions.ResetFreeTierUsage(ctx)
	if err != nil {
		w.logger.Error("free tier reset failed", zap.Error(err))
		return err
	}
	w.logger.Info("free tier reset completed", zap.Int64("accounts", count))
	return nil
}
