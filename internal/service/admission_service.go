package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/voxscribe/api/internal/model"
	"github.com/voxscribe/api/internal/queue"
	"github.com/voxscribe/api/pkg/duration"
)

// usageLedger is the slice of the subscription store admission depends on.
type usageLedger interface {
	CanAdmit(ctx context.Context, userID string, requestedSeconds int, freePlan *model.Plan) (*model.SubscriptionAccount, error)
}

// jobAdmitter is the slice of the job store admission depends on.
type jobAdmitter interface {
	ExistsByFileKey(ctx context.Context, audioFileKey string) (bool, error)
	CreateAndDeduct(ctx context.Context, job *model.TranscriptionJob) error
	RollbackAdmission(ctx context.Context, job *model.TranscriptionJob) error
	GetByID(ctx context.Context, jobID string) (*model.TranscriptionJob, error)
}

type priorityAssigner interface {
	NextSubmissionIndex(ctx context.Context) (int64, error)
	ComputePriority(isPaid bool, durationMinutes int, submissionIndex int64) int64
}

type taskEnqueuer interface {
	EnqueueTranscription(ctx context.Context, payload queue.TranscriptionTaskPayload, isPaid bool, priority int64) error
}

// AdmissionService decides whether a submission may enter the pipeline,
// pre-deducts its quota and hands it to the queue.
type AdmissionService struct {
	ledger   usageLedger
	jobs     jobAdmitter
	priority priorityAssigner
	enqueuer taskEnqueuer
	freePlan *model.Plan
	logger   *zap.Logger
}

func NewAdmissionService(ledger usageLedger, jobs jobAdmitter, priority priorityAssigner, enqueuer taskEnqueuer, freePlan *model.Plan, logger *zap.Logger) *AdmissionService {
	return &AdmissionService{
		ledger:   ledger,
		jobs:     jobs,
		priority: priority,
		enqueuer: enqueuer,
		freePlan: freePlan,
		logger:   logger,
	}
}

// CheckQuota runs the admission quota check without creating anything.
// Used by the presign endpoint so users learn about exhausted quota before
// uploading.
func (s *AdmissionService) CheckQuota(ctx context.Context, userID string, durationSeconds int) (*model.SubscriptionAccount, error) {
	if durationSeconds <= 0 {
		return nil, model.ErrInvalidDuration
	}
	return s.ledger.CanAdmit(ctx, userID, durationSeconds, s.freePlan)
}

// Submit admits one transcription job: duplicate check, quota check,
// duration conversion, job creation with pre-deduction in one committed
// unit, then enqueue. An enqueue failure rolls the job and the ledger back
// so no job record exists without a matching queue entry.
func (s *AdmissionService) Submit(ctx context.Context, userID, audioFileKey string, durationSeconds int) (*model.QueueJobResponse, error) {
	exists, err := s.jobs.ExistsByFileKey(ctx, audioFileKey)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, model.ErrDuplicateJob
	}

	account, err := s.ledger.CanAdmit(ctx, userID, durationSeconds, s.freePlan)
	if err != nil {
		return nil, err
	}

	conv, err := duration.Convert(durationSeconds)
	if err != nil {
		return nil, err
	}

	index, err := s.priority.NextSubmissionIndex(ctx)
	if err != nil {
		return nil, err
	}
	priority := s.priority.ComputePriority(account.IsPaid, conv.Minutes, index)

	now := time.Now()
	job := &model.TranscriptionJob{
		ID:              uuid.New().String(),
		UserID:          userID,
		AudioFileKey:    audioFileKey,
		DurationSeconds: conv.RawSeconds,
		DurationText:    conv.Text,
		UsageMinutes:    conv.UsageMinutes,
		Status:          model.JobStatusQueued,
		QuotaDeducted:   true,
		Priority:        priority,
		SubmissionIndex: index,
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	if err := s.jobs.CreateAndDeduct(ctx, job); err != nil {
		return nil, err
	}

	payload := queue.TranscriptionTaskPayload{
		JobID:        job.ID,
		UserID:       job.UserID,
		AudioFileKey: job.AudioFileKey,
		UsageMinutes: job.UsageMinutes,
	}
	if err := s.enqueuer.EnqueueTranscription(ctx, payload, account.IsPaid, priority); err != nil {
		if rbErr := s.jobs.RollbackAdmission(ctx, job); rbErr != nil {
			// The job row now has a ledger entry nothing will ever
			// refund. Operators must reconcile by hand.
			s.logger.Error("admission rollback failed, quota minutes stranded",
				zap.String("jobId", job.ID),
				zap.String("userId", userID),
				zap.Float64("usageMinutes", job.UsageMinutes),
				zap.Error(rbErr))
		}
		return nil, err
	}

	s.logger.Info("job admitted",
		zap.String("jobId", job.ID),
		zap.String("userId", userID),
		zap.Bool("paid", account.IsPaid),
		zap.Int64("priority", priority),
		zap.Int64("submissionIndex", index))

	return &model.QueueJobResponse{
		Job:             job,
		Priority:        priority,
		SubmissionIndex: index,
	}, nil
}

// GetJobForUser returns the job after verifying ownership.
func (s *AdmissionService) GetJobForUser(ctx context.Context, userID, jobID string) (*model.TranscriptionJob, error) {
	job, err := s.jobs.GetByID(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if job.UserID != userID {
		return nil, model.ErrJobNotOwned
	}
	return job, nil
}
