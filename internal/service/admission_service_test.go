package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/voxscribe/api/internal/model"
	"github.com/voxscribe/api/internal/queue"
)

type fakeLedger struct {
	account *model.SubscriptionAccount
	err     error
}

func (f *fakeLedger) CanAdmit(ctx context.Context, userID string, requestedSeconds int, freePlan *model.Plan) (*model.SubscriptionAccount, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.account, nil
}

type fakeJobs struct {
	exists      bool
	existsErr   error
	created     *model.TranscriptionJob
	createErr   error
	rolledBack  bool
	rollbackErr error
	stored      *model.TranscriptionJob
	getErr      error
}

func (f *fakeJobs) ExistsByFileKey(ctx context.Context, audioFileKey string) (bool, error) {
	return f.exists, f.existsErr
}

func (f *fakeJobs) CreateAndDeduct(ctx context.Context, job *model.TranscriptionJob) error {
	if f.createErr != nil {
		return f.createErr
	}
	f.created = job
	return nil
}

func (f *fakeJobs) RollbackAdmission(ctx context.Context, job *model.TranscriptionJob) error {
	f.rolledBack = true
	return f.rollbackErr
}

func (f *fakeJobs) GetByID(ctx context.Context, jobID string) (*model.TranscriptionJob, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	return f.stored, nil
}

type fakePriority struct {
	index    int64
	indexErr error
}

func (f *fakePriority) NextSubmissionIndex(ctx context.Context) (int64, error) {
	return f.index, f.indexErr
}

func (f *fakePriority) ComputePriority(isPaid bool, durationMinutes int, submissionIndex int64) int64 {
	base := int64(300)
	if isPaid {
		base = 100
	}
	return base + int64(durationMinutes) + submissionIndex
}

type fakeEnqueuer struct {
	payload  queue.TranscriptionTaskPayload
	isPaid   bool
	priority int64
	called   bool
	err      error
}

func (f *fakeEnqueuer) EnqueueTranscription(ctx context.Context, payload queue.TranscriptionTaskPayload, isPaid bool, priority int64) error {
	f.called = true
	f.payload = payload
	f.isPaid = isPaid
	f.priority = priority
	return f.err
}

func paidAccount() *model.SubscriptionAccount {
	return &model.SubscriptionAccount{
		ID:                "acct-1",
		UserID:            "user-1",
		TotalLimitMinutes: 600,
		UsedMinutes:       10,
		IsPaid:            true,
		IsActive:          true,
	}
}

func newAdmissionService(ledger usageLedger, jobs jobAdmitter, priority priorityAssigner, enqueuer taskEnqueuer) *AdmissionService {
	freePlan := &model.Plan{ID: "plan-free", Name: model.PlanNameFree, TotalLimitMinutes: 30}
	return NewAdmissionService(ledger, jobs, priority, enqueuer, freePlan, zap.NewNop())
}

func TestSubmitHappyPath(t *testing.T) {
	ledger := &fakeLedger{account: paidAccount()}
	jobs := &fakeJobs{}
	priority := &fakePriority{index: 5}
	enqueuer := &fakeEnqueuer{}
	svc := newAdmissionService(ledger, jobs, priority, enqueuer)

	result, err := svc.Submit(context.Background(), "user-1", "user-1/audios/song.mp3", 150)
	require.NoError(t, err)

	require.NotNil(t, jobs.created)
	job := jobs.created
	assert.Equal(t, "user-1", job.UserID)
	assert.Equal(t, "user-1/audios/song.mp3", job.AudioFileKey)
	assert.Equal(t, 150, job.DurationSeconds)
	assert.Equal(t, "2m 30s", job.DurationText)
	assert.Equal(t, 2.5, job.UsageMinutes)
	assert.Equal(t, model.JobStatusQueued, job.Status)
	assert.True(t, job.QuotaDeducted)
	assert.Equal(t, int64(5), job.SubmissionIndex)

	// paid base 100 + 2 whole minutes + index 5
	assert.Equal(t, int64(107), job.Priority)
	assert.Equal(t, int64(107), result.Priority)
	assert.Equal(t, int64(5), result.SubmissionIndex)

	assert.True(t, enqueuer.called)
	assert.True(t, enqueuer.isPaid)
	assert.Equal(t, int64(107), enqueuer.priority)
	assert.Equal(t, job.ID, enqueuer.payload.JobID)
	assert.Equal(t, 2.5, enqueuer.payload.UsageMinutes)
	assert.False(t, jobs.rolledBack)
}

func TestSubmitDuplicateFileKey(t *testing.T) {
	ledger := &fakeLedger{account: paidAccount()}
	jobs := &fakeJobs{exists: true}
	svc := newAdmissionService(ledger, jobs, &fakePriority{}, &fakeEnqueuer{})

	_, err := svc.Submit(context.Background(), "user-1", "user-1/audios/song.mp3", 150)
	assert.ErrorIs(t, err, model.ErrDuplicateJob)
	assert.Nil(t, jobs.created)
}

func TestSubmitQuotaExceeded(t *testing.T) {
	ledger := &fakeLedger{err: model.ErrQuotaExceeded}
	jobs := &fakeJobs{}
	enqueuer := &fakeEnqueuer{}
	svc := newAdmissionService(ledger, jobs, &fakePriority{}, enqueuer)

	_, err := svc.Submit(context.Background(), "user-1", "user-1/audios/song.mp3", 150)
	assert.ErrorIs(t, err, model.ErrQuotaExceeded)
	assert.Nil(t, jobs.created)
	assert.False(t, enqueuer.called)
}

func TestSubmitInvalidDuration(t *testing.T) {
	ledger := &fakeLedger{account: paidAccount()}
	jobs := &fakeJobs{}
	svc := newAdmissionService(ledger, jobs, &fakePriority{}, &fakeEnqueuer{})

	_, err := svc.Submit(context.Background(), "user-1", "user-1/audios/song.mp3", 0)
	assert.ErrorIs(t, err, model.ErrInvalidDuration)
	assert.Nil(t, jobs.created)
}

func TestSubmitEnqueueFailureRollsBack(t *testing.T) {
	ledger := &fakeLedger{account: paidAccount()}
	jobs := &fakeJobs{}
	enqueueErr := errors.New("redis down")
	enqueuer := &fakeEnqueuer{err: enqueueErr}
	svc := newAdmissionService(ledger, jobs, &fakePriority{index: 1}, enqueuer)

	_, err := svc.Submit(context.Background(), "user-1", "user-1/audios/song.mp3", 60)
	assert.ErrorIs(t, err, enqueueErr)
	assert.True(t, jobs.rolledBack)
}

func TestSubmitEnqueueFailureWithFailedRollback(t *testing.T) {
	ledger := &fakeLedger{account: paidAccount()}
	jobs := &fakeJobs{rollbackErr: errors.New("db down")}
	enqueueErr := errors.New("redis down")
	svc := newAdmissionService(ledger, jobs, &fakePriority{index: 1}, &fakeEnqueuer{err: enqueueErr})

	// The caller still sees the enqueue error; the stranded minutes are an
	// operator problem, not a handler response.
	_, err := svc.Submit(context.Background(), "user-1", "user-1/audios/song.mp3", 60)
	assert.ErrorIs(t, err, enqueueErr)
	assert.True(t, jobs.rolledBack)
}

func TestCheckQuotaInvalidDuration(t *testing.T) {
	svc := newAdmissionService(&fakeLedger{account: paidAccount()}, &fakeJobs{}, &fakePriority{}, &fakeEnqueuer{})

	_, err := svc.CheckQuota(context.Background(), "user-1", -10)
	assert.ErrorIs(t, err, model.ErrInvalidDuration)
}

func TestGetJobForUserOwnership(t *testing.T) {
	jobs := &fakeJobs{stored: &model.TranscriptionJob{ID: "job-1", UserID: "user-1"}}
	svc := newAdmissionService(&fakeLedger{}, jobs, &fakePriority{}, &fakeEnqueuer{})

	job, err := svc.GetJobForUser(context.Background(), "user-1", "job-1")
	require.NoError(t, err)
	assert.Equal(t, "job-1", job.ID)

	_, err = svc.GetJobForUser(context.Background(), "user-2", "job-1")
	assert.ErrorIs(t, err, model.ErrJobNotOwned)
}

func TestGetJobForUserNotFound(t *testing.T) {
	jobs := &fakeJobs{getErr: model.ErrJobNotFound}
	svc := newAdmissionService(&fakeLedger{}, jobs, &fakePriority{}, &fakeEnqueuer{})

	_, err := svc.GetJobForUser(context.Background(), "user-1", "missing")
	assert.ErrorIs(t, err, model.ErrJobNotFound)
}
