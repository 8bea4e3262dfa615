package worker

import (
	"context"
	"errors"
	"testing"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/voxscribe/api/internal/model"
	"github.com/voxscribe/api/internal/queue"
)

type fakeFailer struct {
	failedJobID string
	failedMsg   string
	failErr     error
	won         bool
	clearErr    error
	clearCalls  int
}

func (f *fakeFailer) SetFailed(ctx context.Context, jobID, errMsg string) error {
	f.failedJobID = jobID
	f.failedMsg = errMsg
	return f.failErr
}

func (f *fakeFailer) ClearQuotaDeducted(ctx context.Context, jobID string) (bool, error) {
	f.clearCalls++
	return f.won, f.clearErr
}

type fakeRefunder struct {
	userID  string
	minutes float64
	calls   int
	err     error
}

func (f *fakeRefunder) DecrementUsage(ctx context.Context, userID string, minutes float64) error {
	f.calls++
	f.userID = userID
	f.minutes = minutes
	return f.err
}

type fakeRecorder struct {
	records []*model.TranscriptionError
	err     error
}

func (f *fakeRecorder) Insert(ctx context.Context, record *model.TranscriptionError) error {
	f.records = append(f.records, record)
	return f.err
}

type fakeErrorNotifier struct {
	jobID   string
	code    string
	message string
	calls   int
}

func (f *fakeErrorNotifier) BroadcastError(jobID, code, message string) {
	f.calls++
	f.jobID = jobID
	f.code = code
	f.message = message
}

func failedTask(t *testing.T) *asynq.Task {
	t.Helper()
	task, err := queue.NewTranscriptionTask(queue.TranscriptionTaskPayload{
		JobID:        "job-1",
		UserID:       "user-1",
		AudioFileKey: "user-1/audios/song.mp3",
		UsageMinutes: 2.5,
	})
	require.NoError(t, err)
	return task
}

// Without retry metadata on the context the handler treats the failure as
// terminal, which is what these tests exercise.
func TestHandleErrorTerminalFailureCompensatesOnce(t *testing.T) {
	jobs := &fakeFailer{won: true}
	ledger := &fakeRefunder{}
	recorder := &fakeRecorder{}
	notifier := &fakeErrorNotifier{}
	h := NewOutcomeHandler(jobs, ledger, recorder, notifier, zap.NewNop())

	h.HandleError(context.Background(), failedTask(t), errors.New("decode error"))

	assert.Equal(t, "job-1", jobs.failedJobID)
	assert.Equal(t, "decode error", jobs.failedMsg)
	assert.Equal(t, 1, jobs.clearCalls)

	assert.Equal(t, 1, ledger.calls)
	assert.Equal(t, "user-1", ledger.userID)
	assert.Equal(t, 2.5, ledger.minutes)

	require.Len(t, recorder.records, 1)
	record := recorder.records[0]
	assert.Equal(t, "job-1", record.JobID)
	assert.Equal(t, "user-1", record.UserID)
	assert.Equal(t, "decode error", record.ErrorMessage)
	assert.True(t, record.Unrecoverable)

	assert.Equal(t, 1, notifier.calls)
	assert.Equal(t, "TRANSCRIPTION_FAILED", notifier.code)
}

func TestHandleErrorDuplicateTerminalDeliverySkipsCompensation(t *testing.T) {
	jobs := &fakeFailer{won: false}
	ledger := &fakeRefunder{}
	recorder := &fakeRecorder{}
	h := NewOutcomeHandler(jobs, ledger, recorder, &fakeErrorNotifier{}, zap.NewNop())

	h.HandleError(context.Background(), failedTask(t), errors.New("decode error"))

	// Lost the flag flip: the ledger must stay untouched.
	assert.Equal(t, 0, ledger.calls)
	assert.Len(t, recorder.records, 1)
}

func TestHandleErrorClearFlagFailureSkipsCompensation(t *testing.T) {
	jobs := &fakeFailer{clearErr: errors.New("db down")}
	ledger := &fakeRefunder{}
	h := NewOutcomeHandler(jobs, ledger, &fakeRecorder{}, &fakeErrorNotifier{}, zap.NewNop())

	h.HandleError(context.Background(), failedTask(t), errors.New("decode error"))

	assert.Equal(t, 0, ledger.calls)
}

func TestHandleErrorCompensationFailureStillRecords(t *testing.T) {
	jobs := &fakeFailer{won: true}
	ledger := &fakeRefunder{err: errors.New("db down")}
	recorder := &fakeRecorder{}
	notifier := &fakeErrorNotifier{}
	h := NewOutcomeHandler(jobs, ledger, recorder, notifier, zap.NewNop())

	h.HandleError(context.Background(), failedTask(t), errors.New("decode error"))

	assert.Equal(t, 1, ledger.calls)
	assert.Len(t, recorder.records, 1)
	assert.Equal(t, 1, notifier.calls)
}

func TestHandleErrorIgnoresOtherTaskTypes(t *testing.T) {
	jobs := &fakeFailer{}
	ledger := &fakeRefunder{}
	h := NewOutcomeHandler(jobs, ledger, &fakeRecorder{}, &fakeErrorNotifier{}, zap.NewNop())

	h.HandleError(context.Background(), queue.NewUsageResetTask(), errors.New("boom"))

	assert.Empty(t, jobs.failedJobID)
	assert.Equal(t, 0, ledger.calls)
}

func TestHandleErrorIgnoresUnreadablePayload(t *testing.T) {
	jobs := &fakeFailer{}
	h := NewOutcomeHandler(jobs, &fakeRefunder{}, &fakeRecorder{}, &fakeErrorNotifier{}, zap.NewNop())

	task := asynq.NewTask(queue.TaskTypeTranscription, []byte("not json"))
	h.HandleError(context.Background(), task, errors.New("boom"))

	assert.Empty(t, jobs.failedJobID)
}
