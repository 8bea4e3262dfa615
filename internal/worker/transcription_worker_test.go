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

type fakeRunner struct {
	job          *model.TranscriptionJob
	getErr       error
	statuses     []model.JobStatus
	statusErr    error
	completedID  string
	completedTxt string
	completeErr  error
}

func (f *fakeRunner) GetByID(ctx context.Context, jobID string) (*model.TranscriptionJob, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	return f.job, nil
}

func (f *fakeRunner) SetStatus(ctx context.Context, jobID string, status model.JobStatus) error {
	f.statuses = append(f.statuses, status)
	return f.statusErr
}

func (f *fakeRunner) SetCompleted(ctx context.Context, jobID, transcriptionText string) error {
	f.completedID = jobID
	f.completedTxt = transcriptionText
	return f.completeErr
}

type fakeStatusNotifier struct {
	broadcasts []model.JobStatus
}

func (f *fakeStatusNotifier) BroadcastStatus(jobID string, status model.JobStatus, transcriptionText *string) {
	f.broadcasts = append(f.broadcasts, status)
}

type stubTranscriber struct {
	text string
	err  error
}

func (s *stubTranscriber) Transcribe(ctx context.Context, audioFileKey string, durationSeconds int) (string, error) {
	return s.text, s.err
}

func queuedJobTask(t *testing.T) *asynq.Task {
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

func TestProcessTaskCompletesJob(t *testing.T) {
	jobs := &fakeRunner{job: &model.TranscriptionJob{
		ID:              "job-1",
		UserID:          "user-1",
		AudioFileKey:    "user-1/audios/song.mp3",
		DurationSeconds: 150,
		Status:          model.JobStatusQueued,
	}}
	notifier := &fakeStatusNotifier{}
	w := NewTranscriptionWorker(jobs, &stubTranscriber{text: "hello world"}, notifier, zap.NewNop())

	err := w.ProcessTask(context.Background(), queuedJobTask(t))
	require.NoError(t, err)

	assert.Equal(t, []model.JobStatus{model.JobStatusProcessing}, jobs.statuses)
	assert.Equal(t, "job-1", jobs.completedID)
	assert.Equal(t, "hello world", jobs.completedTxt)
	assert.Equal(t, []model.JobStatus{model.JobStatusProcessing, model.JobStatusCompleted}, notifier.broadcasts)
}

func TestProcessTaskTranscribeFailureIsRetryable(t *testing.T) {
	jobs := &fakeRunner{job: &model.TranscriptionJob{ID: "job-1", AudioFileKey: "k"}}
	w := NewTranscriptionWorker(jobs, &stubTranscriber{err: errors.New("boom")}, &fakeStatusNotifier{}, zap.NewNop())

	err := w.ProcessTask(context.Background(), queuedJobTask(t))
	require.Error(t, err)
	assert.NotErrorIs(t, err, asynq.SkipRetry)
	assert.Empty(t, jobs.completedID)
}

func TestProcessTaskMissingJobSkipsRetry(t *testing.T) {
	jobs := &fakeRunner{getErr: model.ErrJobNotFound}
	w := NewTranscriptionWorker(jobs, &stubTranscriber{}, &fakeStatusNotifier{}, zap.NewNop())

	err := w.ProcessTask(context.Background(), queuedJobTask(t))
	assert.ErrorIs(t, err, asynq.SkipRetry)
}

func TestProcessTaskBadPayloadSkipsRetry(t *testing.T) {
	w := NewTranscriptionWorker(&fakeRunner{}, &stubTranscriber{}, &fakeStatusNotifier{}, zap.NewNop())

	err := w.ProcessTask(context.Background(), asynq.NewTask(queue.TaskTypeTranscription, []byte("{}")))
	assert.ErrorIs(t, err, asynq.SkipRetry)
}
