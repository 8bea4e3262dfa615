package queue

import (
	"testing"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTranscriptionTaskRoundTrip(t *testing.T) {
	payload := TranscriptionTaskPayload{
		JobID:        "job-1",
		UserID:       "user-1",
		AudioFileKey: "user-1/audios/song.mp3",
		UsageMinutes: 2.5,
	}

	task, err := NewTranscriptionTask(payload)
	require.NoError(t, err)
	assert.Equal(t, TaskTypeTranscription, task.Type())

	got, err := ParseTranscriptionTask(task)
	require.NoError(t, err)
	assert.Equal(t, payload, got)
}

func TestParseTranscriptionTaskRejectsMissingJobID(t *testing.T) {
	task := asynq.NewTask(TaskTypeTranscription, []byte(`{"userId":"user-1"}`))
	_, err := ParseTranscriptionTask(task)
	assert.Error(t, err)
}

func TestParseTranscriptionTaskRejectsBadJSON(t *testing.T) {
	task := asynq.NewTask(TaskTypeTranscription, []byte("not json"))
	_, err := ParseTranscriptionTask(task)
	assert.Error(t, err)
}

func TestQueueForTier(t *testing.T) {
	assert.Equal(t, QueuePaid, QueueForTier(true))
	assert.Equal(t, QueueFree, QueueForTier(false))
}
