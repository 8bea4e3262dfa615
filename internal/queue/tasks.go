// Package queue defines the task types exchanged with the asynq workers
// and the client used to enqueue them.
package queue

import (
	"encoding/json"
	"fmt"

	"github.com/hibiken/asynq"
)

// Task type names
const (
	TaskTypeTranscription = "transcription:process"
	TaskTypeUsageReset    = "usage:reset"
)

// Queue names. Paid submissions land on the higher-weighted queue; within a
// queue asynq serves tasks in enqueue order, which follows the submission
// index.
const (
	QueuePaid = "transcription:paid"
	QueueFree = "transcription:free"
)

// TranscriptionTaskPayload is the message handed to workers. It carries
// exactly the fields the worker and outcome handler need, not the whole job
// document.
type TranscriptionTaskPayload struct {
	JobID        string  `json:"jobId"`
	UserID       string  `json:"userId"`
	AudioFileKey string  `json:"audioFileKey"`
	UsageMinutes float64 `json:"usageMinutes"`
}

// NewTranscriptionTask builds the asynq task for one admitted job.
func NewTranscriptionTask(payload TranscriptionTaskPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal transcription payload: %w", err)
	}
	return asynq.NewTask(TaskTypeTranscription, data), nil
}

// ParseTranscriptionTask decodes a worker-side task back into its payload.
func ParseTranscriptionTask(t *asynq.Task) (TranscriptionTaskPayload, error) {
	var payload TranscriptionTaskPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return payload, fmt.Errorf("failed to unmarshal transcription payload: %w", err)
	}
	if payload.JobID == "" {
		return payload, fmt.Errorf("transcription payload missing jobId")
	}
	return payload, nil
}

// NewUsageResetTask builds the scheduled free-tier reset task.
func NewUsageResetTask() *asynq.Task {
	return asynq.NewTask(TaskTypeUsageReset, nil)
}

// QueueForTier maps a subscription tier to its queue.
func QueueForTier(isPaid bool) string {
	if isPaid {
		return QueuePaid
	}
	return QueueFree
}
