package model

import "time"

// TranscriptionJob is the persistent record of one submission. Jobs are
// never deleted after admission commits; they double as the audit trail.
type TranscriptionJob struct {
	ID                   string    `json:"id"`
	UserID               string    `json:"userId"`
	AudioFileKey         string    `json:"audioFileKey"`
	DurationSeconds      int       `json:"durationSeconds"`
	DurationText         string    `json:"durationText"`
	UsageMinutes         float64   `json:"usageMinutes"`
	Status               JobStatus `json:"status"`
	TranscriptionFileKey *string   `json:"transcriptionFileKey,omitempty"`
	TranscriptionText    *string   `json:"transcriptionText,omitempty"`
	Error                *string   `json:"error,omitempty"`
	QuotaDeducted        bool      `json:"quotaDeducted"`
	Priority             int64     `json:"priority"`
	SubmissionIndex      int64     `json:"submissionIndex"`
	CreatedAt            time.Time `json:"createdAt"`
	UpdatedAt            time.Time `json:"updatedAt"`
}

// TranscriptionError is an immutable record written when a job fails
// terminally, kept for operator inspection.
type TranscriptionError struct {
	ID             string    `json:"id"`
	JobID          string    `json:"jobId"`
	UserID         string    `json:"userId"`
	ErrorMessage   string    `json:"errorMessage"`
	StackTrace     string    `json:"stackTrace,omitempty"`
	AdditionalData string    `json:"additionalData,omitempty"`
	Unrecoverable  bool      `json:"unrecoverable"`
	MarkedAt       time.Time `json:"markedAt"`
}

// PresignRequest asks for a presigned upload URL
type PresignRequest struct {
	FileName        string `json:"fileName" validate:"required"`
	MimeType        string `json:"mimeType" validate:"required"`
	DurationSeconds int    `json:"durationSeconds" validate:"required,min=1"`
}

// PresignResponse carries the upload URL and the key the client must queue
type PresignResponse struct {
	PresignedURL string `json:"presignedUrl"`
	AudioFileKey string `json:"audioFileKey"`
}

// QueueJobRequest submits an uploaded audio file for transcription
type QueueJobRequest struct {
	AudioFileKey    string `json:"audioFileKey" validate:"required"`
	DurationSeconds int    `json:"durationSeconds" validate:"required,min=1"`
}

// QueueJobResponse is returned on successful admission
type QueueJobResponse struct {
	Job             *TranscriptionJob `json:"job"`
	Priority        int64             `json:"priority"`
	SubmissionIndex int64             `json:"submissionIndex"`
}

// JobStatusResponse is returned by GET /api/v1/transcription/job/:jobId
type JobStatusResponse struct {
	JobID             string    `json:"jobId"`
	Status            JobStatus `json:"status"`
	AudioFileLink     string    `json:"audioFileLink,omitempty"`
	TranscriptionText *string   `json:"transcriptionText,omitempty"`
	Error             *string   `json:"error,omitempty"`
}
