package model

// WebSocket message types for job status push
const (
	WSMessageTypeStatus = "status"
	WSMessageTypeError  = "error"
	WSMessageTypePing   = "ping"
	WSMessageTypePong   = "pong"
)

// WSMessage is the minimal client/server frame
type WSMessage struct {
	Type string `json:"type"`
}

// WSStatusMessage announces a job lifecycle transition
type WSStatusMessage struct {
	Type              string    `json:"type"`
	JobID             string    `json:"jobId"`
	Status            JobStatus `json:"status"`
	TranscriptionText *string   `json:"transcriptionText,omitempty"`
}

// WSErrorMessage announces a terminal job error
type WSErrorMessage struct {
	Type  string  `json:"type"`
	JobID string  `json:"jobId"`
	Error WSError `json:"error"`
}

// WSError carries the error code and message
type WSError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
