package api

import "encoding/json"

// SubmitTaskRequest is the body of POST /api/tasks.
type SubmitTaskRequest struct {
	TaskType string          `json:"task_type" validate:"required,oneof=transcription risk_analysis"`
	Payload  json.RawMessage `json:"payload"   validate:"required"`
	Priority *int            `json:"priority,omitempty"`
}

// SubmitTaskResponse is the body returned on successful submission.
type SubmitTaskResponse struct {
	TaskID string `json:"task_id"`
}

// ErrorResponse is the generic error body.
type ErrorResponse struct {
	Error string `json:"error"`
}
