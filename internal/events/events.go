package events

import (
	"encoding/json"
	"time"

	"github.com/voxhollow/voxqueue-api/internal/domain"
)

// EventType identifies the kind of lifecycle event being broadcast.
type EventType string

// Event type values sent to observers.
const (
	// EventNewTask announces a freshly admitted task.
	EventNewTask EventType = "new_task"

	// EventStatusUpdate announces a status transition that is not yet
	// terminal (pending -> processing).
	EventStatusUpdate EventType = "task_status_update"

	// EventProgress carries a progress estimate for a processing task.
	EventProgress EventType = "task_progress"

	// EventTaskCompleted announces a terminal transition; its Status field
	// distinguishes completed from failed.
	EventTaskCompleted EventType = "task_completed"

	// EventAutoChainTriggered announces that a completed transcription
	// spawned a follow-on risk-analysis task.
	EventAutoChainTriggered EventType = "auto_risk_analysis_triggered"

	// EventAutoChainFailed announces that spawning the follow-on
	// risk-analysis task failed. The originating task is unaffected.
	EventAutoChainFailed EventType = "auto_risk_analysis_failed"
)

// Event is the structured record broadcast to every registered observer.
// Fields beyond Type, TaskID and Timestamp are populated per event type.
type Event struct {
	Type          EventType         `json:"type"`
	TaskID        string            `json:"task_id"`
	TaskType      domain.TaskType   `json:"task_type,omitempty"`
	Status        domain.TaskStatus `json:"status,omitempty"`
	Progress      *float64          `json:"progress,omitempty"`
	Result        json.RawMessage   `json:"result,omitempty"`
	Error         string            `json:"error,omitempty"`
	ChainedTaskID string            `json:"chained_task_id,omitempty"`
	Timestamp     time.Time         `json:"timestamp"`
}

// ProgressValue returns a pointer suitable for Event.Progress.
func ProgressValue(progress float64) *float64 {
	return &progress
}

// Sink is an opaque message destination for one observer, typically a
// websocket connection owned by the transport layer.
type Sink interface {
	// Send delivers one serialized event. A failing sink only affects
	// itself; the broadcaster never retries.
	Send(message []byte) error
}
