package domain

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
)

// TaskType identifies which collaborator a task is executed by and how
// its payload is interpreted.
type TaskType string

// Possible task type values
const (
	TaskTypeTranscription TaskType = "transcription"
	TaskTypeRiskAnalysis  TaskType = "risk_analysis"
)

// TaskStatus represents the current lifecycle state of a task.
type TaskStatus string

// Possible task status values
const (
	TaskStatusPending    TaskStatus = "pending"
	TaskStatusProcessing TaskStatus = "processing"
	TaskStatusCompleted  TaskStatus = "completed"
	TaskStatusFailed     TaskStatus = "failed"

	// TaskStatusCancelled is a defined terminal value with no producing
	// transition. It is reserved for a future cancellation path; nothing
	// in the queue currently sets it.
	TaskStatusCancelled TaskStatus = "cancelled"
)

// IsTerminal reports whether the status permits no further transitions.
func (s TaskStatus) IsTerminal() bool {
	switch s {
	case TaskStatusCompleted, TaskStatusFailed, TaskStatusCancelled:
		return true
	default:
		return false
	}
}

// Common validation and transition errors for tasks
var (
	ErrEmptyTaskID        = errors.New("task ID cannot be empty")
	ErrInvalidTaskType    = errors.New("invalid task type")
	ErrEmptyTaskPayload   = errors.New("task payload cannot be empty")
	ErrInvalidTaskStatus  = errors.New("invalid task status")
	ErrTerminalTransition = errors.New("task is in a terminal state")
	ErrNotProcessing      = errors.New("task is not in processing state")
	ErrProgressNotForward = errors.New("progress cannot decrease")
	ErrAlreadyProcessing  = errors.New("task is already processing")
)

// TaskRequest is the immutable submission record of a task. It is owned
// by the durable store and deleted once its task reaches a terminal state.
type TaskRequest struct {
	ID        string    `json:"id"`
	TaskType  TaskType  `json:"task_type"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// Priority is persisted and set to an elevated value for auto-chained
	// tasks, but dequeue order is purely admission timestamp. The field is
	// reserved; it is never consulted for ordering.
	Priority int `json:"priority"`

	Payload json.RawMessage `json:"payload"`
}

// TaskResult is the mutable status record of a task. The durable store is
// the source of truth; the in-memory cache holds a disposable mirror.
type TaskResult struct {
	ID          string          `json:"id"`
	Status      TaskStatus      `json:"status"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
	StartedAt   *time.Time      `json:"started_at,omitempty"`
	CompletedAt *time.Time      `json:"completed_at,omitempty"`
	Result      json.RawMessage `json:"result,omitempty"`
	Error       string          `json:"error,omitempty"`
	Progress    float64         `json:"progress"`
}

// QueueStats is a point-in-time view of the queue, derived on demand.
// Cancelled tasks are folded into the failed count. QueueDepth counts ids
// still waiting in the queue; those tasks have status pending.
type QueueStats struct {
	PendingCount    int   `json:"pending_count"`
	ProcessingCount int   `json:"processing_count"`
	CompletedCount  int   `json:"completed_count"`
	FailedCount     int   `json:"failed_count"`
	QueueDepth      int64 `json:"queue_depth"`
	TotalTasks      int   `json:"total_tasks"`
}

// NewTask creates the paired TaskRequest and initial pending TaskResult
// for a fresh submission. It generates the task id and sets timestamps.
// Returns an error if validation fails.
func NewTask(taskType TaskType, payload json.RawMessage, priority int) (*TaskRequest, *TaskResult, error) {
	now := time.Now().UTC()

	req := &TaskRequest{
		ID:        uuid.New().String(),
		TaskType:  taskType,
		CreatedAt: now,
		UpdatedAt: now,
		Priority:  priority,
		Payload:   payload,
	}

	if err := req.Validate(); err != nil {
		return nil, nil, err
	}

	res := &TaskResult{
		ID:        req.ID,
		Status:    TaskStatusPending,
		CreatedAt: now,
		UpdatedAt: now,
		Progress:  0,
	}

	return req, res, nil
}

// Validate checks if the TaskRequest has valid data.
func (r *TaskRequest) Validate() error {
	if r.ID == "" {
		return ErrEmptyTaskID
	}

	if !isValidTaskType(r.TaskType) {
		return ErrInvalidTaskType
	}

	if len(r.Payload) == 0 {
		return ErrEmptyTaskPayload
	}

	return nil
}

// Clone returns a deep copy of the request.
func (r *TaskRequest) Clone() *TaskRequest {
	c := *r
	if r.Payload != nil {
		c.Payload = append(json.RawMessage(nil), r.Payload...)
	}
	return &c
}

// Clone returns a deep copy of the result.
func (t *TaskResult) Clone() *TaskResult {
	c := *t
	if t.StartedAt != nil {
		started := *t.StartedAt
		c.StartedAt = &started
	}
	if t.CompletedAt != nil {
		completed := *t.CompletedAt
		c.CompletedAt = &completed
	}
	if t.Result != nil {
		c.Result = append(json.RawMessage(nil), t.Result...)
	}
	return &c
}

// MarkProcessing transitions the task from pending to processing and sets
// the started timestamp.
func (t *TaskResult) MarkProcessing() error {
	if t.Status.IsTerminal() {
		return ErrTerminalTransition
	}
	if t.Status == TaskStatusProcessing {
		return ErrAlreadyProcessing
	}

	now := time.Now().UTC()
	t.Status = TaskStatusProcessing
	t.StartedAt = &now
	t.UpdatedAt = now
	return nil
}

// MarkCompleted transitions the task from processing to completed with the
// collaborator's result. Progress is forced to 100.
func (t *TaskResult) MarkCompleted(result json.RawMessage) error {
	if t.Status != TaskStatusProcessing {
		return ErrNotProcessing
	}

	now := time.Now().UTC()
	t.Status = TaskStatusCompleted
	t.Result = result
	t.Progress = 100
	t.CompletedAt = &now
	t.UpdatedAt = now
	return nil
}

// MarkFailed transitions the task from processing to failed with the given
// error description.
func (t *TaskResult) MarkFailed(errMsg string) error {
	if t.Status != TaskStatusProcessing {
		return ErrNotProcessing
	}

	now := time.Now().UTC()
	t.Status = TaskStatusFailed
	t.Error = errMsg
	t.CompletedAt = &now
	t.UpdatedAt = now
	return nil
}

// MarkPending demotes an interrupted processing task back to pending so it
// can be re-enqueued during recovery.
func (t *TaskResult) MarkPending() error {
	if t.Status.IsTerminal() {
		return ErrTerminalTransition
	}

	t.Status = TaskStatusPending
	t.UpdatedAt = time.Now().UTC()
	return nil
}

// SetProgress raises the progress estimate of a processing task. Progress
// is monotonically non-decreasing within a task's lifetime; attempts to
// lower it are rejected. Only a completed transition may set 100.
func (t *TaskResult) SetProgress(progress float64) error {
	if t.Status != TaskStatusProcessing {
		return ErrNotProcessing
	}
	if progress < t.Progress {
		return ErrProgressNotForward
	}

	if progress > 99 {
		progress = 99
	}
	t.Progress = progress
	t.UpdatedAt = time.Now().UTC()
	return nil
}

// isValidTaskType checks if the given type is a known TaskType.
func isValidTaskType(taskType TaskType) bool {
	switch taskType {
	case TaskTypeTranscription, TaskTypeRiskAnalysis:
		return true
	default:
		return false
	}
}
