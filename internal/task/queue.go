package task

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/tidwall/gjson"

	"github.com/voxhollow/voxqueue-api/internal/domain"
	"github.com/voxhollow/voxqueue-api/internal/engine"
	"github.com/voxhollow/voxqueue-api/internal/events"
	"github.com/voxhollow/voxqueue-api/internal/store"
)

// Admission-time payload errors.
var (
	ErrInvalidPayload  = errors.New("payload is not valid JSON")
	ErrMissingFilePath = errors.New("missing file_path in payload")
	ErrMissingText     = errors.New("missing text in payload")
)

// Config holds the queue's tunable intervals and timeout constants.
type Config struct {
	// IdleInterval is how long the dispatcher sleeps when the queue is
	// empty.
	IdleInterval time.Duration

	// ErrorBackoff is how long the dispatcher sleeps after a transient
	// dispatch failure.
	ErrorBackoff time.Duration

	// ReapInterval is the period of the stale-task sweep.
	ReapInterval time.Duration

	// StaleAfter is how long a task may sit in processing before the
	// reaper fails it.
	StaleAfter time.Duration

	// ProgressInterval throttles how often progress estimates are
	// persisted and broadcast while a collaborator runs.
	ProgressInterval time.Duration

	// BaseTimeout is the execution budget every task starts from; input
	// size and estimated duration extend it up to MaxTimeout.
	BaseTimeout time.Duration

	// MaxTimeout is the hard cap on any execution budget.
	MaxTimeout time.Duration
}

// DefaultConfig returns a Config with production defaults.
func DefaultConfig() Config {
	return Config{
		IdleInterval:     time.Second,
		ErrorBackoff:     5 * time.Second,
		ReapInterval:     10 * time.Minute,
		StaleAfter:       time.Hour,
		ProgressInterval: 10 * time.Second,
		BaseTimeout:      300 * time.Second,
		MaxTimeout:       1800 * time.Second,
	}
}

// Queue is the job-orchestration core: it admits tasks, tracks their
// lifecycle in the durable store, dispatches them FIFO by admission time,
// supervises execution, and broadcasts lifecycle events to observers.
type Queue struct {
	store       store.Store
	cache       *resultCache
	broadcaster *events.Broadcaster
	transcriber engine.Transcriber
	analyzer    engine.RiskAnalyzer
	notifier    engine.Notifier
	cfg         Config
	logger      *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	// inFlight tracks ids with a live execution supervisor.
	inFlightMu sync.Mutex
	inFlight   map[string]struct{}
}

// New creates the queue and immediately runs the recovery procedure:
// every persisted result is loaded into the cache, and any task found
// still processing is demoted to pending and re-enqueued, on the
// assumption its supervisor did not survive the restart. The queue does
// not dispatch anything until Start is called.
//
// Recovery offers no idempotence guarantee: a collaborator that finished
// right before the crash, after its side effects but before the final
// write, will run again.
func New(
	ctx context.Context,
	st store.Store,
	broadcaster *events.Broadcaster,
	transcriber engine.Transcriber,
	analyzer engine.RiskAnalyzer,
	notifier engine.Notifier,
	cfg Config,
	logger *slog.Logger,
) (*Queue, error) {
	if st == nil || broadcaster == nil || transcriber == nil || analyzer == nil || notifier == nil {
		// ALLOW-PANIC: Constructor enforcing required dependencies
		panic("queue dependencies cannot be nil")
	}
	if logger == nil {
		// ALLOW-PANIC: Constructor enforcing required dependency
		panic("logger cannot be nil for Queue")
	}

	runCtx, cancel := context.WithCancel(context.Background())
	q := &Queue{
		store:       st,
		cache:       newResultCache(st),
		broadcaster: broadcaster,
		transcriber: transcriber,
		analyzer:    analyzer,
		notifier:    notifier,
		cfg:         cfg,
		logger:      logger.With(slog.String("component", "task_queue")),
		ctx:         runCtx,
		cancel:      cancel,
		inFlight:    make(map[string]struct{}),
	}

	if err := q.recoverState(ctx); err != nil {
		cancel()
		return nil, fmt.Errorf("failed to recover queue state: %w", err)
	}

	return q, nil
}

// Start launches the dispatcher loop and the stale-task reaper.
func (q *Queue) Start() {
	q.wg.Add(2)
	go q.dispatchLoop()
	go q.reapLoop()
	q.logger.Info("task queue started")
}

// Stop shuts the queue down. In-flight supervisors notice the cancelled
// context and return without writing a terminal state, leaving their
// tasks processing in the store so recovery re-runs them on the next
// start.
func (q *Queue) Stop() {
	q.cancel()
	q.wg.Wait()
	q.logger.Info("task queue stopped")
}

// Submit admits a new task: persist the request and an initial pending
// result, append the id to the queue scored by admission time, and
// broadcast the new task. Any persistence failure aborts the submission
// and is returned to the caller; the queue never holds an id without a
// matching request.
func (q *Queue) Submit(
	ctx context.Context,
	taskType domain.TaskType,
	payload json.RawMessage,
	priority int,
) (string, error) {
	if err := validatePayload(taskType, payload); err != nil {
		return "", err
	}

	req, res, err := domain.NewTask(taskType, payload, priority)
	if err != nil {
		return "", err
	}

	if err := q.admit(ctx, req, res); err != nil {
		return "", err
	}
	return req.ID, nil
}

// admit runs the persist+enqueue+broadcast sequence shared by Submit and
// the auto-chain policy.
func (q *Queue) admit(ctx context.Context, req *domain.TaskRequest, res *domain.TaskResult) error {
	if err := q.store.SaveRequest(ctx, req); err != nil {
		return fmt.Errorf("failed to save task request: %w", err)
	}

	if err := q.cache.Put(ctx, res); err != nil {
		q.rollbackAdmission(ctx, req.ID, false)
		return fmt.Errorf("failed to save task result: %w", err)
	}

	if err := q.store.Enqueue(ctx, req.ID, admissionScore(req.CreatedAt)); err != nil {
		q.rollbackAdmission(ctx, req.ID, true)
		return fmt.Errorf("failed to enqueue task: %w", err)
	}

	q.logger.Info("task admitted",
		"task_id", req.ID,
		"task_type", req.TaskType,
		"priority", req.Priority)

	q.broadcaster.Broadcast(events.Event{
		Type:     events.EventNewTask,
		TaskID:   req.ID,
		TaskType: req.TaskType,
		Status:   res.Status,
	})
	return nil
}

// rollbackAdmission removes whatever a failed admission already wrote.
// Best effort; a failure here leaves at worst an unqueued orphan record.
func (q *Queue) rollbackAdmission(ctx context.Context, id string, resultSaved bool) {
	if err := q.store.DeleteRequest(ctx, id); err != nil {
		q.logger.Warn("failed to roll back task request", "task_id", id, "error", err)
	}
	if resultSaved {
		q.cache.Forget(id)
		if err := q.store.DeleteResult(ctx, id); err != nil {
			q.logger.Warn("failed to roll back task result", "task_id", id, "error", err)
		}
	}
}

// GetStatus returns the current result record for a task.
// Returns store.ErrTaskResultNotFound for unknown ids.
func (q *Queue) GetStatus(ctx context.Context, id string) (*domain.TaskResult, error) {
	return q.cache.Get(ctx, id)
}

// GetStats derives per-status counts from the cache plus the current
// queue depth from the store. Cancelled tasks count as failed.
func (q *Queue) GetStats(ctx context.Context) (*domain.QueueStats, error) {
	stats := &domain.QueueStats{}

	for _, res := range q.cache.Snapshot() {
		stats.TotalTasks++
		switch res.Status {
		case domain.TaskStatusPending:
			stats.PendingCount++
		case domain.TaskStatusProcessing:
			stats.ProcessingCount++
		case domain.TaskStatusCompleted:
			stats.CompletedCount++
		case domain.TaskStatusFailed, domain.TaskStatusCancelled:
			stats.FailedCount++
		}
	}

	depth, err := q.store.QueueDepth(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read queue depth: %w", err)
	}
	stats.QueueDepth = depth

	return stats, nil
}

// GetHistory returns task results sorted by updated_at descending,
// optionally filtered by status. A limit <= 0 returns everything.
func (q *Queue) GetHistory(
	_ context.Context,
	limit int,
	statusFilter domain.TaskStatus,
) ([]*domain.TaskResult, error) {
	results := q.cache.Snapshot()

	if statusFilter != "" {
		filtered := results[:0]
		for _, res := range results {
			if res.Status == statusFilter {
				filtered = append(filtered, res)
			}
		}
		results = filtered
	}

	sort.Slice(results, func(i, j int) bool {
		return results[i].UpdatedAt.After(results[j].UpdatedAt)
	})

	if limit > 0 && len(results) > limit {
		results = results[:limit]
	}
	return results, nil
}

// RegisterObserver attaches a message sink that will receive every
// broadcast lifecycle event.
func (q *Queue) RegisterObserver(id string, sink events.Sink) {
	q.broadcaster.Register(id, sink)
}

// DeregisterObserver detaches an observer sink.
func (q *Queue) DeregisterObserver(id string) {
	q.broadcaster.Deregister(id)
}

// recoverState rebuilds the cache from the store and re-queues any task
// that was processing when the previous process died. Each such task is
// demoted to pending and enqueued at its original admission score, so a
// restart never loses work and never changes admission order.
func (q *Queue) recoverState(ctx context.Context) error {
	results, err := q.store.ListResults(ctx)
	if err != nil {
		return err
	}

	var requeued int
	for _, res := range results {
		q.cache.Warm(res)

		if res.Status != domain.TaskStatusProcessing {
			continue
		}

		q.logger.Info("resuming interrupted task", "task_id", res.ID)

		if err := res.MarkPending(); err != nil {
			return fmt.Errorf("failed to demote task %s: %w", res.ID, err)
		}
		if err := q.cache.Put(ctx, res); err != nil {
			return fmt.Errorf("failed to persist demoted task %s: %w", res.ID, err)
		}
		if err := q.store.Enqueue(ctx, res.ID, admissionScore(res.CreatedAt)); err != nil {
			return fmt.Errorf("failed to re-enqueue task %s: %w", res.ID, err)
		}
		requeued++
	}

	q.logger.Info("queue state recovered",
		"results_loaded", len(results),
		"tasks_requeued", requeued)
	return nil
}

// track records a live execution supervisor for the id.
func (q *Queue) track(id string) {
	q.inFlightMu.Lock()
	defer q.inFlightMu.Unlock()
	q.inFlight[id] = struct{}{}
}

// untrack removes the id from the in-flight handle table.
func (q *Queue) untrack(id string) {
	q.inFlightMu.Lock()
	defer q.inFlightMu.Unlock()
	delete(q.inFlight, id)
}

// admissionScore converts an admission timestamp to a queue score.
// Microsecond resolution keeps back-to-back submissions distinct while
// staying exactly representable in a float64 score.
func admissionScore(t time.Time) float64 {
	return float64(t.UnixMicro())
}

// validatePayload rejects obviously unusable payloads at admission so the
// submitter hears about them synchronously. Execution re-checks the same
// fields when it parses the payload.
func validatePayload(taskType domain.TaskType, payload json.RawMessage) error {
	if !gjson.ValidBytes(payload) {
		return ErrInvalidPayload
	}

	switch taskType {
	case domain.TaskTypeTranscription:
		if gjson.GetBytes(payload, "file_path").String() == "" {
			return ErrMissingFilePath
		}
	case domain.TaskTypeRiskAnalysis:
		if gjson.GetBytes(payload, "text").String() == "" {
			return ErrMissingText
		}
	}
	return nil
}
