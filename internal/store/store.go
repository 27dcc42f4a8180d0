package store

import (
	"context"

	"github.com/voxhollow/voxqueue-api/internal/domain"
)

// Store is the durable persistence boundary of the queue: a key-value
// store with an atomic sorted-set primitive holding task requests, task
// results, and the pending-queue ordering. It is the sole source of truth
// for task state; everything in memory is reconstructible from it.
type Store interface {
	// SaveRequest persists a task request under task_request:<id>.
	SaveRequest(ctx context.Context, req *domain.TaskRequest) error

	// GetRequest loads a task request by id.
	// Returns ErrTaskRequestNotFound if it does not exist.
	GetRequest(ctx context.Context, id string) (*domain.TaskRequest, error)

	// DeleteRequest removes a task request. Deleting a missing request is
	// not an error; terminal cleanup must be idempotent.
	DeleteRequest(ctx context.Context, id string) error

	// SaveResult persists a task result under task_result:<id>,
	// overwriting any previous value.
	SaveResult(ctx context.Context, res *domain.TaskResult) error

	// GetResult loads a task result by id.
	// Returns ErrTaskResultNotFound if it does not exist.
	GetResult(ctx context.Context, id string) (*domain.TaskResult, error)

	// DeleteResult removes a task result. Deleting a missing result is not
	// an error. Used only to roll back a partially persisted admission.
	DeleteResult(ctx context.Context, id string) error

	// ListResults loads every persisted task result. Used once at startup
	// to rebuild the in-memory cache.
	ListResults(ctx context.Context) ([]*domain.TaskResult, error)

	// Enqueue adds a task id to the pending queue with the given score.
	// Lower scores dequeue first; the score is the admission timestamp.
	Enqueue(ctx context.Context, id string, score float64) error

	// Dequeue removes and returns the lowest-scored id from the pending
	// queue. Returns ErrQueueEmpty when there is nothing waiting.
	Dequeue(ctx context.Context) (string, error)

	// QueueDepth returns the number of ids waiting in the pending queue.
	QueueDepth(ctx context.Context) (int64, error)
}
