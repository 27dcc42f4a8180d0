package task

import (
	"errors"
	"time"

	"github.com/voxhollow/voxqueue-api/internal/domain"
	"github.com/voxhollow/voxqueue-api/internal/events"
	"github.com/voxhollow/voxqueue-api/internal/store"
)

// dispatchLoop is the queue's single coordination loop. All dequeue
// decisions happen here, single-threaded, so admission order is dispatch
// order; execution itself fans out onto supervisor goroutines. The loop
// never exits on error, it logs, backs off and keeps going.
func (q *Queue) dispatchLoop() {
	defer q.wg.Done()

	q.logger.Debug("dispatcher started")

	for {
		select {
		case <-q.ctx.Done():
			q.logger.Debug("dispatcher stopping")
			return
		default:
		}

		dispatched, err := q.dispatchNext()
		switch {
		case err != nil:
			q.logger.Error("error dispatching task", "error", err)
			q.sleep(q.cfg.ErrorBackoff)
		case !dispatched:
			q.sleep(q.cfg.IdleInterval)
		}
	}
}

// dispatchNext pops the lowest-scored pending id, transitions it to
// processing and hands it to a new execution supervisor without waiting
// for it. Returns false when the queue is empty.
func (q *Queue) dispatchNext() (bool, error) {
	id, err := q.store.Dequeue(q.ctx)
	if errors.Is(err, store.ErrQueueEmpty) {
		return false, nil
	}
	if err != nil {
		return false, err
	}

	res, err := q.cache.Get(q.ctx, id)
	if err != nil {
		// A queued id without a result record means a half-rolled-back
		// admission; there is nothing to run.
		q.logger.Warn("dequeued task has no result record, dropping", "task_id", id, "error", err)
		return true, nil
	}

	if err := res.MarkProcessing(); err != nil {
		q.logger.Warn("dequeued task not in a runnable state, dropping",
			"task_id", id,
			"status", res.Status,
			"error", err)
		return true, nil
	}

	if err := q.cache.Put(q.ctx, res); err != nil {
		// The transition did not persist, so the task is still pending as
		// far as the store is concerned; put it back for a later retry.
		if enqErr := q.store.Enqueue(q.ctx, id, admissionScore(res.CreatedAt)); enqErr != nil {
			q.logger.Error("failed to re-enqueue task after persist failure",
				"task_id", id,
				"error", enqErr)
		}
		return false, err
	}

	q.broadcaster.Broadcast(events.Event{
		Type:     events.EventStatusUpdate,
		TaskID:   res.ID,
		Status:   domain.TaskStatusProcessing,
		Progress: events.ProgressValue(res.Progress),
	})

	q.track(res.ID)
	q.wg.Add(1)
	go q.runTask(res)

	return true, nil
}

// sleep waits for the given duration or until shutdown.
func (q *Queue) sleep(d time.Duration) {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-q.ctx.Done():
	case <-timer.C:
	}
}
