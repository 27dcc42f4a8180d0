package task

import (
	"time"

	"github.com/voxhollow/voxqueue-api/internal/domain"
	"github.com/voxhollow/voxqueue-api/internal/events"
)

// staleTaskError is the fixed error recorded on tasks the reaper fails.
const staleTaskError = "task timed out and was cleaned up"

// reapLoop periodically fails tasks stuck in processing. A crashed or
// hung supervisor would otherwise leave its task processing forever; the
// reaper is the backstop that turns that into a visible failure.
func (q *Queue) reapLoop() {
	defer q.wg.Done()

	ticker := time.NewTicker(q.cfg.ReapInterval)
	defer ticker.Stop()

	for {
		select {
		case <-q.ctx.Done():
			return
		case <-ticker.C:
			q.reapStale()
		}
	}
}

// reapStale sweeps the cache once, failing every processing task whose
// started_at is older than the staleness threshold. Returns how many
// tasks were reaped.
func (q *Queue) reapStale() int {
	cutoff := time.Now().UTC().Add(-q.cfg.StaleAfter)

	var reaped int
	for _, res := range q.cache.Snapshot() {
		if res.Status != domain.TaskStatusProcessing {
			continue
		}
		if res.StartedAt == nil || !res.StartedAt.Before(cutoff) {
			continue
		}

		if err := res.MarkFailed(staleTaskError); err != nil {
			continue
		}
		if err := q.cache.Put(q.ctx, res); err != nil {
			q.logger.Error("failed to persist reaped task", "task_id", res.ID, "error", err)
			continue
		}

		q.logger.Warn("reaped stale task",
			"task_id", res.ID,
			"started_at", res.StartedAt)

		q.broadcaster.Broadcast(events.Event{
			Type:   events.EventTaskCompleted,
			TaskID: res.ID,
			Status: res.Status,
			Error:  res.Error,
		})

		q.deleteRequestRecord(res.ID)
		q.untrack(res.ID)
		reaped++
	}

	return reaped
}
