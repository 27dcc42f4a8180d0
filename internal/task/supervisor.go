package task

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/tidwall/gjson"

	"github.com/voxhollow/voxqueue-api/internal/domain"
	"github.com/voxhollow/voxqueue-api/internal/events"
)

// Progress checkpoints. Progress is a synthetic estimate staged through
// fixed points, then climbing linearly toward the await ceiling across
// the remaining time budget; only the terminal completed write sets 100.
const (
	progressValidated    = 5
	progressPreprocessed = 10
	progressEngineReady  = 20
	progressRunning      = 30
	progressAwaitCeiling = 90
	progressResultReady  = 95
)

// Dynamic-timeout constants: every full 50MB of input beyond the first
// 50MB buys 60s, every full 30 minutes of estimated audio beyond the
// first 30 buys 120s, all on top of Config.BaseTimeout and capped at
// Config.MaxTimeout.
const (
	sizeFloorBytes      = int64(50 << 20)
	sizeStepBytes       = int64(50 << 20)
	sizeStepTimeout     = 60 * time.Second
	durationFloor       = 30 * time.Minute
	durationStep        = 30 * time.Minute
	durationStepTimeout = 120 * time.Second
)

// progressTick is how often the supervisor re-estimates progress while
// waiting on a collaborator. Persisting and broadcasting the estimate is
// separately throttled by Config.ProgressInterval.
const progressTick = time.Second

type collaboratorOutcome struct {
	result json.RawMessage
	err    error
}

// runTask supervises one task from processing to a terminal state. The
// collaborator runs on its own goroutine behind a single-slot completion
// channel so the supervisor can keep emitting progress while it waits.
func (q *Queue) runTask(res *domain.TaskResult) {
	defer q.wg.Done()
	defer q.untrack(res.ID)

	logger := q.logger.With("task_id", res.ID)

	req, err := q.store.GetRequest(q.ctx, res.ID)
	if err != nil {
		if q.ctx.Err() != nil {
			return
		}
		q.finishFailed(res, "task request not found")
		return
	}

	budget, capped := q.executionBudget(req.Payload)
	logger.Info("processing task",
		"task_type", req.TaskType,
		"timeout", budget,
		"priority", req.Priority)

	// Staged checkpoints before the collaborator starts.
	q.advanceProgress(res, progressValidated)
	q.advanceProgress(res, progressPreprocessed)
	q.advanceProgress(res, progressEngineReady)
	q.advanceProgress(res, progressRunning)

	execCtx, cancelExec := context.WithTimeout(q.ctx, budget)
	defer cancelExec()

	done := make(chan collaboratorOutcome, 1)
	go func() {
		result, err := q.invokeCollaborator(execCtx, req)
		done <- collaboratorOutcome{result: result, err: err}
	}()

	started := time.Now()
	deadline := time.NewTimer(budget)
	defer deadline.Stop()
	ticker := time.NewTicker(progressTick)
	defer ticker.Stop()
	lastEmit := started

	for {
		select {
		case <-q.ctx.Done():
			// Shutdown. Leave the task processing in the store; the
			// recovery procedure re-queues it on the next start.
			logger.Info("shutdown during execution, leaving task for recovery")
			return

		case outcome := <-done:
			if outcome.err != nil {
				// A shutdown cancels the execution context; the resulting
				// collaborator error is not a task failure.
				if q.ctx.Err() != nil {
					logger.Info("shutdown during execution, leaving task for recovery")
					return
				}
				q.finishFailed(res, failureMessage(req.TaskType, outcome.err))
				return
			}
			q.advanceProgress(res, progressResultReady)
			q.finishCompleted(res, req, outcome.result)
			return

		case <-deadline.C:
			q.finishFailed(res, timeoutMessage(req.TaskType, budget, capped))
			return

		case <-ticker.C:
			if time.Since(lastEmit) < q.cfg.ProgressInterval {
				continue
			}
			elapsed := time.Since(started)
			estimate := progressRunning +
				(progressAwaitCeiling-progressRunning)*elapsed.Seconds()/budget.Seconds()
			if estimate > progressAwaitCeiling {
				estimate = progressAwaitCeiling
			}
			q.advanceProgress(res, estimate)
			lastEmit = time.Now()
		}
	}
}

// invokeCollaborator parses the payload and calls the collaborator
// matching the task type.
func (q *Queue) invokeCollaborator(
	ctx context.Context,
	req *domain.TaskRequest,
) (json.RawMessage, error) {
	switch req.TaskType {
	case domain.TaskTypeTranscription:
		filePath := gjson.GetBytes(req.Payload, "file_path").String()
		if filePath == "" {
			return nil, ErrMissingFilePath
		}
		backend := gjson.GetBytes(req.Payload, "backend").String()
		if backend == "" {
			backend = "auto"
		}
		language := gjson.GetBytes(req.Payload, "language").String()
		return q.transcriber.Transcribe(ctx, filePath, backend, language)

	case domain.TaskTypeRiskAnalysis:
		text := gjson.GetBytes(req.Payload, "text").String()
		if text == "" {
			return nil, ErrMissingText
		}
		return q.analyzer.Analyze(ctx, text)

	default:
		return nil, fmt.Errorf("%w: %s", domain.ErrInvalidTaskType, req.TaskType)
	}
}

// executionBudget computes the task's time budget from payload metadata.
// The second return value reports whether the computed budget hit the
// hard cap, which marks the job as very large for the timeout message.
func (q *Queue) executionBudget(payload json.RawMessage) (time.Duration, bool) {
	budget := q.cfg.BaseTimeout

	if size := gjson.GetBytes(payload, "file_size_bytes").Int(); size > sizeFloorBytes {
		steps := (size - sizeFloorBytes + sizeStepBytes - 1) / sizeStepBytes
		budget += time.Duration(steps) * sizeStepTimeout
	}

	if seconds := gjson.GetBytes(payload, "duration_seconds").Float(); seconds > 0 {
		estimated := time.Duration(seconds * float64(time.Second))
		if estimated > durationFloor {
			steps := (estimated - durationFloor + durationStep - 1) / durationStep
			budget += time.Duration(steps) * durationStepTimeout
		}
	}

	if budget > q.cfg.MaxTimeout {
		return q.cfg.MaxTimeout, true
	}
	return budget, false
}

// advanceProgress raises the progress estimate, persists it and
// broadcasts it. Estimates that cannot move forward are dropped silently;
// a persist failure only costs observers one update.
func (q *Queue) advanceProgress(res *domain.TaskResult, progress float64) {
	if err := res.SetProgress(progress); err != nil {
		return
	}

	if err := q.cache.Put(q.ctx, res); err != nil {
		q.logger.Warn("failed to persist progress", "task_id", res.ID, "error", err)
		return
	}

	q.broadcaster.Broadcast(events.Event{
		Type:     events.EventProgress,
		TaskID:   res.ID,
		Progress: events.ProgressValue(res.Progress),
	})
}

// finishCompleted persists the terminal completed state, broadcasts it,
// cleans up the request record, and applies the auto-chain policy.
func (q *Queue) finishCompleted(res *domain.TaskResult, req *domain.TaskRequest, result json.RawMessage) {
	if err := res.MarkCompleted(result); err != nil {
		q.logger.Warn("dropping completion for task no longer processing",
			"task_id", res.ID, "error", err)
		return
	}

	if err := q.cache.Put(q.ctx, res); err != nil {
		q.logger.Error("failed to persist completed task", "task_id", res.ID, "error", err)
		return
	}

	q.logger.Info("task completed", "task_id", res.ID, "task_type", req.TaskType)

	q.broadcaster.Broadcast(events.Event{
		Type:     events.EventTaskCompleted,
		TaskID:   res.ID,
		Status:   res.Status,
		Result:   res.Result,
		Progress: events.ProgressValue(res.Progress),
	})

	q.deleteRequestRecord(res.ID)

	// Auto-chain runs off the supervisor's critical path: completion is
	// already persisted and broadcast before any follow-on work starts.
	switch req.TaskType {
	case domain.TaskTypeTranscription:
		q.wg.Add(1)
		go q.chainRiskAnalysis(req, res.Clone())
	case domain.TaskTypeRiskAnalysis:
		if gjson.GetBytes(req.Payload, "auto_triggered").Bool() {
			q.wg.Add(1)
			go q.notifyChainedCompletion(req, res.Clone())
		}
	}
}

// finishFailed persists the terminal failed state, broadcasts it and
// cleans up the request record.
func (q *Queue) finishFailed(res *domain.TaskResult, errMsg string) {
	if err := res.MarkFailed(errMsg); err != nil {
		q.logger.Warn("dropping failure for task no longer processing",
			"task_id", res.ID, "error", err)
		return
	}

	if err := q.cache.Put(q.ctx, res); err != nil {
		q.logger.Error("failed to persist failed task", "task_id", res.ID, "error", err)
		return
	}

	q.logger.Warn("task failed", "task_id", res.ID, "error", errMsg)

	q.broadcaster.Broadcast(events.Event{
		Type:   events.EventTaskCompleted,
		TaskID: res.ID,
		Status: res.Status,
		Error:  res.Error,
	})

	q.deleteRequestRecord(res.ID)
}

// deleteRequestRecord drops the now-unneeded TaskRequest after a terminal
// transition. Best effort; a leftover request is only wasted storage.
func (q *Queue) deleteRequestRecord(id string) {
	if err := q.store.DeleteRequest(q.ctx, id); err != nil {
		q.logger.Warn("failed to delete task request", "task_id", id, "error", err)
	}
}

// failureMessage prefixes a collaborator error with the task kind, e.g.
// "Risk analysis failed: LLM unavailable".
func failureMessage(taskType domain.TaskType, err error) string {
	return fmt.Sprintf("%s failed: %v", taskTypeLabel(taskType), err)
}

// timeoutMessage describes an exceeded budget. Jobs whose metadata pushed
// the budget into the hard cap get a distinct message suggesting the
// input be split.
func timeoutMessage(taskType domain.TaskType, budget time.Duration, capped bool) string {
	if capped {
		return fmt.Sprintf(
			"%s timed out after %s: input is very large; consider splitting it into smaller chunks",
			taskTypeLabel(taskType), budget)
	}
	return fmt.Sprintf("%s timed out after %s", taskTypeLabel(taskType), budget)
}

func taskTypeLabel(taskType domain.TaskType) string {
	switch taskType {
	case domain.TaskTypeTranscription:
		return "Transcription"
	case domain.TaskTypeRiskAnalysis:
		return "Risk analysis"
	default:
		return string(taskType)
	}
}
