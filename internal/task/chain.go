package task

import (
	"encoding/json"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"

	"github.com/voxhollow/voxqueue-api/internal/domain"
	"github.com/voxhollow/voxqueue-api/internal/events"
)

// Auto-chain policy constants.
const (
	// minChainTextLength is the shortest transcript worth classifying;
	// anything shorter is skipped as an explicit no-op.
	minChainTextLength = 10

	// chainPriority is the elevated priority recorded on auto-chained
	// tasks. It is persisted but, like every priority, not consulted for
	// dequeue ordering.
	chainPriority = 10
)

// chainRiskAnalysis applies the auto-chain policy to a completed
// transcription: when the transcript is long enough, a follow-on
// risk-analysis task is synthesized and admitted through the same
// persist+enqueue+broadcast sequence as a public submission.
func (q *Queue) chainRiskAnalysis(req *domain.TaskRequest, res *domain.TaskResult) {
	defer q.wg.Done()

	text := gjson.GetBytes(res.Result, "text").String()
	if len(text) < minChainTextLength {
		q.logger.Debug("transcript too short for auto risk analysis, skipping",
			"task_id", res.ID,
			"text_length", len(text))
		return
	}

	payload, err := buildChainPayload(req, res.ID, text)
	if err != nil {
		q.reportChainFailure(res.ID, err.Error())
		return
	}

	chainedReq, chainedRes, err := domain.NewTask(domain.TaskTypeRiskAnalysis, payload, chainPriority)
	if err != nil {
		q.reportChainFailure(res.ID, err.Error())
		return
	}

	if err := q.admit(q.ctx, chainedReq, chainedRes); err != nil {
		q.reportChainFailure(res.ID, err.Error())
		return
	}

	q.logger.Info("auto risk analysis triggered",
		"task_id", res.ID,
		"chained_task_id", chainedReq.ID)

	q.broadcaster.Broadcast(events.Event{
		Type:          events.EventAutoChainTriggered,
		TaskID:        res.ID,
		ChainedTaskID: chainedReq.ID,
	})
}

// buildChainPayload assembles the risk-analysis payload carrying the
// transcript, the originating task id, and the source file metadata from
// the original request.
func buildChainPayload(req *domain.TaskRequest, sourceTaskID, text string) (json.RawMessage, error) {
	payload, err := sjson.SetBytes([]byte(`{}`), "text", text)
	if err != nil {
		return nil, err
	}
	payload, err = sjson.SetBytes(payload, "auto_triggered", true)
	if err != nil {
		return nil, err
	}
	payload, err = sjson.SetBytes(payload, "source_task_id", sourceTaskID)
	if err != nil {
		return nil, err
	}

	if filePath := gjson.GetBytes(req.Payload, "file_path").String(); filePath != "" {
		payload, err = sjson.SetBytes(payload, "source_file", filePath)
		if err != nil {
			return nil, err
		}
	}
	return payload, nil
}

// reportChainFailure logs and broadcasts a failed auto-chain attempt.
// The originating transcription stays completed; chain errors never fail
// the task that triggered them.
func (q *Queue) reportChainFailure(taskID, errMsg string) {
	q.logger.Error("failed to trigger auto risk analysis",
		"task_id", taskID,
		"error", errMsg)

	q.broadcaster.Broadcast(events.Event{
		Type:   events.EventAutoChainFailed,
		TaskID: taskID,
		Error:  errMsg,
	})
}

// notifyChainedCompletion fires the external notification for a completed
// auto-chained risk analysis. Delivery is fire-and-forget: failures are
// logged and never surfaced as task failures.
func (q *Queue) notifyChainedCompletion(req *domain.TaskRequest, res *domain.TaskResult) {
	defer q.wg.Done()

	payload, err := buildNotifyPayload(req, res)
	if err != nil {
		q.logger.Warn("failed to build notification payload",
			"task_id", res.ID,
			"error", err)
		return
	}

	if err := q.notifier.Notify(q.ctx, payload); err != nil {
		q.logger.Warn("failed to deliver completion notification",
			"task_id", res.ID,
			"error", err)
		return
	}

	q.logger.Info("completion notification delivered",
		"task_id", res.ID,
		"source_task_id", gjson.GetBytes(req.Payload, "source_task_id").String())
}

// buildNotifyPayload assembles the update sent to the external system:
// both task ids, the verdict, and the full result document.
func buildNotifyPayload(req *domain.TaskRequest, res *domain.TaskResult) (json.RawMessage, error) {
	payload, err := sjson.SetBytes([]byte(`{}`), "task_id", res.ID)
	if err != nil {
		return nil, err
	}
	payload, err = sjson.SetBytes(payload, "source_task_id",
		gjson.GetBytes(req.Payload, "source_task_id").String())
	if err != nil {
		return nil, err
	}
	payload, err = sjson.SetBytes(payload, "is_risky",
		gjson.GetBytes(res.Result, "risk_analysis.is_risky").Bool())
	if err != nil {
		return nil, err
	}
	return sjson.SetRawBytes(payload, "result", res.Result)
}
