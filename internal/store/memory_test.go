package store

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/voxhollow/voxqueue-api/internal/domain"
)

func newTask(t *testing.T, taskType domain.TaskType) (*domain.TaskRequest, *domain.TaskResult) {
	t.Helper()

	payload := json.RawMessage(`{"file_path":"a.wav"}`)
	if taskType == domain.TaskTypeRiskAnalysis {
		payload = json.RawMessage(`{"text":"hello world"}`)
	}

	req, res, err := domain.NewTask(taskType, payload, 0)
	require.NoError(t, err)
	return req, res
}

func TestMemoryStore_Requests(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("save and get round-trip", func(t *testing.T) {
		t.Parallel()

		s := NewMemoryStore()
		req, _ := newTask(t, domain.TaskTypeTranscription)
		require.NoError(t, s.SaveRequest(ctx, req))

		got, err := s.GetRequest(ctx, req.ID)
		require.NoError(t, err)
		assert.Equal(t, req.ID, got.ID)
		assert.Equal(t, req.TaskType, got.TaskType)
		assert.JSONEq(t, string(req.Payload), string(got.Payload))
	})

	t.Run("get unknown id", func(t *testing.T) {
		t.Parallel()

		s := NewMemoryStore()
		_, err := s.GetRequest(ctx, "nope")
		assert.ErrorIs(t, err, ErrTaskRequestNotFound)
		assert.True(t, IsNotFoundError(err))
	})

	t.Run("stored copy is isolated from caller mutation", func(t *testing.T) {
		t.Parallel()

		s := NewMemoryStore()
		req, _ := newTask(t, domain.TaskTypeTranscription)
		require.NoError(t, s.SaveRequest(ctx, req))

		req.Payload[2] = 'X'

		got, err := s.GetRequest(ctx, req.ID)
		require.NoError(t, err)
		assert.JSONEq(t, `{"file_path":"a.wav"}`, string(got.Payload))
	})

	t.Run("delete is idempotent", func(t *testing.T) {
		t.Parallel()

		s := NewMemoryStore()
		req, _ := newTask(t, domain.TaskTypeTranscription)
		require.NoError(t, s.SaveRequest(ctx, req))
		require.NoError(t, s.DeleteRequest(ctx, req.ID))
		require.NoError(t, s.DeleteRequest(ctx, req.ID))

		_, err := s.GetRequest(ctx, req.ID)
		assert.ErrorIs(t, err, ErrTaskRequestNotFound)
	})
}

func TestMemoryStore_Results(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("save overwrites previous value", func(t *testing.T) {
		t.Parallel()

		s := NewMemoryStore()
		_, res := newTask(t, domain.TaskTypeRiskAnalysis)
		require.NoError(t, s.SaveResult(ctx, res))

		require.NoError(t, res.MarkProcessing())
		require.NoError(t, s.SaveResult(ctx, res))

		got, err := s.GetResult(ctx, res.ID)
		require.NoError(t, err)
		assert.Equal(t, domain.TaskStatusProcessing, got.Status)
	})

	t.Run("get unknown id", func(t *testing.T) {
		t.Parallel()

		s := NewMemoryStore()
		_, err := s.GetResult(ctx, "nope")
		assert.ErrorIs(t, err, ErrTaskResultNotFound)
		assert.True(t, IsNotFoundError(err))
	})

	t.Run("list returns every result", func(t *testing.T) {
		t.Parallel()

		s := NewMemoryStore()
		_, res1 := newTask(t, domain.TaskTypeTranscription)
		_, res2 := newTask(t, domain.TaskTypeRiskAnalysis)
		require.NoError(t, s.SaveResult(ctx, res1))
		require.NoError(t, s.SaveResult(ctx, res2))

		results, err := s.ListResults(ctx)
		require.NoError(t, err)
		assert.Len(t, results, 2)
	})
}

func TestMemoryStore_Queue(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("dequeue follows ascending score", func(t *testing.T) {
		t.Parallel()

		s := NewMemoryStore()
		require.NoError(t, s.Enqueue(ctx, "b", 2))
		require.NoError(t, s.Enqueue(ctx, "a", 1))
		require.NoError(t, s.Enqueue(ctx, "c", 3))

		for _, want := range []string{"a", "b", "c"} {
			id, err := s.Dequeue(ctx)
			require.NoError(t, err)
			assert.Equal(t, want, id)
		}

		_, err := s.Dequeue(ctx)
		assert.ErrorIs(t, err, ErrQueueEmpty)
	})

	t.Run("ties keep insertion order", func(t *testing.T) {
		t.Parallel()

		s := NewMemoryStore()
		require.NoError(t, s.Enqueue(ctx, "first", 7))
		require.NoError(t, s.Enqueue(ctx, "second", 7))

		id, err := s.Dequeue(ctx)
		require.NoError(t, err)
		assert.Equal(t, "first", id)
	})

	t.Run("re-enqueue replaces score instead of duplicating", func(t *testing.T) {
		t.Parallel()

		s := NewMemoryStore()
		require.NoError(t, s.Enqueue(ctx, "a", 5))
		require.NoError(t, s.Enqueue(ctx, "b", 2))
		require.NoError(t, s.Enqueue(ctx, "a", 1))

		depth, err := s.QueueDepth(ctx)
		require.NoError(t, err)
		assert.Equal(t, int64(2), depth)

		id, err := s.Dequeue(ctx)
		require.NoError(t, err)
		assert.Equal(t, "a", id)
	})

	t.Run("depth tracks enqueue and dequeue", func(t *testing.T) {
		t.Parallel()

		s := NewMemoryStore()
		depth, err := s.QueueDepth(ctx)
		require.NoError(t, err)
		assert.Zero(t, depth)

		require.NoError(t, s.Enqueue(ctx, "a", 1))
		depth, err = s.QueueDepth(ctx)
		require.NoError(t, err)
		assert.Equal(t, int64(1), depth)

		_, err = s.Dequeue(ctx)
		require.NoError(t, err)
		depth, err = s.QueueDepth(ctx)
		require.NoError(t, err)
		assert.Zero(t, depth)
	})
}
