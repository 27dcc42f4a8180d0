package task

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/voxhollow/voxqueue-api/internal/domain"
	"github.com/voxhollow/voxqueue-api/internal/store"
)

func newCacheResult(t *testing.T) *domain.TaskResult {
	t.Helper()
	_, res, err := domain.NewTask(domain.TaskTypeTranscription,
		json.RawMessage(`{"file_path":"a.wav"}`), 0)
	require.NoError(t, err)
	return res
}

func TestResultCache(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("put writes through to the store", func(t *testing.T) {
		t.Parallel()

		mem := store.NewMemoryStore()
		cache := newResultCache(mem)
		res := newCacheResult(t)

		require.NoError(t, cache.Put(ctx, res))

		stored, err := mem.GetResult(ctx, res.ID)
		require.NoError(t, err)
		assert.Equal(t, domain.TaskStatusPending, stored.Status)
	})

	t.Run("get falls back to the store on a miss", func(t *testing.T) {
		t.Parallel()

		mem := store.NewMemoryStore()
		res := newCacheResult(t)
		require.NoError(t, mem.SaveResult(ctx, res))

		cache := newResultCache(mem)
		got, err := cache.Get(ctx, res.ID)
		require.NoError(t, err)
		assert.Equal(t, res.ID, got.ID)
	})

	t.Run("get returns isolated copies", func(t *testing.T) {
		t.Parallel()

		mem := store.NewMemoryStore()
		cache := newResultCache(mem)
		res := newCacheResult(t)
		require.NoError(t, cache.Put(ctx, res))

		got, err := cache.Get(ctx, res.ID)
		require.NoError(t, err)
		got.Status = domain.TaskStatusFailed

		again, err := cache.Get(ctx, res.ID)
		require.NoError(t, err)
		assert.Equal(t, domain.TaskStatusPending, again.Status)
	})

	t.Run("terminal entry cannot be overwritten by a different status", func(t *testing.T) {
		t.Parallel()

		mem := store.NewMemoryStore()
		cache := newResultCache(mem)

		res := newCacheResult(t)
		require.NoError(t, res.MarkProcessing())
		require.NoError(t, res.MarkFailed("reaped"))
		require.NoError(t, cache.Put(ctx, res))

		// A late supervisor still holding a processing copy loses.
		late := res.Clone()
		late.Status = domain.TaskStatusCompleted
		err := cache.Put(ctx, late)
		assert.ErrorIs(t, err, domain.ErrTerminalTransition)

		got, err := cache.Get(ctx, res.ID)
		require.NoError(t, err)
		assert.Equal(t, domain.TaskStatusFailed, got.Status)
	})

	t.Run("forget drops only the mirror entry", func(t *testing.T) {
		t.Parallel()

		mem := store.NewMemoryStore()
		cache := newResultCache(mem)
		res := newCacheResult(t)
		require.NoError(t, cache.Put(ctx, res))

		cache.Forget(res.ID)
		assert.Empty(t, cache.Snapshot())

		// The store copy is untouched; a later get re-warms the mirror.
		got, err := cache.Get(ctx, res.ID)
		require.NoError(t, err)
		assert.Equal(t, res.ID, got.ID)
	})

	t.Run("warm populates the mirror without a store write", func(t *testing.T) {
		t.Parallel()

		mem := store.NewMemoryStore()
		cache := newResultCache(mem)
		res := newCacheResult(t)

		cache.Warm(res)
		assert.Len(t, cache.Snapshot(), 1)

		_, err := mem.GetResult(ctx, res.ID)
		assert.ErrorIs(t, err, store.ErrTaskResultNotFound)
	})
}
