package task

import (
	"context"
	"fmt"
	"sync"

	"github.com/voxhollow/voxqueue-api/internal/domain"
	"github.com/voxhollow/voxqueue-api/internal/store"
)

// resultCache is an id -> TaskResult mirror in front of the durable
// store. Reads go through it to spare the store a round trip on frequent
// polling; writes always hit the store first, so the cache can lag by at
// most one write and is safely reconstructible at any time.
type resultCache struct {
	mu      sync.RWMutex
	results map[string]*domain.TaskResult
	store   store.Store
}

func newResultCache(st store.Store) *resultCache {
	return &resultCache{
		results: make(map[string]*domain.TaskResult),
		store:   st,
	}
}

// Get returns a copy of the result, loading it from the store on a cache
// miss. Returns store.ErrTaskResultNotFound for unknown ids.
func (c *resultCache) Get(ctx context.Context, id string) (*domain.TaskResult, error) {
	c.mu.RLock()
	res, ok := c.results[id]
	if ok {
		clone := res.Clone()
		c.mu.RUnlock()
		return clone, nil
	}
	c.mu.RUnlock()

	res, err := c.store.GetResult(ctx, id)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.results[id] = res
	c.mu.Unlock()

	return res.Clone(), nil
}

// Put persists the result to the store and then updates the mirror. A
// terminal cached entry is never overwritten by a different status: the
// state machine has no transitions out of terminal states, and late
// writers (a supervisor racing the reaper) must lose.
func (c *resultCache) Put(ctx context.Context, res *domain.TaskResult) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if existing, ok := c.results[res.ID]; ok {
		if existing.Status.IsTerminal() && existing.Status != res.Status {
			return fmt.Errorf("%w: %s is %s", domain.ErrTerminalTransition, res.ID, existing.Status)
		}
	}

	if err := c.store.SaveResult(ctx, res); err != nil {
		return err
	}

	c.results[res.ID] = res.Clone()
	return nil
}

// Forget drops an entry from the mirror without touching the store. Used
// when an admission is rolled back after the result write already landed.
func (c *resultCache) Forget(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.results, id)
}

// Warm inserts a result into the mirror without writing the store. Used
// during recovery when the entry was just loaded from the store.
func (c *resultCache) Warm(res *domain.TaskResult) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.results[res.ID] = res.Clone()
}

// Snapshot returns copies of every cached result.
func (c *resultCache) Snapshot() []*domain.TaskResult {
	c.mu.RLock()
	defer c.mu.RUnlock()

	results := make([]*domain.TaskResult, 0, len(c.results))
	for _, res := range c.results {
		results = append(results, res.Clone())
	}
	return results
}
