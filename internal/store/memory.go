package store

import (
	"context"
	"sort"
	"sync"

	"github.com/voxhollow/voxqueue-api/internal/domain"
)

// MemoryStore is an in-memory Store used by tests and local development.
// It mirrors the Redis layout: two id-keyed maps plus a score-ordered
// pending queue. All state is lost on restart.
type MemoryStore struct {
	mu       sync.RWMutex
	requests map[string]*domain.TaskRequest
	results  map[string]*domain.TaskResult
	queue    []queueEntry
	seq      int64
}

// queueEntry orders the pending queue by score, with insertion order
// breaking score ties so same-instant submissions keep admission order.
type queueEntry struct {
	id    string
	score float64
	seq   int64
}

// Compile-time check that MemoryStore satisfies Store.
var _ Store = (*MemoryStore)(nil)

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		requests: make(map[string]*domain.TaskRequest),
		results:  make(map[string]*domain.TaskResult),
	}
}

// SaveRequest persists a task request.
func (s *MemoryStore) SaveRequest(_ context.Context, req *domain.TaskRequest) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.requests[req.ID] = req.Clone()
	return nil
}

// GetRequest loads a task request by id.
func (s *MemoryStore) GetRequest(_ context.Context, id string) (*domain.TaskRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	req, ok := s.requests[id]
	if !ok {
		return nil, ErrTaskRequestNotFound
	}
	return req.Clone(), nil
}

// DeleteRequest removes a task request. Missing ids are ignored.
func (s *MemoryStore) DeleteRequest(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.requests, id)
	return nil
}

// SaveResult persists a task result, overwriting any previous value.
func (s *MemoryStore) SaveResult(_ context.Context, res *domain.TaskResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.results[res.ID] = res.Clone()
	return nil
}

// GetResult loads a task result by id.
func (s *MemoryStore) GetResult(_ context.Context, id string) (*domain.TaskResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	res, ok := s.results[id]
	if !ok {
		return nil, ErrTaskResultNotFound
	}
	return res.Clone(), nil
}

// DeleteResult removes a task result. Missing ids are ignored.
func (s *MemoryStore) DeleteResult(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.results, id)
	return nil
}

// ListResults loads every persisted task result.
func (s *MemoryStore) ListResults(_ context.Context) ([]*domain.TaskResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	results := make([]*domain.TaskResult, 0, len(s.results))
	for _, res := range s.results {
		results = append(results, res.Clone())
	}
	return results, nil
}

// Enqueue adds a task id to the pending queue.
func (s *MemoryStore) Enqueue(_ context.Context, id string, score float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	// Re-enqueueing an id replaces its score, matching sorted-set semantics.
	for i, entry := range s.queue {
		if entry.id == id {
			s.queue[i].score = score
			s.sortQueueLocked()
			return nil
		}
	}

	s.seq++
	s.queue = append(s.queue, queueEntry{id: id, score: score, seq: s.seq})
	s.sortQueueLocked()
	return nil
}

// Dequeue removes and returns the lowest-scored task id.
func (s *MemoryStore) Dequeue(_ context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.queue) == 0 {
		return "", ErrQueueEmpty
	}

	id := s.queue[0].id
	s.queue = s.queue[1:]
	return id, nil
}

// QueueDepth returns the number of ids waiting in the pending queue.
func (s *MemoryStore) QueueDepth(_ context.Context) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return int64(len(s.queue)), nil
}

func (s *MemoryStore) sortQueueLocked() {
	sort.SliceStable(s.queue, func(i, j int) bool {
		if s.queue[i].score != s.queue[j].score {
			return s.queue[i].score < s.queue[j].score
		}
		return s.queue[i].seq < s.queue[j].seq
	})
}
