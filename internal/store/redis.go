package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/voxhollow/voxqueue-api/internal/domain"
)

// Persisted key layout.
const (
	taskRequestKeyPrefix = "task_request:"
	taskResultKeyPrefix  = "task_result:"
	taskQueueKey         = "task_queue"
)

// scanBatchSize is the COUNT hint for SCAN during startup recovery.
const scanBatchSize = 100

// RedisStore implements Store on top of Redis. Task requests and results
// are JSON values under task_request:<id> / task_result:<id>; the pending
// queue is the sorted set task_queue scored by admission time.
type RedisStore struct {
	client *redis.Client
}

// Compile-time check that RedisStore satisfies Store.
var _ Store = (*RedisStore)(nil)

// NewRedisStore creates a RedisStore using the given client. The caller
// owns the client's lifecycle.
func NewRedisStore(client *redis.Client) *RedisStore {
	if client == nil {
		// ALLOW-PANIC: Constructor enforcing required dependency
		panic("redis client cannot be nil for RedisStore")
	}
	return &RedisStore{client: client}
}

// SaveRequest persists a task request.
func (s *RedisStore) SaveRequest(ctx context.Context, req *domain.TaskRequest) error {
	data, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("failed to serialize task request: %w", err)
	}

	if err := s.client.Set(ctx, taskRequestKeyPrefix+req.ID, data, 0).Err(); err != nil {
		return fmt.Errorf("failed to save task request: %w", err)
	}
	return nil
}

// GetRequest loads a task request by id.
func (s *RedisStore) GetRequest(ctx context.Context, id string) (*domain.TaskRequest, error) {
	data, err := s.client.Get(ctx, taskRequestKeyPrefix+id).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrTaskRequestNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load task request: %w", err)
	}

	var req domain.TaskRequest
	if err := json.Unmarshal(data, &req); err != nil {
		return nil, fmt.Errorf("failed to parse task request: %w", err)
	}
	return &req, nil
}

// DeleteRequest removes a task request. Missing keys are ignored.
func (s *RedisStore) DeleteRequest(ctx context.Context, id string) error {
	if err := s.client.Del(ctx, taskRequestKeyPrefix+id).Err(); err != nil {
		return fmt.Errorf("failed to delete task request: %w", err)
	}
	return nil
}

// SaveResult persists a task result, overwriting any previous value.
func (s *RedisStore) SaveResult(ctx context.Context, res *domain.TaskResult) error {
	data, err := json.Marshal(res)
	if err != nil {
		return fmt.Errorf("failed to serialize task result: %w", err)
	}

	if err := s.client.Set(ctx, taskResultKeyPrefix+res.ID, data, 0).Err(); err != nil {
		return fmt.Errorf("failed to save task result: %w", err)
	}
	return nil
}

// GetResult loads a task result by id.
func (s *RedisStore) GetResult(ctx context.Context, id string) (*domain.TaskResult, error) {
	data, err := s.client.Get(ctx, taskResultKeyPrefix+id).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrTaskResultNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load task result: %w", err)
	}

	var res domain.TaskResult
	if err := json.Unmarshal(data, &res); err != nil {
		return nil, fmt.Errorf("failed to parse task result: %w", err)
	}
	return &res, nil
}

// DeleteResult removes a task result. Missing keys are ignored.
func (s *RedisStore) DeleteResult(ctx context.Context, id string) error {
	if err := s.client.Del(ctx, taskResultKeyPrefix+id).Err(); err != nil {
		return fmt.Errorf("failed to delete task result: %w", err)
	}
	return nil
}

// ListResults loads every persisted task result using SCAN + MGET.
func (s *RedisStore) ListResults(ctx context.Context) ([]*domain.TaskResult, error) {
	var keys []string
	iter := s.client.Scan(ctx, 0, taskResultKeyPrefix+"*", scanBatchSize).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("failed to scan task results: %w", err)
	}

	if len(keys) == 0 {
		return nil, nil
	}

	values, err := s.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to load task results: %w", err)
	}

	results := make([]*domain.TaskResult, 0, len(values))
	for _, value := range values {
		data, ok := value.(string)
		if !ok {
			// Key deleted between SCAN and MGET.
			continue
		}

		var res domain.TaskResult
		if err := json.Unmarshal([]byte(data), &res); err != nil {
			return nil, fmt.Errorf("failed to parse task result: %w", err)
		}
		results = append(results, &res)
	}
	return results, nil
}

// Enqueue adds a task id to the pending queue.
func (s *RedisStore) Enqueue(ctx context.Context, id string, score float64) error {
	if err := s.client.ZAdd(ctx, taskQueueKey, redis.Z{Score: score, Member: id}).Err(); err != nil {
		return fmt.Errorf("failed to enqueue task: %w", err)
	}
	return nil
}

// Dequeue atomically removes and returns the lowest-scored task id.
func (s *RedisStore) Dequeue(ctx context.Context) (string, error) {
	entries, err := s.client.ZPopMin(ctx, taskQueueKey, 1).Result()
	if err != nil {
		return "", fmt.Errorf("failed to dequeue task: %w", err)
	}
	if len(entries) == 0 {
		return "", ErrQueueEmpty
	}

	id, ok := entries[0].Member.(string)
	if !ok {
		return "", fmt.Errorf("unexpected member type in %s", taskQueueKey)
	}
	return id, nil
}

// QueueDepth returns the number of ids waiting in the pending queue.
func (s *RedisStore) QueueDepth(ctx context.Context) (int64, error) {
	depth, err := s.client.ZCard(ctx, taskQueueKey).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to read queue depth: %w", err)
	}
	return depth, nil
}
