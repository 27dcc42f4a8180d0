package events

import (
	"encoding/json"
	"log/slog"
	"sync"
	"time"
)

// Broadcaster fans lifecycle events out to every registered observer sink.
// Delivery is best-effort: a sink that errors is logged and skipped, and
// never affects other sinks or task execution.
type Broadcaster struct {
	mu     sync.RWMutex
	sinks  map[string]Sink
	logger *slog.Logger
}

// NewBroadcaster creates an empty Broadcaster.
func NewBroadcaster(logger *slog.Logger) *Broadcaster {
	if logger == nil {
		// ALLOW-PANIC: Constructor enforcing required dependency
		panic("logger cannot be nil for Broadcaster")
	}

	return &Broadcaster{
		sinks:  make(map[string]Sink),
		logger: logger.With(slog.String("component", "broadcaster")),
	}
}

// Register adds an observer sink under the given id. Registering an
// existing id replaces its sink.
func (b *Broadcaster) Register(id string, sink Sink) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.sinks[id] = sink
	b.logger.Debug("observer registered", "observer_id", id, "observer_count", len(b.sinks))
}

// Deregister removes an observer sink. Unknown ids are ignored.
func (b *Broadcaster) Deregister(id string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.sinks, id)
	b.logger.Debug("observer deregistered", "observer_id", id, "observer_count", len(b.sinks))
}

// Broadcast serializes the event once and sends it to every registered
// sink. Never blocks on sink failures and never returns an error.
func (b *Broadcaster) Broadcast(event Event) {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}

	message, err := json.Marshal(event)
	if err != nil {
		b.logger.Error("failed to serialize event",
			"event_type", event.Type,
			"task_id", event.TaskID,
			"error", err)
		return
	}

	b.mu.RLock()
	sinks := make(map[string]Sink, len(b.sinks))
	for id, sink := range b.sinks {
		sinks[id] = sink
	}
	b.mu.RUnlock()

	for id, sink := range sinks {
		if err := sink.Send(message); err != nil {
			b.logger.Warn("failed to deliver event to observer",
				"observer_id", id,
				"event_type", event.Type,
				"task_id", event.TaskID,
				"error", err)
		}
	}
}
