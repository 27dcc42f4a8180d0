package events

import (
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"

	"github.com/voxhollow/voxqueue-api/internal/domain"
)

// captureSink records every message it receives and can be configured to
// fail every send.
type captureSink struct {
	mu       sync.Mutex
	messages [][]byte
	sendErr  error
}

func (s *captureSink) Send(message []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.sendErr != nil {
		return s.sendErr
	}
	s.messages = append(s.messages, message)
	return nil
}

func (s *captureSink) received() [][]byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([][]byte, len(s.messages))
	copy(out, s.messages)
	return out
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestBroadcaster_Broadcast(t *testing.T) {
	t.Parallel()

	t.Run("fans out to every registered sink", func(t *testing.T) {
		t.Parallel()

		b := NewBroadcaster(testLogger())
		first := &captureSink{}
		second := &captureSink{}
		b.Register("first", first)
		b.Register("second", second)

		b.Broadcast(Event{
			Type:     EventNewTask,
			TaskID:   "task-1",
			TaskType: domain.TaskTypeTranscription,
			Status:   domain.TaskStatusPending,
		})

		require.Len(t, first.received(), 1)
		require.Len(t, second.received(), 1)

		msg := string(first.received()[0])
		assert.Equal(t, "new_task", gjson.Get(msg, "type").String())
		assert.Equal(t, "task-1", gjson.Get(msg, "task_id").String())
		assert.Equal(t, "pending", gjson.Get(msg, "status").String())
		assert.True(t, gjson.Get(msg, "timestamp").Exists())
	})

	t.Run("failing sink does not block the others", func(t *testing.T) {
		t.Parallel()

		b := NewBroadcaster(testLogger())
		broken := &captureSink{sendErr: errors.New("connection reset")}
		healthy := &captureSink{}
		b.Register("broken", broken)
		b.Register("healthy", healthy)

		b.Broadcast(Event{Type: EventProgress, TaskID: "task-2", Progress: ProgressValue(30)})

		assert.Empty(t, broken.received())
		require.Len(t, healthy.received(), 1)
		assert.Equal(t, float64(30), gjson.Get(string(healthy.received()[0]), "progress").Float())
	})

	t.Run("deregistered sink stops receiving", func(t *testing.T) {
		t.Parallel()

		b := NewBroadcaster(testLogger())
		sink := &captureSink{}
		b.Register("gone", sink)
		b.Deregister("gone")

		b.Broadcast(Event{Type: EventTaskCompleted, TaskID: "task-3"})

		assert.Empty(t, sink.received())
	})

	t.Run("no sinks is a no-op", func(t *testing.T) {
		t.Parallel()

		b := NewBroadcaster(testLogger())
		assert.NotPanics(t, func() {
			b.Broadcast(Event{Type: EventStatusUpdate, TaskID: "task-4"})
		})
	})

	t.Run("registering an existing id replaces the sink", func(t *testing.T) {
		t.Parallel()

		b := NewBroadcaster(testLogger())
		old := &captureSink{}
		replacement := &captureSink{}
		b.Register("observer", old)
		b.Register("observer", replacement)

		b.Broadcast(Event{Type: EventNewTask, TaskID: "task-5"})

		assert.Empty(t, old.received())
		assert.Len(t, replacement.received(), 1)
	})
}

func TestNewBroadcaster_NilLogger(t *testing.T) {
	t.Parallel()

	assert.Panics(t, func() {
		NewBroadcaster(nil)
	})
}
