package task

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"

	"github.com/voxhollow/voxqueue-api/internal/events"
	"github.com/voxhollow/voxqueue-api/internal/store"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// testConfig returns intervals shrunk for fast tests. Sweep timers are
// pushed out so only explicit calls exercise them.
func testConfig() Config {
	return Config{
		IdleInterval:     2 * time.Millisecond,
		ErrorBackoff:     2 * time.Millisecond,
		ReapInterval:     time.Hour,
		StaleAfter:       time.Hour,
		ProgressInterval: time.Hour,
		BaseTimeout:      5 * time.Second,
		MaxTimeout:       10 * time.Second,
	}
}

// fakeTranscriber records calls and returns FakeFn's answer, defaulting to
// a fixed transcript.
type fakeTranscriber struct {
	mu     sync.Mutex
	calls  []string
	FakeFn func(ctx context.Context, filePath, backend, language string) (json.RawMessage, error)
}

func (f *fakeTranscriber) Transcribe(ctx context.Context, filePath, backend, language string) (json.RawMessage, error) {
	f.mu.Lock()
	f.calls = append(f.calls, filePath)
	fn := f.FakeFn
	f.mu.Unlock()

	if fn != nil {
		return fn(ctx, filePath, backend, language)
	}
	return json.RawMessage(`{"text":"hello world this is a test","language":"en"}`), nil
}

func (f *fakeTranscriber) callPaths() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.calls))
	copy(out, f.calls)
	return out
}

// fakeAnalyzer records analyzed texts and returns FakeFn's answer,
// defaulting to a safe verdict.
type fakeAnalyzer struct {
	mu     sync.Mutex
	texts  []string
	FakeFn func(ctx context.Context, text string) (json.RawMessage, error)
}

func (f *fakeAnalyzer) Analyze(ctx context.Context, text string) (json.RawMessage, error) {
	f.mu.Lock()
	f.texts = append(f.texts, text)
	fn := f.FakeFn
	f.mu.Unlock()

	if fn != nil {
		return fn(ctx, text)
	}
	return json.RawMessage(`{"text":"` + text + `","risk_analysis":{"is_risky":false,"confidence":0.9}}`), nil
}

func (f *fakeAnalyzer) analyzedTexts() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.texts))
	copy(out, f.texts)
	return out
}

// fakeNotifier records delivered payloads.
type fakeNotifier struct {
	mu       sync.Mutex
	payloads []json.RawMessage
	FakeFn   func(ctx context.Context, payload json.RawMessage) error
}

func (f *fakeNotifier) Notify(ctx context.Context, payload json.RawMessage) error {
	f.mu.Lock()
	f.payloads = append(f.payloads, append(json.RawMessage(nil), payload...))
	fn := f.FakeFn
	f.mu.Unlock()

	if fn != nil {
		return fn(ctx, payload)
	}
	return nil
}

func (f *fakeNotifier) delivered() []json.RawMessage {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]json.RawMessage, len(f.payloads))
	copy(out, f.payloads)
	return out
}

// captureSink collects broadcast messages for later inspection.
type captureSink struct {
	mu       sync.Mutex
	messages []string
}

func (s *captureSink) Send(message []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.messages = append(s.messages, string(message))
	return nil
}

// eventsOfType returns the captured messages of the given event type in
// delivery order.
func (s *captureSink) eventsOfType(eventType events.EventType) []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []string
	for _, msg := range s.messages {
		if gjson.Get(msg, "type").String() == string(eventType) {
			out = append(out, msg)
		}
	}
	return out
}

// overrideStore wraps a Store with per-method overrides for failure
// injection.
type overrideStore struct {
	store.Store
	EnqueueFn func(ctx context.Context, id string, score float64) error
}

func (s *overrideStore) Enqueue(ctx context.Context, id string, score float64) error {
	if s.EnqueueFn != nil {
		return s.EnqueueFn(ctx, id, score)
	}
	return s.Store.Enqueue(ctx, id, score)
}

// queueFixture bundles a queue under test with its collaborator fakes.
type queueFixture struct {
	queue       *Queue
	store       *store.MemoryStore
	transcriber *fakeTranscriber
	analyzer    *fakeAnalyzer
	notifier    *fakeNotifier
	sink        *captureSink
}

// newFixture builds a queue on an in-memory store with fake collaborators
// and one registered observer sink. The queue is not started; tests that
// need the dispatcher call start.
func newFixture(t *testing.T, st store.Store, cfg Config) *queueFixture {
	t.Helper()

	if st == nil {
		st = store.NewMemoryStore()
	}

	transcriber := &fakeTranscriber{}
	analyzer := &fakeAnalyzer{}
	notifier := &fakeNotifier{}

	broadcaster := events.NewBroadcaster(testLogger())
	q, err := New(context.Background(), st, broadcaster, transcriber, analyzer, notifier, cfg, testLogger())
	require.NoError(t, err)

	sink := &captureSink{}
	q.RegisterObserver("test-observer", sink)

	mem, _ := st.(*store.MemoryStore)
	return &queueFixture{
		queue:       q,
		store:       mem,
		transcriber: transcriber,
		analyzer:    analyzer,
		notifier:    notifier,
		sink:        sink,
	}
}

// start launches the queue loops and registers shutdown for cleanup.
func (f *queueFixture) start(t *testing.T) {
	t.Helper()
	f.queue.Start()
	t.Cleanup(f.queue.Stop)
}

// waitForStatus polls until the task reaches the wanted status.
func (f *queueFixture) waitForStatus(t *testing.T, id string, want string) {
	t.Helper()
	require.Eventually(t, func() bool {
		res, err := f.queue.GetStatus(context.Background(), id)
		return err == nil && string(res.Status) == want
	}, 5*time.Second, 5*time.Millisecond, "task %s never reached status %s", id, want)
}
