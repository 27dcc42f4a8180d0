package engine

import (
	"context"
	"encoding/json"
)

// Transcriber converts an audio file into a transcription result. The
// engine behind it is opaque to the queue; calls may block for minutes.
type Transcriber interface {
	// Transcribe runs speech-to-text on the file at filePath. Backend is a
	// compute hint ("auto", "cpu", "gpu", "coreml"); language is an
	// optional language hint, empty for auto-detection. The result is an
	// opaque JSON document whose top-level "text" field carries the
	// transcript.
	Transcribe(ctx context.Context, filePath, backend, language string) (json.RawMessage, error)
}

// RiskAnalyzer classifies text for harmful or inappropriate content.
type RiskAnalyzer interface {
	// Analyze returns an opaque JSON document describing the risk verdict
	// for the given text.
	Analyze(ctx context.Context, text string) (json.RawMessage, error)
}

// Notifier delivers a fire-and-forget update to an external system after
// an auto-chained risk analysis completes. Failures are logged by the
// caller and never surfaced as task failures.
type Notifier interface {
	Notify(ctx context.Context, payload json.RawMessage) error
}
