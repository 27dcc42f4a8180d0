package engine

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"
)

// transcribeResponseLimit bounds how much of an engine response is read;
// large transcripts fit comfortably, runaway responses do not.
const transcribeResponseLimit = 32 << 20

// HTTPTranscriber calls an external transcription engine over HTTP. The
// engine owns audio decoding and model inference; this client only ships
// the request and passes the opaque JSON result through.
type HTTPTranscriber struct {
	baseURL string
	client  *http.Client
	logger  *slog.Logger
}

// NewHTTPTranscriber creates a client for the engine at baseURL. No
// request timeout is set on the client: transcription legitimately runs
// for minutes and the queue's execution supervisor owns the time budget
// through ctx.
func NewHTTPTranscriber(baseURL string, logger *slog.Logger) *HTTPTranscriber {
	if logger == nil {
		// ALLOW-PANIC: Constructor enforcing required dependency
		panic("logger cannot be nil for HTTPTranscriber")
	}

	return &HTTPTranscriber{
		baseURL: baseURL,
		client:  &http.Client{},
		logger:  logger.With(slog.String("component", "http_transcriber")),
	}
}

type transcribeRequest struct {
	FilePath string `json:"file_path"`
	Backend  string `json:"backend"`
	Language string `json:"language,omitempty"`
}

// Transcribe posts the job to the engine and returns its JSON result.
func (t *HTTPTranscriber) Transcribe(
	ctx context.Context,
	filePath, backend, language string,
) (json.RawMessage, error) {
	body, err := json.Marshal(transcribeRequest{
		FilePath: filePath,
		Backend:  backend,
		Language: language,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to serialize transcription request: %w", err)
	}

	req, err := http.NewRequestWithContext(
		ctx,
		http.MethodPost,
		t.baseURL+"/transcribe",
		bytes.NewReader(body),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to build transcription request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := t.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("transcription engine unreachable: %w", err)
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			t.logger.Warn("failed to close engine response body", "error", err)
		}
	}()

	data, err := io.ReadAll(io.LimitReader(resp.Body, transcribeResponseLimit))
	if err != nil {
		return nil, fmt.Errorf("failed to read transcription response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("transcription engine returned %d: %s", resp.StatusCode, truncate(data, 200))
	}

	if !json.Valid(data) {
		return nil, fmt.Errorf("transcription engine returned invalid JSON")
	}

	t.logger.Debug("transcription finished",
		"file_path", filePath,
		"backend", backend,
		"elapsed", time.Since(start))

	return json.RawMessage(data), nil
}

func truncate(data []byte, limit int) string {
	if len(data) <= limit {
		return string(data)
	}
	return string(data[:limit]) + "..."
}
