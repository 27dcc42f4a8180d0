package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
)

const riskPrompt = "Analyze this text for harmful, dangerous, or inappropriate content. " +
	"Respond with only 'RISKY' or 'SAFE': %s"

// riskKeywords drives the fallback classifier when the LLM endpoint is
// unavailable. The Thai terms cover the gambling/loan-scam vocabulary the
// service most often screens.
var riskKeywords = []string{
	"gambling", "illegal", "drug", "weapon", "scam", "fraud",
	"บาคาร่า", "เงินด่วน", "พนัน", "หวย", "ยาเสพติด", "คาสิโน", "หลอกลวง",
}

// LLMRiskAnalyzer classifies text through an OpenAI-compatible
// chat-completions endpoint. When the endpoint is unreachable or errors,
// it degrades to keyword matching instead of failing the task.
type LLMRiskAnalyzer struct {
	client openai.Client
	model  string
	logger *slog.Logger
}

// NewLLMRiskAnalyzer creates an analyzer for the given endpoint. apiKey
// may be empty for local, unauthenticated endpoints.
func NewLLMRiskAnalyzer(baseURL, model, apiKey string, logger *slog.Logger) *LLMRiskAnalyzer {
	if logger == nil {
		// ALLOW-PANIC: Constructor enforcing required dependency
		panic("logger cannot be nil for LLMRiskAnalyzer")
	}

	opts := []option.RequestOption{option.WithBaseURL(baseURL)}
	if apiKey != "" {
		opts = append(opts, option.WithAPIKey(apiKey))
	}

	return &LLMRiskAnalyzer{
		client: openai.NewClient(opts...),
		model:  model,
		logger: logger.With(slog.String("component", "llm_risk_analyzer")),
	}
}

// riskResult is the JSON document stored as the task result.
type riskResult struct {
	Text         string       `json:"text"`
	RiskAnalysis riskVerdict  `json:"risk_analysis"`
	Metadata     riskMetadata `json:"metadata"`
}

type riskVerdict struct {
	IsRisky          bool     `json:"is_risky"`
	RawResponse      string   `json:"raw_response"`
	Confidence       float64  `json:"confidence"`
	DetectedKeywords []string `json:"detected_keywords"`
}

type riskMetadata struct {
	Model      string    `json:"model"`
	TextLength int       `json:"text_length"`
	Timestamp  time.Time `json:"timestamp"`
	Note       string    `json:"note,omitempty"`
}

// Analyze classifies the text. The LLM verdict is preferred; keyword
// fallback is used when the endpoint cannot be reached, so an offline
// classifier never fails the task.
func (a *LLMRiskAnalyzer) Analyze(ctx context.Context, text string) (json.RawMessage, error) {
	completion, err := a.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.UserMessage(fmt.Sprintf(riskPrompt, text)),
		},
		Model:       openai.ChatModel(a.model),
		MaxTokens:   openai.Int(10),
		Temperature: openai.Float(0.1),
	})
	if err != nil {
		// A cancelled context means the caller gave up; don't mask that
		// with a fallback verdict.
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		a.logger.Warn("risk endpoint unavailable, using keyword fallback", "error", err)
		return marshalRiskResult(keywordRiskResult(text))
	}

	if len(completion.Choices) == 0 {
		a.logger.Warn("risk endpoint returned no choices, using keyword fallback")
		return marshalRiskResult(keywordRiskResult(text))
	}

	raw := strings.ToUpper(strings.TrimSpace(completion.Choices[0].Message.Content))
	isRisky := strings.Contains(raw, "RISKY")

	confidence := 0.6
	if raw == "RISKY" || raw == "SAFE" {
		confidence = 0.95
	}

	return marshalRiskResult(riskResult{
		Text: text,
		RiskAnalysis: riskVerdict{
			IsRisky:          isRisky,
			RawResponse:      raw,
			Confidence:       confidence,
			DetectedKeywords: []string{},
		},
		Metadata: riskMetadata{
			Model:      a.model,
			TextLength: len(text),
			Timestamp:  time.Now().UTC(),
		},
	})
}

// keywordRiskResult is the offline classifier: a keyword scan with
// deliberately lower confidence than an LLM verdict.
func keywordRiskResult(text string) riskResult {
	lower := strings.ToLower(text)

	detected := []string{}
	for _, keyword := range riskKeywords {
		if strings.Contains(lower, keyword) {
			detected = append(detected, keyword)
		}
	}

	isRisky := len(detected) > 0

	var confidence float64
	switch {
	case len(text) < 10:
		confidence = 0.5
	case isRisky:
		confidence = 0.85
	default:
		confidence = 0.75
	}

	raw := "SAFE"
	if isRisky {
		raw = "RISKY"
	}

	return riskResult{
		Text: text,
		RiskAnalysis: riskVerdict{
			IsRisky:          isRisky,
			RawResponse:      raw,
			Confidence:       confidence,
			DetectedKeywords: detected,
		},
		Metadata: riskMetadata{
			Model:      "keyword-fallback",
			TextLength: len(text),
			Timestamp:  time.Now().UTC(),
			Note:       "risk endpoint not available, keyword analysis used",
		},
	}
}

func marshalRiskResult(result riskResult) (json.RawMessage, error) {
	data, err := json.Marshal(result)
	if err != nil {
		return nil, fmt.Errorf("failed to serialize risk result: %w", err)
	}
	return data, nil
}
