package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	flowerrors "github.com/DongHyun925/MediGraph/pkg/workflow/errors"
)

const (
	defaultOpenAIBaseURL = "https://api.openai.com/v1"
	defaultOpenAIModel   = "gpt-4o"
	chatCompletionsPath  = "/chat/completions"
	maxErrorPreview      = 500
)

// OpenAI implements Client against the chat completions endpoint.
type OpenAI struct {
	apiKey      string
	baseURL     string
	model       string
	temperature float64
	httpClient  *http.Client
	retry       flowerrors.RetryConfig
}

// OpenAIOption configures OpenAI.
type OpenAIOption func(*OpenAI)

// NewOpenAI creates a client. Requests default to gpt-4o at temperature 0
// and are retried with CollaboratorRetry on 429, 5xx and timeouts.
func NewOpenAI(apiKey string, opts ...OpenAIOption) *OpenAI {
	retry := flowerrors.CollaboratorRetry
	retry.RetryableFunc = IsRetryable
	o := &OpenAI{
		apiKey:     apiKey,
		baseURL:    defaultOpenAIBaseURL,
		model:      defaultOpenAIModel,
		httpClient: &http.Client{Timeout: 60 * time.Second},
		retry:      retry,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// WithBaseURL points the client at a compatible endpoint.
func WithBaseURL(url string) OpenAIOption {
	return func(o *OpenAI) {
		if url != "" {
			o.baseURL = strings.TrimRight(url, "/")
		}
	}
}

// WithOpenAIModel sets the default model.
func WithOpenAIModel(model string) OpenAIOption {
	return func(o *OpenAI) {
		if model != "" {
			o.model = model
		}
	}
}

// WithTemperature sets the sampling temperature used when a request
// leaves it at zero.
func WithTemperature(t float64) OpenAIOption {
	return func(o *OpenAI) { o.temperature = t }
}

// WithHTTPClient replaces the HTTP client.
func WithHTTPClient(c *http.Client) OpenAIOption {
	return func(o *OpenAI) {
		if c != nil {
			o.httpClient = c
		}
	}
}

// WithRetry replaces the retry policy. The retryability check is kept
// unless cfg supplies one.
func WithRetry(cfg flowerrors.RetryConfig) OpenAIOption {
	return func(o *OpenAI) {
		if cfg.RetryableFunc == nil {
			cfg.RetryableFunc = IsRetryable
		}
		o.retry = cfg
	}
}

type chatRequest struct {
	Model          string          `json:"model"`
	Messages       []chatMessage   `json:"messages"`
	Temperature    float64         `json:"temperature"`
	MaxTokens      int             `json:"max_tokens,omitempty"`
	ResponseFormat *responseFormat `json:"response_format,omitempty"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type responseFormat struct {
	Type string `json:"type"`
}

type chatResponse struct {
	Model   string `json:"model"`
	Choices []struct {
		Message      chatMessage `json:"message"`
		FinishReason string      `json:"finish_reason"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
		TotalTokens      int `json:"total_tokens"`
	} `json:"usage"`
}

type apiError struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error"`
}

// Complete implements Client.
func (o *OpenAI) Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error) {
	start := time.Now()
	body := o.buildRequest(req)

	result := flowerrors.WithRetryContext(ctx, o.retry, func(ctx context.Context) (*CompletionResponse, error) {
		return o.send(ctx, body)
	})
	if result.Err != nil {
		return nil, result.Err
	}
	if result.Attempts > 1 {
		slog.Debug("openai completion succeeded after retry", "attempts", result.Attempts)
	}
	result.Value.Duration = time.Since(start)
	return result.Value, nil
}

func (o *OpenAI) buildRequest(req CompletionRequest) chatRequest {
	model := o.model
	if req.Model != "" {
		model = req.Model
	}
	temperature := o.temperature
	if req.Temperature != 0 {
		temperature = req.Temperature
	}

	messages := make([]chatMessage, 0, len(req.Messages)+1)
	if req.SystemPrompt != "" {
		messages = append(messages, chatMessage{Role: string(RoleSystem), Content: req.SystemPrompt})
	}
	for _, m := range req.Messages {
		messages = append(messages, chatMessage{Role: string(m.Role), Content: m.Content})
	}

	out := chatRequest{
		Model:       model,
		Messages:    messages,
		Temperature: temperature,
		MaxTokens:   req.MaxTokens,
	}
	if req.JSON {
		out.ResponseFormat = &responseFormat{Type: "json_object"}
	}
	return out
}

func (o *OpenAI) send(ctx context.Context, body chatRequest) (*CompletionResponse, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, NewError("complete", fmt.Errorf("marshal request: %w", err), false)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, o.baseURL+chatCompletionsPath, bytes.NewReader(payload))
	if err != nil {
		return nil, NewError("complete", fmt.Errorf("create request: %w", err), false)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if o.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+o.apiKey)
	}

	resp, err := o.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("send request: %w", err)
	}
	defer func() {
		if closeErr := resp.Body.Close(); closeErr != nil {
			slog.Warn("failed to close response body", "error", closeErr, "endpoint", chatCompletionsPath)
		}
	}()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &flowerrors.HTTPError{
			StatusCode: resp.StatusCode,
			Message:    errorMessage(data),
			Endpoint:   chatCompletionsPath,
			RetryAfter: ParseRetryAfter(resp.Header.Get("Retry-After"), time.Now()),
		}
	}

	var decoded chatResponse
	if err := json.Unmarshal(data, &decoded); err != nil {
		return nil, &flowerrors.JSONParseError{Input: preview(string(data)), Message: "decode chat response", Err: err}
	}
	if len(decoded.Choices) == 0 {
		return nil, NewError("complete", ErrEmptyResponse, false)
	}

	choice := decoded.Choices[0]
	return &CompletionResponse{
		Content:      choice.Message.Content,
		Model:        decoded.Model,
		FinishReason: choice.FinishReason,
		Usage: TokenUsage{
			InputTokens:  decoded.Usage.PromptTokens,
			OutputTokens: decoded.Usage.CompletionTokens,
			TotalTokens:  decoded.Usage.TotalTokens,
		},
	}, nil
}

// errorMessage prefers the API's error.message over the raw body.
func errorMessage(body []byte) string {
	var e apiError
	if err := json.Unmarshal(body, &e); err == nil && e.Error.Message != "" {
		return e.Error.Message
	}
	return preview(string(body))
}

func preview(s string) string {
	if len(s) <= maxErrorPreview {
		return s
	}
	return s[:maxErrorPreview] + "..."
}

// ParseRetryAfter reads a Retry-After header given in seconds or as an
// HTTP date. Absent or unparseable values yield zero.
func ParseRetryAfter(v string, now time.Time) time.Duration {
	v = strings.TrimSpace(v)
	if v == "" {
		return 0
	}
	if secs, err := strconv.Atoi(v); err == nil {
		if secs < 0 {
			return 0
		}
		return time.Duration(secs) * time.Second
	}
	if t, err := http.ParseTime(v); err == nil {
		if d := t.Sub(now); d > 0 {
			return d
		}
	}
	return 0
}
