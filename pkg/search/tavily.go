package search

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	flowerrors "github.com/DongHyun925/MediGraph/pkg/workflow/errors"
)

const (
	tavilyBaseURL    = "https://api.tavily.com"
	tavilySearchPath = "/search"
	tavilyMaxResults = 20
)

// Tavily implements Searcher against the Tavily search API.
type Tavily struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
	retry      flowerrors.RetryConfig
}

// TavilyOption configures Tavily.
type TavilyOption func(*Tavily)

// NewTavily creates a Tavily client.
func NewTavily(apiKey string, opts ...TavilyOption) *Tavily {
	t := &Tavily{
		apiKey:     apiKey,
		baseURL:    tavilyBaseURL,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		retry:      flowerrors.CollaboratorRetry,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// WithTavilyBaseURL overrides the API endpoint.
func WithTavilyBaseURL(url string) TavilyOption {
	return func(t *Tavily) {
		if url != "" {
			t.baseURL = strings.TrimRight(url, "/")
		}
	}
}

// WithTavilyHTTPClient replaces the HTTP client.
func WithTavilyHTTPClient(c *http.Client) TavilyOption {
	return func(t *Tavily) {
		if c != nil {
			t.httpClient = c
		}
	}
}

// WithTavilyRetry replaces the retry policy.
func WithTavilyRetry(cfg flowerrors.RetryConfig) TavilyOption {
	return func(t *Tavily) { t.retry = cfg }
}

type tavilyRequest struct {
	APIKey         string   `json:"api_key"`
	Query          string   `json:"query"`
	SearchDepth    string   `json:"search_depth"`
	MaxResults     int      `json:"max_results"`
	ExcludeDomains []string `json:"exclude_domains,omitempty"`
}

type tavilyResponse struct {
	Query   string `json:"query"`
	Results []struct {
		Title   string  `json:"title"`
		URL     string  `json:"url"`
		Content string  `json:"content"`
		Score   float64 `json:"score"`
	} `json:"results"`
}

type tavilyError struct {
	Detail struct {
		Error string `json:"error"`
	} `json:"detail"`
}

// Search implements Searcher. Results with no content after cleaning are
// dropped.
func (t *Tavily) Search(ctx context.Context, req Request) ([]Result, error) {
	body := tavilyRequest{
		APIKey:         t.apiKey,
		Query:          req.Query,
		SearchDepth:    "basic",
		MaxResults:     clampResults(req.MaxResults),
		ExcludeDomains: req.ExcludeDomains,
	}
	if body.ExcludeDomains == nil {
		body.ExcludeDomains = DefaultExcludedDomains
	}

	result := flowerrors.WithRetryContext(ctx, t.retry, func(ctx context.Context) (*tavilyResponse, error) {
		return t.send(ctx, body)
	})
	if result.Err != nil {
		return nil, result.Err
	}

	results := make([]Result, 0, len(result.Value.Results))
	for _, r := range result.Value.Results {
		content := CleanContent(r.Content)
		if content == "" {
			continue
		}
		results = append(results, Result{Title: r.Title, URL: r.URL, Content: content, Score: r.Score})
	}
	return results, nil
}

func clampResults(n int) int {
	if n <= 0 {
		return DefaultMaxResults
	}
	return min(n, tavilyMaxResults)
}

func (t *Tavily) send(ctx context.Context, body tavilyRequest) (*tavilyResponse, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, t.baseURL+tavilySearchPath, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := t.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("send request: %w", err)
	}
	defer func() {
		if closeErr := resp.Body.Close(); closeErr != nil {
			slog.Warn("failed to close response body", "error", closeErr, "endpoint", tavilySearchPath)
		}
	}()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		msg := string(data)
		var apiErr tavilyError
		if json.Unmarshal(data, &apiErr) == nil && apiErr.Detail.Error != "" {
			msg = apiErr.Detail.Error
		}
		return nil, &flowerrors.HTTPError{StatusCode: resp.StatusCode, Message: msg, Endpoint: tavilySearchPath}
	}

	var decoded tavilyResponse
	if err := json.Unmarshal(data, &decoded); err != nil {
		return nil, &flowerrors.JSONParseError{Message: "decode search response", Err: err}
	}
	return &decoded, nil
}
