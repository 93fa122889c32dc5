// Package search retrieves medical evidence snippets from a web search
// provider.
package search

import (
	"context"
)

// DefaultMaxResults is the number of results requested when a Request
// leaves MaxResults unset.
const DefaultMaxResults = 5

// DefaultExcludedDomains lists blogs, forums, wikis and social sites whose
// content is not accepted as medical evidence.
var DefaultExcludedDomains = []string{
	"naver.com",
	"blog.naver.com",
	"tistory.com",
	"velog.io",
	"brunch.co.kr",
	"medium.com",
	"reddit.com",
	"dcinside.com",
	"namu.wiki",
	"youtube.com",
	"facebook.com",
	"instagram.com",
	"twitter.com",
}

// Request is one search query.
type Request struct {
	Query      string
	MaxResults int
	// ExcludeDomains overrides DefaultExcludedDomains when non-nil.
	ExcludeDomains []string
}

// Result is one retrieved document.
type Result struct {
	Title   string  `json:"title"`
	URL     string  `json:"url"`
	Content string  `json:"content"`
	Score   float64 `json:"score,omitempty"`
}

// Searcher runs a query against a provider.
type Searcher interface {
	Search(ctx context.Context, req Request) ([]Result, error)
}

// Func adapts a function to Searcher.
type Func func(ctx context.Context, req Request) ([]Result, error)

// Search implements Searcher.
func (f Func) Search(ctx context.Context, req Request) ([]Result, error) {
	return f(ctx, req)
}

// Contents returns the non-empty snippet of each result, in order.
func Contents(results []Result) []string {
	out := make([]string, 0, len(results))
	for _, r := range results {
		if r.Content != "" {
			out = append(out, r.Content)
		}
	}
	return out
}
