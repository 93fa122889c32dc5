// Package llm is the boundary to the reasoning service the diagnostic
// stages consult. Client has three implementations: OpenAI over HTTP,
// ClaudeCLI over the local claude binary, and MockClient for tests.
package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"

	flowerrors "github.com/DongHyun925/MediGraph/pkg/workflow/errors"
)

// Client sends one completion request and waits for the full reply.
type Client interface {
	Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error)
}

// ErrEmptyResponse means the backend answered without any content.
var ErrEmptyResponse = errors.New("empty response")

// Error wraps a backend failure with the operation that produced it.
type Error struct {
	Op        string
	Err       error
	Retryable bool
}

// NewError creates an Error.
func NewError(op string, err error, retryable bool) *Error {
	return &Error{Op: op, Err: err, Retryable: retryable}
}

func (e *Error) Error() string {
	return fmt.Sprintf("llm %s: %v", e.Op, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// IsRetryable reports whether a failed call is worth repeating. An Error
// carries its own verdict; anything else goes through the shared
// categorization (429, 5xx and timeouts are transient).
func IsRetryable(err error) bool {
	var llmErr *Error
	if errors.As(err, &llmErr) {
		return llmErr.Retryable
	}
	return flowerrors.IsRetryable(err)
}

// Text sends req and returns the trimmed reply content.
func Text(ctx context.Context, c Client, req CompletionRequest) (string, error) {
	resp, err := c.Complete(ctx, req)
	if err != nil {
		return "", err
	}
	if resp == nil {
		return "", NewError("complete", ErrEmptyResponse, false)
	}
	return strings.TrimSpace(resp.Content), nil
}
