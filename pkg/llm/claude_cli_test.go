package llm

import (
	"context"
	"errors"
	"slices"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildArgs(t *testing.T) {
	tests := []struct {
		name     string
		client   *ClaudeCLI
		req      CompletionRequest
		contains []string
		excludes []string
	}{
		{
			name:     "basic request",
			client:   NewClaudeCLI(),
			req:      UserPrompt("", "Hello"),
			contains: []string{"--print", "-p", "Hello"},
			excludes: []string{"--system-prompt", "--model"},
		},
		{
			name:     "with system prompt",
			client:   NewClaudeCLI(),
			req:      UserPrompt("Classify the symptoms", "chest pain"),
			contains: []string{"--system-prompt", "Classify the symptoms"},
		},
		{
			name:     "model from client",
			client:   NewClaudeCLI(WithModel("sonnet")),
			req:      UserPrompt("", "Test"),
			contains: []string{"--model", "sonnet"},
		},
		{
			name:     "model from request overrides client",
			client:   NewClaudeCLI(WithModel("sonnet")),
			req:      CompletionRequest{Model: "opus", Messages: []Message{{Role: RoleUser, Content: "Test"}}},
			contains: []string{"--model", "opus"},
			excludes: []string{"sonnet"},
		},
		{
			name:     "max tokens",
			client:   NewClaudeCLI(),
			req:      CompletionRequest{MaxTokens: 1000, Messages: []Message{{Role: RoleUser, Content: "Test"}}},
			contains: []string{"--max-tokens", "1000"},
		},
		{
			name:     "json mode without system prompt",
			client:   NewClaudeCLI(),
			req:      CompletionRequest{JSON: true, Messages: []Message{{Role: RoleUser, Content: "Test"}}},
			contains: []string{"--system-prompt", jsonInstruction},
		},
		{
			name:     "empty prompt omitted",
			client:   NewClaudeCLI(),
			req:      CompletionRequest{},
			contains: []string{"--print"},
			excludes: []string{"-p"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			args := tt.client.buildArgs(tt.req)
			for _, want := range tt.contains {
				assert.Contains(t, args, want)
			}
			for _, unwanted := range tt.excludes {
				assert.NotContains(t, args, unwanted)
			}
		})
	}
}

func TestBuildArgs_JSONModeAppendsInstruction(t *testing.T) {
	args := NewClaudeCLI().buildArgs(CompletionRequest{
		SystemPrompt: "Extract symptoms.",
		JSON:         true,
		Messages:     []Message{{Role: RoleUser, Content: "headache"}},
	})

	i := slices.Index(args, "--system-prompt")
	require.GreaterOrEqual(t, i, 0)
	assert.Equal(t, "Extract symptoms.\n\n"+jsonInstruction, args[i+1])
}

func TestBuildArgs_InlinesHistory(t *testing.T) {
	args := NewClaudeCLI().buildArgs(CompletionRequest{
		Messages: []Message{
			{Role: RoleUser, Content: "First"},
			{Role: RoleAssistant, Content: "Response"},
			{Role: RoleUser, Content: "Second"},
		},
	})

	i := slices.Index(args, "-p")
	require.GreaterOrEqual(t, i, 0)
	assert.Equal(t, "First\n\nAssistant: Response\n\nUser: Second", args[i+1])
}

func TestParseResponse(t *testing.T) {
	client := NewClaudeCLI(WithModel("test-model"))

	tests := []struct {
		name     string
		data     []byte
		expected string
	}{
		{"simple text", []byte("general_advice"), "general_advice"},
		{"surrounding whitespace", []byte("  SUFFICIENT  \n"), "SUFFICIENT"},
		{"multiline", []byte("Line 1\nLine 2"), "Line 1\nLine 2"},
		{"empty", []byte(""), ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := client.parseResponse(tt.data)
			assert.Equal(t, tt.expected, resp.Content)
			assert.Equal(t, "stop", resp.FinishReason)
			assert.Equal(t, "test-model", resp.Model)
		})
	}
}

func TestIsRetryableError(t *testing.T) {
	tests := []struct {
		errMsg    string
		retryable bool
	}{
		{"rate limit exceeded", true},
		{"Rate Limit", true},
		{"request timeout", true},
		{"server overloaded", true},
		{"503 service unavailable", true},
		{"error 529", true},
		{"invalid request", false},
		{"authentication failed", false},
		{"", false},
	}

	for _, tt := range tests {
		t.Run(tt.errMsg, func(t *testing.T) {
			assert.Equal(t, tt.retryable, isRetryableError(tt.errMsg))
		})
	}
}

func TestClaudeCLI_Complete_NonExistentBinary(t *testing.T) {
	client := NewClaudeCLI(WithClaudePath("/nonexistent/claude"), WithTimeout(time.Second))

	_, err := client.Complete(context.Background(), UserPrompt("", "test"))
	require.Error(t, err)

	var llmErr *Error
	require.True(t, errors.As(err, &llmErr))
	assert.Equal(t, "complete", llmErr.Op)
	assert.False(t, llmErr.Retryable)
}

func TestClaudeCLI_Complete_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewClaudeCLI(WithClaudePath("/nonexistent/claude")).Complete(ctx, UserPrompt("", "test"))
	assert.ErrorIs(t, err, context.Canceled)
}
