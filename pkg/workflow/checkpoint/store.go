// Package checkpoint provides conversation-keyed storage for the latest
// session snapshot, so a conversation can continue on its next turn.
package checkpoint

import (
	"context"
	"errors"
	"time"
)

// Store persists the latest checkpoint of each conversation.
// Implementations must be safe for concurrent use.
type Store interface {
	// Save stores the checkpoint for a conversation, fully replacing any
	// previous one.
	Save(ctx context.Context, conversationID string, data []byte) error

	// Load retrieves the latest checkpoint.
	// Returns ErrNotFound if the conversation has none.
	Load(ctx context.Context, conversationID string) ([]byte, error)

	// List returns metadata for every stored conversation, most recently
	// updated first. Returns an empty slice (not error) if the store is empty.
	List(ctx context.Context) ([]Info, error)

	// Delete removes a conversation's checkpoint.
	// Returns nil if the conversation doesn't exist.
	Delete(ctx context.Context, conversationID string) error

	// Close releases any resources (connections, files).
	Close() error
}

// Info provides metadata without loading the checkpoint.
type Info struct {
	ConversationID string
	// Sequence counts how many times the conversation has been saved.
	Sequence  int
	UpdatedAt time.Time
	Size      int64
}

// Sentinel errors for checkpoint operations.
var (
	// ErrNotFound indicates a checkpoint doesn't exist.
	ErrNotFound = errors.New("checkpoint not found")

	// ErrStoreClosed indicates the store has been closed.
	ErrStoreClosed = errors.New("checkpoint store closed")

	// ErrEmptyConversationID indicates a Save was attempted without a key.
	ErrEmptyConversationID = errors.New("conversation ID required")
)
