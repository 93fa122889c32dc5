package checkpoint

import (
	"context"
	"slices"
	"strings"
	"sync"
	"time"
)

// MemoryStore keeps checkpoints in process memory. It is the default store;
// data is lost when the process exits.
type MemoryStore struct {
	mu     sync.RWMutex
	data   map[string]storedCheckpoint // conversationID -> latest checkpoint
	closed bool
}

type storedCheckpoint struct {
	data      []byte
	sequence  int
	updatedAt time.Time
}

// NewMemoryStore creates a new in-memory checkpoint store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		data: make(map[string]storedCheckpoint),
	}
}

// Save implements Store.
func (m *MemoryStore) Save(ctx context.Context, conversationID string, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if conversationID == "" {
		return ErrEmptyConversationID
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrStoreClosed
	}

	m.data[conversationID] = storedCheckpoint{
		data:      slices.Clone(data),
		sequence:  m.data[conversationID].sequence + 1,
		updatedAt: time.Now().UTC(),
	}
	return nil
}

// Load implements Store.
func (m *MemoryStore) Load(ctx context.Context, conversationID string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return nil, ErrStoreClosed
	}

	cp, ok := m.data[conversationID]
	if !ok {
		return nil, ErrNotFound
	}
	return slices.Clone(cp.data), nil
}

// List implements Store.
func (m *MemoryStore) List(ctx context.Context) ([]Info, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return nil, ErrStoreClosed
	}

	infos := make([]Info, 0, len(m.data))
	for id, cp := range m.data {
		infos = append(infos, Info{
			ConversationID: id,
			Sequence:       cp.sequence,
			UpdatedAt:      cp.updatedAt,
			Size:           int64(len(cp.data)),
		})
	}
	slices.SortFunc(infos, func(a, b Info) int {
		if c := b.UpdatedAt.Compare(a.UpdatedAt); c != 0 {
			return c
		}
		return strings.Compare(a.ConversationID, b.ConversationID)
	})
	return infos, nil
}

// Delete implements Store.
func (m *MemoryStore) Delete(ctx context.Context, conversationID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrStoreClosed
	}
	delete(m.data, conversationID)
	return nil
}

// Close implements Store.
func (m *MemoryStore) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.closed = true
	m.data = nil
	return nil
}

// Len returns the number of stored conversations.
func (m *MemoryStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.data)
}
