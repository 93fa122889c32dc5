package workflow

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/DongHyun925/MediGraph/pkg/workflow/checkpoint"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recordingStore wraps a MemoryStore and counts saves per stage.
type recordingStore struct {
	*checkpoint.MemoryStore

	mu      sync.Mutex
	saves   []string
	saveErr error
	loadErr error
}

func newRecordingStore() *recordingStore {
	return &recordingStore{MemoryStore: checkpoint.NewMemoryStore()}
}

func (r *recordingStore) Save(ctx context.Context, conversationID string, data []byte) error {
	if r.saveErr != nil {
		return r.saveErr
	}
	cp, err := checkpoint.Unmarshal(data)
	if err != nil {
		return err
	}
	r.mu.Lock()
	r.saves = append(r.saves, cp.StageID)
	r.mu.Unlock()
	return r.MemoryStore.Save(ctx, conversationID, data)
}

func (r *recordingStore) Load(ctx context.Context, conversationID string) ([]byte, error) {
	if r.loadErr != nil {
		return nil, r.loadErr
	}
	return r.MemoryStore.Load(ctx, conversationID)
}

func historyGraph(t *testing.T) *CompiledGraph[Counter, Delta] {
	t.Helper()
	compiled, err := newCounterGraph().
		AddStage("reply", func(ctx Context, s Counter) (Delta, error) {
			return Delta{Add: 1, Visit: "reply"}, nil
		}).
		AddStage("log", increment).
		AddEdge("reply", "log").
		AddEdge("log", END).
		SetEntry("reply").
		Compile()
	require.NoError(t, err)
	return compiled
}

func TestCheckpoint_MultiTurnConversation(t *testing.T) {
	store := checkpoint.NewMemoryStore()
	compiled := historyGraph(t)

	first, err := compiled.Run(testCtx(), "", Delta{Visit: "user-1"}, WithCheckpointing(store))
	require.NoError(t, err)
	assert.Equal(t, 1, first.Turn)
	assert.Equal(t, 2, first.State.Value)

	second, err := compiled.Run(testCtx(), first.ConversationID, Delta{Visit: "user-2"}, WithCheckpointing(store))
	require.NoError(t, err)
	assert.Equal(t, 2, second.Turn)
	assert.Equal(t, 4, second.State.Value)
	assert.Equal(t, []string{"user-1", "reply", "user-2", "reply"}, second.State.Visits)

	for _, ev := range second.Events {
		assert.Equal(t, 2, ev.Turn)
	}
}

func TestCheckpoint_HistoryGrowsByAppendedMessages(t *testing.T) {
	store := checkpoint.NewMemoryStore()
	compiled := historyGraph(t)

	convID := "conv-append"
	expected := 0
	for turn := 1; turn <= 5; turn++ {
		result, err := compiled.Run(testCtx(), convID, Delta{Visit: "user"}, WithCheckpointing(store))
		require.NoError(t, err)

		expected += 2 // one input, one reply
		assert.Len(t, result.State.Visits, expected)
		assert.Equal(t, turn, result.Turn)
	}
}

func TestCheckpoint_SavedAfterEveryStage(t *testing.T) {
	store := newRecordingStore()
	compiled := historyGraph(t)

	_, err := compiled.Run(testCtx(), "conv-1", Delta{}, WithCheckpointing(store))

	require.NoError(t, err)
	assert.Equal(t, []string{"reply", "log"}, store.saves)

	data, err := store.MemoryStore.Load(context.Background(), "conv-1")
	require.NoError(t, err)
	cp, err := checkpoint.Unmarshal(data)
	require.NoError(t, err)
	assert.Equal(t, "log", cp.StageID)
	assert.Equal(t, 2, cp.Sequence)
	assert.Equal(t, 1, cp.Turn)
	assert.Equal(t, "conv-1", cp.ConversationID)
}

func TestCheckpoint_WithoutStoreStartsFresh(t *testing.T) {
	compiled := historyGraph(t)

	_, err := compiled.Run(testCtx(), "conv-1", Delta{})
	require.NoError(t, err)
	second, err := compiled.Run(testCtx(), "conv-1", Delta{})
	require.NoError(t, err)

	assert.Equal(t, 1, second.Turn)
	assert.Equal(t, 2, second.State.Value)
}

func TestCheckpoint_SaveFailure(t *testing.T) {
	errDisk := errors.New("disk full")

	t.Run("logged and ignored by default", func(t *testing.T) {
		store := newRecordingStore()
		store.saveErr = errDisk

		result, err := historyGraph(t).Run(testCtx(), "conv-1", Delta{}, WithCheckpointing(store))

		require.NoError(t, err)
		assert.Equal(t, 2, result.State.Value)
	})

	t.Run("fatal when configured", func(t *testing.T) {
		store := newRecordingStore()
		store.saveErr = errDisk

		result, err := historyGraph(t).Run(testCtx(), "conv-1", Delta{},
			WithCheckpointing(store), WithCheckpointFailureFatal(true))

		require.Error(t, err)
		assert.ErrorIs(t, err, errDisk)
		var cpErr *CheckpointError
		require.True(t, errors.As(err, &cpErr))
		assert.Equal(t, "save", cpErr.Op)
		assert.Equal(t, "reply", cpErr.StageID)
		assert.Equal(t, 1, result.State.Value)
		assert.Empty(t, result.Events, "the event is emitted only after a successful save")
	})
}

func TestCheckpoint_LoadFailure(t *testing.T) {
	errConn := errors.New("connection refused")
	store := newRecordingStore()
	store.loadErr = errConn

	_, err := historyGraph(t).Run(testCtx(), "conv-1", Delta{}, WithCheckpointing(store))

	assert.ErrorIs(t, err, errConn)
	var cpErr *CheckpointError
	require.True(t, errors.As(err, &cpErr))
	assert.Equal(t, "load", cpErr.Op)
	assert.Empty(t, store.saves)
}

func TestCheckpoint_VersionMismatch(t *testing.T) {
	store := checkpoint.NewMemoryStore()
	require.NoError(t, store.Save(context.Background(), "old",
		[]byte(`{"version": 99, "conversation_id": "old", "state": {}}`)))

	_, err := historyGraph(t).Run(testCtx(), "old", Delta{}, WithCheckpointing(store))

	assert.ErrorIs(t, err, ErrCheckpointVersionMismatch)
}

func TestCheckpoint_CorruptState(t *testing.T) {
	store := checkpoint.NewMemoryStore()
	data, err := checkpoint.New("bad", "reply", 1, 1, []byte(`{"value": "not a number"}`)).Marshal()
	require.NoError(t, err)
	require.NoError(t, store.Save(context.Background(), "bad", data))

	_, err = historyGraph(t).Run(testCtx(), "bad", Delta{}, WithCheckpointing(store))

	assert.ErrorIs(t, err, ErrDeserializeState)
	var cpErr *CheckpointError
	require.True(t, errors.As(err, &cpErr))
	assert.Equal(t, "deserialize", cpErr.Op)
}

func TestLoadState(t *testing.T) {
	store := checkpoint.NewMemoryStore()
	compiled, err := newCounterGraph().
		AddStage("a", increment).
		AddEdge("a", END).
		SetEntry("a").
		SetInitialState(func() Counter { return Counter{Value: 10} }).
		Compile()
	require.NoError(t, err)

	state, turn, found, err := compiled.LoadState(context.Background(), store, "missing")
	require.NoError(t, err)
	assert.False(t, found)
	assert.Zero(t, turn)
	assert.Equal(t, 10, state.Value)

	_, err = compiled.Run(testCtx(), "conv-1", Delta{}, WithCheckpointing(store))
	require.NoError(t, err)
	_, err = compiled.Run(testCtx(), "conv-1", Delta{}, WithCheckpointing(store))
	require.NoError(t, err)

	state, turn, found, err = compiled.LoadState(context.Background(), store, "conv-1")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, 2, turn)
	assert.Equal(t, 12, state.Value)
}

func TestCheckpoint_SQLiteBackend(t *testing.T) {
	store, err := checkpoint.NewSQLiteStore(t.TempDir() + "/conversations.db")
	require.NoError(t, err)
	defer store.Close()

	compiled := historyGraph(t)

	first, err := compiled.Run(testCtx(), "", Delta{Visit: "hi"}, WithCheckpointing(store))
	require.NoError(t, err)
	second, err := compiled.Run(testCtx(), first.ConversationID, Delta{Visit: "again"}, WithCheckpointing(store))
	require.NoError(t, err)

	assert.Equal(t, 2, second.Turn)
	assert.Equal(t, []string{"hi", "reply", "again", "reply"}, second.State.Visits)
}
