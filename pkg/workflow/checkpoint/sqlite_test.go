package checkpoint_test

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"testing"

	"github.com/DongHyun925/MediGraph/pkg/workflow/checkpoint"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSQLiteStore_Persistence(t *testing.T) {
	ctx := context.Background()
	dbPath := filepath.Join(t.TempDir(), "test.db")

	store1, err := checkpoint.NewSQLiteStore(dbPath)
	require.NoError(t, err)
	require.NoError(t, store1.Save(ctx, "conv-1", []byte("persistent")))
	require.NoError(t, store1.Close())

	// Reopen the database
	store2, err := checkpoint.NewSQLiteStore(dbPath)
	require.NoError(t, err)
	defer store2.Close()

	data, err := store2.Load(ctx, "conv-1")
	require.NoError(t, err)
	assert.Equal(t, []byte("persistent"), data)

	// Sequence continues across reopen
	require.NoError(t, store2.Save(ctx, "conv-1", []byte("again")))
	infos, err := store2.List(ctx)
	require.NoError(t, err)
	require.Len(t, infos, 1)
	assert.Equal(t, 2, infos[0].Sequence)
}

func TestSQLiteStore_InvalidPath(t *testing.T) {
	_, err := checkpoint.NewSQLiteStore("/nonexistent/path/db.sqlite")
	assert.Error(t, err)
}

func TestSQLiteStore_CloseIdempotent(t *testing.T) {
	store, err := checkpoint.NewSQLiteStore(":memory:")
	require.NoError(t, err)

	assert.NoError(t, store.Close())
	assert.NoError(t, store.Close())
}

func TestSQLiteStore_Concurrent(t *testing.T) {
	ctx := context.Background()
	store, err := checkpoint.NewSQLiteStore(":memory:")
	require.NoError(t, err)
	defer store.Close()

	const numGoroutines = 50
	const numOps = 20

	var wg sync.WaitGroup
	wg.Add(numGoroutines)

	for i := range numGoroutines {
		go func(id int) {
			defer wg.Done()

			convID := fmt.Sprintf("conv-%d", id%10)
			for j := range numOps {
				switch j % 3 {
				case 0:
					_ = store.Save(ctx, convID, []byte("data"))
				case 1:
					_, _ = store.Load(ctx, convID)
				case 2:
					_, _ = store.List(ctx)
				}
			}
		}(i)
	}

	wg.Wait()

	infos, err := store.List(ctx)
	require.NoError(t, err)
	assert.Len(t, infos, 10)
}

func TestSQLiteStore_LargeData(t *testing.T) {
	ctx := context.Background()
	store, err := checkpoint.NewSQLiteStore(":memory:")
	require.NoError(t, err)
	defer store.Close()

	// 1MB of data
	largeData := make([]byte, 1024*1024)
	for i := range largeData {
		largeData[i] = byte(i % 256)
	}

	require.NoError(t, store.Save(ctx, "conv-1", largeData))

	loaded, err := store.Load(ctx, "conv-1")
	require.NoError(t, err)
	assert.Equal(t, largeData, loaded)

	infos, err := store.List(ctx)
	require.NoError(t, err)
	require.Len(t, infos, 1)
	assert.Equal(t, int64(1024*1024), infos[0].Size)
}
