package checkpoint

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStore_SaveLoad(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, "run-1", "a", []byte("state-a")))

	data, err := store.Load(ctx, "run-1", "a")
	require.NoError(t, err)
	assert.Equal(t, []byte("state-a"), data)
}

func TestMemoryStore_LoadMissing(t *testing.T) {
	store := NewMemoryStore()
	_, err := store.Load(context.Background(), "run-1", "ghost")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryStore_SaveOverwrites(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, "run-1", "a", []byte("v1")))
	require.NoError(t, store.Save(ctx, "run-1", "a", []byte("v2")))

	data, err := store.Load(ctx, "run-1", "a")
	require.NoError(t, err)
	assert.Equal(t, []byte("v2"), data)
	assert.Equal(t, 1, store.Len())
}

func TestMemoryStore_ListOrderedBySequence(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, "run-1", "a", []byte("1")))
	require.NoError(t, store.Save(ctx, "run-1", "b", []byte("2")))
	require.NoError(t, store.Save(ctx, "run-1", "c", []byte("3")))

	infos, err := store.List(ctx, "run-1")
	require.NoError(t, err)
	require.Len(t, infos, 3)
	assert.Equal(t, "a", infos[0].NodeID)
	assert.Equal(t, "c", infos[2].NodeID)
	assert.Less(t, infos[0].Sequence, infos[2].Sequence)
}

func TestMemoryStore_ListEmptyRun(t *testing.T) {
	store := NewMemoryStore()
	infos, err := store.List(context.Background(), "nope")
	require.NoError(t, err)
	assert.Empty(t, infos)
}

func TestMemoryStore_Delete(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, "run-1", "a", []byte("1")))
	require.NoError(t, store.Delete(ctx, "run-1", "a"))

	_, err := store.Load(ctx, "run-1", "a")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryStore_DeleteRun(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, "run-1", "a", []byte("1")))
	require.NoError(t, store.Save(ctx, "run-1", "b", []byte("2")))
	require.NoError(t, store.Save(ctx, "run-2", "a", []byte("3")))

	require.NoError(t, store.DeleteRun(ctx, "run-1"))

	infos, err := store.List(ctx, "run-1")
	require.NoError(t, err)
	assert.Empty(t, infos)

	_, err = store.Load(ctx, "run-2", "a")
	assert.NoError(t, err)
}

func TestMemoryStore_Closed(t *testing.T) {
	store := NewMemoryStore()
	require.NoError(t, store.Close())

	err := store.Save(context.Background(), "run-1", "a", []byte("1"))
	assert.ErrorIs(t, err, ErrStoreClosed)
}

func TestMemoryStore_ConcurrentSaves(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			nodeID := fmt.Sprintf("node-%d", n)
			assert.NoError(t, store.Save(ctx, "run-1", nodeID, []byte{byte(n)}))
		}(i)
	}
	wg.Wait()

	infos, err := store.List(ctx, "run-1")
	require.NoError(t, err)
	assert.Len(t, infos, 20)
}
