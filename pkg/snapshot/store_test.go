package snapshot_test

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xhad/narrator/internal/types"
	"github.com/xhad/narrator/pkg/snapshot"
)

func TestKey(t *testing.T) {
	a := snapshot.Key("https://example.com/blog")
	b := snapshot.Key("https://example.com/blog")
	c := snapshot.Key("https://example.com/blog/")

	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
	assert.Len(t, a, len("state_")+64)
}

func exerciseStore(t *testing.T, store types.SnapshotStore) {
	ctx := context.Background()
	id := "https://example.com/news"

	snap, err := store.Load(ctx, id)
	require.NoError(t, err)
	assert.True(t, snap.IsEmpty())
	assert.Equal(t, id, snap.SourceID)

	before := time.Now()
	require.NoError(t, store.Save(ctx, id, "A\nB"))

	snap, err = store.Load(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "A\nB", snap.Content)
	require.NotNil(t, snap.LastProcessed)
	assert.WithinDuration(t, before, *snap.LastProcessed, 5*time.Second)

	require.NoError(t, store.Save(ctx, id, "C"))
	snap, err = store.Load(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "C", snap.Content, "save overwrites")

	other, err := store.Load(ctx, "https://example.com/other")
	require.NoError(t, err)
	assert.True(t, other.IsEmpty())
}

func TestFileStore(t *testing.T) {
	store, err := snapshot.NewFileStore(filepath.Join(t.TempDir(), "state"))
	require.NoError(t, err)

	exerciseStore(t, store)
}

func TestFileStore_Layout(t *testing.T) {
	dir := t.TempDir()
	store, err := snapshot.NewFileStore(dir)
	require.NoError(t, err)

	id := "https://example.com"
	require.NoError(t, store.Save(context.Background(), id, "line\r\nnext"))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1, "no temp files are left behind")
	assert.Equal(t, snapshot.Key(id)+".json", entries[0].Name())

	data, err := os.ReadFile(filepath.Join(dir, entries[0].Name()))
	require.NoError(t, err)
	assert.NotContains(t, string(data), "\r\n", "line endings are deterministic")

	var doc map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &doc))
	assert.Equal(t, "line\r\nnext", doc["content"])
	assert.IsType(t, float64(0), doc["last_processed"])
}

func TestFileStore_LegacyNullTimestamp(t *testing.T) {
	dir := t.TempDir()
	store, err := snapshot.NewFileStore(dir)
	require.NoError(t, err)

	id := "https://example.com"
	path := filepath.Join(dir, snapshot.Key(id)+".json")
	require.NoError(t, os.WriteFile(path, []byte(`{"content": "old", "last_processed": null}`), 0o644))

	snap, err := store.Load(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, "old", snap.Content)
	assert.Nil(t, snap.LastProcessed)
}

func TestFileStore_Corrupt(t *testing.T) {
	dir := t.TempDir()
	store, err := snapshot.NewFileStore(dir)
	require.NoError(t, err)

	id := "https://example.com"
	path := filepath.Join(dir, snapshot.Key(id)+".json")
	require.NoError(t, os.WriteFile(path, []byte(`{"content": "trunc`), 0o644))

	_, err = store.Load(context.Background(), id)
	assert.ErrorIs(t, err, snapshot.ErrCorrupt)
}

func TestRedisStore(t *testing.T) {
	mr := miniredis.RunT(t)

	store, err := snapshot.NewRedisStore(snapshot.RedisConfig{Addr: mr.Addr()})
	require.NoError(t, err)
	defer store.Close()

	exerciseStore(t, store)

	assert.True(t, mr.Exists(snapshot.DefaultRedisPrefix+snapshot.Key("https://example.com/news")))
}

func TestRedisStore_RequiresAddr(t *testing.T) {
	_, err := snapshot.NewRedisStore(snapshot.RedisConfig{})
	assert.Error(t, err)
}
