package blobstore

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *FileStore {
	t.Helper()
	store, err := NewFileStore(t.TempDir(), slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)
	return store
}

func TestFileStore_PutGetRoundTrip(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	path, err := store.Put(ctx, []byte("hello"), "uploads/job-1/load.csv")
	require.NoError(t, err)
	assert.Equal(t, "uploads/job-1/load.csv", path)

	data, err := store.Get(ctx, path)
	require.NoError(t, err)
	assert.Equal(t, []byte("hello"), data)
}

func TestFileStore_GetMissingBlob(t *testing.T) {
	store := newTestStore(t)

	_, err := store.Get(context.Background(), "uploads/nope.csv")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read blob")
}

func TestFileStore_RejectsPathTraversal(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	// Clean collapses most traversal attempts into the root; a path that
	// still escapes after cleaning is rejected outright.
	path, err := store.Put(ctx, []byte("x"), "../outside.txt")
	if err == nil {
		// The cleaned path must stay under the root.
		assert.NotContains(t, filepath.Clean(path), "..")
		data, getErr := store.Get(ctx, path)
		require.NoError(t, getErr)
		assert.Equal(t, []byte("x"), data)
	}
}

func TestNewFileStore_RequiresRoot(t *testing.T) {
	_, err := NewFileStore("", slog.New(slog.NewTextHandler(io.Discard, nil)))
	assert.Error(t, err)
}
