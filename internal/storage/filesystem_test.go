package storage

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileSystemStore_PutDelete(t *testing.T) {
	ctx := context.Background()
	dir := filepath.Join(t.TempDir(), "avatars")
	store, err := NewFileSystemStore(dir, "/uploads/avatars/")
	require.NoError(t, err)

	url, err := store.Put(ctx, "7_avatar.png", []byte("png-bytes"), "image/png")
	require.NoError(t, err)
	assert.Equal(t, "/uploads/avatars/7_avatar.png", url)

	data, err := os.ReadFile(filepath.Join(dir, "7_avatar.png"))
	require.NoError(t, err)
	assert.Equal(t, []byte("png-bytes"), data)

	key, ok := store.KeyFromURL(url)
	require.True(t, ok)
	assert.Equal(t, "7_avatar.png", key)

	require.NoError(t, store.Delete(ctx, key))
	_, err = os.Stat(filepath.Join(dir, "7_avatar.png"))
	assert.True(t, os.IsNotExist(err))

	// missing keys are fine
	assert.NoError(t, store.Delete(ctx, key))
}

func TestFileSystemStore_OverwriteKeepsNewContent(t *testing.T) {
	ctx := context.Background()
	store, err := NewFileSystemStore(t.TempDir(), "/uploads/avatars")
	require.NoError(t, err)

	_, err = store.Put(ctx, "1_avatar.png", []byte("old"), "image/png")
	require.NoError(t, err)
	_, err = store.Put(ctx, "1_avatar.png", []byte("new"), "image/png")
	require.NoError(t, err)

	data, err := os.ReadFile(filepath.Join(store.Dir(), "1_avatar.png"))
	require.NoError(t, err)
	assert.Equal(t, []byte("new"), data)
}

func TestFileSystemStore_RejectsTraversal(t *testing.T) {
	ctx := context.Background()
	store, err := NewFileSystemStore(t.TempDir(), "/uploads/avatars")
	require.NoError(t, err)

	for _, key := range []string{"", "..", "../etc/passwd", "a/b.png", `a\b.png`} {
		_, err := store.Put(ctx, key, []byte("x"), "image/png")
		assert.ErrorIs(t, err, ErrInvalidKey, key)
		assert.ErrorIs(t, store.Delete(ctx, key), ErrInvalidKey, key)
	}

	_, ok := store.KeyFromURL("/uploads/avatars/../secret")
	assert.False(t, ok)
	_, ok = store.KeyFromURL("https://cdn.example.com/1_avatar.png")
	assert.False(t, ok)
}
