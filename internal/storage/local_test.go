package storage

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestObjectStore(t *testing.T) (*LocalObjectStore, string) {
	t.Helper()
	dir := t.TempDir()
	objectStore, err := NewLocalObjectStore(dir)
	require.NoError(t, err)
	return objectStore, dir
}

func TestLocalObjectStore_PutGetObject(t *testing.T) {
	objectStore, baseDir := setupTestObjectStore(t)

	bucket := "test-bucket"
	key := "datasets/abc/train/000.cat/000_0000.jpg"
	content := []byte("image bytes")

	err := objectStore.PutObject(context.Background(), bucket, key, bytes.NewReader(content))
	require.NoError(t, err)

	data, err := os.ReadFile(filepath.Join(baseDir, bucket, filepath.FromSlash(key)))
	require.NoError(t, err)
	assert.Equal(t, content, data)

	r, err := objectStore.GetObject(context.Background(), bucket, key)
	require.NoError(t, err)
	defer r.Close()

	got, err := io.ReadAll(r)
	require.NoError(t, err)
	assert.Equal(t, content, got)
}

func TestLocalObjectStore_ListObjects(t *testing.T) {
	objectStore, _ := setupTestObjectStore(t)
	ctx := context.Background()

	bucket := "test-bucket"
	keys := []string{"a/one.txt", "a/two.txt", "b/three.txt"}
	for _, key := range keys {
		require.NoError(t, objectStore.PutObject(ctx, bucket, key, bytes.NewReader([]byte("x"))))
	}

	objects, err := objectStore.ListObjects(ctx, bucket, "a/")
	require.NoError(t, err)
	require.Len(t, objects, 2)
	assert.Equal(t, "a/one.txt", objects[0].Name)
	assert.Equal(t, "a/two.txt", objects[1].Name)

	all, err := objectStore.ListObjects(ctx, bucket, "")
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

func TestLocalObjectStore_DeleteObjects(t *testing.T) {
	objectStore, _ := setupTestObjectStore(t)
	ctx := context.Background()

	bucket := "test-bucket"
	for _, key := range []string{"keep/one.txt", "drop/two.txt", "drop/three.txt"} {
		require.NoError(t, objectStore.PutObject(ctx, bucket, key, bytes.NewReader([]byte("x"))))
	}

	require.NoError(t, objectStore.DeleteObjects(ctx, bucket, "drop/"))

	objects, err := objectStore.ListObjects(ctx, bucket, "")
	require.NoError(t, err)
	require.Len(t, objects, 1)
	assert.Equal(t, "keep/one.txt", objects[0].Name)
}

func TestLocalObjectStore_DownloadDir(t *testing.T) {
	objectStore, _ := setupTestObjectStore(t)
	ctx := context.Background()

	bucket := "test-bucket"
	keys := []string{"pool/cat/a.jpg", "pool/cat/b.jpg", "pool/dog/c.jpg"}
	for _, key := range keys {
		require.NoError(t, objectStore.PutObject(ctx, bucket, key, bytes.NewReader([]byte(key))))
	}

	dest := filepath.Join(t.TempDir(), "out")
	require.NoError(t, objectStore.DownloadDir(ctx, bucket, "pool", dest, false))

	for _, rel := range []string{"cat/a.jpg", "cat/b.jpg", "dog/c.jpg"} {
		data, err := os.ReadFile(filepath.Join(dest, filepath.FromSlash(rel)))
		require.NoError(t, err)
		assert.Equal(t, "pool/"+rel, string(data))
	}

	// Existing destination without overwrite is refused.
	err := objectStore.DownloadDir(ctx, bucket, "pool", dest, false)
	require.Error(t, err)

	require.NoError(t, objectStore.DownloadDir(ctx, bucket, "pool", dest, true))
}
