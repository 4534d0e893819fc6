package storage_test

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"testing"

	"github.com/evident-labs/evidcore/internal/errs"
	"github.com/evident-labs/evidcore/internal/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sha256Hex(s string) string {
	h := sha256.Sum256([]byte(s))
	return hex.EncodeToString(h[:])
}

func TestLocalFS_PutGetRoundTrip(t *testing.T) {
	root := t.TempDir()
	backend, err := storage.NewLocalFS(root)
	require.NoError(t, err)

	res, err := backend.Put("originals/aa/aaaa/file.txt", []byte("hello"), "")
	require.NoError(t, err)
	assert.Equal(t, sha256Hex("hello"), res.SHA256)
	assert.Equal(t, int64(5), res.SizeBytes)

	got, err := backend.Get("originals/aa/aaaa/file.txt")
	require.NoError(t, err)
	assert.Equal(t, []byte("hello"), got.Data)
	assert.Equal(t, res.SHA256, got.SHA256)
}

// Storage immutability: writing bytes_b to a key already holding bytes_a
// fails with KeyExists and the original bytes are unchanged.
func TestLocalFS_Immutability(t *testing.T) {
	backend, err := storage.NewLocalFS(t.TempDir())
	require.NoError(t, err)

	_, err = backend.Put("k", []byte("AAA"), "")
	require.NoError(t, err)

	_, err = backend.Put("k", []byte("BBB"), "")
	require.Error(t, err)
	kind, ok := errs.KindOf(err)
	require.True(t, ok)
	assert.Equal(t, errs.KindKeyExists, kind)

	got, err := backend.Get("k")
	require.NoError(t, err)
	assert.Equal(t, []byte("AAA"), got.Data)
}

// put(k, bytes, expected) with sha256(bytes) != expected leaves exists(k) == false.
func TestLocalFS_IntegrityMismatchLeavesNoTrace(t *testing.T) {
	backend, err := storage.NewLocalFS(t.TempDir())
	require.NoError(t, err)

	_, err = backend.Put("k", []byte("AAA"), "deadbeef")
	require.Error(t, err)
	kind, ok := errs.KindOf(err)
	require.True(t, ok)
	assert.Equal(t, errs.KindIntegrityMismatch, kind)

	exists, err := backend.Exists("k")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestLocalFS_RejectsPathTraversal(t *testing.T) {
	backend, err := storage.NewLocalFS(t.TempDir())
	require.NoError(t, err)

	_, err = backend.Put("../escape", []byte("x"), "")
	require.Error(t, err)
	kind, ok := errs.KindOf(err)
	require.True(t, ok)
	assert.Equal(t, errs.KindInvalidKey, kind)
}

func TestLocalFS_NotFound(t *testing.T) {
	backend, err := storage.NewLocalFS(t.TempDir())
	require.NoError(t, err)

	_, err = backend.Get("missing")
	require.Error(t, err)
	kind, ok := errs.KindOf(err)
	require.True(t, ok)
	assert.Equal(t, errs.KindNotFound, kind)
}

func TestLocalFS_ListKeysSortedAndExcludesTemp(t *testing.T) {
	backend, err := storage.NewLocalFS(t.TempDir())
	require.NoError(t, err)

	_, _ = backend.Put("b/two", []byte("2"), "")
	_, _ = backend.Put("a/one", []byte("1"), "")

	keys, err := backend.ListKeys("")
	require.NoError(t, err)
	require.Len(t, keys, 2)
	assert.Equal(t, []string{"a/one", "b/two"}, keys)
	for _, k := range keys {
		assert.False(t, strings.HasSuffix(k, ".tmp"))
	}
}
