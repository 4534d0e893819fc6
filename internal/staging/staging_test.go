package staging_test

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/evident-labs/evidcore/internal/staging"
)

func TestFinalize_AssemblesChunksInOrderAndVerifiesHash(t *testing.T) {
	svc, err := staging.NewService(t.TempDir())
	require.NoError(t, err)

	content := "hello chunked world"
	part1, part2 := content[:5], content[5:]

	session, err := svc.Init("file.txt", 2, int64(len(content)), "")
	require.NoError(t, err)

	require.NoError(t, svc.ReceiveChunk(session.StagingID, 1, strings.NewReader(part2)))
	require.NoError(t, svc.ReceiveChunk(session.StagingID, 0, strings.NewReader(part1)))

	result, err := svc.Finalize(session.StagingID)
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Equal(t, int64(len(content)), result.SizeBytes)
	assert.NotEmpty(t, result.SHA256)
}

func TestFinalize_MissingChunkFails(t *testing.T) {
	svc, err := staging.NewService(t.TempDir())
	require.NoError(t, err)

	session, err := svc.Init("file.txt", 2, 0, "")
	require.NoError(t, err)
	require.NoError(t, svc.ReceiveChunk(session.StagingID, 0, strings.NewReader("abc")))

	result, err := svc.Finalize(session.StagingID)
	require.NoError(t, err)
	assert.False(t, result.Success)
	assert.Contains(t, result.Error, "missing")
}

func TestFinalize_ExpectedSHA256MismatchFailsAndCleansUp(t *testing.T) {
	svc, err := staging.NewService(t.TempDir())
	require.NoError(t, err)

	session, err := svc.Init("file.txt", 1, 0, "0000000000000000000000000000000000000000000000000000000000000000")
	require.NoError(t, err)
	require.NoError(t, svc.ReceiveChunk(session.StagingID, 0, strings.NewReader("abc")))

	result, err := svc.Finalize(session.StagingID)
	require.NoError(t, err)
	assert.False(t, result.Success)
	assert.Contains(t, result.Error, "integrity check failed")
}

func TestReceiveChunk_RejectsOutOfRangeIndex(t *testing.T) {
	svc, err := staging.NewService(t.TempDir())
	require.NoError(t, err)

	session, err := svc.Init("file.txt", 2, 0, "")
	require.NoError(t, err)

	err = svc.ReceiveChunk(session.StagingID, 5, strings.NewReader("x"))
	assert.Error(t, err)
}

func TestReceiveChunk_ReAddIsIdempotent(t *testing.T) {
	svc, err := staging.NewService(t.TempDir())
	require.NoError(t, err)

	session, err := svc.Init("file.txt", 1, 0, "")
	require.NoError(t, err)

	require.NoError(t, svc.ReceiveChunk(session.StagingID, 0, strings.NewReader("abc")))
	require.NoError(t, svc.ReceiveChunk(session.StagingID, 0, strings.NewReader("abc")))

	reloaded, err := svc.LoadSession(session.StagingID)
	require.NoError(t, err)
	assert.Equal(t, []int{0}, reloaded.ChunksReceived)
}

func TestCleanupExpired_RemovesOldSessionsOnly(t *testing.T) {
	now := time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)
	svc, err := staging.NewService(t.TempDir())
	require.NoError(t, err)
	svc = svc.WithClock(func() time.Time { return now.Add(-5 * time.Hour) })

	old, err := svc.Init("old.txt", 1, 0, "")
	require.NoError(t, err)

	svc = svc.WithClock(func() time.Time { return now })
	fresh, err := svc.Init("fresh.txt", 1, 0, "")
	require.NoError(t, err)

	removed, err := svc.CleanupExpired(staging.DefaultTimeout)
	require.NoError(t, err)
	assert.Equal(t, 1, removed)

	_, err = svc.LoadSession(fresh.StagingID)
	assert.NoError(t, err)
	_, err = svc.LoadSession(old.StagingID)
	assert.Error(t, err)
}
