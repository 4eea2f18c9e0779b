package history

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hanash-dl/hanash/internal/engine/types"
)

func testStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "history.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestStore_RecordAndList(t *testing.T) {
	s := testStore(t)

	require.NoError(t, s.Record(types.DownloadItem{
		Name: "a.bin", URL: "http://x/a.bin", Folder: "/dl", Size: 1024,
	}))
	require.NoError(t, s.Record(types.DownloadItem{
		Name: "b.bin", URL: "http://x/b.bin", Folder: "/dl", Size: 2048,
	}))

	entries, err := s.List(10)
	require.NoError(t, err)
	require.Len(t, entries, 2)

	// newest first
	assert.Equal(t, "b.bin", entries[0].Name)
	assert.Equal(t, int64(2048), entries[0].Size)
	assert.Equal(t, "a.bin", entries[1].Name)
	assert.False(t, entries[0].CompletedAt.IsZero())
}

func TestStore_ListEmpty(t *testing.T) {
	s := testStore(t)
	entries, err := s.List(0)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestStore_ReopenKeepsEntries(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.db")

	s, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, s.Record(types.DownloadItem{Name: "keep.bin", URL: "http://x", Folder: "/dl", Size: 1}))
	require.NoError(t, s.Close())

	s2, err := Open(path)
	require.NoError(t, err)
	defer func() { _ = s2.Close() }()

	entries, err := s2.List(10)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "keep.bin", entries[0].Name)
}
