package core

import (
	"net/http"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hanash-dl/hanash/internal/config"
	"github.com/hanash-dl/hanash/internal/engine/types"
	"github.com/hanash-dl/hanash/internal/history"
	"github.com/hanash-dl/hanash/internal/testutil"
)

func testService(t *testing.T) (*LocalService, string) {
	t.Helper()
	t.Setenv("HANASH_HOME", t.TempDir())

	downloads := t.TempDir()
	settings := config.DefaultSettings()
	settings.Folder = downloads
	settings.PartSizeKB = 1 // small segments so tests exercise several

	svc, err := NewLocalService(settings, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = svc.Shutdown() })
	return svc, downloads
}

func TestLocalService_AddRegistersProbedItem(t *testing.T) {
	server := testutil.NewMockServer(t,
		testutil.WithFileSize(4096),
		testutil.WithFilename("movie.mkv"),
		testutil.WithContentType("video/x-matroska"),
	)
	svc, _ := testService(t)

	item, err := svc.Add(AddRequest{URL: server.URL()})
	require.NoError(t, err)

	assert.Equal(t, 0, item.ID)
	assert.Equal(t, "movie.mkv", item.Name)
	assert.Equal(t, int64(4096), item.Size)
	assert.True(t, item.Resumable)
	assert.Equal(t, string(types.StatusCancelled), item.Status)
}

func TestLocalService_AddRefusesBadProbeStatus(t *testing.T) {
	server := testutil.NewMockServer(t,
		testutil.WithStatusOverride(func(int64, *http.Request) int {
			return http.StatusForbidden
		}),
	)
	svc, _ := testService(t)

	_, err := svc.Add(AddRequest{URL: server.URL()})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "403")
}

func TestLocalService_AddRefusesExistingTarget(t *testing.T) {
	server := testutil.NewMockServer(t, testutil.WithFilename("dup.bin"))
	svc, downloads := testService(t)

	require.NoError(t, os.WriteFile(filepath.Join(downloads, "dup.bin"), []byte("old"), 0644))

	_, err := svc.Add(AddRequest{URL: server.URL()})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already exists")

	// the caller confirmed the overwrite
	item, err := svc.Add(AddRequest{URL: server.URL(), Overwrite: true})
	require.NoError(t, err)
	assert.Equal(t, "dup.bin", item.Name)
	_, statErr := os.Stat(filepath.Join(downloads, "dup.bin"))
	assert.True(t, os.IsNotExist(statErr), "existing file is removed on confirm")
}

func TestLocalService_DownloadEndToEnd(t *testing.T) {
	server := testutil.NewMockServer(t,
		testutil.WithFileSize(8*1024),
		testutil.WithFilename("data.bin"),
	)
	svc, downloads := testService(t)

	item, err := svc.Add(AddRequest{URL: server.URL()})
	require.NoError(t, err)
	require.NoError(t, svc.Start(item.ID))

	deadline := time.Now().Add(30 * time.Second)
	for {
		got, err := svc.Get(item.ID)
		require.NoError(t, err)
		if got.Status == string(types.StatusCompleted) {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("download stuck in %s", got.Status)
		}
		time.Sleep(50 * time.Millisecond)
	}

	content, err := os.ReadFile(filepath.Join(downloads, "data.bin"))
	require.NoError(t, err)
	assert.Equal(t, server.Data(), content)

	// the completed download lands in the history archive (written after the
	// coordinator's exit barrier, so give it a moment)
	var entries []history.Entry
	histDeadline := time.Now().Add(5 * time.Second)
	for {
		entries, err = svc.History(10)
		require.NoError(t, err)
		if len(entries) == 1 || time.Now().After(histDeadline) {
			break
		}
		time.Sleep(50 * time.Millisecond)
	}
	require.Len(t, entries, 1)
	assert.Equal(t, "data.bin", entries[0].Name)
}

func TestLocalService_DeleteRemovesEntryAndFiles(t *testing.T) {
	server := testutil.NewMockServer(t, testutil.WithFilename("gone.bin"))
	svc, _ := testService(t)

	item, err := svc.Add(AddRequest{URL: server.URL()})
	require.NoError(t, err)

	// simulate partial state on disk
	d, ok := svc.Registry().Snapshot(item.ID)
	require.True(t, ok)
	require.NoError(t, os.MkdirAll(d.TempFolder(), 0755))
	require.NoError(t, os.WriteFile(d.TempFile(), []byte("partial"), 0644))

	require.NoError(t, svc.Delete(item.ID))

	assert.Zero(t, svc.Registry().Len())
	_, err = os.Stat(d.TempFolder())
	assert.True(t, os.IsNotExist(err))
	_, err = os.Stat(d.TempFile())
	assert.True(t, os.IsNotExist(err))
}
