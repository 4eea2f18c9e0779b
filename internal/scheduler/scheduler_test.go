package scheduler

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hanash-dl/hanash/internal/engine"
	"github.com/hanash-dl/hanash/internal/engine/types"
	"github.com/hanash-dl/hanash/internal/registry"
	"github.com/hanash-dl/hanash/internal/testutil"
)

func testRegistry(t *testing.T) *registry.Registry {
	t.Helper()
	r, err := registry.Open(filepath.Join(t.TempDir(), "downloads.cfg"))
	require.NoError(t, err)
	return r
}

func addItem(t *testing.T, reg *registry.Registry, url, folder, name string, size int64) int {
	t.Helper()
	d := types.DownloadItem{
		Name:           name,
		URL:            url,
		Size:           size,
		Resumable:      true,
		Folder:         folder,
		MaxConnections: 2,
		Status:         types.StatusCancelled,
		TimeLeft:       -1,
	}
	d.SetPartSize(size / 2)
	d.RemainingParts = len(engine.SplitSize(d.Size, d.PartSize))
	return reg.Add(d)
}

func waitStatus(t *testing.T, reg *registry.Registry, id int, want types.Status, timeout time.Duration) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if d, ok := reg.Snapshot(id); ok && d.Status == want {
			return
		}
		time.Sleep(25 * time.Millisecond)
	}
	d, _ := reg.Snapshot(id)
	t.Fatalf("item %d stuck in %q, want %q", id, d.Status, want)
}

func TestScheduler_CapQueuesExcessJobs(t *testing.T) {
	server := testutil.NewMockServer(t,
		testutil.WithFileSize(16*1024),
		testutil.WithLatency(150*time.Millisecond),
	)
	reg := testRegistry(t)
	dir := t.TempDir()

	first := addItem(t, reg, server.URL(), dir, "first.bin", 16*1024)
	second := addItem(t, reg, server.URL(), dir, "second.bin", 16*1024)

	s := New(reg, 1, 0, "")
	defer s.Shutdown()

	require.NoError(t, s.Start(first))
	require.NoError(t, s.Start(second))

	// the cap is one: the second job must be pending, not active
	assert.Equal(t, 1, s.ActiveCount())
	d, _ := reg.Snapshot(second)
	assert.Equal(t, types.StatusPending, d.Status)

	// once the first finishes, the pending head is promoted and completes
	waitStatus(t, reg, first, types.StatusCompleted, 30*time.Second)
	waitStatus(t, reg, second, types.StatusCompleted, 30*time.Second)
}

func TestScheduler_StartActiveItemRefused(t *testing.T) {
	server := testutil.NewMockServer(t,
		testutil.WithFileSize(32*1024),
		testutil.WithLatency(200*time.Millisecond),
	)
	reg := testRegistry(t)
	dir := t.TempDir()
	id := addItem(t, reg, server.URL(), dir, "file.bin", 32*1024)

	s := New(reg, 3, 0, "")
	defer s.Shutdown()

	require.NoError(t, s.Start(id))
	err := s.Start(id)
	assert.ErrorIs(t, err, ErrAlreadyActive)
}

func TestScheduler_DuplicateNameFolderRefused(t *testing.T) {
	server := testutil.NewMockServer(t,
		testutil.WithFileSize(32*1024),
		testutil.WithLatency(200*time.Millisecond),
	)
	reg := testRegistry(t)
	dir := t.TempDir()

	first := addItem(t, reg, server.URL(), dir, "same.bin", 32*1024)
	second := addItem(t, reg, server.URL(), dir, "same.bin", 32*1024)

	s := New(reg, 3, 0, "")
	defer s.Shutdown()

	require.NoError(t, s.Start(first))
	err := s.Start(second)
	assert.ErrorIs(t, err, ErrDuplicate)
}

func TestScheduler_MissingFolderRefused(t *testing.T) {
	reg := testRegistry(t)
	id := addItem(t, reg, "http://127.0.0.1:1/x", "/no/such/folder", "x.bin", 1024)

	s := New(reg, 3, 0, "")
	defer s.Shutdown()

	assert.Error(t, s.Start(id))
}

func TestScheduler_StopAllCancelsPendingAndActive(t *testing.T) {
	server := testutil.NewMockServer(t,
		testutil.WithFileSize(64*1024),
		testutil.WithLatency(250*time.Millisecond),
	)
	reg := testRegistry(t)
	dir := t.TempDir()

	first := addItem(t, reg, server.URL(), dir, "a.bin", 64*1024)
	second := addItem(t, reg, server.URL(), dir, "b.bin", 64*1024)

	s := New(reg, 1, 0, "")
	defer s.Shutdown()

	require.NoError(t, s.Start(first))
	require.NoError(t, s.Start(second))

	s.StopAll()

	waitStatus(t, reg, first, types.StatusCancelled, 15*time.Second)
	waitStatus(t, reg, second, types.StatusCancelled, 15*time.Second)
	s.Wait()
	assert.Zero(t, s.ActiveCount())
}

func TestScheduler_ResumeAllResubmitsCancelled(t *testing.T) {
	server := testutil.NewMockServer(t, testutil.WithFileSize(8*1024))
	reg := testRegistry(t)
	dir := t.TempDir()

	id := addItem(t, reg, server.URL(), dir, "a.bin", 8*1024)

	s := New(reg, 2, 0, "")
	defer s.Shutdown()

	s.ResumeAll()
	waitStatus(t, reg, id, types.StatusCompleted, 30*time.Second)
}

func TestScheduler_ResumeOnActiveIsNoOp(t *testing.T) {
	server := testutil.NewMockServer(t,
		testutil.WithFileSize(64*1024),
		testutil.WithLatency(250*time.Millisecond),
	)
	reg := testRegistry(t)
	dir := t.TempDir()
	id := addItem(t, reg, server.URL(), dir, "a.bin", 64*1024)

	s := New(reg, 2, 0, "")
	defer s.Shutdown()

	require.NoError(t, s.Start(id))
	require.NoError(t, s.Resume(id))
	assert.Equal(t, 1, s.ActiveCount())
}

func TestCheckFolder(t *testing.T) {
	assert.NoError(t, CheckFolder(t.TempDir()))
	assert.Error(t, CheckFolder("/no/such/folder"))
}
