package engine

import (
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hanash-dl/hanash/internal/engine/events"
	"github.com/hanash-dl/hanash/internal/engine/types"
)

type assemblerHarness struct {
	tempFolder string
	tempFile   string
	targetFile string
	jobs       chan string
	brain      chan events.CoordinatorMsg
	barrier    sync.WaitGroup
}

func newAssemblerHarness(t *testing.T, segList []string) (*assemblerHarness, *assembler) {
	t.Helper()
	dir := t.TempDir()
	h := &assemblerHarness{
		tempFolder: filepath.Join(dir, "file.bin_parts"),
		tempFile:   filepath.Join(dir, "__downloading__file.bin"),
		targetFile: filepath.Join(dir, "file.bin"),
		jobs:       make(chan string, 16),
		brain:      make(chan events.CoordinatorMsg, 16),
	}
	require.NoError(t, os.MkdirAll(h.tempFolder, 0755))
	h.barrier.Add(1)
	a := newAssembler(0, h.tempFolder, h.tempFile, h.targetFile, segList, h.jobs, h.brain, &h.barrier)
	return h, a
}

func (h *assemblerHarness) writePart(t *testing.T, name string, data []byte) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(h.tempFolder, name), data, 0644))
}

func waitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatal("condition not reached in time")
}

func TestAssembler_AppendsAndFinalizes(t *testing.T) {
	segList := []string{"0-511", "512-1023"}
	h, a := newAssemblerHarness(t, segList)

	first := make([]byte, 512)
	second := make([]byte, 512)
	for i := range first {
		first[i] = 0x11
		second[i] = 0x22
	}
	h.writePart(t, "0-511", first)
	h.writePart(t, "512-1023", second)

	go a.run()
	h.jobs <- "512-1023" // out of order on purpose
	h.jobs <- "0-511"

	// completion is signalled to the coordinator
	waitFor(t, 5*time.Second, func() bool {
		select {
		case msg := <-h.brain:
			st, ok := msg.(events.StatusMsg)
			return ok && st.Status == types.StatusCompleted
		default:
			return false
		}
	})
	h.barrier.Wait()

	content, err := os.ReadFile(h.targetFile)
	require.NoError(t, err)
	require.Len(t, content, 1024)
	assert.Equal(t, first, content[:512])
	assert.Equal(t, second, content[512:])

	_, err = os.Stat(h.tempFolder)
	assert.True(t, os.IsNotExist(err), "temp folder must be removed")
	_, err = os.Stat(h.tempFile)
	assert.True(t, os.IsNotExist(err), "in-progress file must be renamed away")
}

func TestAssembler_PersistsCompletedSet(t *testing.T) {
	segList := []string{"0-511", "512-1023"}
	h, a := newAssemblerHarness(t, segList)
	h.writePart(t, "0-511", make([]byte, 512))

	go a.run()
	h.jobs <- "0-511"

	waitFor(t, 5*time.Second, func() bool {
		set := LoadCompletedSet(h.tempFolder)
		_, ok := set["0-511"]
		return ok
	})

	// segment file consumed after the append
	_, err := os.Stat(filepath.Join(h.tempFolder, "0-511"))
	assert.True(t, os.IsNotExist(err))

	h.jobs <- exitToken
	h.barrier.Wait()
}

func TestAssembler_DuplicateCompletionIsNoOp(t *testing.T) {
	segList := []string{"0-511", "512-1023"}
	h, a := newAssemblerHarness(t, segList)
	h.writePart(t, "0-511", make([]byte, 512))

	go a.run()
	h.jobs <- "0-511"

	waitFor(t, 5*time.Second, func() bool {
		set := LoadCompletedSet(h.tempFolder)
		_, ok := set["0-511"]
		return ok
	})

	// the part file is gone; sending the name again must not wedge anything
	h.jobs <- "0-511"
	time.Sleep(300 * time.Millisecond)

	set := LoadCompletedSet(h.tempFolder)
	assert.Len(t, set, 1)

	h.jobs <- exitToken
	h.barrier.Wait()
}

func TestAssembler_ResumesFromPersistedSet(t *testing.T) {
	segList := []string{"0-511", "512-1023"}
	h, a := newAssemblerHarness(t, segList)

	// previous session already appended the first segment
	require.NoError(t, SaveCompletedSet(h.tempFolder, map[string]struct{}{"0-511": {}}))
	require.NoError(t, os.WriteFile(h.tempFile, make([]byte, 512), 0644))
	h.writePart(t, "512-1023", make([]byte, 512))

	go a.run()
	h.jobs <- "512-1023"

	waitFor(t, 5*time.Second, func() bool {
		_, err := os.Stat(h.targetFile)
		return err == nil
	})
	h.barrier.Wait()

	content, err := os.ReadFile(h.targetFile)
	require.NoError(t, err)
	assert.Len(t, content, 1024)
}

func TestLoadCompletedSet_CorruptFileTreatedAsEmpty(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, types.CompletedSetFile), []byte("{{{"), 0644))

	set := LoadCompletedSet(dir)
	assert.Empty(t, set)
}

func TestSaveCompletedSet_RoundTrip(t *testing.T) {
	dir := t.TempDir()
	in := map[string]struct{}{"0-511": {}, "512-1023": {}}
	require.NoError(t, SaveCompletedSet(dir, in))
	assert.Equal(t, in, LoadCompletedSet(dir))
}
