package engine

import (
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/hanash-dl/hanash/internal/engine/events"
	"github.com/hanash-dl/hanash/internal/engine/types"
	"github.com/hanash-dl/hanash/internal/utils"
)

// exitToken terminates the assembler loop when received on the completed-jobs
// channel.
const exitToken = "exit"

// assembler appends completed segment files into the in-progress file at
// their byte offsets and maintains the persisted completed set. It is the
// sole writer of the in-progress file.
type assembler struct {
	id         int // download id, logging only
	tempFolder string
	tempFile   string
	targetFile string
	allParts   map[string]struct{}

	completedJobs <-chan string
	brain         chan<- events.CoordinatorMsg

	barrier *sync.WaitGroup
}

func newAssembler(id int, tempFolder, tempFile, targetFile string, segList []string,
	completedJobs <-chan string, brain chan<- events.CoordinatorMsg, barrier *sync.WaitGroup) *assembler {
	all := make(map[string]struct{}, len(segList))
	for _, seg := range segList {
		all[seg] = struct{}{}
	}
	return &assembler{
		id:            id,
		tempFolder:    tempFolder,
		tempFile:      tempFile,
		targetFile:    targetFile,
		allParts:      all,
		completedJobs: completedJobs,
		brain:         brain,
		barrier:       barrier,
	}
}

func (m *assembler) run() {
	defer m.barrier.Done()
	defer utils.Debug("assembler %d: quitting", m.id)

	completed := LoadCompletedSet(m.tempFolder)

	// make sure the in-progress file exists
	if _, err := os.Stat(m.tempFile); err != nil {
		if f, cerr := os.Create(m.tempFile); cerr == nil {
			_ = f.Close()
		} else {
			utils.Debug("assembler %d: create %s: %v", m.id, m.tempFile, cerr)
		}
	}

	var parts []string

	ticker := time.NewTicker(types.TickInterval)
	defer ticker.Stop()

	for range ticker.C {
	drainLoop:
		for {
			select {
			case msg := <-m.completedJobs:
				if msg == exitToken {
					return
				}
				if _, ok := completed[msg]; ok {
					continue // already appended, re-adding is a no-op
				}
				parts = append(parts, msg)
			default:
				break drainLoop
			}
		}

		if len(parts) > 0 {
			failed := m.appendParts(parts)
			if len(failed) != len(parts) {
				changed := false
				for _, name := range parts {
					if containsPart(failed, name) {
						continue
					}
					if err := os.Remove(filepath.Join(m.tempFolder, name)); err != nil {
						utils.Debug("assembler %d: remove part %s: %v", m.id, name, err)
					}
					completed[name] = struct{}{}
					changed = true
				}
				parts = failed

				if changed {
					if err := SaveCompletedSet(m.tempFolder, completed); err != nil {
						utils.Debug("assembler %d: save completed set: %v", m.id, err)
					}
				}
			}
		}

		if m.done(completed) {
			m.finalize()
			return
		}
	}
}

// appendParts writes each completed segment file into the in-progress file at
// its range offset. Seeking past the current end is fine: the hole reads back
// as zeros. It returns the parts that could not be appended; they stay queued
// for the next tick.
func (m *assembler) appendParts(parts []string) (failed []string) {
	target, err := os.OpenFile(m.tempFile, os.O_RDWR|os.O_CREATE, 0644)
	if err != nil {
		utils.Debug("assembler %d: open %s: %v", m.id, m.tempFile, err)
		return parts
	}
	defer func() { _ = target.Close() }()

	for _, name := range parts {
		if err := m.appendOne(target, name); err != nil {
			utils.Debug("assembler %d: append part %s: %v", m.id, name, err)
			failed = append(failed, name)
		}
	}
	return failed
}

func (m *assembler) appendOne(target *os.File, name string) error {
	start, _, err := SegmentRange(name)
	if err != nil {
		return err
	}

	part, err := os.Open(filepath.Join(m.tempFolder, name))
	if err != nil {
		return err
	}
	defer func() { _ = part.Close() }()

	if _, err := target.Seek(start, io.SeekStart); err != nil {
		return err
	}
	_, err = io.Copy(target, part)
	return err
}

func (m *assembler) done(completed map[string]struct{}) bool {
	if len(completed) != len(m.allParts) {
		return false
	}
	for seg := range m.allParts {
		if _, ok := completed[seg]; !ok {
			return false
		}
	}
	return true
}

// finalize renames the in-progress file to its final name, removes the temp
// folder, and signals completion to the coordinator.
func (m *assembler) finalize() {
	m.brain <- events.StatusMsg{Status: types.StatusCompleted}

	if err := os.Rename(m.tempFile, m.targetFile); err != nil {
		utils.Debug("assembler %d: rename %s: %v", m.id, m.tempFile, err)
	}
	if err := os.RemoveAll(m.tempFolder); err != nil {
		utils.Debug("assembler %d: remove temp folder: %v", m.id, err)
	}
}

func containsPart(parts []string, name string) bool {
	for _, p := range parts {
		if p == name {
			return true
		}
	}
	return false
}
