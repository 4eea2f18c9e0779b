// Package scheduler admits downloads to the engine, holding the active set
// at or below the configured cap and queueing the rest in FIFO order.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"

	"github.com/hanash-dl/hanash/internal/engine"
	"github.com/hanash-dl/hanash/internal/engine/events"
	"github.com/hanash-dl/hanash/internal/engine/types"
	"github.com/hanash-dl/hanash/internal/registry"
	"github.com/hanash-dl/hanash/internal/utils"
)

var (
	// ErrAlreadyActive means the item already has a live coordinator.
	ErrAlreadyActive = errors.New("download already active")
	// ErrDuplicate means another active item targets the same (name, folder).
	ErrDuplicate = errors.New("a download with the same name and folder is already running")
)

// Scheduler owns the pending queue and the active set. Start and cancel
// operations synchronize on it; coordinators report their exit back so the
// next pending job can be promoted.
type Scheduler struct {
	mu sync.Mutex

	reg *registry.Registry

	maxConcurrent int
	speedLimit    int64 // bytes/s, 0 disables
	proxyURL      string

	active  map[int]*engine.Coordinator
	pending []int

	// onDone, when set, observes every coordinator exit with the final
	// item snapshot (used for history recording and notifications).
	onDone func(final types.DownloadItem)

	wg     sync.WaitGroup
	ctx    context.Context
	cancel context.CancelFunc
}

// New creates a scheduler over the given registry.
func New(reg *registry.Registry, maxConcurrent int, speedLimit int64, proxyURL string) *Scheduler {
	if maxConcurrent < 1 {
		maxConcurrent = 1
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		reg:           reg,
		maxConcurrent: maxConcurrent,
		speedLimit:    speedLimit,
		proxyURL:      proxyURL,
		active:        make(map[int]*engine.Coordinator),
		ctx:           ctx,
		cancel:        cancel,
	}
}

// SetOnDone registers the coordinator-exit observer.
func (s *Scheduler) SetOnDone(fn func(final types.DownloadItem)) {
	s.mu.Lock()
	s.onDone = fn
	s.mu.Unlock()
}

// ActiveCount returns the number of live coordinators.
func (s *Scheduler) ActiveCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.active)
}

// Start admits the item: below the cap it gets a coordinator immediately,
// otherwise it is marked pending and queued FIFO. Starting an already-active
// item or one colliding on (name, folder) with an active item is refused.
func (s *Scheduler) Start(id int) error {
	d, ok := s.reg.Snapshot(id)
	if !ok {
		return fmt.Errorf("no download item with id %d", id)
	}

	if err := CheckFolder(d.Folder); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.active[id]; ok || d.Status == types.StatusDownloading {
		return ErrAlreadyActive
	}

	// authoritative duplicate guard: never run two items writing the same file
	for otherID := range s.active {
		other, ok := s.reg.Snapshot(otherID)
		if ok && other.Name == d.Name && other.Folder == d.Folder {
			return ErrDuplicate
		}
	}

	if len(s.active) >= s.maxConcurrent {
		s.reg.Update(id, func(it *types.DownloadItem) { it.Status = types.StatusPending })
		for _, queued := range s.pending {
			if queued == id {
				return nil
			}
		}
		s.pending = append(s.pending, id)
		utils.Debug("scheduler: queued download %d, %d active", id, len(s.active))
		return nil
	}

	s.launch(id)
	return nil
}

// launch spawns a coordinator for id. Caller holds the lock.
func (s *Scheduler) launch(id int) {
	coord := engine.NewCoordinator(s.reg, id, s.speedLimit, s.proxyURL, s.release)
	s.active[id] = coord

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		coord.Run(s.ctx)
	}()
	utils.Debug("scheduler: started download %d", id)
}

// release runs after a coordinator's termination barrier: the id leaves the
// active set and the pending queue head is promoted.
func (s *Scheduler) release(final types.DownloadItem) {
	if err := s.reg.Save(); err != nil {
		utils.Debug("scheduler: registry save: %v", err)
	}

	s.mu.Lock()
	delete(s.active, final.ID)
	onDone := s.onDone

	var next int = -1
	if len(s.pending) > 0 {
		next = s.pending[0]
		s.pending = s.pending[1:]
	}
	if next >= 0 {
		s.launch(next)
	}
	s.mu.Unlock()

	if onDone != nil {
		onDone(final)
	}
}

// Cancel asks the item's coordinator to stop; pending items are dequeued and
// marked cancelled directly.
func (s *Scheduler) Cancel(id int) {
	s.mu.Lock()
	coord, isActive := s.active[id]
	if !isActive {
		for i, queued := range s.pending {
			if queued == id {
				s.pending = append(s.pending[:i], s.pending[i+1:]...)
				break
			}
		}
	}
	s.mu.Unlock()

	if isActive {
		coord.Brain() <- events.StatusMsg{Status: types.StatusCancelled}
		return
	}

	s.reg.Update(id, func(it *types.DownloadItem) {
		if it.Status == types.StatusPending || it.Status == types.StatusDownloading {
			it.Status = types.StatusCancelled
		}
	})
}

// Pause asks the item's coordinator to stop its workers but stay alive.
func (s *Scheduler) Pause(id int) {
	s.mu.Lock()
	coord, ok := s.active[id]
	s.mu.Unlock()
	if ok {
		coord.Brain() <- events.StatusMsg{Status: types.StatusPaused}
	}
}

// Resume restarts a paused coordinator's workers, or re-admits a cancelled
// item through the normal path. Resuming an active downloading item is a
// no-op.
func (s *Scheduler) Resume(id int) error {
	s.mu.Lock()
	coord, isActive := s.active[id]
	s.mu.Unlock()

	if isActive {
		d, _ := s.reg.Snapshot(id)
		if d.Status == types.StatusPaused {
			coord.Brain() <- events.StatusMsg{Status: types.StatusDownloading}
		}
		return nil // resume on an active download is a no-op
	}

	return s.Start(id)
}

// SetSpeedLimit updates the global per-download cap and broadcasts it to
// every live coordinator.
func (s *Scheduler) SetSpeedLimit(bytesPerSec int64) {
	s.mu.Lock()
	s.speedLimit = bytesPerSec
	coords := make([]*engine.Coordinator, 0, len(s.active))
	for _, c := range s.active {
		coords = append(coords, c)
	}
	s.mu.Unlock()

	for _, c := range coords {
		c.Brain() <- events.SpeedLimitMsg{BytesPerSec: bytesPerSec}
	}
}

// StopAll cancels every pending and active download.
func (s *Scheduler) StopAll() {
	s.mu.Lock()
	pending := s.pending
	s.pending = nil
	coords := make([]*engine.Coordinator, 0, len(s.active))
	for _, c := range s.active {
		coords = append(coords, c)
	}
	s.mu.Unlock()

	for _, id := range pending {
		s.reg.Update(id, func(it *types.DownloadItem) { it.Status = types.StatusCancelled })
	}
	for _, c := range coords {
		c.Brain() <- events.StatusMsg{Status: types.StatusCancelled}
	}
}

// ResumeAll submits every cancelled item through the normal admission path.
func (s *Scheduler) ResumeAll() {
	for _, d := range s.reg.List() {
		if d.Status == types.StatusCancelled {
			if err := s.Start(d.ID); err != nil {
				utils.Debug("scheduler: resume all, item %d: %v", d.ID, err)
			}
		}
	}
}

// Shutdown cancels everything and waits for all coordinators to finish.
func (s *Scheduler) Shutdown() {
	s.StopAll()
	s.cancel()
	s.wg.Wait()
	if err := s.reg.Save(); err != nil {
		utils.Debug("scheduler: registry save: %v", err)
	}
}

// Wait blocks until every live coordinator has exited.
func (s *Scheduler) Wait() {
	s.wg.Wait()
}

// CheckFolder verifies the destination folder exists and is writable before
// a download starts.
func CheckFolder(folder string) error {
	fi, err := os.Stat(folder)
	if err != nil {
		return fmt.Errorf("destination folder %s does not exist", folder)
	}
	if !fi.IsDir() {
		return fmt.Errorf("destination %s is not a folder", folder)
	}

	probe, err := os.CreateTemp(folder, ".hanash-*")
	if err != nil {
		return fmt.Errorf("no write permission for destination folder %s", folder)
	}
	name := probe.Name()
	_ = probe.Close()
	_ = os.Remove(name)
	return nil
}
