package engine

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/hanash-dl/hanash/internal/engine/events"
	"github.com/hanash-dl/hanash/internal/engine/types"
	"github.com/hanash-dl/hanash/internal/utils"
)

// poolManager owns the download's worker slots. It drains the coordinator's
// job queue into a local list, assigns pending segments to free slots, applies
// the per-worker speed cap, and reacts to status changes and connection-cap
// updates from the coordinator.
type poolManager struct {
	id             int // download id, logging only
	maxConnections int
	speedLimit     int64 // bytes/s for the whole download, 0 disables

	workers []*Worker

	ctl   <-chan events.PoolMsg
	jobs  chan string
	brain chan<- events.CoordinatorMsg

	barrier *sync.WaitGroup
}

func (p *poolManager) run(ctx context.Context) {
	defer p.barrier.Done()
	defer utils.Debug("pool %d: quitting", p.id)

	n := len(p.workers)

	// free slots as a stack, lowest index on top
	free := make([]int, 0, n)
	for i := n - 1; i >= 0; i-- {
		free = append(free, i)
	}
	busy := make(map[int]bool, n)

	finished := make(chan int, n)

	var jobList []string
	status := types.StatusDownloading
	cleanup := false
	live := 0
	trackNum := 0
	var workerSL, oldWorkerSL int64
	var limitChanged time.Time

	stopAllWorkers := func() {
		for slot := range busy {
			select {
			case p.workers[slot].ctl <- events.StatusMsg{Status: types.StatusCancelled}:
			default:
			}
		}
	}

	ticker := time.NewTicker(types.TickInterval)
	defer ticker.Stop()

	for range ticker.C {
		// drain new jobs and keep the lowest offset at the tail so it is
		// dispatched first; early ranges make partial files more useful
	jobsLoop:
		for {
			select {
			case seg := <-p.jobs:
				jobList = append(jobList, seg)
			default:
				break jobsLoop
			}
		}
		sort.Slice(jobList, func(i, j int) bool {
			ai, _, _ := SegmentRange(jobList[i])
			aj, _, _ := SegmentRange(jobList[j])
			return ai > aj
		})

		// control messages
	ctlLoop:
		for {
			select {
			case msg := <-p.ctl:
				switch m := msg.(type) {
				case events.StatusMsg:
					status = m.Status
					switch status {
					case types.StatusPaused:
						utils.Debug("pool %d: pausing", p.id)
						stopAllWorkers()
					case types.StatusCancelled, types.StatusCompleted:
						stopAllWorkers()
						cleanup = true
					}
				case events.SpeedLimitMsg:
					p.speedLimit = m.BytesPerSec
					utils.Debug("pool %d: received speed limit %d", p.id, m.BytesPerSec)
				case events.MaxConnectionsMsg:
					p.maxConnections = m.N
				}
			default:
				break ctlLoop
			}
		}

		// per-worker speed cap: split the global limit across the workers
		// that can actually run
		div := p.maxConnections
		if pending := len(jobList); pending > 0 && pending < div {
			div = pending
		}
		if div < 1 {
			div = 1
		}
		workerSL = p.speedLimit / int64(div)

		// restart busy workers at most every few seconds so they pick up a
		// changed cap
		if workerSL != oldWorkerSL && time.Since(limitChanged) > types.WorkerLimitHold {
			utils.Debug("pool %d: worker speed cap %d -> %d", p.id, oldWorkerSL, workerSL)
			oldWorkerSL = workerSL
			limitChanged = time.Now()
			stopAllWorkers()
		}

		// assign pending segments to free slots
		for len(busy) < p.maxConnections && len(free) > 0 && len(jobList) > 0 &&
			status == types.StatusDownloading {
			slot := free[len(free)-1]
			free = free[:len(free)-1]
			seg := jobList[len(jobList)-1]
			jobList = jobList[:len(jobList)-1]

			w := p.workers[slot]
			w.Reuse(seg, workerSL)
			busy[slot] = true
			live++

			go func(slot int, w *Worker) {
				_ = w.Run(ctx)
				finished <- slot
			}(slot, w)
		}

		// reap finished workers
	reapLoop:
		for {
			select {
			case slot := <-finished:
				delete(busy, slot)
				free = append(free, slot)
				live--
			default:
				break reapLoop
			}
		}

		if live != trackNum {
			trackNum = live
			p.sendBrain(events.LiveWorkersMsg{Count: live})
			p.sendBrain(events.RemainingJobsMsg{Count: live + len(jobList) + len(p.jobs)})
		}

		if live == 0 && len(jobList) == 0 && len(p.jobs) == 0 {
			p.sendBrain(events.RemainingJobsMsg{Count: 0})
		}

		if cleanup && live == 0 {
			utils.Debug("pool %d: cleanup", p.id)
			return
		}
	}
}

// sendBrain reports without ever blocking the pool loop; the coordinator
// drains every tick, so a dropped progress report is repeated shortly after.
func (p *poolManager) sendBrain(msg events.CoordinatorMsg) {
	select {
	case p.brain <- msg:
	default:
	}
}
