package engine

import (
	"context"
	"fmt"
	"math"
	"os"
	"sync"
	"time"

	"github.com/hanash-dl/hanash/internal/engine/events"
	"github.com/hanash-dl/hanash/internal/engine/types"
	"github.com/hanash-dl/hanash/internal/utils"
)

// ItemStore is what the coordinator needs from the registry: guarded access
// to the one item it owns. Keeping the interface here lets the engine stay
// free of persistence concerns.
type ItemStore interface {
	Update(id int, fn func(*types.DownloadItem)) bool
	Snapshot(id int) (types.DownloadItem, bool)
}

// Coordinator owns a single download's state machine. It aggregates worker
// reports, drives progress and speed, applies the server-error policy, and
// orchestrates the pool manager and assembler it spawns. All channels are
// created here and freed when the coordinator exits; the DownloadItem stays a
// plain data record.
type Coordinator struct {
	store ItemStore
	id    int

	speedLimit int64 // bytes/s, 0 disables
	proxyURL   string

	brain chan events.CoordinatorMsg

	// onExit runs after the termination barrier, with the final snapshot.
	onExit func(final types.DownloadItem)
}

// NewCoordinator prepares a coordinator for the given item id. Admission
// control (the active-set cap and the no-second-coordinator guard) is the
// scheduler's job; Run assumes it has been granted the download.
func NewCoordinator(store ItemStore, id int, speedLimit int64, proxyURL string,
	onExit func(final types.DownloadItem)) *Coordinator {
	return &Coordinator{
		store:      store,
		id:         id,
		speedLimit: speedLimit,
		proxyURL:   proxyURL,
		brain:      make(chan events.CoordinatorMsg, types.BrainChannelBuffer),
		onExit:     onExit,
	}
}

// Brain returns the send half of the coordinator's control channel: status
// changes and speed-limit updates from the scheduler arrive here.
func (c *Coordinator) Brain() chan<- events.CoordinatorMsg {
	return c.brain
}

// Run executes the download until it completes or is cancelled. It blocks;
// callers run it in its own goroutine.
func (c *Coordinator) Run(ctx context.Context) {
	d, ok := c.store.Snapshot(c.id)
	if !ok {
		utils.Debug("brain %d: item disappeared before start", c.id)
		return
	}

	c.store.Update(c.id, func(it *types.DownloadItem) {
		it.Status = types.StatusDownloading
		if !it.Resumable {
			it.MaxConnections = 1
		}
		it.SetPartSize(it.PartSize)
	})
	d, _ = c.store.Snapshot(c.id)

	utils.Debug("brain %d: start downloading %s, size %s", c.id, d.Name, utils.SizeFormat(d.Size))

	if err := os.MkdirAll(d.TempFolder(), 0755); err != nil {
		utils.Debug("brain %d: temp folder: %v", c.id, err)
		c.store.Update(c.id, func(it *types.DownloadItem) { it.Status = types.StatusCancelled })
		if c.onExit != nil {
			final, _ := c.store.Snapshot(c.id)
			c.onExit(final)
		}
		return
	}

	// plan segments
	var segList []string
	if d.Resumable {
		segList = SplitSize(d.Size, d.PartSize)
	} else {
		end := int64(0)
		if d.Size > 0 {
			end = d.Size - 1
		}
		segList = []string{fmt.Sprintf("0-%d", end)}
	}

	// seed the downloaded total from previously completed segments and queue
	// the rest
	completedParts := LoadCompletedSet(d.TempFolder())
	jobs := make(chan string, len(segList)+d.MaxConnections+4)
	var downloaded int64
	pendingJobs := 0
	for _, seg := range segList {
		if _, ok := completedParts[seg]; ok {
			downloaded += SegmentSize(seg)
		} else {
			jobs <- seg
			pendingJobs++
		}
	}

	// one control and one data channel per worker slot
	n := d.MaxConnections
	if n < 1 {
		n = 1
	}
	workerCtl := make([]chan events.StatusMsg, n)
	workerData := make([]chan events.DataMsg, n)
	for i := 0; i < n; i++ {
		workerCtl[i] = make(chan events.StatusMsg, types.CtlChannelBuffer)
		workerData[i] = make(chan events.DataMsg, types.DataChannelBuffer)
	}

	completedJobs := make(chan string, len(segList)+4)
	poolCtl := make(chan events.PoolMsg, types.BrainChannelBuffer)

	// the three parties rendezvous here before channels are freed
	var barrier sync.WaitGroup
	barrier.Add(2)

	asm := newAssembler(c.id, d.TempFolder(), d.TempFile(), d.TargetFile(), segList,
		completedJobs, c.brain, &barrier)
	go asm.run()

	client := NewClient(c.proxyURL)
	workers := make([]*Worker, n)
	for i := 0; i < n; i++ {
		workers[i] = newWorker(i, d.EffectiveURL(), d.TempFolder(), d.Resumable, client,
			workerCtl[i], workerData[i], jobs, completedJobs, c.brain)
	}

	pool := &poolManager{
		id:             c.id,
		maxConnections: n,
		speedLimit:     c.speedLimit,
		workers:        workers,
		ctl:            poolCtl,
		jobs:           jobs,
		brain:          c.brain,
		barrier:        &barrier,
	}
	go pool.run(ctx)

	c.loop(ctx, d, pendingJobs, downloaded, workerData, poolCtl, completedJobs)

	// shutdown: absorb late worker and pool traffic until both parties
	// arrive, so nobody blocks on a channel the coordinator stopped reading
	stopDrain := make(chan struct{})
	go func() {
		for {
			select {
			case <-c.brain:
			case <-stopDrain:
				return
			}
		}
	}()
	for i := range workerData {
		go func(ch <-chan events.DataMsg) {
			for {
				select {
				case <-ch:
				case <-stopDrain:
					return
				}
			}
		}(workerData[i])
	}

	barrier.Wait()
	close(stopDrain)

	utils.Debug("brain %d: quitting", c.id)

	if c.onExit != nil {
		final, _ := c.store.Snapshot(c.id)
		c.onExit(final)
	}
}

// loop is the coordinator's main polling cycle: control messages, worker
// data, speed sampling, and progress updates, paced at the engine tick.
func (c *Coordinator) loop(ctx context.Context, d types.DownloadItem, pendingJobs int,
	downloaded int64, workerData []chan events.DataMsg, poolCtl chan<- events.PoolMsg,
	completedJobs chan<- string) {

	status := types.StatusDownloading
	oldStatus := types.Status("")
	maxConnections := len(workerData)

	var buff, sample int64
	liveWorkers := 0
	numJobs := pendingJobs
	serverError := 0
	var speedWindow []float64
	startTimer := time.Now()

	ticker := time.NewTicker(types.TickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			status = types.StatusCancelled
		case <-ticker.C:
		}

		// control messages
	brainLoop:
		for {
			select {
			case msg := <-c.brain:
				switch m := msg.(type) {
				case events.StatusMsg:
					status = m.Status
				case events.LiveWorkersMsg:
					liveWorkers = m.Count
				case events.RemainingJobsMsg:
					numJobs = m.Count
				case events.SpeedLimitMsg:
					c.speedLimit = m.BytesPerSec
					utils.Debug("brain %d: received speed limit %d", c.id, m.BytesPerSec)
					poolCtl <- events.SpeedLimitMsg{BytesPerSec: m.BytesPerSec}
				case events.ServerErrorMsg:
					serverError++
					if m.Code == 429 && maxConnections > 1 {
						maxConnections--
						c.store.Update(c.id, func(it *types.DownloadItem) {
							it.MaxConnections = maxConnections
						})
						poolCtl <- events.MaxConnectionsMsg{N: maxConnections}
					}
					if serverError >= types.MaxServerErrors {
						utils.Debug("brain %d: server refused connection %d %s, giving up",
							c.id, m.Code, StatusText(m.Code))
						status = types.StatusCancelled
					}
				}
			default:
				break brainLoop
			}
		}

		// worker data
		for i := range workerData {
		dataLoop:
			for {
				select {
				case msg := <-workerData[i]:
					buff += msg.Bytes
					if msg.Tag >= 0 {
						sample += msg.Bytes // disk bytes never count toward speed
						if msg.Bytes > 0 {
							serverError = 0 // a successful byte clears the error streak
						}
					}
				default:
					break dataLoop
				}
			}
		}

		// flush the buffer into the running total once per cycle
		downloaded += buff
		buff = 0

		// periodic speed sampling and progress update
		delta := time.Since(startTimer)
		if delta >= types.SpeedSampleInterval {
			speed := float64(sample) / delta.Seconds()
			if speed < 0 {
				speed = 0
			}

			if status != types.StatusDownloading {
				speedWindow = speedWindow[:0]
			} else {
				speedWindow = append(speedWindow, speed)
				if len(speedWindow) > types.SpeedWindow {
					speedWindow = speedWindow[1:]
				}
			}

			var avgSpeed float64
			if len(speedWindow) > 0 {
				var sum float64
				for _, s := range speedWindow {
					sum += s
				}
				avgSpeed = sum / float64(len(speedWindow))
			}

			var progress float64
			if d.Size > 0 {
				progress = math.Round(float64(downloaded)*1000/float64(d.Size)) / 10
			}

			timeLeft := -1.0
			if avgSpeed > 0 {
				timeLeft = float64(d.Size-downloaded) / avgSpeed
			}

			c.store.Update(c.id, func(it *types.DownloadItem) {
				it.Progress = progress
				it.Speed = avgSpeed
				it.Downloaded = downloaded
				it.LiveConnections = liveWorkers
				it.RemainingParts = numJobs
				it.TimeLeft = timeLeft
				it.Status = status
			})

			sample = 0
			startTimer = time.Now()
		}

		// status transitions
		if status != oldStatus {
			utils.Debug("brain %d: status %s", c.id, status)
			poolCtl <- events.StatusMsg{Status: status}

			switch status {
			case types.StatusCancelled:
				c.store.Update(c.id, func(it *types.DownloadItem) {
					it.Status = status
					it.Downloaded = downloaded
					it.Speed = 0
					it.LiveConnections = 0
					it.RemainingParts = numJobs
					it.TimeLeft = -1
				})
				c.signalAssemblerExit(completedJobs)
				return

			case types.StatusCompleted:
				c.store.Update(c.id, func(it *types.DownloadItem) {
					it.Status = status
					it.Progress = 100
					it.Downloaded = downloaded
					it.Speed = 0
					it.LiveConnections = 0
					it.RemainingParts = 0
					it.TimeLeft = 0
				})
				c.signalAssemblerExit(completedJobs)
				return
			}

			oldStatus = status
		}
	}
}

// signalAssemblerExit tells the assembler to stop. The send is best-effort:
// when the assembler already finished (completion path) nobody is reading.
func (c *Coordinator) signalAssemblerExit(completedJobs chan<- string) {
	select {
	case completedJobs <- exitToken:
	default:
	}
}
