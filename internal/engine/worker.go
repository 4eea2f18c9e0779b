package engine

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"

	"github.com/hanash-dl/hanash/internal/engine/events"
	"github.com/hanash-dl/hanash/internal/engine/types"
	"github.com/hanash-dl/hanash/internal/utils"
)

type writeMode int

const (
	modeWriteNew writeMode = iota
	modeAppend
)

// copyBufSize is the read granularity of a worker transfer. Small enough that
// control polling and rate limiting stay responsive.
const copyBufSize = 32 * types.KB

var errAborted = errors.New("transfer aborted")

// Worker performs a single ranged GET into a segment file and reports bytes
// and completion. A worker object is bound to a pool slot and reused across
// segments; Reuse rearms it for the next attempt.
type Worker struct {
	Tag        int
	URL        string
	TempFolder string
	Resumable  bool

	client *http.Client

	ctl       chan events.StatusMsg
	data      chan<- events.DataMsg
	jobs      chan<- string
	completed chan<- string
	brain     chan<- events.CoordinatorMsg

	// per-attempt state
	seg        string
	rangeHdr   string
	targetSize int64
	path       string
	mode       writeMode
	doneBefore bool
	limiter    *rate.Limiter

	startBytes int64 // on-disk bytes at attempt start
	written    int64 // bytes written this attempt
	buff       int64 // bytes written but not yet reported
	lastReport time.Time
	lastByte   atomic.Int64 // unix nano of last received byte, stall detection
}

func newWorker(tag int, url, tempFolder string, resumable bool, client *http.Client,
	ctl chan events.StatusMsg, data chan<- events.DataMsg, jobs chan<- string,
	completed chan<- string, brain chan<- events.CoordinatorMsg) *Worker {
	return &Worker{
		Tag:        tag,
		URL:        url,
		TempFolder: tempFolder,
		Resumable:  resumable,
		client:     client,
		ctl:        ctl,
		data:       data,
		jobs:       jobs,
		completed:  completed,
		brain:      brain,
	}
}

// Reuse rearms the worker for a new segment attempt with the given per-worker
// speed cap in bytes/s (0 disables), then runs the resume check against the
// segment file already on disk.
func (w *Worker) Reuse(seg string, speedLimit int64) {
	w.seg = seg
	w.targetSize = SegmentSize(seg)
	w.path = filepath.Join(w.TempFolder, seg)
	w.mode = modeWriteNew
	w.rangeHdr = seg
	w.doneBefore = false
	w.startBytes = 0
	w.written = 0
	w.buff = 0

	// discard control messages addressed to a previous attempt
	for {
		select {
		case <-w.ctl:
			continue
		default:
		}
		break
	}

	if speedLimit > 0 {
		w.limiter = rate.NewLimiter(rate.Limit(speedLimit), copyBufSize)
	} else {
		w.limiter = nil
	}

	w.checkPreviousDownload()
}

// checkPreviousDownload inspects the on-disk segment file and decides between
// skipping the transfer, appending to partial data, or refetching from zero.
func (w *Worker) checkPreviousDownload() {
	a, b, err := SegmentRange(w.seg)
	if err != nil {
		return
	}

	if w.targetSize == 0 {
		// unknown total size: stream from the range start until EOF
		w.rangeHdr = fmt.Sprintf("%d-", a)
		return
	}

	fi, statErr := os.Stat(w.path)
	if statErr != nil {
		return // no previous file, fresh fetch
	}
	onDisk := fi.Size()

	switch {
	case onDisk == w.targetSize && w.Resumable:
		utils.Debug("worker %d: segment %s already completed before", w.Tag, w.seg)
		w.doneBefore = true
		w.data <- events.DataMsg{Tag: -1, Bytes: w.targetSize}
		w.completed <- w.seg

	case onDisk > w.targetSize:
		utils.Debug("worker %d: segment %s oversized on disk (%d > %d), refetching",
			w.Tag, w.seg, onDisk, w.targetSize)
		// mode stays write-new, the file gets truncated on open

	case onDisk > 0 && w.Resumable:
		w.mode = modeAppend
		w.startBytes = onDisk
		w.rangeHdr = fmt.Sprintf("%d-%d", a+onDisk, b)
		utils.Debug("worker %d: resuming segment %s, new range %s", w.Tag, w.seg, w.rangeHdr)
		w.data <- events.DataMsg{Tag: -1, Bytes: onDisk}
	}
}

// Run executes the transfer for the current segment. All outcomes are
// reported through the worker's channels; the returned error is advisory.
func (w *Worker) Run(ctx context.Context) error {
	if w.doneBefore {
		return nil
	}

	flags := os.O_CREATE | os.O_WRONLY
	if w.mode == modeAppend {
		flags |= os.O_APPEND
	} else {
		flags |= os.O_TRUNC
	}

	file, err := os.OpenFile(w.path, flags, 0644)
	if err != nil {
		utils.Debug("worker %d: open %s: %v", w.Tag, w.path, err)
		w.reportNotCompleted()
		return err
	}

	err = w.transfer(ctx, file)
	closeErr := file.Close()
	if err == nil {
		err = closeErr
	}

	w.reportNow()

	if w.verify() {
		w.reportCompleted()
		return nil
	}

	if err != nil {
		utils.Debug("worker %d: quitting segment %s: %v", w.Tag, w.seg, err)
	}
	w.reportNotCompleted()
	return err
}

func (w *Worker) transfer(ctx context.Context, file *os.File) error {
	reqCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, w.URL, nil)
	if err != nil {
		return err
	}
	req.Header.Set("User-Agent", types.UserAgent)
	req.Header.Set("Range", "bytes="+w.rangeHdr)

	w.lastByte.Store(time.Now().UnixNano())
	watchDone := make(chan struct{})
	defer close(watchDone)
	go w.watch(cancel, watchDone)

	resp, err := w.client.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= 400 && resp.StatusCode < 512 {
		utils.Debug("worker %d: server refused connection with %d", w.Tag, resp.StatusCode)
		w.brain <- events.ServerErrorMsg{Code: resp.StatusCode}
		return fmt.Errorf("server error %d", resp.StatusCode)
	}

	w.lastReport = time.Now()
	buf := make([]byte, copyBufSize)
	for {
		if w.ctlSaysStop() {
			return errAborted
		}

		n, readErr := resp.Body.Read(buf)
		if n > 0 {
			w.lastByte.Store(time.Now().UnixNano())

			if w.limiter != nil {
				if err := w.limiter.WaitN(reqCtx, n); err != nil {
					return errAborted
				}
			}

			if _, werr := file.Write(buf[:n]); werr != nil {
				return werr
			}
			w.buff += int64(n)

			// abort only when the data already strictly exceeds the target;
			// exact completion is judged after the transfer returns
			if w.targetSize > 0 && w.startBytes+w.written+w.buff > w.targetSize {
				return errAborted
			}

			w.reportEvery(types.ReportInterval)
		}

		if readErr == io.EOF {
			return nil
		}
		if readErr != nil {
			return readErr
		}
	}
}

// watch aborts the request when control says stop or when no byte has
// arrived for LowSpeedTime. It runs beside the read loop so a transfer
// blocked inside a socket read still honors cancellation promptly.
func (w *Worker) watch(cancel context.CancelFunc, done <-chan struct{}) {
	ticker := time.NewTicker(250 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-done:
			return
		case msg := <-w.ctl:
			if msg.Status == types.StatusCancelled || msg.Status == types.StatusPaused {
				cancel()
				return
			}
		case <-ticker.C:
			last := time.Unix(0, w.lastByte.Load())
			if time.Since(last) >= types.LowSpeedTime {
				utils.Debug("worker %d: receive rate below %d B/s for %v, aborting",
					w.Tag, types.LowSpeedLimit, types.LowSpeedTime)
				cancel()
				return
			}
		}
	}
}

// ctlSaysStop drains the control channel and reports whether the transfer
// should abort.
func (w *Worker) ctlSaysStop() bool {
	for {
		select {
		case msg := <-w.ctl:
			if msg.Status == types.StatusCancelled || msg.Status == types.StatusPaused {
				return true
			}
		default:
			return false
		}
	}
}

// reportEvery pushes the buffered byte count to the coordinator once the
// given interval has elapsed.
func (w *Worker) reportEvery(interval time.Duration) {
	if time.Since(w.lastReport) < interval {
		return
	}
	w.data <- events.DataMsg{Tag: w.Tag, Bytes: w.buff}
	w.written += w.buff
	w.buff = 0
	w.lastReport = time.Now()
}

func (w *Worker) reportNow() {
	w.reportEvery(0)
}

// actualSize returns the current on-disk length of the segment file.
func (w *Worker) actualSize() int64 {
	fi, err := os.Stat(w.path)
	if err != nil {
		return 0
	}
	return fi.Size()
}

// verify reports whether the segment completed: the on-disk length matches
// the target, or the target length was unknown.
func (w *Worker) verify() bool {
	return w.actualSize() == w.targetSize || w.targetSize == 0
}

func (w *Worker) reportCompleted() {
	w.completed <- w.seg
}

// reportNotCompleted rolls back every byte this worker has credited for the
// segment and returns the job to the queue for another attempt.
func (w *Worker) reportNotCompleted() {
	actual := w.actualSize()
	utils.Debug("worker %d: did not complete %s, on disk %d, target %d",
		w.Tag, w.seg, actual, w.targetSize)
	w.data <- events.DataMsg{Tag: -1, Bytes: -actual}
	w.jobs <- w.seg
}
