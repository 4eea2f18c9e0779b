// Package clipboard watches the system clipboard for download URLs.
package clipboard

import (
	"strings"
	"time"

	"github.com/atotto/clipboard"
)

// pollInterval matches the original monitor cadence.
const pollInterval = 200 * time.Millisecond

// Monitor polls the clipboard and offers every newly copied URL to the
// submit callback. Monitoring can be toggled at runtime.
type Monitor struct {
	submit  func(url string)
	toggle  chan bool
	stop    chan struct{}
	stopped chan struct{}
}

// NewMonitor creates a monitor that calls submit for each copied URL.
func NewMonitor(submit func(url string)) *Monitor {
	return &Monitor{
		submit:  submit,
		toggle:  make(chan bool, 1),
		stop:    make(chan struct{}),
		stopped: make(chan struct{}),
	}
}

// Run polls until Stop is called. Call it in its own goroutine.
func (m *Monitor) Run(enabled bool) {
	defer close(m.stopped)

	old, _ := clipboard.ReadAll()

	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-m.stop:
			return
		case enabled = <-m.toggle:
		case <-ticker.C:
			if !enabled {
				continue
			}
			data, err := clipboard.ReadAll()
			if err != nil || data == old {
				continue
			}
			old = data
			if IsDownloadURL(data) {
				m.submit(data)
			}
		}
	}
}

// SetEnabled toggles monitoring without stopping the loop.
func (m *Monitor) SetEnabled(enabled bool) {
	select {
	case m.toggle <- enabled:
	default:
	}
}

// Stop terminates the monitor and waits for the loop to exit.
func (m *Monitor) Stop() {
	close(m.stop)
	<-m.stopped
}

// IsDownloadURL reports whether a clipboard value looks like a URL worth
// offering: it starts with http and contains no spaces.
func IsDownloadURL(data string) bool {
	return strings.HasPrefix(data, "http") && !strings.Contains(data, " ")
}
