// Package events defines the typed messages exchanged between the engine's
// per-download components. Each channel's protocol is a tagged variant;
// the untyped tuples of loosely-typed download managers don't survive here.
package events

import "github.com/hanash-dl/hanash/internal/engine/types"

// CoordinatorMsg is the variant accepted by a coordinator's brain channel.
type CoordinatorMsg interface{ coordinatorMsg() }

// PoolMsg is the variant accepted by the pool manager's control channel.
type PoolMsg interface{ poolMsg() }

// StatusMsg requests or reports a status transition.
// It flows both into the coordinator (from UI/scheduler/assembler) and from
// the coordinator into the pool manager and worker control channels.
type StatusMsg struct {
	Status types.Status
}

func (StatusMsg) coordinatorMsg() {}
func (StatusMsg) poolMsg()        {}

// LiveWorkersMsg reports the number of live worker threads to the coordinator.
type LiveWorkersMsg struct {
	Count int
}

func (LiveWorkersMsg) coordinatorMsg() {}

// RemainingJobsMsg reports the remaining segment count to the coordinator:
// live workers plus the pool's local list plus the coordinator queue depth.
type RemainingJobsMsg struct {
	Count int
}

func (RemainingJobsMsg) coordinatorMsg() {}

// SpeedLimitMsg carries an updated global speed limit in bytes/s (0 disables).
type SpeedLimitMsg struct {
	BytesPerSec int64
}

func (SpeedLimitMsg) coordinatorMsg() {}
func (SpeedLimitMsg) poolMsg()        {}

// ServerErrorMsg reports an HTTP error status received by a worker.
type ServerErrorMsg struct {
	Code int
}

func (ServerErrorMsg) coordinatorMsg() {}

// MaxConnectionsMsg broadcasts a reduced connection cap to the pool manager.
type MaxConnectionsMsg struct {
	N int
}

func (MaxConnectionsMsg) poolMsg() {}

// DataMsg reports downloaded byte deltas from a worker slot.
// A negative Tag marks bytes already on disk (resume seed or rollback of an
// aborted attempt); those count toward the downloaded total but never toward
// the current speed sample.
type DataMsg struct {
	Tag   int
	Bytes int64
}
