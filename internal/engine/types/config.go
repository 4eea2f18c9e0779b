package types

import "time"

// Size constants
const (
	KB = 1024
	MB = 1024 * KB
	GB = 1024 * MB
)

// IncompletePrefix is prepended to files while downloading.
const IncompletePrefix = "__downloading__"

// PartsSuffix is appended to the temp folder holding segment files.
const PartsSuffix = "_parts"

// CompletedSetFile is the name of the persisted completed-segment set
// inside the temp folder.
const CompletedSetFile = "completed.cfg"

// UserAgent is sent on every engine request.
const UserAgent = "Hanash Download Manager"

// HTTP transfer tuning
const (
	MaxRedirects   = 10
	ConnectTimeout = 30 * time.Second

	// A transfer is aborted when no byte has arrived for LowSpeedTime.
	// LowSpeedLimit (bytes/s) appears only in the abort log message: a
	// transfer slower than LowSpeedLimit is not aborted as long as some
	// byte arrives within every LowSpeedTime.
	LowSpeedLimit = 1
	LowSpeedTime  = 60 * time.Second
)

// Engine pacing
const (
	TickInterval        = 100 * time.Millisecond // poll loops
	ReportInterval      = 500 * time.Millisecond // worker data reports
	SpeedSampleInterval = 200 * time.Millisecond // coordinator speed sampling
	SpeedWindow         = 50                     // sliding mean sample count
)

// Error policy
const (
	// MaxServerErrors cancels the download after this many consecutive
	// worker-reported server errors with no data arriving in between.
	MaxServerErrors = 30
)

// WorkerLimitHold is the minimum delay between worker restarts caused by a
// per-worker speed cap change.
const WorkerLimitHold = 3 * time.Second

// DefaultPartSize is used when an item carries no explicit part size.
const DefaultPartSize = 1 * MB

// Channel buffer sizes. Senders never block for long: the coordinator drains
// every tick and load is bounded by max_connections.
const (
	BrainChannelBuffer = 64
	DataChannelBuffer  = 16
	CtlChannelBuffer   = 4
)
