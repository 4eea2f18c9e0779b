package core

import (
	"github.com/hanash-dl/hanash/internal/engine/types"
	"github.com/hanash-dl/hanash/internal/history"
)

// ItemStatus is the wire/display snapshot of a download. Every field is
// independently meaningful; readers tolerate values from different instants.
type ItemStatus struct {
	ID             int     `json:"id"`
	Name           string  `json:"name"`
	URL            string  `json:"url"`
	Folder         string  `json:"folder"`
	Type           string  `json:"type"`
	Size           int64   `json:"size"`
	Downloaded     int64   `json:"downloaded"`
	Progress       float64 `json:"progress"`
	Speed          float64 `json:"speed"` // bytes/s
	TimeLeft       float64 `json:"eta"`   // seconds, -1 unknown
	Status         string  `json:"status"`
	Resumable      bool    `json:"resumable"`
	Connections    int     `json:"connections"`
	RemainingParts int     `json:"remaining_parts"`
}

// StatusOf converts an item snapshot to its wire form.
func StatusOf(d types.DownloadItem) ItemStatus {
	return ItemStatus{
		ID:             d.ID,
		Name:           d.Name,
		URL:            d.URL,
		Folder:         d.Folder,
		Type:           d.Type,
		Size:           d.Size,
		Downloaded:     d.Downloaded,
		Progress:       d.Progress,
		Speed:          d.Speed,
		TimeLeft:       d.TimeLeft,
		Status:         string(d.Status),
		Resumable:      d.Resumable,
		Connections:    d.LiveConnections,
		RemainingParts: d.RemainingParts,
	}
}

// AddRequest describes a new download submission.
type AddRequest struct {
	URL            string `json:"url"`
	Folder         string `json:"folder"`          // empty: settings default
	Name           string `json:"name"`            // empty: probed filename
	PlaylistURL    string `json:"pl_url"`          // optional origin URL
	MaxConnections int    `json:"max_connections"` // 0: settings default
	PartSizeKB     int64  `json:"part_size"`       // KB, 0: settings default
	Overwrite      bool   `json:"overwrite"`       // delete an existing target file
}

// DownloadService is the surface the CLI and the daemon API share. The local
// implementation embeds the engine; the remote one talks to a running daemon.
type DownloadService interface {
	// List returns snapshots of all registered downloads.
	List() ([]ItemStatus, error)

	// Get returns a single download snapshot by id.
	Get(id int) (*ItemStatus, error)

	// Add probes the URL and registers a new download without starting it.
	Add(req AddRequest) (*ItemStatus, error)

	// Start admits a download (or queues it when the active set is full).
	Start(id int) error

	// Pause stops a download's workers but keeps its coordinator alive.
	Pause(id int) error

	// Resume restarts a paused or cancelled download.
	Resume(id int) error

	// Cancel stops a download; partial state stays on disk for later resume.
	Cancel(id int) error

	// Delete cancels a download and removes its registry entry, temp folder,
	// and in-progress file.
	Delete(id int) error

	// StopAll cancels every pending and active download.
	StopAll() error

	// ResumeAll resubmits every cancelled download.
	ResumeAll() error

	// History lists archived completed downloads.
	History(limit int) ([]history.Entry, error)

	// SetSpeedLimit applies a new per-download cap in KB/s (0 disables).
	SetSpeedLimit(kbPerSec int64) error

	// Shutdown releases the service.
	Shutdown() error
}

// Notifier is the desktop-notification surface. The engine only emits;
// rendering is external.
type Notifier interface {
	Notify(title, message string)
}

// NopNotifier discards notifications.
type NopNotifier struct{}

func (NopNotifier) Notify(title, message string) {}
