package core

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/hanash-dl/hanash/internal/config"
	"github.com/hanash-dl/hanash/internal/engine"
	"github.com/hanash-dl/hanash/internal/engine/types"
	"github.com/hanash-dl/hanash/internal/history"
	"github.com/hanash-dl/hanash/internal/registry"
	"github.com/hanash-dl/hanash/internal/scheduler"
	"github.com/hanash-dl/hanash/internal/utils"
)

// LocalService runs the engine in-process: registry, scheduler, and history
// wired together behind the DownloadService interface.
type LocalService struct {
	settings *config.Settings
	reg      *registry.Registry
	sched    *scheduler.Scheduler
	hist     *history.Store
	notifier Notifier
}

// NewLocalService loads the registry and history from the config directory
// and builds the scheduler from the given settings.
func NewLocalService(settings *config.Settings, notifier Notifier) (*LocalService, error) {
	if err := config.EnsureDirs(); err != nil {
		return nil, err
	}

	reg, err := registry.Open(filepath.Join(config.GetHanashDir(), "downloads.cfg"))
	if err != nil {
		return nil, err
	}

	hist, err := history.Open(filepath.Join(config.GetHanashDir(), "history.db"))
	if err != nil {
		return nil, err
	}

	if notifier == nil {
		notifier = NopNotifier{}
	}

	s := &LocalService{
		settings: settings,
		reg:      reg,
		sched: scheduler.New(reg, settings.MaxConcurrentDownloads,
			settings.SpeedLimitBytes(), settings.ProxyURL),
		hist:     hist,
		notifier: notifier,
	}

	s.sched.SetOnDone(func(final types.DownloadItem) {
		if final.Status != types.StatusCompleted {
			return
		}
		if err := s.hist.Record(final); err != nil {
			utils.Debug("history record: %v", err)
		}
		s.notifier.Notify("Download completed",
			fmt.Sprintf("File: %s\nsaved at: %s", final.Name, final.Folder))
	})

	return s, nil
}

// Registry exposes the underlying registry (used by tests and the daemon).
func (s *LocalService) Registry() *registry.Registry { return s.reg }

// Scheduler exposes the underlying scheduler.
func (s *LocalService) Scheduler() *scheduler.Scheduler { return s.sched }

func (s *LocalService) List() ([]ItemStatus, error) {
	items := s.reg.List()
	out := make([]ItemStatus, 0, len(items))
	for _, d := range items {
		out = append(out, StatusOf(d))
	}
	return out, nil
}

func (s *LocalService) Get(id int) (*ItemStatus, error) {
	d, ok := s.reg.Snapshot(id)
	if !ok {
		return nil, fmt.Errorf("no download item with id %d", id)
	}
	st := StatusOf(d)
	return &st, nil
}

// Add probes the URL, applies the naming and policy rules, and registers the
// item in cancelled state ready to be started.
func (s *LocalService) Add(req AddRequest) (*ItemStatus, error) {
	folder := req.Folder
	if folder == "" {
		folder = s.settings.Folder
	}
	if err := scheduler.CheckFolder(folder); err != nil {
		return nil, err
	}

	probe, err := engine.Probe(context.Background(), req.URL, s.settings.ProxyURL)
	if err != nil {
		return nil, err
	}
	if engine.IsBadStatus(probe.Status) {
		return nil, fmt.Errorf("server response: %d %s", probe.Status, engine.StatusText(probe.Status))
	}

	name := probe.Name
	if req.Name != "" {
		name = utils.ValidateFilename(req.Name)
	}

	maxConn := req.MaxConnections
	if maxConn < 1 {
		maxConn = s.settings.MaxConnections
	}
	if maxConn < 1 {
		maxConn = 1
	}
	if !probe.Resumable {
		maxConn = 1
	}

	partSize := req.PartSizeKB * config.KB
	if partSize <= 0 {
		partSize = s.settings.PartSizeBytes()
	}

	d := types.DownloadItem{
		Name:           name,
		URL:            req.URL,
		EffURL:         probe.EffURL,
		PlaylistURL:    req.PlaylistURL,
		Type:           probe.Type,
		Size:           probe.Size,
		Resumable:      probe.Resumable,
		Folder:         folder,
		MaxConnections: maxConn,
		Status:         types.StatusCancelled,
		TimeLeft:       -1,
	}
	d.SetPartSize(partSize)
	d.RemainingParts = len(engine.SplitSize(d.Size, d.PartSize))

	// target collision: refuse unless the caller confirmed the overwrite
	if _, err := os.Stat(d.TargetFile()); err == nil {
		if !req.Overwrite {
			return nil, fmt.Errorf("file %s already exists", d.TargetFile())
		}
		if err := os.Remove(d.TargetFile()); err != nil {
			return nil, fmt.Errorf("failed to remove existing file: %w", err)
		}
	}

	id := s.reg.Add(d)
	d.ID = id
	st := StatusOf(d)
	return &st, nil
}

func (s *LocalService) Start(id int) error {
	return s.sched.Start(id)
}

func (s *LocalService) Pause(id int) error {
	s.sched.Pause(id)
	return nil
}

func (s *LocalService) Resume(id int) error {
	return s.sched.Resume(id)
}

func (s *LocalService) Cancel(id int) error {
	s.sched.Cancel(id)
	return nil
}

// Delete cancels the download and removes the registry entry, temp folder,
// and in-progress file. The final file, if any, is left alone.
func (s *LocalService) Delete(id int) error {
	s.sched.Cancel(id)

	removed, ok := s.reg.Delete(id)
	if !ok {
		return fmt.Errorf("no download item with id %d", id)
	}

	if err := os.RemoveAll(removed.TempFolder()); err != nil {
		utils.Debug("delete %d: temp folder: %v", id, err)
	}
	if err := os.Remove(removed.TempFile()); err != nil && !os.IsNotExist(err) {
		utils.Debug("delete %d: temp file: %v", id, err)
	}
	return nil
}

func (s *LocalService) StopAll() error {
	s.sched.StopAll()
	return nil
}

func (s *LocalService) ResumeAll() error {
	s.sched.ResumeAll()
	return nil
}

func (s *LocalService) History(limit int) ([]history.Entry, error) {
	return s.hist.List(limit)
}

func (s *LocalService) SetSpeedLimit(kbPerSec int64) error {
	s.settings.SpeedLimitKB = kbPerSec
	s.sched.SetSpeedLimit(kbPerSec * config.KB)
	return config.SaveSettings(s.settings)
}

func (s *LocalService) Shutdown() error {
	s.sched.Shutdown()
	return s.hist.Close()
}
