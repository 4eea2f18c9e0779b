// Package registry persists the download list across restarts. IDs are dense:
// an item's id is its index in the list.
package registry

import (
	"encoding/json"
	"os"
	"sync"

	"github.com/gofrs/flock"

	"github.com/hanash-dl/hanash/internal/engine/types"
	"github.com/hanash-dl/hanash/internal/utils"
)

// Registry is a serialized list of DownloadItems, loaded once at start and
// written on shutdown and on significant mutations. It also implements the
// engine's ItemStore.
type Registry struct {
	mu    sync.RWMutex
	path  string
	items []types.DownloadItem

	// flk guards the file against a second process; in-process access is
	// guarded by mu.
	flk *flock.Flock
}

// Open loads the registry file. A missing or corrupt file yields an empty
// list. Loaded statuses are sanitized: anything not completed becomes
// cancelled (or completed when no segments remain), and volatile fields are
// reset.
func Open(path string) (*Registry, error) {
	r := &Registry{
		path: path,
		flk:  flock.New(path + ".lock"),
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return r, nil
		}
		return nil, err
	}

	var items []types.DownloadItem
	if err := json.Unmarshal(data, &items); err != nil {
		utils.Debug("corrupt registry file %s, starting empty: %v", path, err)
		return r, nil
	}

	for i := range items {
		items[i].ID = i
		if items[i].Status != types.StatusCompleted {
			if items[i].RemainingParts == 0 {
				items[i].Status = types.StatusCompleted
			} else {
				items[i].Status = types.StatusCancelled
			}
		}
		items[i].ResetVolatile()
	}
	r.items = items

	return r, nil
}

// Add inserts a new item, assigns it the next dense id, and saves.
func (r *Registry) Add(item types.DownloadItem) int {
	r.mu.Lock()
	item.ID = len(r.items)
	r.items = append(r.items, item)
	r.mu.Unlock()

	if err := r.Save(); err != nil {
		utils.Debug("registry save: %v", err)
	}
	return item.ID
}

// Update applies fn to the item under the registry lock.
func (r *Registry) Update(id int, fn func(*types.DownloadItem)) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if id < 0 || id >= len(r.items) {
		return false
	}
	fn(&r.items[id])
	return true
}

// Snapshot returns a copy of the item.
func (r *Registry) Snapshot(id int) (types.DownloadItem, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if id < 0 || id >= len(r.items) {
		return types.DownloadItem{}, false
	}
	return r.items[id], true
}

// List returns a copy of all items in id order.
func (r *Registry) List() []types.DownloadItem {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]types.DownloadItem, len(r.items))
	copy(out, r.items)
	return out
}

// Len returns the number of items.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.items)
}

// FindByNameFolder returns the id of the item with the given name and
// destination folder, if any.
func (r *Registry) FindByNameFolder(name, folder string) (int, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for i := range r.items {
		if r.items[i].Name == name && r.items[i].Folder == folder {
			return i, true
		}
	}
	return 0, false
}

// Delete removes an item and reindexes the remaining entries so ids stay
// dense. The removed item is returned so the caller can clean up its files.
func (r *Registry) Delete(id int) (types.DownloadItem, bool) {
	r.mu.Lock()
	if id < 0 || id >= len(r.items) {
		r.mu.Unlock()
		return types.DownloadItem{}, false
	}
	removed := r.items[id]
	r.items = append(r.items[:id], r.items[id+1:]...)
	for i := range r.items {
		r.items[i].ID = i
	}
	r.mu.Unlock()

	if err := r.Save(); err != nil {
		utils.Debug("registry save: %v", err)
	}
	return removed, true
}

// Save writes the list atomically, holding the file lock against other
// processes.
func (r *Registry) Save() error {
	r.mu.RLock()
	data, err := json.MarshalIndent(r.items, "", "  ")
	r.mu.RUnlock()
	if err != nil {
		return err
	}

	if err := r.flk.Lock(); err != nil {
		return err
	}
	defer func() { _ = r.flk.Unlock() }()

	tempPath := r.path + ".tmp"
	if err := os.WriteFile(tempPath, data, 0644); err != nil {
		return err
	}
	return os.Rename(tempPath, r.path)
}
