package engine

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sort"

	"github.com/hanash-dl/hanash/internal/engine/types"
	"github.com/hanash-dl/hanash/internal/utils"
)

// LoadCompletedSet reads the persisted set of completed segment names from the
// temp folder. A missing or corrupt file yields an empty set.
func LoadCompletedSet(tempFolder string) map[string]struct{} {
	set := make(map[string]struct{})

	path := filepath.Join(tempFolder, types.CompletedSetFile)
	data, err := os.ReadFile(path)
	if err != nil {
		return set
	}

	var names []string
	if err := json.Unmarshal(data, &names); err != nil {
		utils.Debug("corrupt completed set %s, treating as empty: %v", path, err)
		return set
	}

	for _, name := range names {
		set[name] = struct{}{}
	}
	return set
}

// SaveCompletedSet atomically rewrites the completed set file. The file is
// small; a full overwrite per update is fine.
func SaveCompletedSet(tempFolder string, set map[string]struct{}) error {
	names := make([]string, 0, len(set))
	for name := range set {
		names = append(names, name)
	}
	sort.Strings(names)

	data, err := json.Marshal(names)
	if err != nil {
		return err
	}

	path := filepath.Join(tempFolder, types.CompletedSetFile)
	tempPath := path + ".tmp"
	if err := os.WriteFile(tempPath, data, 0644); err != nil {
		return err
	}
	return os.Rename(tempPath, path)
}
