package cmd

import (
	"fmt"
	"path/filepath"

	"github.com/gofrs/flock"

	"github.com/hanash-dl/hanash/internal/config"
)

// instanceLock guards against a second daemon instance.
var instanceLock *flock.Flock

// AcquireLock attempts to acquire the single-instance lock. It returns true
// when this process is the master instance, false when another instance
// already holds the lock.
func AcquireLock() (bool, error) {
	if err := config.EnsureDirs(); err != nil {
		return false, fmt.Errorf("failed to ensure config dirs: %w", err)
	}

	lockPath := filepath.Join(config.GetHanashDir(), "hanash.lock")
	fileLock := flock.New(lockPath)

	locked, err := fileLock.TryLock()
	if err != nil {
		return false, fmt.Errorf("failed to try lock: %w", err)
	}

	if locked {
		instanceLock = fileLock
		return true, nil
	}

	return false, nil
}

// ReleaseLock releases the lock if it is held by this instance.
func ReleaseLock() error {
	if instanceLock != nil {
		return instanceLock.Unlock()
	}
	return nil
}
