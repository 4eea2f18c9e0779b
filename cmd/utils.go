package cmd

import (
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/muesli/termenv"

	"github.com/hanash-dl/hanash/internal/config"
	"github.com/hanash-dl/hanash/internal/core"
	"github.com/hanash-dl/hanash/internal/engine/types"
)

func pidPath() string  { return filepath.Join(config.GetHanashDir(), "hanash.pid") }
func portPath() string { return filepath.Join(config.GetHanashDir(), "port") }

func savePID() {
	_ = os.WriteFile(pidPath(), []byte(strconv.Itoa(os.Getpid())), 0644)
}

func removePID() {
	_ = os.Remove(pidPath())
}

func readPID() int {
	data, err := os.ReadFile(pidPath())
	if err != nil {
		return 0
	}
	pid, _ := strconv.Atoi(string(data))
	return pid
}

func savePort(port int) {
	_ = os.WriteFile(portPath(), []byte(strconv.Itoa(port)), 0644)
}

func readActivePort() int {
	data, err := os.ReadFile(portPath())
	if err != nil {
		return 0
	}
	port, _ := strconv.Atoi(string(data))
	return port
}

// ensureAuthToken returns the daemon auth token, generating and persisting a
// new one on first use.
func ensureAuthToken() string {
	path := filepath.Join(config.GetHanashDir(), "token")
	if data, err := os.ReadFile(path); err == nil && len(data) > 0 {
		return string(data)
	}

	token := uuid.NewString()
	_ = config.EnsureDirs()
	_ = os.WriteFile(path, []byte(token), 0600)
	return token
}

// resolveService returns a remote service when a daemon is reachable,
// otherwise a local in-process service.
func resolveService() (core.DownloadService, error) {
	if port := readActivePort(); port > 0 {
		base := fmt.Sprintf("http://127.0.0.1:%d", port)
		remote := core.NewRemoteService(base, ensureAuthToken())
		probe := &http.Client{Timeout: 2 * time.Second}
		req, _ := http.NewRequest(http.MethodGet, base+"/list", nil)
		req.Header.Set("Authorization", "Bearer "+remote.Token)
		if resp, err := probe.Do(req); err == nil {
			_ = resp.Body.Close()
			if resp.StatusCode < 500 {
				return remote, nil
			}
		}
	}

	settings, err := config.LoadSettings()
	if err != nil {
		return nil, err
	}
	return core.NewLocalService(settings, nil)
}

// colorStatus renders a download status with a terminal color.
func colorStatus(status string) string {
	p := termenv.ColorProfile()
	s := termenv.String(status)
	switch types.Status(status) {
	case types.StatusDownloading:
		s = s.Foreground(p.Color("4")) // blue
	case types.StatusCompleted:
		s = s.Foreground(p.Color("2")) // green
	case types.StatusCancelled:
		s = s.Foreground(p.Color("1")) // red
	case types.StatusPending, types.StatusPaused:
		s = s.Foreground(p.Color("3")) // yellow
	}
	return s.String()
}
