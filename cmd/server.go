package cmd

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/hanash-dl/hanash/internal/api"
	"github.com/hanash-dl/hanash/internal/clipboard"
	"github.com/hanash-dl/hanash/internal/config"
	"github.com/hanash-dl/hanash/internal/core"
	"github.com/hanash-dl/hanash/internal/utils"
)

var serverPort int

var serverCmd = &cobra.Command{
	Use:   "server",
	Short: "Manage the hanash background server (daemon)",
}

var serverStartCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the hanash server in headless mode",
	RunE: func(cmd *cobra.Command, args []string) error {
		isMaster, err := AcquireLock()
		if err != nil {
			return fmt.Errorf("error acquiring lock: %w", err)
		}
		if !isMaster {
			return errors.New("hanash server is already running")
		}
		defer func() {
			if err := ReleaseLock(); err != nil {
				utils.Debug("error releasing lock: %v", err)
			}
		}()

		savePID()
		defer removePID()

		settings, err := config.LoadSettings()
		if err != nil {
			return err
		}

		svc, err := core.NewLocalService(settings, nil)
		if err != nil {
			return err
		}
		defer func() { _ = svc.Shutdown() }()

		// clipboard monitor submits copied URLs as ready-to-start downloads
		monitor := clipboard.NewMonitor(func(url string) {
			item, err := svc.Add(core.AddRequest{URL: url})
			if err != nil {
				utils.Debug("clipboard add %s: %v", url, err)
				return
			}
			if err := svc.Start(item.ID); err != nil {
				utils.Debug("clipboard start %d: %v", item.ID, err)
			}
		})
		go monitor.Run(settings.Monitor)
		defer monitor.Stop()

		listener, err := net.Listen("tcp", fmt.Sprintf("127.0.0.1:%d", serverPort))
		if err != nil {
			return err
		}
		port := listener.Addr().(*net.TCPAddr).Port
		savePort(port)
		defer func() { _ = os.Remove(portPath()) }()

		server := &http.Server{Handler: api.NewRouter(svc, ensureAuthToken())}

		errCh := make(chan error, 1)
		go func() { errCh <- server.Serve(listener) }()

		fmt.Printf("hanash server listening on 127.0.0.1:%d\n", port)

		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
		select {
		case sig := <-sigCh:
			fmt.Printf("received %v, shutting down\n", sig)
		case err := <-errCh:
			if err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
		}

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
		return nil
	},
}

var serverStopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop the running hanash server",
	Run: func(cmd *cobra.Command, args []string) {
		pid := readPID()
		if pid == 0 {
			fmt.Println("No running hanash server found (PID file missing).")
			return
		}

		process, err := os.FindProcess(pid)
		if err != nil {
			fmt.Printf("Error finding process: %v\n", err)
			return
		}
		if err := process.Signal(syscall.SIGTERM); err != nil {
			fmt.Printf("Error stopping server: %v\n", err)
			return
		}
		fmt.Printf("Sent stop signal to hanash server (pid %d).\n", pid)
	},
}

var serverStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Check whether the hanash server is running",
	Run: func(cmd *cobra.Command, args []string) {
		port := readActivePort()
		if port == 0 {
			fmt.Println("hanash server is not running.")
			return
		}
		fmt.Printf("hanash server is listening on 127.0.0.1:%d (pid %d).\n", port, readPID())
	},
}

func init() {
	serverStartCmd.Flags().IntVarP(&serverPort, "port", "p", 0, "listen port (0 picks a free one)")
	serverCmd.AddCommand(serverStartCmd, serverStopCmd, serverStatusCmd)
	rootCmd.AddCommand(serverCmd)
}
