package cmd

import (
	"fmt"
	"time"

	"github.com/cheggaaa/pb/v3"
	"github.com/spf13/cobra"

	"github.com/hanash-dl/hanash/internal/config"
	"github.com/hanash-dl/hanash/internal/core"
	"github.com/hanash-dl/hanash/internal/engine/types"
	"github.com/hanash-dl/hanash/internal/utils"
)

var (
	getFolder      string
	getName        string
	getConnections int
	getPartSizeKB  int64
	getSpeedKB     int64
	getOverwrite   bool
)

var getCmd = &cobra.Command{
	Use:   "get [url]",
	Short: "Download a file in the foreground",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		settings, err := config.LoadSettings()
		if err != nil {
			return err
		}
		if getSpeedKB > 0 {
			settings.SpeedLimitKB = getSpeedKB
		}

		svc, err := core.NewLocalService(settings, nil)
		if err != nil {
			return err
		}
		defer func() { _ = svc.Shutdown() }()

		item, err := svc.Add(core.AddRequest{
			URL:            args[0],
			Folder:         getFolder,
			Name:           getName,
			MaxConnections: getConnections,
			PartSizeKB:     getPartSizeKB,
			Overwrite:      getOverwrite,
		})
		if err != nil {
			return err
		}

		fmt.Printf("%s (%s)\n", item.Name, utils.SizeFormat(item.Size))

		if err := svc.Start(item.ID); err != nil {
			return err
		}

		return watchProgress(svc, item.ID, item.Size)
	},
}

// watchProgress renders a progress bar until the download terminates.
func watchProgress(svc core.DownloadService, id int, size int64) error {
	bar := pb.Full.Start64(size)
	bar.Set(pb.Bytes, true)
	defer bar.Finish()

	for {
		time.Sleep(200 * time.Millisecond)

		item, err := svc.Get(id)
		if err != nil {
			return err
		}
		bar.SetCurrent(item.Downloaded)

		switch types.Status(item.Status) {
		case types.StatusCompleted:
			bar.SetCurrent(size)
			return nil
		case types.StatusCancelled:
			return fmt.Errorf("download cancelled")
		}
	}
}

func init() {
	getCmd.Flags().StringVarP(&getFolder, "output", "o", "", "destination folder (default from settings)")
	getCmd.Flags().StringVarP(&getName, "name", "n", "", "override the output filename")
	getCmd.Flags().IntVarP(&getConnections, "connections", "c", 0, "max connections (default from settings)")
	getCmd.Flags().Int64Var(&getPartSizeKB, "part-size", 0, "segment size in KB (default from settings)")
	getCmd.Flags().Int64Var(&getSpeedKB, "speed-limit", 0, "speed cap in KB/s (default from settings)")
	getCmd.Flags().BoolVar(&getOverwrite, "overwrite", false, "replace an existing file at the target path")
	rootCmd.AddCommand(getCmd)
}
