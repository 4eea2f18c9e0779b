package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/hanash-dl/hanash/internal/core"
	"github.com/hanash-dl/hanash/internal/utils"
)

var (
	addFolder    string
	addName      string
	addOverwrite bool
	addStart     bool
)

var addCmd = &cobra.Command{
	Use:   "add [url]",
	Short: "Register a download without waiting for it",
	Long: `Probe the URL and add it to the download list. With --start the
download is also submitted to the scheduler (requires a running daemon to
make progress after this command exits).`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, err := resolveService()
		if err != nil {
			return err
		}
		defer func() { _ = svc.Shutdown() }()

		item, err := svc.Add(core.AddRequest{
			URL:       args[0],
			Folder:    addFolder,
			Name:      addName,
			Overwrite: addOverwrite,
		})
		if err != nil {
			return err
		}

		fmt.Printf("added #%d %s (%s)\n", item.ID, item.Name, utils.SizeFormat(item.Size))

		if addStart {
			return svc.Start(item.ID)
		}
		return nil
	},
}

func init() {
	addCmd.Flags().StringVarP(&addFolder, "output", "o", "", "destination folder (default from settings)")
	addCmd.Flags().StringVarP(&addName, "name", "n", "", "override the output filename")
	addCmd.Flags().BoolVar(&addOverwrite, "overwrite", false, "replace an existing file at the target path")
	addCmd.Flags().BoolVar(&addStart, "start", false, "start the download after adding")
	rootCmd.AddCommand(addCmd)
}
