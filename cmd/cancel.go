package cmd

import (
	"strconv"

	"github.com/spf13/cobra"
)

var cancelAll bool

var cancelCmd = &cobra.Command{
	Use:   "cancel [id]",
	Short: "Cancel a download, keeping partial data for later resume",
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, err := resolveService()
		if err != nil {
			return err
		}
		defer func() { _ = svc.Shutdown() }()

		if cancelAll {
			return svc.StopAll()
		}

		if len(args) != 1 {
			return cmd.Help()
		}
		id, err := strconv.Atoi(args[0])
		if err != nil {
			return err
		}
		return svc.Cancel(id)
	},
}

func init() {
	cancelCmd.Flags().BoolVar(&cancelAll, "all", false, "cancel every pending and active download")
	rootCmd.AddCommand(cancelCmd)
}
