package cmd

import (
	"strconv"

	"github.com/spf13/cobra"
)

var rmCmd = &cobra.Command{
	Use:   "rm [id]",
	Short: "Delete a download: registry entry, temp folder, and partial file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, err := resolveService()
		if err != nil {
			return err
		}
		defer func() { _ = svc.Shutdown() }()

		id, err := strconv.Atoi(args[0])
		if err != nil {
			return err
		}
		return svc.Delete(id)
	},
}

func init() {
	rootCmd.AddCommand(rmCmd)
}
