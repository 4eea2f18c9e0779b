package cmd

import (
	"strconv"

	"github.com/spf13/cobra"
)

var resumeAll bool

var resumeCmd = &cobra.Command{
	Use:   "resume [id]",
	Short: "Resume a cancelled or paused download",
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, err := resolveService()
		if err != nil {
			return err
		}
		defer func() { _ = svc.Shutdown() }()

		if resumeAll {
			return svc.ResumeAll()
		}

		if len(args) != 1 {
			return cmd.Help()
		}
		id, err := strconv.Atoi(args[0])
		if err != nil {
			return err
		}
		return svc.Resume(id)
	},
}

func init() {
	resumeCmd.Flags().BoolVar(&resumeAll, "all", false, "resume every cancelled download")
	rootCmd.AddCommand(resumeCmd)
}
