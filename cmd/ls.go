package cmd

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/hanash-dl/hanash/internal/utils"
)

var lsHistory bool

var lsCmd = &cobra.Command{
	Use:   "ls",
	Short: "List downloads",
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, err := resolveService()
		if err != nil {
			return err
		}
		defer func() { _ = svc.Shutdown() }()

		w := tabwriter.NewWriter(os.Stdout, 2, 4, 2, ' ', 0)
		defer func() { _ = w.Flush() }()

		if lsHistory {
			entries, err := svc.History(0)
			if err != nil {
				return err
			}
			fmt.Fprintln(w, "NAME\tSIZE\tFOLDER\tCOMPLETED")
			for _, e := range entries {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\n",
					e.Name, utils.SizeFormat(e.Size), e.Folder,
					e.CompletedAt.Format("2006-01-02 15:04"))
			}
			return nil
		}

		items, err := svc.List()
		if err != nil {
			return err
		}

		fmt.Fprintln(w, "ID\tNAME\tSIZE\tPROGRESS\tSPEED\tETA\tSTATUS")
		for _, d := range items {
			progress := "---"
			if d.Size > 0 {
				progress = fmt.Sprintf("%.1f%%", d.Progress)
			}
			fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s/s\t%s\t%s\n",
				d.ID, d.Name, utils.SizeFormat(d.Size), progress,
				utils.SizeFormat(int64(d.Speed)), utils.TimeFormat(d.TimeLeft),
				colorStatus(d.Status))
		}
		return nil
	},
}

func init() {
	lsCmd.Flags().BoolVar(&lsHistory, "history", false, "show archived completed downloads")
	rootCmd.AddCommand(lsCmd)
}
