package main

import (
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
)

var (
	historyLimit int
	historyAll   bool
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show recent upgrades",
	Long: `Show recent upgrades of the selected profile, newest first.

Examples:
  mcmm history
  mcmm history --all -n 50`,
	Args: cobra.NoArgs,
	RunE: runHistory,
}

func init() {
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "n", 10, "number of runs to show")
	historyCmd.Flags().BoolVar(&historyAll, "all", false, "show runs of every profile")
	rootCmd.AddCommand(historyCmd)
}

func runHistory(cmd *cobra.Command, args []string) error {
	service, err := initService()
	if err != nil {
		return fmt.Errorf("initializing service: %w", err)
	}
	defer closeService(service)

	profile := ""
	if !historyAll {
		entry, _, err := selectProfile(service)
		if err != nil {
			return err
		}
		profile = entry.Name
	}

	runs, err := service.History(profile, historyLimit)
	if err != nil {
		return fmt.Errorf("reading history: %w", err)
	}
	if len(runs) == 0 {
		fmt.Println("No upgrades recorded.")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "WHEN\tPROFILE\tSTATUS\tRESOLVED\tFAILED\tDOWNLOADED\tARCHIVED\tDELETED\tTOOK")
	fmt.Fprintln(w, "----\t-------\t------\t--------\t------\t----------\t--------\t-------\t----")
	for _, run := range runs {
		status := run.Status
		switch status {
		case "succeeded":
			status = colorGreen(status)
		case "partial":
			status = colorYellow(status)
		default:
			status = colorRed(status)
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%d\t%d\t%d\t%d\t%s\n",
			humanize.Time(run.StartedAt), run.Profile, status,
			run.Resolved, run.Failed, run.Downloaded, run.Archived, run.Deleted,
			run.Duration().Round(time.Millisecond))
	}
	return w.Flush()
}
