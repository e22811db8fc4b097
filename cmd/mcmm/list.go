package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"mcmm/internal/domain"

	"github.com/spf13/cobra"
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List the sources of a profile",
	Long: `List every source of the selected profile by kind.

Examples:
  mcmm list
  mcmm list -p survival`,
	Args: cobra.NoArgs,
	RunE: runList,
}

func init() {
	rootCmd.AddCommand(listCmd)
}

func runList(cmd *cobra.Command, args []string) error {
	service, err := initService()
	if err != nil {
		return fmt.Errorf("initializing service: %w", err)
	}
	defer closeService(service)

	entry, profile, err := selectProfile(service)
	if err != nil {
		return err
	}

	fmt.Printf("%s %s\n", colorTitle(entry.Name), colorDim(entry.InstanceDir))
	fmt.Printf("Filters: %s\n\n", describeFilters(profile.Filters))

	if profile.Len() == 0 {
		fmt.Println("No sources. Add one with 'mcmm add'.")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "KIND\tNAME\tSOURCE\tFILTERS")
	fmt.Fprintln(w, "----\t----\t------\t-------")
	for _, kind := range domain.SourceKinds {
		sources := profile.Sources(kind)
		for _, name := range profile.Names(kind) {
			src := sources[name]
			filters := describeFilters(src.Filters)
			if src.StackFilters {
				filters += " (stacked)"
			}
			if kind == domain.KindModpacks && !src.ShouldInstallOverrides() {
				filters += " (no overrides)"
			}
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", kind, name, src.ID, filters)
		}
	}
	return w.Flush()
}
