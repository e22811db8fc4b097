package main

import (
	"errors"
	"fmt"
	"os"
	"os/signal"

	"mcmm/internal/core"
	"mcmm/internal/domain"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
)

var upgradeFilters filterFlags

var upgradeCmd = &cobra.Command{
	Use:   "upgrade",
	Short: "Bring an instance in line with its profile",
	Long: `Resolve every source of the selected profile, follow required
dependencies and expand modpacks, then download what is missing. Files in
mods/ that are no longer wanted are moved to mods/.old; stray resource packs
and shader packs are deleted.

Filter flags are ANDed with the profile filters for this run only.

Examples:
  mcmm upgrade
  mcmm upgrade -p survival --channel release`,
	Args: cobra.NoArgs,
	RunE: runUpgrade,
}

func init() {
	upgradeFilters.register(upgradeCmd.Flags())
	rootCmd.AddCommand(upgradeCmd)
}

func runUpgrade(cmd *cobra.Command, args []string) error {
	filters, err := upgradeFilters.build()
	if err != nil {
		return err
	}
	var extra *domain.Filters
	if !filters.IsEmpty() {
		extra = &filters
	}

	service, err := initService()
	if err != nil {
		return fmt.Errorf("initializing service: %w", err)
	}
	defer closeService(service)

	entry, profile, err := selectProfile(service)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	fmt.Printf("Upgrading %s in %s\n", colorTitle(entry.Name), colorDim(entry.InstanceDir))
	observer := newProgressObserver(os.Stdout)
	result, err := service.Upgrade(ctx, core.UpgradeOptions{
		Name:        entry.Name,
		Profile:     profile,
		InstanceDir: entry.InstanceDir,
		Extra:       extra,
		Observer:    observer,
	})
	observer.wait()
	if err != nil {
		if errors.Is(err, domain.ErrRateLimited) {
			return fmt.Errorf("%w\nNothing was changed; try again once the limit resets", err)
		}
		return err
	}

	printUpgradeSummary(result)
	if result.Status == core.StatusPartial {
		return fmt.Errorf("upgrade finished with failures")
	}
	return nil
}

func printUpgradeSummary(result *core.UpgradeResult) {
	fmt.Println()
	for _, rec := range result.Reconciled {
		for _, name := range rec.Archived {
			fmt.Printf("%s %s/%s -> %s/%s/\n", colorYellow("archived"), rec.Dir, name, rec.Dir, core.BackupDir)
		}
		for _, name := range rec.Deleted {
			fmt.Printf("%s %s/%s\n", colorYellow("deleted"), rec.Dir, name)
		}
	}

	if result.UpToDate {
		fmt.Println(colorGreen("Everything is up to date."))
	} else if rep := result.Report; rep != nil {
		fmt.Printf("Downloaded %d file(s) (%s), installed %d override(s)\n",
			len(rep.Downloaded), humanize.IBytes(uint64(rep.Bytes)), len(rep.Installed))
		for dest, err := range rep.Failed {
			fmt.Printf("%s %s: %v\n", colorRed("✗"), dest, err)
		}
	}

	if res := result.Resolution; res != nil && res.Failed() {
		fmt.Printf("%s\n", colorRed(fmt.Sprintf("%d source(s) could not be resolved:", len(res.Failures()))))
		for _, o := range res.Failures() {
			fmt.Printf("  %s\n", formatOutcome(o))
		}
	}
}
