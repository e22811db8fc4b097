package main

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"mcmm/internal/domain"

	"github.com/spf13/cobra"
)

var (
	addKind        string
	addName        string
	addFilters     filterFlags
	addStack       bool
	addNoOverrides bool
	addNoCheck     bool
	removeKind     string
)

var addCmd = &cobra.Command{
	Use:   "add <source>",
	Short: "Add a source to a profile",
	Long: `Add a mod, resource pack, shader pack or modpack to the selected profile.

A source is written as platform:project[@pin]. Without a platform prefix a
number is a CurseForge project ID, owner/repo is a GitHub repository and
anything else is a Modrinth slug or ID. A pin fixes the source to one
CurseForge file ID, Modrinth version ID or GitHub release asset name.

The source is resolved against the profile filters before it is added
unless --no-check is given.

Examples:
  mcmm add sodium
  mcmm add 238222 --name JEI
  mcmm add CaffeineMC/sodium-fabric --filename "sodium-fabric-.*"
  mcmm add modrinth:complementary-reimagined --kind shaders
  mcmm add fabulously-optimized --kind modpacks --no-overrides`,
	Args: cobra.ExactArgs(1),
	RunE: runAdd,
}

var removeCmd = &cobra.Command{
	Use:   "remove <name>...",
	Short: "Remove sources from a profile",
	Long: `Remove sources from the selected profile by name, ignoring case.
Files already in the instance are archived or deleted on the next upgrade.

Examples:
  mcmm remove Sodium Lithium
  mcmm remove Complementary --kind shaders`,
	Args: cobra.MinimumNArgs(1),
	RunE: runRemove,
}

func init() {
	addCmd.Flags().StringVarP(&addKind, "kind", "k", "mods", "source kind (mods, resourcepacks, shaders, modpacks)")
	addCmd.Flags().StringVarP(&addName, "name", "n", "", "name to store the source under (default: project title)")
	addFilters.register(addCmd.Flags())
	addCmd.Flags().BoolVar(&addStack, "stack", false, "apply the filters on top of the profile filters instead of overriding them")
	addCmd.Flags().BoolVar(&addNoOverrides, "no-overrides", false, "do not install the overrides of a modpack")
	addCmd.Flags().BoolVar(&addNoCheck, "no-check", false, "add without resolving the source first")

	removeCmd.Flags().StringVarP(&removeKind, "kind", "k", "mods", "source kind (mods, resourcepacks, shaders, modpacks)")

	rootCmd.AddCommand(addCmd)
	rootCmd.AddCommand(removeCmd)
}

// parseSourceArg reads a source ID, inferring the platform when it is omitted
func parseSourceArg(s string) (domain.SourceID, error) {
	s = strings.TrimSpace(s)
	if strings.Contains(s, ":") {
		return domain.ParseSourceID(s)
	}

	project, pin, _ := strings.Cut(s, "@")
	var id domain.SourceID
	switch {
	case project == "":
		return domain.SourceID{}, fmt.Errorf("empty source")
	case isDigits(project):
		n, err := strconv.Atoi(project)
		if err != nil {
			return domain.SourceID{}, err
		}
		id = domain.CurseforgeID(n)
	case strings.Count(project, "/") == 1:
		owner, repo, _ := strings.Cut(project, "/")
		id = domain.GithubID(owner, repo)
		if _, _, err := id.GithubRepo(); err != nil {
			return domain.SourceID{}, err
		}
	default:
		id = domain.ModrinthID(project)
	}
	if pin != "" {
		id = id.Pinned(pin)
	}
	return id, nil
}

func isDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return s != ""
}

func runAdd(cmd *cobra.Command, args []string) error {
	id, err := parseSourceArg(args[0])
	if err != nil {
		return err
	}
	kind, err := domain.ParseSourceKind(addKind)
	if err != nil {
		return err
	}
	filters, err := addFilters.build()
	if err != nil {
		return err
	}

	src := domain.NewSource(id)
	src.Filters = filters
	src.StackFilters = addStack
	if addNoOverrides {
		if kind != domain.KindModpacks {
			return fmt.Errorf("--no-overrides only applies to modpacks")
		}
		off := false
		src.InstallOverrides = &off
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

	name := addName
	if !addNoCheck {
		ctx, cancel := context.WithTimeout(cmd.Context(), 2*time.Minute)
		defer cancel()

		data, err := service.Check(ctx, kind, src, profile.Filters)
		if err != nil {
			return explainFailure(id, err)
		}
		if name == "" {
			name = data.Title
		}
		fmt.Printf("%s %s resolves to %s\n", colorGreen("✓"), id, data.Filename())
	}
	if name == "" {
		name = defaultSourceName(id)
	}

	if err := service.Profiles().AddSource(entry.Name, kind, name, src); err != nil {
		return err
	}
	fmt.Printf("Added %s to %s of %s\n", colorTitle(name), kind, entry.Name)
	return nil
}

func runRemove(cmd *cobra.Command, args []string) error {
	kind, err := domain.ParseSourceKind(removeKind)
	if err != nil {
		return err
	}

	service, err := initService()
	if err != nil {
		return fmt.Errorf("initializing service: %w", err)
	}
	defer closeService(service)

	entry, _, err := selectProfile(service)
	if err != nil {
		return err
	}

	var errs []error
	for _, name := range args {
		removed, err := service.Profiles().RemoveSource(entry.Name, kind, name)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		fmt.Printf("Removed %s from %s of %s\n", removed, kind, entry.Name)
	}
	return errors.Join(errs...)
}

// defaultSourceName names a source after its project
func defaultSourceName(id domain.SourceID) string {
	if id.Platform == domain.PlatformGithub {
		if _, repo, err := id.GithubRepo(); err == nil {
			return repo
		}
	}
	return id.Project
}

// explainFailure turns a resolution error into a message with a next step
func explainFailure(id domain.SourceID, err error) error {
	switch domain.Classify(err) {
	case domain.FailureNoCompatibleVersion:
		return fmt.Errorf("%s has no file matching the profile filters; adjust them with flags or use --no-check: %w", id, err)
	case domain.FailureNotFound:
		return fmt.Errorf("%s does not exist: %w", id, err)
	case domain.FailureDistributionDenied:
		return fmt.Errorf("%s does not allow third-party downloads: %w", id, err)
	case domain.FailureRateLimited:
		return fmt.Errorf("rate limited by %s, try again later: %w", id.Platform, err)
	}
	if errors.Is(err, domain.ErrAuthRequired) {
		return fmt.Errorf("%s requires an API key.\nRun 'mcmm auth login %s' to store one: %w", getPlatformDisplayName(id.Platform), id.Platform, err)
	}
	return err
}
