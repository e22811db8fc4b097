package main

import (
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

var (
	profileCreateFilters filterFlags
	profileConfigFilters filterFlags
	profileDeleteFile    bool
	profileImportName    string
)

var profileCmd = &cobra.Command{
	Use:   "profile",
	Short: "Manage profiles",
	Long: `Manage profiles. A profile is a TOML file listing the sources of one
game instance together with the filters every source must satisfy.`,
}

var profileListCmd = &cobra.Command{
	Use:   "list",
	Short: "List all profiles",
	RunE:  runProfileList,
}

var profileCreateCmd = &cobra.Command{
	Use:   "create <name> <instance-dir>",
	Short: "Create a new profile",
	Long: `Create a new empty profile managing the given instance directory.

Examples:
  mcmm profile create survival ~/.minecraft --game-version 1.20.1 --loader fabric
  mcmm profile create shaders ~/instances/iris --game-version ">=1.20 <1.21"`,
	Args: cobra.ExactArgs(2),
	RunE: runProfileCreate,
}

var profileDeleteCmd = &cobra.Command{
	Use:   "delete <name>",
	Short: "Delete a profile",
	Long: `Unregister a profile. The instance directory is left untouched.

Examples:
  mcmm profile delete old-profile
  mcmm profile delete old-profile --remove-file`,
	Args: cobra.ExactArgs(1),
	RunE: runProfileDelete,
}

var profileSwitchCmd = &cobra.Command{
	Use:   "switch <name>",
	Short: "Make a profile the active one",
	Args:  cobra.ExactArgs(1),
	RunE:  runProfileSwitch,
}

var profileConfigureCmd = &cobra.Command{
	Use:   "configure",
	Short: "Replace the filters of a profile",
	Long: `Replace the baseline filters of the selected profile.

Examples:
  mcmm profile configure --game-version 1.21.1 --loader neoforge
  mcmm profile configure -p survival --channel release`,
	Args: cobra.NoArgs,
	RunE: runProfileConfigure,
}

var profileExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export the selected profile",
	Long: `Write the selected profile as TOML to stdout.

Examples:
  mcmm profile export -p survival > survival.toml`,
	Args: cobra.NoArgs,
	RunE: runProfileExport,
}

var profileImportCmd = &cobra.Command{
	Use:   "import <file> <instance-dir>",
	Short: "Import a profile",
	Long: `Register a profile from a TOML file. Use - to read from stdin.

Examples:
  mcmm profile import survival.toml ~/.minecraft --name survival`,
	Args: cobra.ExactArgs(2),
	RunE: runProfileImport,
}

func init() {
	profileCreateFilters.register(profileCreateCmd.Flags())
	profileConfigFilters.register(profileConfigureCmd.Flags())
	profileDeleteCmd.Flags().BoolVar(&profileDeleteFile, "remove-file", false, "also delete the profile file")
	profileImportCmd.Flags().StringVar(&profileImportName, "name", "", "profile name (default: file name)")

	profileCmd.AddCommand(profileListCmd)
	profileCmd.AddCommand(profileCreateCmd)
	profileCmd.AddCommand(profileDeleteCmd)
	profileCmd.AddCommand(profileSwitchCmd)
	profileCmd.AddCommand(profileConfigureCmd)
	profileCmd.AddCommand(profileExportCmd)
	profileCmd.AddCommand(profileImportCmd)

	rootCmd.AddCommand(profileCmd)
}

func runProfileList(cmd *cobra.Command, args []string) error {
	service, err := initService()
	if err != nil {
		return fmt.Errorf("initializing service: %w", err)
	}
	defer closeService(service)

	entries := service.Profiles().List()
	if len(entries) == 0 {
		fmt.Println("No profiles. Create one with 'mcmm profile create'.")
		return nil
	}

	active := service.Config().ActiveProfile
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tINSTANCE\tSOURCES\tFILTERS")
	fmt.Fprintln(w, "----\t--------\t-------\t-------")
	for _, entry := range entries {
		name := entry.Name
		if strings.EqualFold(name, active) {
			name = colorGreen(name + " *")
		}
		_, profile, err := service.Profiles().Get(entry.Name)
		if err != nil {
			fmt.Fprintf(w, "%s\t%s\t%s\t\n", name, entry.InstanceDir, colorRed(err.Error()))
			continue
		}
		fmt.Fprintf(w, "%s\t%s\t%d\t%s\n", name, entry.InstanceDir, profile.Len(), describeFilters(profile.Filters))
	}
	return w.Flush()
}

func runProfileCreate(cmd *cobra.Command, args []string) error {
	filters, err := profileCreateFilters.build()
	if err != nil {
		return err
	}

	service, err := initService()
	if err != nil {
		return fmt.Errorf("initializing service: %w", err)
	}
	defer closeService(service)

	entry, err := service.Profiles().Create(args[0], args[1], filters)
	if err != nil {
		return err
	}

	fmt.Printf("Created profile %s for %s\n", colorTitle(entry.Name), entry.InstanceDir)
	for _, w := range filters.Warnings() {
		fmt.Println(colorYellow("warning: " + w))
	}
	return nil
}

func runProfileDelete(cmd *cobra.Command, args []string) error {
	service, err := initService()
	if err != nil {
		return fmt.Errorf("initializing service: %w", err)
	}
	defer closeService(service)

	if err := service.Profiles().Delete(args[0], profileDeleteFile); err != nil {
		return err
	}
	fmt.Printf("Deleted profile %s\n", args[0])
	return nil
}

func runProfileSwitch(cmd *cobra.Command, args []string) error {
	service, err := initService()
	if err != nil {
		return fmt.Errorf("initializing service: %w", err)
	}
	defer closeService(service)

	if err := service.Profiles().Switch(args[0]); err != nil {
		return err
	}
	fmt.Printf("Active profile: %s\n", colorTitle(service.Config().ActiveProfile))
	return nil
}

func runProfileConfigure(cmd *cobra.Command, args []string) error {
	filters, err := profileConfigFilters.build()
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
	if err := service.Profiles().SetFilters(entry.Name, filters); err != nil {
		return err
	}

	fmt.Printf("Filters of %s: %s\n", colorTitle(entry.Name), describeFilters(filters))
	for _, w := range filters.Warnings() {
		fmt.Println(colorYellow("warning: " + w))
	}
	return nil
}

func runProfileExport(cmd *cobra.Command, args []string) error {
	service, err := initService()
	if err != nil {
		return fmt.Errorf("initializing service: %w", err)
	}
	defer closeService(service)

	entry, _, err := selectProfile(service)
	if err != nil {
		return err
	}
	data, err := service.Profiles().Export(entry.Name)
	if err != nil {
		return err
	}
	_, err = cmd.OutOrStdout().Write(data)
	return err
}

func runProfileImport(cmd *cobra.Command, args []string) error {
	path := args[0]
	var (
		data []byte
		err  error
	)
	if path == "-" {
		data, err = io.ReadAll(cmd.InOrStdin())
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return fmt.Errorf("reading profile: %w", err)
	}

	name := profileImportName
	if name == "" {
		if path == "-" {
			return fmt.Errorf("--name is required when reading from stdin")
		}
		name = profileNameFromPath(path)
	}

	service, err := initService()
	if err != nil {
		return fmt.Errorf("initializing service: %w", err)
	}
	defer closeService(service)

	entry, err := service.Profiles().Import(name, args[1], data)
	if err != nil {
		return err
	}
	fmt.Printf("Imported profile %s for %s\n", colorTitle(entry.Name), entry.InstanceDir)
	return nil
}

// profileNameFromPath derives a profile name from a file name
func profileNameFromPath(path string) string {
	base := path[strings.LastIndexAny(path, `/\`)+1:]
	if i := strings.LastIndex(base, "."); i > 0 {
		base = base[:i]
	}
	return base
}
