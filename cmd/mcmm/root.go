package main

import (
	"errors"
	"fmt"
	"os"

	"mcmm/internal/core"
	"mcmm/internal/domain"
	"mcmm/internal/logging"
	"mcmm/internal/source/curseforge"
	"mcmm/internal/source/github"
	"mcmm/internal/source/modrinth"
	"mcmm/internal/storage/config"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
)

// ErrCancelled is returned when the user cancels an operation (e.g. prompt declined).
// When returned from a command, Execute exits with code 2.
var ErrCancelled = errors.New("cancelled")

var (
	version = "0.1.0"

	// Global flags
	configDir   string
	dataDir     string
	cacheDir    string
	profileName string
	verbosity   int
	noColor     bool
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "mcmm",
	Short: "Minecraft mod manager",
	Long: `mcmm keeps the mods, resource packs and shader packs of a Minecraft
instance in line with a declarative profile. Sources come from Modrinth,
CurseForge and GitHub releases.

Use subcommands for operations. Run 'mcmm --help' for available commands.`,
	Version:       version,
	SilenceUsage:  true, // Runtime errors should not print usage
	SilenceErrors: true, // We handle error output in Execute()
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		logging.Setup(verbosity, os.Stderr, !colorEnabled())
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configDir, "config", "", "config directory (default: $XDG_CONFIG_HOME/mcmm)")
	rootCmd.PersistentFlags().StringVar(&dataDir, "data", "", "data directory (default: $XDG_DATA_HOME/mcmm)")
	rootCmd.PersistentFlags().StringVar(&cacheDir, "cache", "", "modpack cache directory (default: $XDG_CACHE_HOME/mcmm)")
	rootCmd.PersistentFlags().StringVarP(&profileName, "profile", "p", "", "profile to operate on (default: active profile)")
	rootCmd.PersistentFlags().CountVarP(&verbosity, "verbose", "v", "verbose output (repeat for more)")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "disable colored output")
}

// colorEnabled returns true if colored output should be used (respects --no-color and NO_COLOR env).
// NO_COLOR: if set (any value), color is disabled per https://no-color.org
func colorEnabled() bool {
	if noColor {
		return false
	}
	return os.Getenv("NO_COLOR") == ""
}

var (
	okStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	errStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	warnStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
	dimStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	titleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("205"))
)

func render(style lipgloss.Style, s string) string {
	if !colorEnabled() {
		return s
	}
	return style.Render(s)
}

func colorGreen(s string) string  { return render(okStyle, s) }
func colorRed(s string) string    { return render(errStyle, s) }
func colorYellow(s string) string { return render(warnStyle, s) }
func colorDim(s string) string    { return render(dimStyle, s) }
func colorTitle(s string) string  { return render(titleStyle, s) }

// Execute runs the root command. Exit codes: 0 = success, 1 = error, 2 = user cancelled.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		if errors.Is(err, ErrCancelled) {
			os.Exit(2)
		}
		fmt.Fprintf(os.Stderr, "%s %v\n", colorRed("Error:"), err)
		os.Exit(1)
	}
}

// initService creates and initializes the core service
func initService() (*core.Service, error) {
	cfg := getServiceConfig()

	for _, dir := range []string{cfg.ConfigDir, cfg.DataDir, cfg.CacheDir} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("creating %s: %w", dir, err)
		}
	}

	svc, err := core.NewService(cfg)
	if err != nil {
		return nil, err
	}

	registerPlatforms(svc)

	return svc, nil
}

// registerPlatforms registers all content platforms with the service
func registerPlatforms(svc *core.Service) {
	httpClient := svc.HTTPClient()

	svc.RegisterPlatform(modrinth.New(httpClient))

	curseKey := getPlatformAPIKey(svc, domain.PlatformCurseforge)
	svc.RegisterPlatform(curseforge.New(httpClient, curseKey))

	opts := []github.Option{github.WithHTTPClient(httpClient)}
	if token := getPlatformAPIKey(svc, domain.PlatformGithub); token != "" {
		opts = append(opts, github.WithToken(token))
	}
	svc.RegisterPlatform(github.New(opts...))
}

// getPlatformAPIKey retrieves an API key from environment or database
func getPlatformAPIKey(svc *core.Service, platform domain.Platform) string {
	if envVar := getEnvKeyForPlatform(platform); envVar != "" {
		if key := os.Getenv(envVar); key != "" {
			return key
		}
	}

	token, err := svc.GetToken(platform)
	if err != nil || token == nil {
		return ""
	}
	return token.APIKey
}

// getServiceConfig returns the service configuration with XDG defaults
func getServiceConfig() core.ServiceConfig {
	cfg := core.ServiceConfig{
		ConfigDir: configDir,
		DataDir:   dataDir,
		CacheDir:  cacheDir,
	}
	if cfg.ConfigDir == "" {
		cfg.ConfigDir = config.DefaultConfigDir()
	}
	if cfg.DataDir == "" {
		cfg.DataDir = config.DefaultDataDir()
	}
	if cfg.CacheDir == "" {
		cfg.CacheDir = config.DefaultCacheDir()
	}
	return cfg
}

// selectProfile returns the profile named by --profile, or the active one
func selectProfile(svc *core.Service) (*config.ProfileEntry, *domain.Profile, error) {
	if profileName != "" {
		return svc.Profiles().Get(profileName)
	}
	entry, profile, err := svc.Profiles().Active()
	if err != nil {
		return nil, nil, fmt.Errorf("%w\nCreate one with 'mcmm profile create' or pick one with --profile", err)
	}
	return entry, profile, nil
}

// closeService closes svc, reporting failures on stderr
func closeService(svc *core.Service) {
	if err := svc.Close(); err != nil {
		fmt.Fprintf(os.Stderr, "warning: closing service: %v\n", err)
	}
}
