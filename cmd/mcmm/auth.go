package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"mcmm/internal/domain"
	"mcmm/internal/source"
	"mcmm/internal/source/curseforge"

	"github.com/spf13/cobra"
	"golang.org/x/term"
)

// supportedPlatforms lists all platforms that accept credentials
var supportedPlatforms = []domain.Platform{domain.PlatformCurseforge, domain.PlatformGithub}

// jeiProjectID is a long-lived CurseForge project used to check API keys
const jeiProjectID = 238222

var authCmd = &cobra.Command{
	Use:   "auth",
	Short: "Manage platform credentials",
	Long: `Manage credentials for content platforms.

CurseForge requires an API key. A GitHub token is optional and raises the
GitHub API rate limit. Modrinth needs no credentials.

Use 'mcmm auth login' to store a key.
Use 'mcmm auth logout' to remove stored credentials.
Use 'mcmm auth status' to check authentication status.`,
}

var authLoginCmd = &cobra.Command{
	Use:   "login [platform]",
	Short: "Store a platform API key",
	Long: `Store an API key for a platform.

If no platform is specified, you will be prompted to select one.

Examples:
  mcmm auth login              # Interactive platform selection
  mcmm auth login curseforge   # Store a CurseForge API key
  mcmm auth login github       # Store a GitHub token

For CurseForge:
  1. Visit https://console.curseforge.com/
  2. Create a project and generate an API key
  3. Copy your API key

For GitHub:
  1. Visit https://github.com/settings/tokens
  2. Generate a token with no scopes
  3. Copy the token`,
	Args: cobra.MaximumNArgs(1),
	RunE: runAuthLogin,
}

var authLogoutCmd = &cobra.Command{
	Use:   "logout [platform]",
	Short: "Remove stored credentials for a platform",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runAuthLogout,
}

var authStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show authentication status for all platforms",
	RunE:  runAuthStatus,
}

func init() {
	authCmd.AddCommand(authLoginCmd)
	authCmd.AddCommand(authLogoutCmd)
	authCmd.AddCommand(authStatusCmd)
	rootCmd.AddCommand(authCmd)
}

// promptForPlatform displays an interactive menu to select a platform
func promptForPlatform() (domain.Platform, error) {
	fmt.Println("Select a platform:")
	for i, p := range supportedPlatforms {
		fmt.Printf("  [%d] %s\n", i+1, getPlatformDisplayName(p))
	}
	fmt.Print("Enter choice (1-" + strconv.Itoa(len(supportedPlatforms)) + "): ")

	reader := bufio.NewReader(os.Stdin)
	input, err := reader.ReadString('\n')
	if err != nil {
		return 0, fmt.Errorf("reading input: %w", err)
	}

	choice, err := strconv.Atoi(strings.TrimSpace(input))
	if err != nil || choice < 1 || choice > len(supportedPlatforms) {
		return 0, fmt.Errorf("invalid choice: please enter a number between 1 and %d", len(supportedPlatforms))
	}

	return supportedPlatforms[choice-1], nil
}

// platformArg parses the optional platform argument, prompting when absent
func platformArg(args []string) (domain.Platform, error) {
	if len(args) == 0 {
		p, err := promptForPlatform()
		fmt.Println()
		return p, err
	}
	p, err := domain.ParsePlatform(args[0])
	if err != nil || !isSupportedPlatform(p) {
		names := make([]string, len(supportedPlatforms))
		for i, s := range supportedPlatforms {
			names[i] = s.String()
		}
		return 0, fmt.Errorf("unsupported platform: %s (supported: %s)", args[0], strings.Join(names, ", "))
	}
	return p, nil
}

func runAuthLogin(cmd *cobra.Command, args []string) error {
	platform, err := platformArg(args)
	if err != nil {
		return err
	}

	printAuthInstructions(platform)

	apiKey, err := readAPIKey()
	if err != nil {
		return fmt.Errorf("reading API key: %w", err)
	}
	if apiKey == "" {
		return fmt.Errorf("API key cannot be empty")
	}

	fmt.Print("Validating... ")
	ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
	defer cancel()
	if err := validateAPIKey(ctx, platform, apiKey); err != nil {
		fmt.Println(colorRed("failed"))
		return fmt.Errorf("invalid API key: %w", err)
	}
	fmt.Println(colorGreen("done"))

	service, err := initService()
	if err != nil {
		return fmt.Errorf("initializing service: %w", err)
	}
	defer closeService(service)

	if err := service.SaveToken(platform, apiKey); err != nil {
		return fmt.Errorf("saving token: %w", err)
	}

	fmt.Printf("Stored %s credentials.\n", getPlatformDisplayName(platform))
	return nil
}

func runAuthLogout(cmd *cobra.Command, args []string) error {
	platform, err := platformArg(args)
	if err != nil {
		return err
	}

	service, err := initService()
	if err != nil {
		return fmt.Errorf("initializing service: %w", err)
	}
	defer closeService(service)

	if err := service.DeleteToken(platform); err != nil {
		return fmt.Errorf("removing token: %w", err)
	}

	fmt.Printf("Removed %s credentials.\n", getPlatformDisplayName(platform))
	return nil
}

func runAuthStatus(cmd *cobra.Command, args []string) error {
	service, err := initService()
	if err != nil {
		return fmt.Errorf("initializing service: %w", err)
	}
	defer closeService(service)

	for _, platform := range supportedPlatforms {
		token, err := service.GetToken(platform)
		if err != nil {
			return fmt.Errorf("checking %s: %w", platform, err)
		}

		if token != nil {
			fmt.Printf("%s: %s (key: %s)\n", getPlatformDisplayName(platform), colorGreen("authenticated"), maskAPIKey(token.APIKey))
			continue
		}

		envKey := getEnvKeyForPlatform(platform)
		if apiKey := os.Getenv(envKey); apiKey != "" {
			fmt.Printf("%s: %s via %s (key: %s)\n", getPlatformDisplayName(platform), colorGreen("authenticated"), envKey, maskAPIKey(apiKey))
			continue
		}

		fmt.Printf("%s: %s\n", getPlatformDisplayName(platform), colorYellow("not authenticated"))
	}

	return nil
}

func isSupportedPlatform(p domain.Platform) bool {
	for _, s := range supportedPlatforms {
		if s == p {
			return true
		}
	}
	return false
}

// getPlatformDisplayName returns the display name for a platform
func getPlatformDisplayName(p domain.Platform) string {
	switch p {
	case domain.PlatformCurseforge:
		return "CurseForge"
	case domain.PlatformModrinth:
		return "Modrinth"
	case domain.PlatformGithub:
		return "GitHub"
	default:
		return p.String()
	}
}

// printAuthInstructions prints platform-specific auth instructions
func printAuthInstructions(p domain.Platform) {
	switch p {
	case domain.PlatformCurseforge:
		fmt.Println("To authenticate with CurseForge:")
		fmt.Println("1. Visit https://console.curseforge.com/")
		fmt.Println("2. Create a project and generate an API key")
		fmt.Println("3. Copy your API key")
	case domain.PlatformGithub:
		fmt.Println("To authenticate with GitHub:")
		fmt.Println("1. Visit https://github.com/settings/tokens")
		fmt.Println("2. Generate a token with no scopes")
		fmt.Println("3. Copy the token")
	}
	fmt.Println()
}

// validateAPIKey checks a key against the platform where it can
func validateAPIKey(ctx context.Context, p domain.Platform, apiKey string) error {
	switch p {
	case domain.PlatformCurseforge:
		client := curseforge.NewClient(source.NewHTTPClient("", 0), apiKey)
		_, err := client.GetMod(ctx, jeiProjectID)
		return err
	case domain.PlatformGithub:
		// Tokens are checked on first use
		if len(apiKey) < 10 {
			return fmt.Errorf("token too short")
		}
		return nil
	default:
		return fmt.Errorf("unknown platform: %s", p)
	}
}

// getEnvKeyForPlatform returns the environment variable name for a platform's API key
func getEnvKeyForPlatform(p domain.Platform) string {
	switch p {
	case domain.PlatformCurseforge:
		return "CURSEFORGE_API_KEY"
	case domain.PlatformGithub:
		return "GITHUB_TOKEN"
	default:
		return ""
	}
}

// readAPIKey prompts for and reads an API key from the terminal
func readAPIKey() (string, error) {
	fmt.Print("Enter API key: ")

	// Try to read securely (hidden input)
	if term.IsTerminal(int(os.Stdin.Fd())) {
		keyBytes, err := term.ReadPassword(int(os.Stdin.Fd()))
		fmt.Println()
		if err != nil {
			return "", fmt.Errorf("reading password: %w", err)
		}
		return strings.TrimSpace(string(keyBytes)), nil
	}

	// Fallback for non-terminal input (e.g., piped input)
	reader := bufio.NewReader(os.Stdin)
	key, err := reader.ReadString('\n')
	if err != nil {
		return "", fmt.Errorf("reading input: %w", err)
	}
	return strings.TrimSpace(key), nil
}

// maskAPIKey returns a masked version of the API key (shows first 3 and last 3 chars)
func maskAPIKey(key string) string {
	if len(key) <= 6 {
		return "***"
	}
	return key[:3] + "..." + key[len(key)-3:]
}
