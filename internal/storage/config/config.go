package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"mcmm/internal/domain"

	"github.com/adrg/xdg"
	"gopkg.in/yaml.v3"
)

const appName = "mcmm"

// DefaultParallelTasks is the default size of the shared network permit pool
const DefaultParallelTasks = 50

// ProfileEntry registers one profile file and the instance it manages
type ProfileEntry struct {
	Name        string `yaml:"name"`
	InstanceDir string `yaml:"instance_dir"`
	Profile     string `yaml:"profile"` // Path of the profile TOML file
}

// Config holds global application settings
type Config struct {
	ParallelTasks int            `yaml:"parallel_tasks"`
	ActiveProfile string         `yaml:"active_profile,omitempty"`
	Profiles      []ProfileEntry `yaml:"profiles,omitempty"`
	CachePath     string         `yaml:"cache_path,omitempty"`
	UserAgent     string         `yaml:"user_agent,omitempty"`
	InstallMethod string         `yaml:"install_method,omitempty"`
}

// DefaultConfigDir returns $XDG_CONFIG_HOME/mcmm
func DefaultConfigDir() string {
	return filepath.Join(xdg.ConfigHome, appName)
}

// DefaultDataDir returns $XDG_DATA_HOME/mcmm
func DefaultDataDir() string {
	return filepath.Join(xdg.DataHome, appName)
}

// DefaultCacheDir returns $XDG_CACHE_HOME/mcmm
func DefaultCacheDir() string {
	return filepath.Join(xdg.CacheHome, appName)
}

// Load reads configuration from the given directory
func Load(configDir string) (*Config, error) {
	cfg := &Config{ParallelTasks: DefaultParallelTasks}

	configPath := filepath.Join(configDir, "config.yaml")
	data, err := os.ReadFile(configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil // Return defaults
		}
		return nil, fmt.Errorf("reading config: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if cfg.ParallelTasks < 0 {
		return nil, fmt.Errorf("%w: parallel_tasks must be positive, got %d", domain.ErrInvalidConfig, cfg.ParallelTasks)
	}
	if cfg.ParallelTasks == 0 {
		cfg.ParallelTasks = DefaultParallelTasks
	}

	return cfg, nil
}

// Save writes configuration to the given directory
func (c *Config) Save(configDir string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}

	if err := os.MkdirAll(configDir, 0755); err != nil {
		return fmt.Errorf("creating config dir: %w", err)
	}

	configPath := filepath.Join(configDir, "config.yaml")
	if err := os.WriteFile(configPath, data, 0644); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}

	return nil
}

// FindProfile returns the entry registered under name, ignoring case
func (c *Config) FindProfile(name string) (*ProfileEntry, error) {
	for i := range c.Profiles {
		if strings.EqualFold(c.Profiles[i].Name, name) {
			return &c.Profiles[i], nil
		}
	}
	return nil, fmt.Errorf("%w: %s", domain.ErrProfileNotFound, name)
}

// Active returns the active profile entry. With no active profile set and
// exactly one registered, that one is used.
func (c *Config) Active() (*ProfileEntry, error) {
	if c.ActiveProfile != "" {
		return c.FindProfile(c.ActiveProfile)
	}
	if len(c.Profiles) == 1 {
		return &c.Profiles[0], nil
	}
	if len(c.Profiles) == 0 {
		return nil, fmt.Errorf("%w: no profiles configured", domain.ErrProfileNotFound)
	}
	return nil, fmt.Errorf("%w: no active profile selected", domain.ErrProfileNotFound)
}

// AddProfile registers a profile. Names are unique ignoring case.
func (c *Config) AddProfile(entry ProfileEntry) error {
	if strings.TrimSpace(entry.Name) == "" {
		return fmt.Errorf("%w: profile name cannot be empty", domain.ErrInvalidConfig)
	}
	if _, err := c.FindProfile(entry.Name); err == nil {
		return fmt.Errorf("%w: profile %q already exists", domain.ErrInvalidConfig, entry.Name)
	}
	c.Profiles = append(c.Profiles, entry)
	if c.ActiveProfile == "" {
		c.ActiveProfile = entry.Name
	}
	return nil
}

// RemoveProfile unregisters a profile. The profile file is left on disk.
func (c *Config) RemoveProfile(name string) error {
	for i := range c.Profiles {
		if strings.EqualFold(c.Profiles[i].Name, name) {
			if strings.EqualFold(c.ActiveProfile, c.Profiles[i].Name) {
				c.ActiveProfile = ""
			}
			c.Profiles = append(c.Profiles[:i], c.Profiles[i+1:]...)
			return nil
		}
	}
	return fmt.Errorf("%w: %s", domain.ErrProfileNotFound, name)
}
