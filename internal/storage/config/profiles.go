package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"mcmm/internal/domain"

	"github.com/pelletier/go-toml/v2"
)

// LoadProfile reads a profile TOML file
func LoadProfile(path string) (*domain.Profile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", domain.ErrProfileNotFound, path)
		}
		return nil, fmt.Errorf("reading profile: %w", err)
	}

	var profile domain.Profile
	if err := toml.Unmarshal(data, &profile); err != nil {
		return nil, fmt.Errorf("%w: parsing profile %s: %w", domain.ErrInvalidConfig, path, err)
	}
	return &profile, nil
}

// SaveProfile writes a profile TOML file, replacing it atomically
func SaveProfile(path string, profile *domain.Profile) error {
	data, err := toml.Marshal(profile)
	if err != nil {
		return fmt.Errorf("marshaling profile: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("creating profiles dir: %w", err)
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("writing profile: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("writing profile: %w", err)
	}

	return nil
}

// DefaultProfilePath returns where a new profile named name is stored
func DefaultProfilePath(configDir, name string) string {
	return filepath.Join(configDir, "profiles", name+".toml")
}
