package core

import (
	"errors"
	"fmt"
	"os"

	"mcmm/internal/domain"
	"mcmm/internal/storage/config"

	"github.com/pelletier/go-toml/v2"
)

// ProfileManager handles profile CRUD operations and switching
type ProfileManager struct {
	configDir string
	config    *config.Config
}

// NewProfileManager creates a new profile manager. Changes to the registered
// profiles are saved to configDir immediately.
func NewProfileManager(configDir string, cfg *config.Config) *ProfileManager {
	return &ProfileManager{
		configDir: configDir,
		config:    cfg,
	}
}

// Create writes an empty profile with the given filters and registers it for
// instanceDir. The first profile created becomes the active one.
func (pm *ProfileManager) Create(name, instanceDir string, filters domain.Filters) (*config.ProfileEntry, error) {
	return pm.register(name, instanceDir, domain.NewProfile(filters))
}

// Import registers a profile from its TOML form
func (pm *ProfileManager) Import(name, instanceDir string, data []byte) (*config.ProfileEntry, error) {
	var profile domain.Profile
	if err := toml.Unmarshal(data, &profile); err != nil {
		return nil, fmt.Errorf("%w: parsing profile: %w", domain.ErrInvalidConfig, err)
	}
	return pm.register(name, instanceDir, &profile)
}

func (pm *ProfileManager) register(name, instanceDir string, profile *domain.Profile) (*config.ProfileEntry, error) {
	dir, err := config.ParseInstanceDir(instanceDir)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrInvalidConfig, err)
	}

	if _, err := pm.config.FindProfile(name); err == nil {
		return nil, fmt.Errorf("%w: profile %q already exists", domain.ErrInvalidConfig, name)
	}

	entry := config.ProfileEntry{
		Name:        name,
		InstanceDir: dir,
		Profile:     config.DefaultProfilePath(pm.configDir, name),
	}
	if _, err := os.Stat(entry.Profile); err == nil {
		return nil, fmt.Errorf("%w: profile file %s already exists", domain.ErrInvalidConfig, entry.Profile)
	}

	if err := config.SaveProfile(entry.Profile, profile); err != nil {
		return nil, fmt.Errorf("saving profile: %w", err)
	}
	if err := pm.config.AddProfile(entry); err != nil {
		return nil, err
	}
	if err := pm.config.Save(pm.configDir); err != nil {
		return nil, err
	}

	return pm.config.FindProfile(name)
}

// List returns the registered profiles
func (pm *ProfileManager) List() []config.ProfileEntry {
	return pm.config.Profiles
}

// Get returns a registered profile and its contents
func (pm *ProfileManager) Get(name string) (*config.ProfileEntry, *domain.Profile, error) {
	entry, err := pm.config.FindProfile(name)
	if err != nil {
		return nil, nil, err
	}
	profile, err := config.LoadProfile(entry.Profile)
	if err != nil {
		return nil, nil, err
	}
	return entry, profile, nil
}

// Active returns the active profile and its contents
func (pm *ProfileManager) Active() (*config.ProfileEntry, *domain.Profile, error) {
	entry, err := pm.config.Active()
	if err != nil {
		return nil, nil, err
	}
	profile, err := config.LoadProfile(entry.Profile)
	if err != nil {
		return nil, nil, err
	}
	return entry, profile, nil
}

// Switch makes name the active profile
func (pm *ProfileManager) Switch(name string) error {
	entry, err := pm.config.FindProfile(name)
	if err != nil {
		return err
	}
	pm.config.ActiveProfile = entry.Name
	return pm.config.Save(pm.configDir)
}

// Delete unregisters a profile, removing its file when removeFile is set
func (pm *ProfileManager) Delete(name string, removeFile bool) error {
	entry, err := pm.config.FindProfile(name)
	if err != nil {
		return err
	}
	path := entry.Profile

	if err := pm.config.RemoveProfile(name); err != nil {
		return err
	}
	if err := pm.config.Save(pm.configDir); err != nil {
		return err
	}

	if removeFile {
		if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("removing profile file: %w", err)
		}
	}
	return nil
}

// Edit loads a profile, applies fn and saves it when fn succeeds
func (pm *ProfileManager) Edit(name string, fn func(*domain.Profile) error) error {
	entry, profile, err := pm.Get(name)
	if err != nil {
		return err
	}
	if err := fn(profile); err != nil {
		return err
	}
	return config.SaveProfile(entry.Profile, profile)
}

// AddSource adds a source to a profile
func (pm *ProfileManager) AddSource(profileName string, kind domain.SourceKind, name string, src domain.Source) error {
	return pm.Edit(profileName, func(p *domain.Profile) error {
		return p.Add(kind, name, src)
	})
}

// RemoveSource removes a source from a profile, returning its stored name
func (pm *ProfileManager) RemoveSource(profileName string, kind domain.SourceKind, name string) (string, error) {
	var removed string
	err := pm.Edit(profileName, func(p *domain.Profile) error {
		var err error
		removed, err = p.Remove(kind, name)
		return err
	})
	return removed, err
}

// SetFilters replaces the baseline filters of a profile
func (pm *ProfileManager) SetFilters(name string, filters domain.Filters) error {
	return pm.Edit(name, func(p *domain.Profile) error {
		p.Filters = filters
		return nil
	})
}

// Export returns a profile in its portable TOML form
func (pm *ProfileManager) Export(name string) ([]byte, error) {
	_, profile, err := pm.Get(name)
	if err != nil {
		return nil, err
	}
	return toml.Marshal(profile)
}
