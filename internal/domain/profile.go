package domain

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// ErrDuplicateName is returned when a source name is already used in a category
var ErrDuplicateName = errors.New("source name already in use")

// Profile is the declarative set of sources for one game instance
type Profile struct {
	Filters       Filters           `toml:"filters,omitempty"`
	Mods          map[string]Source `toml:"mods,omitempty"`
	ResourcePacks map[string]Source `toml:"resourcepacks,omitempty"`
	Shaders       map[string]Source `toml:"shaders,omitempty"`
	Modpacks      map[string]Source `toml:"modpacks,omitempty"`
}

// NewProfile creates an empty profile with the given baseline filters
func NewProfile(filters Filters) *Profile {
	return &Profile{Filters: filters}
}

// Sources returns the name to source mapping for a category
func (p *Profile) Sources(kind SourceKind) map[string]Source {
	switch kind {
	case KindMods:
		return p.Mods
	case KindResourcePacks:
		return p.ResourcePacks
	case KindShaders:
		return p.Shaders
	case KindModpacks:
		return p.Modpacks
	default:
		return nil
	}
}

func (p *Profile) table(kind SourceKind) *map[string]Source {
	switch kind {
	case KindMods:
		return &p.Mods
	case KindResourcePacks:
		return &p.ResourcePacks
	case KindShaders:
		return &p.Shaders
	case KindModpacks:
		return &p.Modpacks
	default:
		return nil
	}
}

// Names returns the sorted source names of a category
func (p *Profile) Names(kind SourceKind) []string {
	sources := p.Sources(kind)
	names := make([]string, 0, len(sources))
	for name := range sources {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Lookup finds a source by name, ignoring case
func (p *Profile) Lookup(kind SourceKind, name string) (string, Source, bool) {
	for existing, src := range p.Sources(kind) {
		if strings.EqualFold(existing, name) {
			return existing, src, true
		}
	}
	return "", Source{}, false
}

// Add inserts a source under name. Names are unique case-insensitively within a category.
func (p *Profile) Add(kind SourceKind, name string, src Source) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return fmt.Errorf("source name cannot be empty")
	}
	table := p.table(kind)
	if table == nil {
		return fmt.Errorf("unknown source kind %d", kind)
	}
	if existing, _, ok := p.Lookup(kind, name); ok {
		return fmt.Errorf("%w: %s %q", ErrDuplicateName, kind, existing)
	}
	if *table == nil {
		*table = make(map[string]Source)
	}
	(*table)[name] = src
	return nil
}

// Remove deletes a source by name, ignoring case. It returns the removed name.
func (p *Profile) Remove(kind SourceKind, name string) (string, error) {
	existing, _, ok := p.Lookup(kind, name)
	if !ok {
		return "", fmt.Errorf("%w: %s %q", ErrNotFound, kind, name)
	}
	delete(*p.table(kind), existing)
	return existing, nil
}

// Len returns the total number of sources across categories
func (p *Profile) Len() int {
	n := 0
	for _, kind := range SourceKinds {
		n += len(p.Sources(kind))
	}
	return n
}
