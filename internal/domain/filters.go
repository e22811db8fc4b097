package domain

import (
	"fmt"
	"regexp"
	"slices"
	"strings"

	"github.com/Masterminds/semver/v3"
	"github.com/unascribed/FlexVer/go/flexver"
)

// ModLoader identifies a mod loader family
type ModLoader int

const (
	LoaderFabric ModLoader = iota
	LoaderQuilt
	LoaderForge
	LoaderNeoForge
)

func (l ModLoader) String() string {
	switch l {
	case LoaderFabric:
		return "fabric"
	case LoaderQuilt:
		return "quilt"
	case LoaderForge:
		return "forge"
	case LoaderNeoForge:
		return "neoforge"
	default:
		return "unknown"
	}
}

// ParseModLoader converts a loader name to a ModLoader. Matching is case-insensitive.
func ParseModLoader(s string) (ModLoader, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "fabric":
		return LoaderFabric, nil
	case "quilt":
		return LoaderQuilt, nil
	case "forge":
		return LoaderForge, nil
	case "neoforge", "neo-forge", "neoforged":
		return LoaderNeoForge, nil
	default:
		return 0, fmt.Errorf("unknown mod loader %q", s)
	}
}

func (l ModLoader) MarshalText() ([]byte, error) {
	return []byte(l.String()), nil
}

func (l *ModLoader) UnmarshalText(text []byte) error {
	parsed, err := ParseModLoader(string(text))
	if err != nil {
		return err
	}
	*l = parsed
	return nil
}

// Accepts reports whether an artifact built for other can be used when l is requested.
// Quilt loads Fabric mods, the reverse does not hold.
func (l ModLoader) Accepts(other ModLoader) bool {
	return l == other || (l == LoaderQuilt && other == LoaderFabric)
}

// family groups loaders that can share a mods directory
func (l ModLoader) family() ModLoader {
	if l == LoaderQuilt {
		return LoaderFabric
	}
	return l
}

// ReleaseChannel is the stability channel an artifact was published on
type ReleaseChannel int

const (
	ChannelRelease ReleaseChannel = iota
	ChannelBeta
	ChannelAlpha
)

func (c ReleaseChannel) String() string {
	switch c {
	case ChannelRelease:
		return "release"
	case ChannelBeta:
		return "beta"
	case ChannelAlpha:
		return "alpha"
	default:
		return "unknown"
	}
}

// ParseReleaseChannel converts a channel name to a ReleaseChannel
func ParseReleaseChannel(s string) (ReleaseChannel, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "release", "stable":
		return ChannelRelease, nil
	case "beta":
		return ChannelBeta, nil
	case "alpha":
		return ChannelAlpha, nil
	default:
		return 0, fmt.Errorf("unknown release channel %q", s)
	}
}

func (c ReleaseChannel) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}

func (c *ReleaseChannel) UnmarshalText(text []byte) error {
	parsed, err := ParseReleaseChannel(string(text))
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}

// Filters is a bundle of optional compatibility constraints.
// A nil list or empty pattern imposes no constraint.
type Filters struct {
	GameVersions    []string         `toml:"versions,omitempty" yaml:"versions,omitempty"`
	ModLoaders      []ModLoader      `toml:"mod_loaders,omitempty" yaml:"mod_loaders,omitempty"`
	ReleaseChannels []ReleaseChannel `toml:"release_channels,omitempty" yaml:"release_channels,omitempty"`
	Filename        string           `toml:"filename,omitempty" yaml:"filename,omitempty"`
	Title           string           `toml:"title,omitempty" yaml:"title,omitempty"`
	Description     string           `toml:"description,omitempty" yaml:"description,omitempty"`
}

// IsEmpty returns true if no field constrains anything
func (f Filters) IsEmpty() bool {
	return f.GameVersions == nil && f.ModLoaders == nil && f.ReleaseChannels == nil &&
		f.Filename == "" && f.Title == "" && f.Description == ""
}

// Concat merges two filter sets field by field: a field set in override replaces
// the same field of base wholesale, anything unset in override is taken from base.
func Concat(base, override Filters) Filters {
	out := Filters{
		GameVersions:    slices.Clone(base.GameVersions),
		ModLoaders:      slices.Clone(base.ModLoaders),
		ReleaseChannels: slices.Clone(base.ReleaseChannels),
		Filename:        base.Filename,
		Title:           base.Title,
		Description:     base.Description,
	}
	if override.GameVersions != nil {
		out.GameVersions = slices.Clone(override.GameVersions)
	}
	if override.ModLoaders != nil {
		out.ModLoaders = slices.Clone(override.ModLoaders)
	}
	if override.ReleaseChannels != nil {
		out.ReleaseChannels = slices.Clone(override.ReleaseChannels)
	}
	if override.Filename != "" {
		out.Filename = override.Filename
	}
	if override.Title != "" {
		out.Title = override.Title
	}
	if override.Description != "" {
		out.Description = override.Description
	}
	return out
}

// Warnings returns messages for filters that are likely too loose to pick the
// intended artifact.
func (f Filters) Warnings() []string {
	var warnings []string

	if f.GameVersions != nil {
		strict := false
		for _, v := range f.GameVersions {
			if isStrictVersion(v) {
				strict = true
				break
			}
		}
		if !strict {
			warnings = append(warnings, "potentially lax version requirements")
		}
	}

	families := make(map[ModLoader]bool)
	for _, l := range f.ModLoaders {
		families[l.family()] = true
	}
	if len(families) > 1 {
		warnings = append(warnings, "specified multiple possible mod loaders")
	}

	return warnings
}

func isStrictVersion(v string) bool {
	v = strings.TrimSpace(v)
	if isVersionRange(v) {
		trimmed := strings.TrimPrefix(v, "=")
		return trimmed != v && !isVersionRange(trimmed) && strings.Count(trimmed, ".") >= 2
	}
	return strings.Count(v, ".") >= 2
}

// isVersionRange reports whether a game version entry is a range expression
// rather than a literal version
func isVersionRange(v string) bool {
	return strings.ContainsAny(v, "<>=~^*,| ") || strings.HasSuffix(v, ".x")
}

// Candidate describes one artifact offered by a platform, as seen by the filters
type Candidate struct {
	GameVersions []string
	Loaders      []ModLoader
	Channel      ReleaseChannel
	Filename     string
	Title        string
	Description  string
}

// Matcher is a compiled Filters value
type Matcher struct {
	filters     Filters
	ranges      []*semver.Constraints
	literals    []string
	filename    *regexp.Regexp
	title       *regexp.Regexp
	description *regexp.Regexp
}

// Compile validates the patterns and version ranges of f
func (f Filters) Compile() (*Matcher, error) {
	m := &Matcher{filters: f}

	for _, v := range f.GameVersions {
		v = strings.TrimSpace(v)
		if !isVersionRange(v) {
			m.literals = append(m.literals, v)
			continue
		}
		c, err := semver.NewConstraint(v)
		if err != nil {
			return nil, fmt.Errorf("invalid version range %q: %w", v, err)
		}
		m.ranges = append(m.ranges, c)
	}

	var err error
	if m.filename, err = compilePattern("filename", f.Filename); err != nil {
		return nil, err
	}
	if m.title, err = compilePattern("title", f.Title); err != nil {
		return nil, err
	}
	if m.description, err = compilePattern("description", f.Description); err != nil {
		return nil, err
	}
	return m, nil
}

func compilePattern(field, pattern string) (*regexp.Regexp, error) {
	if pattern == "" {
		return nil, nil
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, fmt.Errorf("invalid %s pattern %q: %w", field, pattern, err)
	}
	return re, nil
}

// Matches returns true when every constraint present in the filters has at
// least one match in the candidate
func (m *Matcher) Matches(c Candidate) bool {
	if m.filters.GameVersions != nil && !m.matchesVersion(c.GameVersions) {
		return false
	}
	if m.filters.ModLoaders != nil && !matchesLoader(m.filters.ModLoaders, c.Loaders) {
		return false
	}
	if m.filters.ReleaseChannels != nil && !slices.Contains(m.filters.ReleaseChannels, c.Channel) {
		return false
	}
	if m.filename != nil && !m.filename.MatchString(c.Filename) {
		return false
	}
	if m.title != nil && !m.title.MatchString(c.Title) {
		return false
	}
	if m.description != nil && !m.description.MatchString(c.Description) {
		return false
	}
	return true
}

// UsesText reports whether title or description patterns are set. Platforms use
// it to skip fetching project metadata that nothing reads.
func (m *Matcher) UsesText() bool {
	return m.title != nil || m.description != nil
}

func (m *Matcher) matchesVersion(candidates []string) bool {
	for _, have := range candidates {
		if slices.Contains(m.literals, have) {
			return true
		}
		if len(m.ranges) == 0 {
			continue
		}
		v, err := semver.NewVersion(have)
		if err != nil {
			continue
		}
		for _, r := range m.ranges {
			if r.Check(v) {
				return true
			}
		}
	}
	return false
}

func matchesLoader(wanted, have []ModLoader) bool {
	for _, w := range wanted {
		for _, h := range have {
			if w.Accepts(h) {
				return true
			}
		}
	}
	return false
}

// Matchers is the logical AND of several compiled filter sets
type Matchers []*Matcher

// CompileAll compiles every non-nil filter set
func CompileAll(filters []*Filters) (Matchers, error) {
	out := make(Matchers, 0, len(filters))
	for _, f := range filters {
		if f == nil {
			continue
		}
		m, err := f.Compile()
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, nil
}

// Matches returns true when every filter set matches the candidate
func (ms Matchers) Matches(c Candidate) bool {
	for _, m := range ms {
		if !m.Matches(c) {
			return false
		}
	}
	return true
}

// UsesText reports whether any filter set has a title or description pattern
func (ms Matchers) UsesText() bool {
	for _, m := range ms {
		if m.UsesText() {
			return true
		}
	}
	return false
}

// WantsLoader reports whether any filter set explicitly requests l
func (ms Matchers) WantsLoader(l ModLoader) bool {
	for _, m := range ms {
		if slices.Contains(m.filters.ModLoaders, l) {
			return true
		}
	}
	return false
}

// LatestGameVersion returns the newest version in versions, ordered by FlexVer
func LatestGameVersion(versions []string) string {
	latest := ""
	for _, v := range versions {
		if latest == "" || flexver.Less(latest, v) {
			latest = v
		}
	}
	return latest
}

// CompareGameVersions orders two game versions the way FlexVer does
func CompareGameVersions(a, b string) int {
	switch {
	case a == b:
		return 0
	case flexver.Less(a, b):
		return -1
	case flexver.Less(b, a):
		return 1
	default:
		return 0
	}
}
