package domain

import (
	"fmt"
	"strconv"
	"strings"
)

// Platform identifies a content platform
type Platform int

const (
	PlatformCurseforge Platform = iota
	PlatformModrinth
	PlatformGithub
)

func (p Platform) String() string {
	switch p {
	case PlatformCurseforge:
		return "curseforge"
	case PlatformModrinth:
		return "modrinth"
	case PlatformGithub:
		return "github"
	default:
		return "unknown"
	}
}

// ParsePlatform converts a platform name to a Platform
func ParsePlatform(s string) (Platform, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "curseforge", "cf":
		return PlatformCurseforge, nil
	case "modrinth", "mr":
		return PlatformModrinth, nil
	case "github", "gh":
		return PlatformGithub, nil
	default:
		return 0, fmt.Errorf("unknown platform %q", s)
	}
}

// SourceID points at a project on a platform, optionally pinned to one exact
// file, version or release asset.
//
// Project holds the CurseForge project ID, the Modrinth slug or ID, or the
// GitHub "owner/repo" pair.
type SourceID struct {
	Platform Platform
	Project  string
	Pin      string
}

// CurseforgeID returns the SourceID of a CurseForge project
func CurseforgeID(projectID int) SourceID {
	return SourceID{Platform: PlatformCurseforge, Project: strconv.Itoa(projectID)}
}

// ModrinthID returns the SourceID of a Modrinth project
func ModrinthID(project string) SourceID {
	return SourceID{Platform: PlatformModrinth, Project: project}
}

// GithubID returns the SourceID of a GitHub repository
func GithubID(owner, repo string) SourceID {
	return SourceID{Platform: PlatformGithub, Project: owner + "/" + repo}
}

// Pinned returns a copy of id pinned to pin
func (id SourceID) Pinned(pin string) SourceID {
	id.Pin = pin
	return id
}

// IsPinned returns true if filters are bypassed for this ID
func (id SourceID) IsPinned() bool {
	return id.Pin != ""
}

// Unpinned drops the pin
func (id SourceID) Unpinned() SourceID {
	id.Pin = ""
	return id
}

// CurseforgeProject returns the numeric project ID of a CurseForge source
func (id SourceID) CurseforgeProject() (int, error) {
	n, err := strconv.Atoi(id.Project)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("invalid CurseForge project ID %q", id.Project)
	}
	return n, nil
}

// GithubRepo splits a GitHub source into owner and repository
func (id SourceID) GithubRepo() (owner, repo string, err error) {
	owner, repo, ok := strings.Cut(id.Project, "/")
	if !ok || owner == "" || repo == "" || strings.Contains(repo, "/") {
		return "", "", fmt.Errorf("invalid GitHub repository %q (want owner/repo)", id.Project)
	}
	return owner, repo, nil
}

// String renders the ID as "platform:project[@pin]"
func (id SourceID) String() string {
	s := id.Platform.String() + ":" + id.Project
	if id.Pin != "" {
		s += "@" + id.Pin
	}
	return s
}

// ParseSourceID parses the "platform:project[@pin]" form produced by String
func ParseSourceID(s string) (SourceID, error) {
	platformName, rest, ok := strings.Cut(strings.TrimSpace(s), ":")
	if !ok || rest == "" {
		return SourceID{}, fmt.Errorf("invalid source %q (want platform:project)", s)
	}
	platform, err := ParsePlatform(platformName)
	if err != nil {
		return SourceID{}, err
	}

	project, pin, _ := strings.Cut(rest, "@")
	id := SourceID{Platform: platform, Project: project, Pin: pin}

	switch platform {
	case PlatformCurseforge:
		if _, err := id.CurseforgeProject(); err != nil {
			return SourceID{}, err
		}
	case PlatformGithub:
		if _, _, err := id.GithubRepo(); err != nil {
			return SourceID{}, err
		}
	}
	if project == "" {
		return SourceID{}, fmt.Errorf("invalid source %q: empty project", s)
	}
	return id, nil
}

func (id SourceID) MarshalText() ([]byte, error) {
	return []byte(id.String()), nil
}

func (id *SourceID) UnmarshalText(text []byte) error {
	parsed, err := ParseSourceID(string(text))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}

// SourceKind is the profile category a source belongs to
type SourceKind int

const (
	KindMods SourceKind = iota
	KindResourcePacks
	KindShaders
	KindModpacks
)

// SourceKinds lists every category in processing order
var SourceKinds = []SourceKind{KindMods, KindResourcePacks, KindShaders, KindModpacks}

func (k SourceKind) String() string {
	switch k {
	case KindMods:
		return "mods"
	case KindResourcePacks:
		return "resourcepacks"
	case KindShaders:
		return "shaders"
	case KindModpacks:
		return "modpacks"
	default:
		return "unknown"
	}
}

// ParseSourceKind converts a category name to a SourceKind
func ParseSourceKind(s string) (SourceKind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "mod", "mods":
		return KindMods, nil
	case "resourcepack", "resourcepacks":
		return KindResourcePacks, nil
	case "shader", "shaders", "shaderpacks":
		return KindShaders, nil
	case "modpack", "modpacks":
		return KindModpacks, nil
	default:
		return 0, fmt.Errorf("unknown source kind %q", s)
	}
}

// Directory returns the instance subdirectory artifacts of this kind are placed
// in. Modpacks have none: their contents land in the other directories.
func (k SourceKind) Directory() string {
	switch k {
	case KindMods:
		return "mods"
	case KindResourcePacks:
		return "resourcepacks"
	case KindShaders:
		return "shaderpacks"
	default:
		return ""
	}
}

// BacksUp reports whether stray files in this kind's directory are moved to
// .old instead of deleted
func (k SourceKind) BacksUp() bool {
	return k == KindMods
}

// Source is one named, user-configured reference to platform content
type Source struct {
	ID      SourceID `toml:"id"`
	Filters Filters  `toml:"filters,omitempty"`

	// StackFilters applies Filters in addition to the profile filters
	// instead of replacing the fields it sets.
	StackFilters bool `toml:"stack_filters,omitempty"`

	// InstallOverrides controls extraction of a modpack's overrides folder.
	// Nil means true.
	InstallOverrides *bool `toml:"install_overrides,omitempty"`
}

// NewSource creates a Source with no filters of its own
func NewSource(id SourceID) Source {
	return Source{ID: id}
}

// EffectiveFilters returns the filter sets to hand a platform for this source
// given the profile baseline and any ad-hoc filters. The platform ANDs them.
func (s Source) EffectiveFilters(baseline Filters, extra *Filters) []*Filters {
	var out []*Filters
	if s.StackFilters {
		b := baseline
		own := s.Filters
		out = append(out, &b, &own)
	} else {
		merged := Concat(baseline, s.Filters)
		out = append(out, &merged)
	}
	if extra != nil && !extra.IsEmpty() {
		e := *extra
		out = append(out, &e)
	}
	return out
}

// ShouldInstallOverrides returns the resolved overrides setting
func (s Source) ShouldInstallOverrides() bool {
	return s.InstallOverrides == nil || *s.InstallOverrides
}
