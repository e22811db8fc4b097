package core

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"slices"
	"strconv"
	"strings"

	"mcmm/internal/domain"
	"mcmm/internal/storage/cache"

	"github.com/rs/zerolog"
	"golang.org/x/sync/semaphore"
)

// Manifest file names inside modpack archives
const (
	CurseforgeManifest = "manifest.json"
	ModrinthManifest   = "modrinth.index.json"
)

// ManagedDirs are the instance directories the reconciler owns. Modpack
// overrides inside them are placed file by file so they can be reconciled.
var ManagedDirs = []string{
	domain.KindMods.Directory(),
	domain.KindResourcePacks.Directory(),
	domain.KindShaders.Directory(),
}

// CurseforgeManifestFile is one entry of a CurseForge modpack manifest
type CurseforgeManifestFile struct {
	ProjectID int  `json:"projectID"`
	FileID    int  `json:"fileID"`
	Required  bool `json:"required"`
}

// CurseforgeModpackManifest is the manifest.json of a CurseForge modpack
type CurseforgeModpackManifest struct {
	Minecraft struct {
		Version    string `json:"version"`
		ModLoaders []struct {
			ID      string `json:"id"`
			Primary bool   `json:"primary"`
		} `json:"modLoaders"`
	} `json:"minecraft"`
	ManifestType string                   `json:"manifestType"`
	Name         string                   `json:"name"`
	Version      string                   `json:"version"`
	Files        []CurseforgeManifestFile `json:"files"`
	Overrides    string                   `json:"overrides"`
}

// ModrinthIndexFile is one entry of a Modrinth pack index
type ModrinthIndexFile struct {
	Path      string            `json:"path"`
	Hashes    map[string]string `json:"hashes"`
	Env       map[string]string `json:"env,omitempty"`
	Downloads []string          `json:"downloads"`
	FileSize  int64             `json:"fileSize"`
}

// ModrinthModpackIndex is the modrinth.index.json of a .mrpack
type ModrinthModpackIndex struct {
	FormatVersion int                 `json:"formatVersion"`
	Game          string              `json:"game"`
	VersionID     string              `json:"versionId"`
	Name          string              `json:"name"`
	Files         []ModrinthIndexFile `json:"files"`
	Dependencies  map[string]string   `json:"dependencies"`
}

// Expansion is what a modpack contributes to a resolution
type Expansion struct {
	Name      string
	Downloads []*domain.DownloadData // Files listed with direct URLs
	Pinned    []domain.SourceID      // Files that still need a platform lookup
	Installs  []*domain.InstallData  // Extracted overrides
}

// ModpackExpander downloads modpack archives to the cache and reads their contents
type ModpackExpander struct {
	downloader *Downloader
	extractor  *Extractor
	cache      *cache.Cache
	permits    *semaphore.Weighted
	log        zerolog.Logger
}

// NewModpackExpander creates an expander. Archive downloads take a permit
// from permits.
func NewModpackExpander(downloader *Downloader, c *cache.Cache, permits *semaphore.Weighted, log zerolog.Logger) *ModpackExpander {
	return &ModpackExpander{
		downloader: downloader,
		extractor:  NewExtractor(),
		cache:      c,
		permits:    permits,
		log:        log,
	}
}

// Expand fetches the modpack archive if it is not cached and turns its
// manifest into artifacts. Overrides are extracted only when installOverrides
// is set.
func (m *ModpackExpander) Expand(ctx context.Context, pack *domain.DownloadData, installOverrides bool) (*Expansion, error) {
	platform := pack.Source.Platform.String()
	archive := m.cache.ModpackPath(platform, pack.Source.Project, pack.Filename())

	if !m.cache.Exists(platform, pack.Source.Project, pack.Filename(), pack.Length) {
		if err := m.permits.Acquire(ctx, 1); err != nil {
			return nil, err
		}
		_, err := m.downloader.Download(ctx, pack, archive, nil)
		m.permits.Release(1)
		if err != nil {
			return nil, fmt.Errorf("downloading modpack %s: %w", pack.Filename(), err)
		}
	} else {
		m.log.Debug().Str("archive", archive).Msg("using cached modpack")
	}

	var (
		exp       *Expansion
		overrides []string
		err       error
	)
	if ok, herr := m.extractor.HasFile(archive, ModrinthManifest); herr != nil {
		return nil, herr
	} else if ok {
		exp, err = m.expandModrinth(archive, pack.Source)
		overrides = []string{"overrides", "client-overrides"}
	} else {
		var manifest *CurseforgeModpackManifest
		manifest, exp, err = m.expandCurseforge(archive)
		if manifest != nil {
			overrides = []string{manifest.Overrides}
		}
	}
	if err != nil {
		return nil, err
	}

	if installOverrides {
		dir := m.cache.OverridesPath(platform, pack.Source.Project, pack.Filename())
		if err := os.RemoveAll(dir); err != nil {
			return nil, fmt.Errorf("clearing overrides: %w", err)
		}
		for _, prefix := range overrides {
			if prefix == "" {
				continue
			}
			if err := m.extractor.ExtractPrefix(archive, prefix, dir); err != nil {
				return nil, fmt.Errorf("extracting %s: %w", prefix, err)
			}
		}
		installs, err := OverrideInstalls(dir)
		if err != nil {
			return nil, err
		}
		exp.Installs = installs
	}

	m.log.Debug().
		Str("modpack", exp.Name).
		Int("downloads", len(exp.Downloads)).
		Int("pinned", len(exp.Pinned)).
		Int("installs", len(exp.Installs)).
		Msg("expanded modpack")
	return exp, nil
}

func (m *ModpackExpander) expandCurseforge(archive string) (*CurseforgeModpackManifest, *Expansion, error) {
	data, err := m.extractor.ReadFile(archive, CurseforgeManifest)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil, fmt.Errorf("%s is not a modpack: no %s or %s", filepath.Base(archive), CurseforgeManifest, ModrinthManifest)
		}
		return nil, nil, err
	}

	var manifest CurseforgeModpackManifest
	if err := json.Unmarshal(data, &manifest); err != nil {
		return nil, nil, fmt.Errorf("parsing %s: %w", CurseforgeManifest, err)
	}
	if manifest.Overrides == "" {
		manifest.Overrides = "overrides"
	}

	exp := &Expansion{Name: manifest.Name}
	for _, f := range manifest.Files {
		exp.Pinned = append(exp.Pinned, domain.CurseforgeID(f.ProjectID).Pinned(strconv.Itoa(f.FileID)))
	}
	return &manifest, exp, nil
}

func (m *ModpackExpander) expandModrinth(archive string, packID domain.SourceID) (*Expansion, error) {
	data, err := m.extractor.ReadFile(archive, ModrinthManifest)
	if err != nil {
		return nil, err
	}

	var index ModrinthModpackIndex
	if err := json.Unmarshal(data, &index); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", ModrinthManifest, err)
	}

	exp := &Expansion{Name: index.Name}
	for _, f := range index.Files {
		if f.Env["client"] == "unsupported" {
			continue
		}
		output, err := cleanRelative(f.Path)
		if err != nil {
			return nil, fmt.Errorf("modpack file %q: %w", f.Path, err)
		}
		if len(f.Downloads) == 0 {
			return nil, fmt.Errorf("modpack file %q has no download URL", f.Path)
		}
		exp.Downloads = append(exp.Downloads, &domain.DownloadData{
			Source: packID,
			URL:    f.Downloads[0],
			Length: f.FileSize,
			SHA1:   f.Hashes["sha1"],
			Output: output,
		})
	}
	return exp, nil
}

// OverrideInstalls turns an extracted overrides directory into placements.
// Files inside managed directories are placed one by one; every other
// top-level entry is copied as a whole.
func OverrideInstalls(dir string) ([]*domain.InstallData, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading overrides: %w", err)
	}

	var installs []*domain.InstallData
	for _, entry := range entries {
		src := filepath.Join(dir, entry.Name())
		if !entry.IsDir() || !isManagedDir(entry.Name()) {
			installs = append(installs, &domain.InstallData{SourcePath: src, Dest: entry.Name()})
			continue
		}

		inner, err := os.ReadDir(src)
		if err != nil {
			return nil, fmt.Errorf("reading overrides: %w", err)
		}
		for _, f := range inner {
			installs = append(installs, &domain.InstallData{
				SourcePath: filepath.Join(src, f.Name()),
				Dest:       path.Join(entry.Name(), f.Name()),
			})
		}
	}
	return installs, nil
}

func isManagedDir(name string) bool {
	return slices.Contains(ManagedDirs, name)
}

// cleanRelative validates a slash-separated path from a manifest
func cleanRelative(p string) (string, error) {
	clean := path.Clean(strings.ReplaceAll(p, "\\", "/"))
	if clean == "." || path.IsAbs(clean) || clean == ".." || strings.HasPrefix(clean, "../") {
		return "", fmt.Errorf("path traversal detected: %s", p)
	}
	return clean, nil
}
