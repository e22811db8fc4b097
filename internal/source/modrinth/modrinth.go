package modrinth

import (
	"context"
	"fmt"
	"net/http"

	"mcmm/internal/domain"

	modrinthapi "codeberg.org/jmansfield/go-modrinth/modrinth"
)

// Well-known project IDs
const (
	ProjectFabricAPI        = "P7dR8mSH"
	ProjectQuiltedFabricAPI = "qvIfYCYJ"
)

// Modrinth resolves Modrinth projects to downloadable files
type Modrinth struct {
	client *Client
}

// New creates a new Modrinth platform client
func New(httpClient *http.Client) *Modrinth {
	return &Modrinth{client: NewClient(httpClient)}
}

// ID returns the platform identifier
func (m *Modrinth) ID() domain.Platform {
	return domain.PlatformModrinth
}

// Resolve picks the newest version of the project matching every filter set,
// or the pinned version.
func (m *Modrinth) Resolve(ctx context.Context, id domain.SourceID, filters []*domain.Filters) (*domain.DownloadData, error) {
	if id.IsPinned() {
		version, err := m.client.GetVersion(ctx, id.Pin)
		if err != nil {
			return nil, err
		}
		return m.toDownloadData(ctx, id, version, "", false)
	}

	matchers, err := domain.CompileAll(filters)
	if err != nil {
		return nil, err
	}

	var project *modrinthapi.Project
	if matchers.UsesText() {
		if project, err = m.client.GetProject(ctx, id.Project); err != nil {
			return nil, err
		}
	}

	versions, err := m.client.ListVersions(ctx, id.Project)
	if err != nil {
		return nil, err
	}

	for _, version := range versions {
		c, ok := candidate(version, project)
		if !ok || !matchers.Matches(c) {
			continue
		}
		return m.toDownloadData(ctx, id, version, c.Title, matchers.WantsLoader(domain.LoaderQuilt))
	}

	return nil, fmt.Errorf("%w: modrinth project %s", domain.ErrNoCompatibleVersion, id.Project)
}

// primaryFile returns the file marked primary, or the first file
func primaryFile(version *modrinthapi.Version) *modrinthapi.File {
	var first *modrinthapi.File
	for _, f := range version.Files {
		if f == nil || f.URL == nil || f.Filename == nil {
			continue
		}
		if first == nil {
			first = f
		}
		if f.Primary != nil && *f.Primary {
			return f
		}
	}
	return first
}

// candidate describes a version for filter matching. Versions without a
// downloadable file are not candidates.
func candidate(version *modrinthapi.Version, project *modrinthapi.Project) (domain.Candidate, bool) {
	file := primaryFile(version)
	if file == nil {
		return domain.Candidate{}, false
	}

	c := domain.Candidate{
		GameVersions: version.GameVersions,
		Channel:      channel(deref(version.VersionType)),
		Filename:     *file.Filename,
	}
	for _, l := range version.Loaders {
		if loader, err := domain.ParseModLoader(l); err == nil {
			c.Loaders = append(c.Loaders, loader)
		}
	}
	if project != nil {
		c.Title = deref(project.Title)
		c.Description = deref(project.Description)
	}
	return c, true
}

// toDownloadData converts a version to an artifact. Dependencies that name
// only a version are looked up to learn their project.
func (m *Modrinth) toDownloadData(ctx context.Context, id domain.SourceID, version *modrinthapi.Version, title string, quilt bool) (*domain.DownloadData, error) {
	file := primaryFile(version)
	if file == nil {
		return nil, fmt.Errorf("%w: version %s has no files", domain.ErrNoCompatibleVersion, deref(version.ID))
	}

	data := &domain.DownloadData{
		Source: id,
		Title:  title,
		URL:    *file.URL,
		SHA1:   file.Hashes["sha1"],
		Output: *file.Filename,
	}
	if file.Size != nil {
		data.Length = int64(*file.Size)
	}

	for _, dep := range version.Dependencies {
		if dep == nil || deref(dep.DependencyType) != "required" {
			continue
		}
		projectID, versionID := deref(dep.ProjectID), deref(dep.VersionID)
		if projectID == "" && versionID != "" {
			depVersion, err := m.client.GetVersion(ctx, versionID)
			if err != nil {
				return nil, fmt.Errorf("resolving dependency of %s: %w", id, err)
			}
			projectID = deref(depVersion.ProjectID)
		}
		if projectID == "" {
			continue
		}
		depID := domain.ModrinthID(mapDependency(projectID, quilt))
		if versionID != "" && depID.Project == projectID {
			depID = depID.Pinned(versionID)
		}
		data.Dependencies = append(data.Dependencies, depID)
	}
	return data, nil
}

// mapDependency swaps Fabric API for Quilted Fabric API when Quilt is requested
func mapDependency(projectID string, quilt bool) string {
	if quilt && projectID == ProjectFabricAPI {
		return ProjectQuiltedFabricAPI
	}
	return projectID
}

func channel(versionType string) domain.ReleaseChannel {
	switch versionType {
	case "beta":
		return domain.ChannelBeta
	case "alpha":
		return domain.ChannelAlpha
	default:
		return domain.ChannelRelease
	}
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
