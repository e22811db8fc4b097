package curseforge

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strconv"
	"unicode"

	"mcmm/internal/domain"
)

// CurseForge resolves CurseForge projects to downloadable files
type CurseForge struct {
	client *Client
}

// New creates a new CurseForge platform client
func New(httpClient *http.Client, apiKey string) *CurseForge {
	return &CurseForge{
		client: NewClient(httpClient, apiKey),
	}
}

// ID returns the platform identifier
func (c *CurseForge) ID() domain.Platform {
	return domain.PlatformCurseforge
}

// IsAuthenticated returns true if an API key is configured
func (c *CurseForge) IsAuthenticated() bool {
	return c.client.IsAuthenticated()
}

// Resolve picks the newest file of the project matching every filter set, or
// the pinned file.
func (c *CurseForge) Resolve(ctx context.Context, id domain.SourceID, filters []*domain.Filters) (*domain.DownloadData, error) {
	projectID, err := id.CurseforgeProject()
	if err != nil {
		return nil, err
	}

	if id.IsPinned() {
		fileID, err := strconv.Atoi(id.Pin)
		if err != nil {
			return nil, fmt.Errorf("invalid CurseForge file ID %q", id.Pin)
		}
		file, err := c.client.GetModFile(ctx, projectID, fileID)
		if err != nil {
			return nil, err
		}
		return c.toDownloadData(ctx, id, nil, file, false)
	}

	matchers, err := domain.CompileAll(filters)
	if err != nil {
		return nil, err
	}

	var mod *Mod
	if matchers.UsesText() {
		if mod, err = c.client.GetMod(ctx, projectID); err != nil {
			return nil, err
		}
	}

	files, err := c.client.GetModFiles(ctx, projectID)
	if err != nil {
		return nil, err
	}
	sortFiles(files)

	for i := range files {
		file := &files[i]
		if file.IsServerPack {
			continue
		}
		if matchers.Matches(candidate(file, mod)) {
			return c.toDownloadData(ctx, id, mod, file, matchers.WantsLoader(domain.LoaderQuilt))
		}
	}

	return nil, fmt.Errorf("%w: curseforge project %d", domain.ErrNoCompatibleVersion, projectID)
}

// toDownloadData converts a file to an artifact. mod may be nil; it is only
// fetched when the file cannot be distributed and a manual link is needed.
func (c *CurseForge) toDownloadData(ctx context.Context, id domain.SourceID, mod *Mod, file *File, quilt bool) (*domain.DownloadData, error) {
	if file.DownloadURL == "" {
		u, err := c.client.GetDownloadURL(ctx, file.ModID, file.ID)
		switch {
		case err == nil && u != "":
			file.DownloadURL = u
		case err == nil, errors.Is(err, domain.ErrDistributionDenied), errors.Is(err, domain.ErrNotFound):
			return nil, c.distributionDenied(ctx, mod, file)
		default:
			return nil, err
		}
	}

	data := &domain.DownloadData{
		Source: id,
		URL:    file.DownloadURL,
		Length: file.FileLength,
		Output: file.FileName,
	}
	if mod != nil {
		data.Title = mod.Name
	}
	for _, h := range file.Hashes {
		if h.Algo == HashAlgoSHA1 {
			data.SHA1 = h.Value
		}
	}
	for _, dep := range file.Dependencies {
		if dep.RelationType != RelationRequiredDependency {
			continue
		}
		data.Dependencies = append(data.Dependencies, domain.CurseforgeID(mapDependency(dep.ModID, quilt)))
	}
	return data, nil
}

func (c *CurseForge) distributionDenied(ctx context.Context, mod *Mod, file *File) error {
	denied := &domain.DistributionDeniedError{
		Project: strconv.Itoa(file.ModID),
		FileID:  strconv.Itoa(file.ID),
	}
	if mod == nil {
		fetched, err := c.client.GetMod(ctx, file.ModID)
		if err != nil {
			if errors.Is(err, domain.ErrRateLimited) {
				return err
			}
			return denied
		}
		mod = fetched
	}
	denied.Project = mod.Name
	if mod.Links.WebsiteURL != "" {
		denied.URL = fmt.Sprintf("%s/download/%d", mod.Links.WebsiteURL, file.ID)
	}
	return denied
}

// mapDependency swaps Fabric API for Quilted Fabric API when Quilt is requested
func mapDependency(modID int, quilt bool) int {
	if quilt && modID == ProjectFabricAPI {
		return ProjectQuiltedFabricAPI
	}
	return modID
}

// candidate describes a file for filter matching. CurseForge lists loaders
// alongside game versions in gameVersions.
func candidate(file *File, mod *Mod) domain.Candidate {
	c := domain.Candidate{
		Channel:  channel(file.ReleaseType),
		Filename: file.FileName,
	}
	for _, v := range file.GameVersions {
		if loader, err := domain.ParseModLoader(v); err == nil {
			c.Loaders = append(c.Loaders, loader)
			continue
		}
		if v != "" && unicode.IsDigit(rune(v[0])) {
			c.GameVersions = append(c.GameVersions, v)
		}
	}
	if mod != nil {
		c.Title = mod.Name
		c.Description = mod.Summary
	}
	return c
}

func channel(releaseType int) domain.ReleaseChannel {
	switch releaseType {
	case ReleaseTypeBeta:
		return domain.ChannelBeta
	case ReleaseTypeAlpha:
		return domain.ChannelAlpha
	default:
		return domain.ChannelRelease
	}
}

// sortFiles orders files newest first, breaking ties by the newest supported
// game version and then by file ID
func sortFiles(files []File) {
	sort.SliceStable(files, func(i, j int) bool {
		a, b := &files[i], &files[j]
		if !a.FileDate.Equal(b.FileDate) {
			return a.FileDate.After(b.FileDate)
		}
		if cmp := domain.CompareGameVersions(
			domain.LatestGameVersion(candidate(a, nil).GameVersions),
			domain.LatestGameVersion(candidate(b, nil).GameVersions),
		); cmp != 0 {
			return cmp > 0
		}
		return a.ID > b.ID
	})
}
