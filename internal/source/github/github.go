// Package github resolves mods published as GitHub release assets.
package github

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strconv"
	"strings"

	"mcmm/internal/domain"
	"mcmm/internal/source"

	"github.com/dlclark/regexp2"
)

const (
	defaultBaseURL = "https://api.github.com"
	defaultPerPage = 100
	maxPages       = 3
)

// defaultAssetPattern skips API, dev, and sources jars that mod authors
// commonly publish next to the main artifact.
var defaultAssetPattern = regexp2.MustCompile(`^.+(?<!-api|-dev|-dev-preshadow|-sources|-javadoc)\.(jar|zip)$`, regexp2.IgnoreCase)

var gameVersionPattern = regexp.MustCompile(`^1\.\d{1,2}(?:\.\d{1,2})?$`)

type (
	release struct {
		TagName    string  `json:"tag_name"`
		Name       string  `json:"name"`
		Prerelease bool    `json:"prerelease"`
		Draft      bool    `json:"draft"`
		Assets     []asset `json:"assets"`
	}

	asset struct {
		ID                 int64  `json:"id"`
		Name               string `json:"name"`
		BrowserDownloadURL string `json:"browser_download_url"`
		Size               int64  `json:"size"`
	}

	repository struct {
		Name        string `json:"name"`
		FullName    string `json:"full_name"`
		Description string `json:"description"`
	}

	// GitHub resolves repositories to release assets.
	GitHub struct {
		httpClient *http.Client
		baseURL    string
		token      string
	}

	// Option configures a GitHub platform during construction.
	Option func(*GitHub)
)

// WithHTTPClient sets the HTTP client used for API requests.
func WithHTTPClient(c *http.Client) Option {
	return func(g *GitHub) {
		if c != nil {
			g.httpClient = c
		}
	}
}

// WithBaseURL overrides the API base URL, primarily for test servers.
func WithBaseURL(base string) Option {
	return func(g *GitHub) {
		g.baseURL = strings.TrimRight(base, "/")
	}
}

// WithToken sets a personal access token. Authenticated requests get a far
// higher rate limit.
func WithToken(token string) Option {
	return func(g *GitHub) {
		g.token = token
	}
}

// New creates a GitHub platform.
func New(opts ...Option) *GitHub {
	g := &GitHub{
		httpClient: http.DefaultClient,
		baseURL:    defaultBaseURL,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// ID returns the platform identifier.
func (g *GitHub) ID() domain.Platform {
	return domain.PlatformGithub
}

// IsAuthenticated returns true if a token is configured.
func (g *GitHub) IsAuthenticated() bool {
	return g.token != ""
}

// Resolve picks the first asset of the newest release matching every filter
// set, or the pinned asset. Release order is the order the API returns,
// newest first.
func (g *GitHub) Resolve(ctx context.Context, id domain.SourceID, filters []*domain.Filters) (*domain.DownloadData, error) {
	owner, repo, err := id.GithubRepo()
	if err != nil {
		return nil, err
	}

	if id.IsPinned() {
		if _, err := strconv.ParseInt(id.Pin, 10, 64); err != nil {
			return nil, fmt.Errorf("invalid GitHub asset ID %q", id.Pin)
		}
		var a asset
		if err := g.get(ctx, fmt.Sprintf("/repos/%s/%s/releases/assets/%s", owner, repo, id.Pin), &a); err != nil {
			return nil, fmt.Errorf("getting asset %s of %s/%s: %w", id.Pin, owner, repo, err)
		}
		return toDownloadData(id, &a, ""), nil
	}

	matchers, err := domain.CompileAll(filters)
	if err != nil {
		return nil, err
	}

	var repoInfo *repository
	if matchers.UsesText() {
		repoInfo = &repository{}
		if err := g.get(ctx, fmt.Sprintf("/repos/%s/%s", owner, repo), repoInfo); err != nil {
			return nil, fmt.Errorf("getting repository %s/%s: %w", owner, repo, err)
		}
	}

	releases, err := g.listReleases(ctx, owner, repo)
	if err != nil {
		return nil, err
	}

	for i := range releases {
		rel := &releases[i]
		if rel.Draft {
			continue
		}
		for j := range rel.Assets {
			a := &rel.Assets[j]
			if ok, _ := defaultAssetPattern.MatchString(a.Name); !ok {
				continue
			}
			c := candidate(rel, a, repoInfo)
			if matchers.Matches(c) {
				return toDownloadData(id, a, c.Title), nil
			}
		}
	}

	return nil, fmt.Errorf("%w: github repository %s/%s", domain.ErrNoCompatibleVersion, owner, repo)
}

func (g *GitHub) listReleases(ctx context.Context, owner, repo string) ([]release, error) {
	var all []release
	for page := 1; page <= maxPages; page++ {
		var releases []release
		path := fmt.Sprintf("/repos/%s/%s/releases?per_page=%d&page=%d", owner, repo, defaultPerPage, page)
		if err := g.get(ctx, path, &releases); err != nil {
			return nil, fmt.Errorf("listing releases of %s/%s: %w", owner, repo, err)
		}
		all = append(all, releases...)
		if len(releases) < defaultPerPage {
			break
		}
	}
	return all, nil
}

func (g *GitHub) get(ctx context.Context, path string, result any) (err error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.baseURL+path, http.NoBody)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Accept", "application/vnd.github+json")
	req.Header.Set("X-GitHub-Api-Version", "2022-11-28")
	if g.token != "" {
		req.Header.Set("Authorization", "Bearer "+g.token)
	}

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: executing request: %w", domain.ErrNetwork, err)
	}
	defer func() {
		if cerr := resp.Body.Close(); err == nil && cerr != nil {
			err = fmt.Errorf("closing response body: %w", cerr)
		}
	}()

	if rlErr := source.CheckRateLimit(domain.PlatformGithub, resp); rlErr != nil {
		return rlErr
	}

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusNotFound:
		return domain.ErrNotFound
	case http.StatusUnauthorized:
		return fmt.Errorf("%w: invalid GitHub token", domain.ErrAuthRequired)
	default:
		return fmt.Errorf("API error (status %d)", resp.StatusCode)
	}

	if err := json.NewDecoder(io.LimitReader(resp.Body, source.MaxJSONResponseBytes)).Decode(result); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	return nil
}

// candidate describes an asset for filter matching. Game versions and loaders
// are inferred from the asset name, then the release name and tag. An asset
// naming no loader is assumed to support every loader.
func candidate(rel *release, a *asset, repo *repository) domain.Candidate {
	c := domain.Candidate{
		Channel:  domain.ChannelRelease,
		Filename: a.Name,
	}
	if rel.Prerelease {
		c.Channel = domain.ChannelBeta
	}

	names := []string{a.Name, rel.Name, rel.TagName}
	for _, name := range names {
		if c.GameVersions = gameVersions(name); len(c.GameVersions) > 0 {
			break
		}
	}
	for _, name := range names {
		if c.Loaders = loaders(name); len(c.Loaders) > 0 {
			break
		}
	}
	if len(c.Loaders) == 0 {
		c.Loaders = []domain.ModLoader{domain.LoaderFabric, domain.LoaderQuilt, domain.LoaderForge, domain.LoaderNeoForge}
	}

	if repo != nil {
		c.Title = repo.Name
		c.Description = repo.Description
	}
	return c
}

func gameVersions(name string) []string {
	var versions []string
	tokens := strings.FieldsFunc(name, func(r rune) bool {
		return r != '.' && (r < '0' || r > '9')
	})
	for _, token := range tokens {
		token = strings.Trim(token, ".")
		if gameVersionPattern.MatchString(token) {
			versions = append(versions, token)
		}
	}
	return versions
}

func loaders(name string) []domain.ModLoader {
	lower := strings.ToLower(name)
	var found []domain.ModLoader
	if strings.Contains(lower, "fabric") {
		found = append(found, domain.LoaderFabric)
	}
	if strings.Contains(lower, "quilt") {
		found = append(found, domain.LoaderQuilt)
	}
	if strings.Contains(lower, "neoforge") {
		found = append(found, domain.LoaderNeoForge)
	}
	if strings.Contains(strings.ReplaceAll(lower, "neoforge", ""), "forge") {
		found = append(found, domain.LoaderForge)
	}
	return found
}

func toDownloadData(id domain.SourceID, a *asset, title string) *domain.DownloadData {
	return &domain.DownloadData{
		Source: id,
		Title:  title,
		URL:    a.BrowserDownloadURL,
		Length: a.Size,
		Output: a.Name,
	}
}
