package modrinth

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"mcmm/internal/domain"
	"mcmm/internal/source"

	modrinthapi "codeberg.org/jmansfield/go-modrinth/modrinth"
)

const defaultBaseURL = "https://api.modrinth.com/v2/"

// Client wraps the go-modrinth API client. Rate limits and missing projects
// surface as domain errors through the transport.
type Client struct {
	httpClient *http.Client
	baseURL    *url.URL
}

// NewClient creates a new Modrinth API client
func NewClient(httpClient *http.Client) *Client {
	base, _ := url.Parse(defaultBaseURL)
	return &Client{
		httpClient: source.WithStatusErrors(httpClient, domain.PlatformModrinth),
		baseURL:    base,
	}
}

// contextTransport attaches ctx to requests made by go-modrinth, whose
// services take no context
type contextTransport struct {
	base http.RoundTripper
	ctx  context.Context
}

func (t *contextTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	return t.base.RoundTrip(req.WithContext(t.ctx))
}

func (c *Client) api(ctx context.Context) *modrinthapi.Client {
	hc := *c.httpClient
	hc.Transport = &contextTransport{base: c.httpClient.Transport, ctx: ctx}

	api := modrinthapi.NewClient(&hc)
	api.BaseURL = c.baseURL
	// Leave the header to the shared client's configured User-Agent
	api.UserAgent = ""
	return api
}

// GetProject fetches a project by slug or ID
func (c *Client) GetProject(ctx context.Context, idOrSlug string) (*modrinthapi.Project, error) {
	project, err := c.api(ctx).Projects.Get(idOrSlug)
	if err != nil {
		return nil, fmt.Errorf("getting project %s: %w", idOrSlug, err)
	}
	return project, nil
}

// ListVersions fetches every version of a project, newest first
func (c *Client) ListVersions(ctx context.Context, idOrSlug string) ([]*modrinthapi.Version, error) {
	versions, err := c.api(ctx).Versions.ListVersions(idOrSlug, modrinthapi.ListVersionsOptions{})
	if err != nil {
		return nil, fmt.Errorf("listing versions of %s: %w", idOrSlug, err)
	}
	return versions, nil
}

// GetVersion fetches one version by ID
func (c *Client) GetVersion(ctx context.Context, versionID string) (*modrinthapi.Version, error) {
	version, err := c.api(ctx).Versions.Get(versionID)
	if err != nil {
		return nil, fmt.Errorf("getting version %s: %w", versionID, err)
	}
	return version, nil
}
