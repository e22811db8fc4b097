package curseforge

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"mcmm/internal/domain"
	"mcmm/internal/source"
)

const (
	defaultBaseURL = "https://api.curseforge.com"

	// maxPageSize is the largest page the files endpoint serves
	maxPageSize = 50
)

// Client wraps the CurseForge REST API v1
type Client struct {
	httpClient *http.Client
	apiKey     string
	baseURL    string
}

// NewClient creates a new CurseForge API client
func NewClient(httpClient *http.Client, apiKey string) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}

	return &Client{
		httpClient: httpClient,
		apiKey:     apiKey,
		baseURL:    defaultBaseURL,
	}
}

// IsAuthenticated returns true if an API key is configured
func (c *Client) IsAuthenticated() bool {
	return c.apiKey != ""
}

// doRequest performs an authenticated GET and decodes the JSON body into result
func (c *Client) doRequest(ctx context.Context, path string, result any) (err error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, http.NoBody)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}

	if c.apiKey != "" {
		req.Header.Set("x-api-key", c.apiKey)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: executing request: %w", domain.ErrNetwork, err)
	}
	defer func() {
		if cerr := resp.Body.Close(); err == nil && cerr != nil {
			err = fmt.Errorf("closing response body: %w", cerr)
		}
	}()

	if rlErr := source.CheckRateLimit(domain.PlatformCurseforge, resp); rlErr != nil {
		return rlErr
	}

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusUnauthorized:
		return fmt.Errorf("%w: CurseForge API key required", domain.ErrAuthRequired)
	case http.StatusForbidden:
		if strings.HasSuffix(path, "/download-url") {
			return domain.ErrDistributionDenied
		}
		if c.apiKey == "" {
			return fmt.Errorf("%w: CurseForge API key required", domain.ErrAuthRequired)
		}
		return fmt.Errorf("%w: access denied (check API key is valid)", domain.ErrAuthRequired)
	case http.StatusNotFound:
		return fmt.Errorf("%w: %s", domain.ErrNotFound, path)
	default:
		body, readErr := io.ReadAll(io.LimitReader(resp.Body, 10*1024))
		if readErr != nil {
			return fmt.Errorf("API error (status %d); reading body: %w", resp.StatusCode, readErr)
		}
		return fmt.Errorf("API error (status %d): %s", resp.StatusCode, string(body))
	}

	if err := json.NewDecoder(io.LimitReader(resp.Body, source.MaxJSONResponseBytes)).Decode(result); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}

	return nil
}

// GetMod fetches a single mod by ID
func (c *Client) GetMod(ctx context.Context, modID int) (*Mod, error) {
	path := fmt.Sprintf("/v1/mods/%d", modID)

	var resp APIResponse[Mod]
	if err := c.doRequest(ctx, path, &resp); err != nil {
		return nil, fmt.Errorf("getting mod %d: %w", modID, err)
	}
	return &resp.Data, nil
}

// GetModFiles fetches every file of a mod, following pagination
func (c *Client) GetModFiles(ctx context.Context, modID int) ([]File, error) {
	var all []File
	index := 0

	for {
		params := url.Values{}
		params.Set("pageSize", strconv.Itoa(maxPageSize))
		params.Set("index", strconv.Itoa(index))
		path := fmt.Sprintf("/v1/mods/%d/files?%s", modID, params.Encode())

		var resp PaginatedResponse[[]File]
		if err := c.doRequest(ctx, path, &resp); err != nil {
			return nil, fmt.Errorf("getting files of mod %d: %w", modID, err)
		}

		all = append(all, resp.Data...)

		p := resp.Pagination
		if len(resp.Data) == 0 || p.Index+p.ResultCount >= p.TotalCount {
			break
		}
		index = p.Index + p.ResultCount
	}

	return all, nil
}

// GetModFile fetches a specific file of a mod
func (c *Client) GetModFile(ctx context.Context, modID, fileID int) (*File, error) {
	path := fmt.Sprintf("/v1/mods/%d/files/%d", modID, fileID)

	var resp APIResponse[File]
	if err := c.doRequest(ctx, path, &resp); err != nil {
		return nil, fmt.Errorf("getting file %d of mod %d: %w", fileID, modID, err)
	}
	return &resp.Data, nil
}

// GetDownloadURL asks for the download URL of a file. Files whose authors
// disabled third-party distribution fail with domain.ErrDistributionDenied.
func (c *Client) GetDownloadURL(ctx context.Context, modID, fileID int) (string, error) {
	path := fmt.Sprintf("/v1/mods/%d/files/%d/download-url", modID, fileID)

	var resp APIResponse[string]
	if err := c.doRequest(ctx, path, &resp); err != nil {
		return "", fmt.Errorf("getting download URL: %w", err)
	}
	return resp.Data, nil
}
