package source

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"mcmm/internal/domain"
)

// DefaultUserAgent identifies requests made by this tool
const DefaultUserAgent = "mcmm (github.com/mcmm/mcmm)"

// MaxJSONResponseBytes bounds the size of decoded API responses
const MaxJSONResponseBytes = 10 << 20

// userAgentTransport sets a User-Agent on every outgoing request
type userAgentTransport struct {
	base      http.RoundTripper
	userAgent string
}

func (t *userAgentTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if req.Header.Get("User-Agent") == "" {
		req = req.Clone(req.Context())
		req.Header.Set("User-Agent", t.userAgent)
	}
	return t.base.RoundTrip(req)
}

// NewHTTPClient returns a client shared by platform clients and the downloader
func NewHTTPClient(userAgent string, timeout time.Duration) *http.Client {
	if userAgent == "" {
		userAgent = DefaultUserAgent
	}
	return &http.Client{
		Timeout: timeout,
		Transport: &userAgentTransport{
			base:      http.DefaultTransport,
			userAgent: userAgent,
		},
	}
}

// statusTransport turns refusals into domain errors for API clients that do
// not expose the response status
type statusTransport struct {
	base     http.RoundTripper
	platform domain.Platform
}

func (t *statusTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	resp, err := t.base.RoundTrip(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrNetwork, err)
	}
	if rlErr := CheckRateLimit(t.platform, resp); rlErr != nil {
		_ = resp.Body.Close()
		return nil, rlErr
	}
	if resp.StatusCode == http.StatusNotFound {
		_ = resp.Body.Close()
		return nil, fmt.Errorf("%w: %s %s", domain.ErrNotFound, t.platform, req.URL.Path)
	}
	return resp, nil
}

// WithStatusErrors returns a copy of client whose requests fail with a
// *domain.RateLimitError when platform refuses them and with
// domain.ErrNotFound on a 404.
func WithStatusErrors(client *http.Client, platform domain.Platform) *http.Client {
	if client == nil {
		client = http.DefaultClient
	}
	base := client.Transport
	if base == nil {
		base = http.DefaultTransport
	}
	wrapped := *client
	wrapped.Transport = &statusTransport{base: base, platform: platform}
	return &wrapped
}

// CheckRateLimit returns a *domain.RateLimitError when resp says the platform
// refuses further requests: a 429, or a 403 with no remaining quota.
func CheckRateLimit(platform domain.Platform, resp *http.Response) error {
	switch resp.StatusCode {
	case http.StatusTooManyRequests:
	case http.StatusForbidden:
		if resp.Header.Get("X-RateLimit-Remaining") != "0" {
			return nil
		}
	default:
		return nil
	}
	return &domain.RateLimitError{
		Platform: platform,
		ResetAt:  resetTime(resp.Header, time.Now()),
	}
}

// resetTime reads Retry-After or X-RateLimit-Reset. The latter is an epoch on
// GitHub and a number of seconds on Modrinth, told apart by magnitude.
func resetTime(h http.Header, now time.Time) time.Time {
	if secs, err := strconv.ParseInt(h.Get("Retry-After"), 10, 64); err == nil {
		return now.Add(time.Duration(secs) * time.Second)
	}
	n, err := strconv.ParseInt(h.Get("X-RateLimit-Reset"), 10, 64)
	if err != nil {
		return time.Time{}
	}
	if n > 1_000_000_000 {
		return time.Unix(n, 0)
	}
	return now.Add(time.Duration(n) * time.Second)
}
