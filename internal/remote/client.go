package remote

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/agentx-labs/agentpkg/internal/branding"
	"github.com/agentx-labs/agentpkg/internal/logging"
	"github.com/agentx-labs/agentpkg/internal/manifest"
)

// maxBody caps metadata responses.
const maxBody = 4 << 20

// Info is remote metadata for a package. Versions is set by a list query;
// Version and Manifest by a single-version query.
type Info struct {
	Name     string             `json:"name"`
	Versions []string           `json:"versions,omitempty"`
	Version  string             `json:"version,omitempty"`
	Manifest *manifest.Manifest `json:"manifest,omitempty"`
}

// Client talks to a remote metadata registry.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
	log        zerolog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient sets a custom HTTP client (useful for testing).
func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) {
		cl.httpClient = c
	}
}

// WithToken sends token as a bearer credential.
func WithToken(token string) Option {
	return func(cl *Client) {
		cl.token = token
	}
}

// New creates a client for baseURL. An empty baseURL yields a client that
// reports every package as not found.
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 30 * time.Second},
		log:        logging.Get("remote"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Enabled reports whether a registry URL is configured.
func (c *Client) Enabled() bool { return c.baseURL != "" }

// FetchMetadata returns the version list of name when version is empty, or
// the manifest of name@version otherwise. Errors are always *Failure.
func (c *Client) FetchMetadata(ctx context.Context, name, version string) (*Info, error) {
	if !c.Enabled() {
		return nil, &Failure{Name: name, Reason: ReasonNotFound, Err: errors.New("no remote registry configured")}
	}

	endpoint := c.baseURL + "/packages/" + url.PathEscape(name)
	if version != "" {
		endpoint += "/" + url.PathEscape(version)
	}

	body, err := c.get(ctx, name, endpoint)
	if err != nil {
		return nil, err
	}

	var info Info
	if err := json.Unmarshal(body, &info); err != nil {
		return nil, &Failure{Name: name, Reason: ReasonIntegrity, Err: fmt.Errorf("parsing metadata: %w", err)}
	}
	if manifest.NormalizeName(info.Name) != manifest.NormalizeName(name) {
		return nil, &Failure{Name: name, Reason: ReasonIntegrity, Err: fmt.Errorf("response is for package %q", info.Name)}
	}
	if version != "" {
		if info.Version != version {
			return nil, &Failure{Name: name, Reason: ReasonIntegrity, Err: fmt.Errorf("response is for version %q", info.Version)}
		}
		if info.Manifest == nil {
			return nil, &Failure{Name: name, Reason: ReasonIntegrity, Err: errors.New("response has no manifest")}
		}
	}

	c.log.Debug().Str("package", name).Str("version", version).Int("versions", len(info.Versions)).Msg("fetched remote metadata")
	return &info, nil
}

func (c *Client) get(ctx context.Context, name, endpoint string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, &Failure{Name: name, Reason: ReasonUnknown, Err: fmt.Errorf("creating request: %w", err)}
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", branding.CLIName())
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, &Failure{Name: name, Reason: ReasonNetwork, Err: err}
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
	case resp.StatusCode == http.StatusNotFound:
		return nil, &Failure{Name: name, Reason: ReasonNotFound}
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return nil, &Failure{Name: name, Reason: ReasonAccessDenied, Err: fmt.Errorf("registry returned status %d", resp.StatusCode)}
	case resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode == http.StatusRequestTimeout:
		return nil, &Failure{Name: name, Reason: ReasonNetwork, Err: fmt.Errorf("registry returned status %d", resp.StatusCode)}
	default:
		return nil, &Failure{Name: name, Reason: ReasonUnknown, Err: fmt.Errorf("registry returned status %d", resp.StatusCode)}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBody))
	if err != nil {
		return nil, &Failure{Name: name, Reason: ReasonNetwork, Err: fmt.Errorf("reading response body: %w", err)}
	}
	return body, nil
}
