// Package fetch materializes located releases on disk: it derives canonical
// local paths for a download URL, downloads the archive (once, the archives
// dir is a cache), and extracts it into the builds tree under a predictable
// directory name.
package fetch

import (
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/luamill/luamill/internal/log"
)

// Fetcher downloads the bytes behind a URL.
type Fetcher interface {
	Fetch(ctx context.Context, url string) ([]byte, error)
}

// HTTPFetcherConfig is the configuration for the HTTP fetcher.
type HTTPFetcherConfig struct {
	// Client is the HTTP client for all requests. Defaults to http.DefaultClient.
	Client *http.Client
	// Logger is optional, defaults to log.Noop.
	Logger log.Logger
}

func (c *HTTPFetcherConfig) defaults() error {
	if c.Client == nil {
		c.Client = http.DefaultClient
	}
	if c.Logger == nil {
		c.Logger = log.Noop
	}
	c.Logger = c.Logger.WithValues(log.Kv{"svc": "fetch.HTTP"})
	return nil
}

// HTTPFetcher is the single transport for every upstream source, http and
// https alike. Redirects follow the client's default policy.
type HTTPFetcher struct {
	client *http.Client
	logger log.Logger
}

// NewHTTPFetcher creates a new HTTP fetcher.
func NewHTTPFetcher(cfg HTTPFetcherConfig) (*HTTPFetcher, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &HTTPFetcher{
		client: cfg.Client,
		logger: cfg.Logger,
	}, nil
}

// Fetch implements Fetcher.
func (f *HTTPFetcher) Fetch(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("executing request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("HTTP %d from %s", resp.StatusCode, url)
	}

	f.logger.Debugf("Fetched %s", url)

	return io.ReadAll(resp.Body)
}
