package locate

import (
	"context"
	"fmt"
	"net/url"
	"regexp"

	"github.com/luamill/luamill/internal/log"
	"github.com/luamill/luamill/internal/model"
)

// FlatIndexConfig is the configuration for the flat directory-listing locator.
type FlatIndexConfig struct {
	// URL is the directory listing page.
	URL string
	// Pattern matches release filenames for the project.
	Pattern *regexp.Regexp
	// Fetcher downloads the listing page. Required.
	Fetcher Fetcher
	// Resolver derives the release paths. Required.
	Resolver Resolver
	// Logger is optional, defaults to log.Noop.
	Logger log.Logger
}

func (c *FlatIndexConfig) defaults() error {
	if c.URL == "" {
		return fmt.Errorf("url is required")
	}
	if c.Pattern == nil {
		return fmt.Errorf("pattern is required")
	}
	if c.Fetcher == nil {
		return fmt.Errorf("fetcher is required")
	}
	if c.Resolver == nil {
		return fmt.Errorf("resolver is required")
	}
	if c.Logger == nil {
		c.Logger = log.Noop
	}
	c.Logger = c.Logger.WithValues(log.Kv{"svc": "locate.FlatIndex"})
	return nil
}

// FlatIndex locates the newest release on a plain directory-listing page by
// matching every anchor against the project's filename pattern and selecting
// the maximum under the version token order.
type FlatIndex struct {
	url      string
	pattern  *regexp.Regexp
	fetcher  Fetcher
	resolver Resolver
	logger   log.Logger
}

// NewFlatIndex creates a new flat-index locator.
func NewFlatIndex(cfg FlatIndexConfig) (*FlatIndex, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &FlatIndex{
		url:      cfg.URL,
		pattern:  cfg.Pattern,
		fetcher:  cfg.Fetcher,
		resolver: cfg.Resolver,
		logger:   cfg.Logger,
	}, nil
}

// Locate implements Locator.
func (f *FlatIndex) Locate(ctx context.Context) (*model.ReleaseRef, error) {
	page, err := f.fetcher.Fetch(ctx, f.url)
	if err != nil {
		return nil, fmt.Errorf("fetching index %s: %w", f.url, err)
	}

	var candidates []string
	for _, href := range anchorHrefs(page) {
		name := hrefFilename(href)
		if f.pattern.MatchString(name) {
			candidates = append(candidates, name)
		}
	}

	if len(candidates) == 0 {
		return nil, fmt.Errorf("no anchor matching %q on %s: %w", f.pattern, f.url, model.ErrNotFound)
	}

	best, err := selectMaxName(candidates)
	if err != nil {
		return nil, err
	}

	f.logger.Debugf("Selected %q out of %d candidates", best, len(candidates))

	downloadURL, err := joinURL(f.url, best)
	if err != nil {
		return nil, err
	}

	ref, err := f.resolver.Resolve(downloadURL, "")
	if err != nil {
		return nil, fmt.Errorf("resolving release paths: %w", err)
	}

	return &ref, nil
}

// joinURL resolves target against base, inheriting scheme/host/path defaults
// from the base URL while keeping any explicit components in the target.
func joinURL(base, target string) (string, error) {
	baseURL, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("parsing base url %q: %w", base, err)
	}
	targetURL, err := url.Parse(target)
	if err != nil {
		return "", fmt.Errorf("parsing target url %q: %w", target, err)
	}

	return baseURL.ResolveReference(targetURL).String(), nil
}
