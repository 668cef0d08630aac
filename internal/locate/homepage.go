package locate

import (
	"context"
	"fmt"
	"regexp"

	"github.com/luamill/luamill/internal/log"
	"github.com/luamill/luamill/internal/model"
)

// HomepageConfig is the configuration for the single-release homepage locator.
type HomepageConfig struct {
	// URL is a page known to advertise only the current release.
	URL string
	// Pattern matches the release filename.
	Pattern *regexp.Regexp
	// Fetcher downloads the page. Required.
	Fetcher Fetcher
	// Resolver derives the release paths. Required.
	Resolver Resolver
	// Logger is optional, defaults to log.Noop.
	Logger log.Logger
}

func (c *HomepageConfig) defaults() error {
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
	c.Logger = c.Logger.WithValues(log.Kv{"svc": "locate.Homepage"})
	return nil
}

// Homepage locates a release on a page that only ever advertises the current
// one: the first anchor matching the release filename pattern wins, resolved
// to an absolute URL against the page's own URL.
type Homepage struct {
	url      string
	pattern  *regexp.Regexp
	fetcher  Fetcher
	resolver Resolver
	logger   log.Logger
}

// NewHomepage creates a new homepage locator.
func NewHomepage(cfg HomepageConfig) (*Homepage, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &Homepage{
		url:      cfg.URL,
		pattern:  cfg.Pattern,
		fetcher:  cfg.Fetcher,
		resolver: cfg.Resolver,
		logger:   cfg.Logger,
	}, nil
}

// Locate implements Locator.
func (h *Homepage) Locate(ctx context.Context) (*model.ReleaseRef, error) {
	page, err := h.fetcher.Fetch(ctx, h.url)
	if err != nil {
		return nil, fmt.Errorf("fetching homepage %s: %w", h.url, err)
	}

	for _, href := range anchorHrefs(page) {
		name := hrefFilename(href)
		if !h.pattern.MatchString(name) {
			continue
		}

		downloadURL, err := joinURL(h.url, href)
		if err != nil {
			return nil, err
		}

		h.logger.Debugf("Found release anchor %q", href)

		ref, err := h.resolver.Resolve(downloadURL, "")
		if err != nil {
			return nil, fmt.Errorf("resolving release paths: %w", err)
		}

		return &ref, nil
	}

	return nil, fmt.Errorf("no anchor matching %q on %s: %w", h.pattern, h.url, model.ErrNotFound)
}
