package locate

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/luamill/luamill/internal/log"
	"github.com/luamill/luamill/internal/model"
)

// SharedPageConfig is the configuration for the shared download-page locator.
type SharedPageConfig struct {
	// URL is the download page advertising several sibling projects.
	URL string
	// Pattern matches every release filename on the page, across projects.
	Pattern *regexp.Regexp
	// Buckets classify matched filenames by prefix.
	Buckets []model.PageBucket
	// Bucket is the bucket this locator resolves a release for.
	Bucket string
	// Fetcher downloads the page. Required.
	Fetcher Fetcher
	// Resolver derives the release paths. Required.
	Resolver Resolver
	// Logger is optional, defaults to log.Noop.
	Logger log.Logger
}

func (c *SharedPageConfig) defaults() error {
	if c.URL == "" {
		return fmt.Errorf("url is required")
	}
	if c.Pattern == nil {
		return fmt.Errorf("pattern is required")
	}
	if len(c.Buckets) == 0 {
		return fmt.Errorf("at least one bucket is required")
	}
	if c.Bucket == "" {
		return fmt.Errorf("bucket is required")
	}
	found := false
	for _, b := range c.Buckets {
		if b.Name == c.Bucket {
			found = true
			break
		}
	}
	if !found {
		return fmt.Errorf("bucket %q is not declared", c.Bucket)
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
	c.Logger = c.Logger.WithValues(log.Kv{"svc": "locate.SharedPage"})
	return nil
}

// SharedPage locates the newest release of one project on a download page
// shared by sibling projects. Every anchor matching the general pattern must
// classify into one of the declared buckets by filename prefix; a match that
// fits no bucket means the upstream page changed shape and is a hard error.
type SharedPage struct {
	url      string
	pattern  *regexp.Regexp
	buckets  []model.PageBucket
	bucket   string
	fetcher  Fetcher
	resolver Resolver
	logger   log.Logger
}

// NewSharedPage creates a new shared download-page locator.
func NewSharedPage(cfg SharedPageConfig) (*SharedPage, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &SharedPage{
		url:      cfg.URL,
		pattern:  cfg.Pattern,
		buckets:  cfg.Buckets,
		bucket:   cfg.Bucket,
		fetcher:  cfg.Fetcher,
		resolver: cfg.Resolver,
		logger:   cfg.Logger,
	}, nil
}

// Locate implements Locator.
func (s *SharedPage) Locate(ctx context.Context) (*model.ReleaseRef, error) {
	page, err := s.fetcher.Fetch(ctx, s.url)
	if err != nil {
		return nil, fmt.Errorf("fetching page %s: %w", s.url, err)
	}

	buckets := map[string][]string{}
	hrefByName := map[string]string{}
	for _, href := range anchorHrefs(page) {
		name := hrefFilename(href)
		if !s.pattern.MatchString(name) {
			continue
		}

		bucket := s.classify(name)
		if bucket == "" {
			return nil, fmt.Errorf("candidate %q matches the file pattern but no bucket prefix: %w", name, model.ErrClassification)
		}

		buckets[bucket] = append(buckets[bucket], name)
		hrefByName[name] = href
	}

	candidates := buckets[s.bucket]
	if len(candidates) == 0 {
		return nil, fmt.Errorf("no candidate for bucket %q on %s: %w", s.bucket, s.url, model.ErrNotFound)
	}

	best, err := selectMaxName(candidates)
	if err != nil {
		return nil, err
	}

	s.logger.Debugf("Selected %q for bucket %q out of %d candidates", best, s.bucket, len(candidates))

	downloadURL, err := joinURL(s.url, hrefByName[best])
	if err != nil {
		return nil, err
	}

	ref, err := s.resolver.Resolve(downloadURL, "")
	if err != nil {
		return nil, fmt.Errorf("resolving release paths: %w", err)
	}

	return &ref, nil
}

func (s *SharedPage) classify(name string) string {
	for _, b := range s.buckets {
		if strings.HasPrefix(name, b.Prefix) {
			return b.Name
		}
	}
	return ""
}
