package locate

import (
	"fmt"

	"github.com/luamill/luamill/internal/log"
	"github.com/luamill/luamill/internal/model"
)

// FactoryConfig is the configuration for the locator factory.
type FactoryConfig struct {
	// Fetcher downloads source pages and API responses. Required.
	Fetcher Fetcher
	// Resolver derives release paths. Required.
	Resolver Resolver
	// Logger is optional, defaults to log.Noop.
	Logger log.Logger
}

func (c *FactoryConfig) defaults() error {
	if c.Fetcher == nil {
		return fmt.Errorf("fetcher is required")
	}
	if c.Resolver == nil {
		return fmt.Errorf("resolver is required")
	}
	if c.Logger == nil {
		c.Logger = log.Noop
	}
	return nil
}

// Factory builds the right locator for a project's source definition.
type Factory struct {
	fetcher  Fetcher
	resolver Resolver
	logger   log.Logger
}

// NewFactory creates a new locator factory.
func NewFactory(cfg FactoryConfig) (*Factory, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &Factory{
		fetcher:  cfg.Fetcher,
		resolver: cfg.Resolver,
		logger:   cfg.Logger,
	}, nil
}

// LocatorFor returns a locator for the project's upstream source.
func (f *Factory) LocatorFor(p model.Project) (Locator, error) {
	logger := f.logger.WithValues(log.Kv{"project": p.Name})

	var loc Locator
	var err error

	switch {
	case p.Source.FlatIndex != nil:
		loc, err = NewFlatIndex(FlatIndexConfig{
			URL:      p.Source.FlatIndex.URL,
			Pattern:  p.Source.FlatIndex.Pattern,
			Fetcher:  f.fetcher,
			Resolver: f.resolver,
			Logger:   logger,
		})
	case p.Source.SharedPage != nil:
		loc, err = NewSharedPage(SharedPageConfig{
			URL:      p.Source.SharedPage.URL,
			Pattern:  p.Source.SharedPage.Pattern,
			Buckets:  p.Source.SharedPage.Buckets,
			Bucket:   p.Source.SharedPage.Bucket,
			Fetcher:  f.fetcher,
			Resolver: f.resolver,
			Logger:   logger,
		})
	case p.Source.Homepage != nil:
		loc, err = NewHomepage(HomepageConfig{
			URL:      p.Source.Homepage.URL,
			Pattern:  p.Source.Homepage.Pattern,
			Fetcher:  f.fetcher,
			Resolver: f.resolver,
			Logger:   logger,
		})
	case p.Source.Tags != nil:
		loc, err = NewTags(TagsConfig{
			Owner:     p.Source.Tags.Owner,
			Repo:      p.Source.Tags.Repo,
			Normalize: p.Source.Tags.Normalize,
			Fetcher:   f.fetcher,
			Resolver:  f.resolver,
			Logger:    logger,
		})
	default:
		return nil, fmt.Errorf("project %q has no source: %w", p.Name, model.ErrNotValid)
	}

	if err != nil {
		return nil, fmt.Errorf("could not create locator for %q: %w", p.Name, err)
	}

	return loc, nil
}
