package locate

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/luamill/luamill/internal/log"
	"github.com/luamill/luamill/internal/model"
	"github.com/luamill/luamill/internal/version"
)

const (
	defaultTagsAPIBase      = "https://api.github.com"
	defaultTagsDownloadBase = "https://github.com"
)

var (
	dottedTagRegexp     = regexp.MustCompile(`^v?\d+(\.\d+)*$`)
	underscoreTagRegexp = regexp.MustCompile(`^v?\d+([._]\d+)*$`)
)

// TagsConfig is the configuration for the tag-listing API locator.
type TagsConfig struct {
	// Owner is the hosted repository owner.
	Owner string
	// Repo is the hosted repository name.
	Repo string
	// Normalize selects the tag rewriting rule. Tags the rule rejects are
	// excluded from version comparison entirely.
	Normalize model.TagNormalization
	// Fetcher downloads the tag listing. Required.
	Fetcher Fetcher
	// Resolver derives the release paths. Required.
	Resolver Resolver
	// Logger is optional, defaults to log.Noop.
	Logger log.Logger
}

func (c *TagsConfig) defaults() error {
	if c.Owner == "" || c.Repo == "" {
		return fmt.Errorf("owner and repo are required")
	}
	if c.Normalize == "" {
		c.Normalize = model.TagNormalizeDots
	}
	if c.Normalize != model.TagNormalizeDots && c.Normalize != model.TagNormalizeUnderscores {
		return fmt.Errorf("unknown tag normalization %q", c.Normalize)
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
	c.Logger = c.Logger.WithValues(log.Kv{"svc": "locate.Tags"})
	return nil
}

// Tags locates the newest release of a project hosted on a tagged
// source-control service by listing its tags, normalizing them into
// comparable version keys and selecting the maximum surviving key.
type Tags struct {
	owner     string
	repo      string
	normalize model.TagNormalization
	fetcher   Fetcher
	resolver  Resolver
	logger    log.Logger

	// Base URLs (overridable for testing).
	apiBaseURL      string
	downloadBaseURL string
}

// NewTags creates a new tag-listing locator.
func NewTags(cfg TagsConfig) (*Tags, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &Tags{
		owner:           cfg.Owner,
		repo:            cfg.Repo,
		normalize:       cfg.Normalize,
		fetcher:         cfg.Fetcher,
		resolver:        cfg.Resolver,
		logger:          cfg.Logger,
		apiBaseURL:      defaultTagsAPIBase,
		downloadBaseURL: defaultTagsDownloadBase,
	}, nil
}

// NewTagsWithBaseURL creates a tags locator with custom base URLs (for testing).
func NewTagsWithBaseURL(cfg TagsConfig, apiBaseURL, downloadBaseURL string) (*Tags, error) {
	t, err := NewTags(cfg)
	if err != nil {
		return nil, err
	}
	t.apiBaseURL = apiBaseURL
	t.downloadBaseURL = downloadBaseURL
	return t, nil
}

type ghTag struct {
	Name string `json:"name"`
}

// Locate implements Locator.
func (t *Tags) Locate(ctx context.Context) (*model.ReleaseRef, error) {
	url := fmt.Sprintf("%s/repos/%s/%s/tags?per_page=100", t.apiBaseURL, t.owner, t.repo)
	data, err := t.fetcher.Fetch(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("fetching tags for %s/%s: %w", t.owner, t.repo, err)
	}

	var tags []ghTag
	if err := json.Unmarshal(data, &tags); err != nil {
		return nil, fmt.Errorf("parsing tag listing: %w", err)
	}

	// Normalization also filters: tags without a key don't compete.
	tagByKey := map[string]string{}
	var keys []string
	for _, tag := range tags {
		key, ok := t.normalizeTag(tag.Name)
		if !ok {
			continue
		}
		tagByKey[key] = tag.Name
		keys = append(keys, key)
	}

	if len(keys) == 0 {
		return nil, fmt.Errorf("no comparable tag for %s/%s: %w", t.owner, t.repo, model.ErrNotFound)
	}

	best, err := version.SelectMax(keys, false)
	if err != nil {
		return nil, fmt.Errorf("selecting max tag: %w", err)
	}
	bestTag := tagByKey[best]

	t.logger.Debugf("Selected tag %q (key %q) out of %d comparable tags", bestTag, best, len(keys))

	downloadURL := fmt.Sprintf("%s/%s/%s/archive/refs/tags/%s.tar.gz", t.downloadBaseURL, t.owner, t.repo, bestTag)

	// The URL basename is just the tag, so pass an explicit filename to keep
	// release names of the "<project>-<version>" shape the pipeline expects.
	filename := fmt.Sprintf("%s-%s.tar.gz", t.repo, best)
	ref, err := t.resolver.Resolve(downloadURL, filename)
	if err != nil {
		return nil, fmt.Errorf("resolving release paths: %w", err)
	}

	return &ref, nil
}

// normalizeTag rewrites a tag into a comparable version key, or rejects it.
func (t *Tags) normalizeTag(tag string) (string, bool) {
	switch t.normalize {
	case model.TagNormalizeUnderscores:
		if !underscoreTagRegexp.MatchString(tag) {
			return "", false
		}
		tag = strings.ReplaceAll(tag, "_", ".")
	default:
		if !dottedTagRegexp.MatchString(tag) {
			return "", false
		}
	}

	return strings.TrimPrefix(tag, "v"), true
}
