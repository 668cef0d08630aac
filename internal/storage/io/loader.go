package io

import (
	"context"
	_ "embed"
	"fmt"
	"io/fs"
	"regexp"

	"gopkg.in/yaml.v3"

	"github.com/luamill/luamill/internal/model"
)

//go:embed default.yaml
var defaultManifest []byte

// ManifestYAMLRepository loads tracked-project manifests from YAML files.
type ManifestYAMLRepository struct {
	fs fs.FS
}

// NewManifestYAMLRepository creates a new YAML manifest repository.
func NewManifestYAMLRepository(filesystem fs.FS) *ManifestYAMLRepository {
	return &ManifestYAMLRepository{fs: filesystem}
}

// GetManifest loads a manifest from a YAML file and returns a validated domain model.
func (r *ManifestYAMLRepository) GetManifest(ctx context.Context, path string) (model.Manifest, error) {
	data, err := fs.ReadFile(r.fs, path)
	if err != nil {
		return model.Manifest{}, fmt.Errorf("reading manifest file: %w", err)
	}

	if ctx.Err() != nil {
		return model.Manifest{}, ctx.Err()
	}

	return parseManifest(data)
}

// DefaultManifest returns the embedded default manifest.
func DefaultManifest() (model.Manifest, error) {
	return parseManifest(defaultManifest)
}

func parseManifest(data []byte) (model.Manifest, error) {
	var m manifestYAML
	if err := yaml.Unmarshal(data, &m); err != nil {
		return model.Manifest{}, fmt.Errorf("parsing YAML: %w", err)
	}

	manifest, err := m.toModel()
	if err != nil {
		return model.Manifest{}, fmt.Errorf("invalid manifest: %w", err)
	}

	if err := manifest.Validate(); err != nil {
		return model.Manifest{}, fmt.Errorf("invalid manifest: %w", err)
	}

	return manifest, nil
}

// manifestYAML represents the YAML structure of the tracked-project manifest.
type manifestYAML struct {
	Projects []projectYAML `yaml:"projects"`
}

type projectYAML struct {
	Name        string     `yaml:"name"`
	Kind        string     `yaml:"kind"`
	Source      sourceYAML `yaml:"source"`
	BuildScript string     `yaml:"build_script"`
	CopyRules   string     `yaml:"copy_rules"`
	Checklist   []string   `yaml:"checklist"`
}

type sourceYAML struct {
	FlatIndex  *flatIndexYAML  `yaml:"flat_index,omitempty"`
	SharedPage *sharedPageYAML `yaml:"shared_page,omitempty"`
	Homepage   *homepageYAML   `yaml:"homepage,omitempty"`
	Tags       *tagsYAML       `yaml:"tags,omitempty"`
}

type flatIndexYAML struct {
	URL     string `yaml:"url"`
	Pattern string `yaml:"pattern"`
}

type sharedPageYAML struct {
	URL     string       `yaml:"url"`
	Pattern string       `yaml:"pattern"`
	Buckets []bucketYAML `yaml:"buckets"`
	Bucket  string       `yaml:"bucket"`
}

type bucketYAML struct {
	Name   string `yaml:"name"`
	Prefix string `yaml:"prefix"`
}

type homepageYAML struct {
	URL     string `yaml:"url"`
	Pattern string `yaml:"pattern"`
}

type tagsYAML struct {
	Owner     string `yaml:"owner"`
	Repo      string `yaml:"repo"`
	Normalize string `yaml:"normalize"`
}

func (m manifestYAML) toModel() (model.Manifest, error) {
	manifest := model.Manifest{Projects: make([]model.Project, 0, len(m.Projects))}

	for _, p := range m.Projects {
		project, err := p.toModel()
		if err != nil {
			return model.Manifest{}, fmt.Errorf("project %q: %w", p.Name, err)
		}
		manifest.Projects = append(manifest.Projects, project)
	}

	return manifest, nil
}

func (p projectYAML) toModel() (model.Project, error) {
	project := model.Project{
		Name:        p.Name,
		Kind:        model.ProjectKind(p.Kind),
		BuildScript: p.BuildScript,
		CopyRules:   p.CopyRules,
		Checklist:   p.Checklist,
	}

	if p.Source.FlatIndex != nil {
		pattern, err := regexp.Compile(p.Source.FlatIndex.Pattern)
		if err != nil {
			return model.Project{}, fmt.Errorf("flat_index pattern: %w", err)
		}
		project.Source.FlatIndex = &model.FlatIndexSource{
			URL:     p.Source.FlatIndex.URL,
			Pattern: pattern,
		}
	}

	if p.Source.SharedPage != nil {
		pattern, err := regexp.Compile(p.Source.SharedPage.Pattern)
		if err != nil {
			return model.Project{}, fmt.Errorf("shared_page pattern: %w", err)
		}
		buckets := make([]model.PageBucket, 0, len(p.Source.SharedPage.Buckets))
		for _, b := range p.Source.SharedPage.Buckets {
			buckets = append(buckets, model.PageBucket{Name: b.Name, Prefix: b.Prefix})
		}
		project.Source.SharedPage = &model.SharedPageSource{
			URL:     p.Source.SharedPage.URL,
			Pattern: pattern,
			Buckets: buckets,
			Bucket:  p.Source.SharedPage.Bucket,
		}
	}

	if p.Source.Homepage != nil {
		pattern, err := regexp.Compile(p.Source.Homepage.Pattern)
		if err != nil {
			return model.Project{}, fmt.Errorf("homepage pattern: %w", err)
		}
		project.Source.Homepage = &model.HomepageSource{
			URL:     p.Source.Homepage.URL,
			Pattern: pattern,
		}
	}

	if p.Source.Tags != nil {
		project.Source.Tags = &model.TagsSource{
			Owner:     p.Source.Tags.Owner,
			Repo:      p.Source.Tags.Repo,
			Normalize: model.TagNormalization(p.Source.Tags.Normalize),
		}
	}

	return project, nil
}
