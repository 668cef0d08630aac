package model

import (
	"fmt"
	"regexp"
)

// ProjectKind tells how a project participates in the build dependency graph.
type ProjectKind string

const (
	// ProjectKindRuntime is the base runtime. Its build produces the link
	// library every extension build needs, so it must finish first.
	ProjectKindRuntime ProjectKind = "runtime"
	// ProjectKindExtension is a native extension module linked against the
	// runtime's link library.
	ProjectKindExtension ProjectKind = "extension"
)

// TagNormalization selects how source-control tags are rewritten before
// version comparison.
type TagNormalization string

const (
	// TagNormalizeDots keeps tags as-is, accepting only dotted release tags.
	TagNormalizeDots TagNormalization = "dots"
	// TagNormalizeUnderscores rewrites underscore-delimited tags to dotted
	// form so early and late tags of the same project order consistently.
	TagNormalizeUnderscores TagNormalization = "underscores_to_dots"
)

// FlatIndexSource locates releases on a plain directory-listing page.
type FlatIndexSource struct {
	URL     string
	Pattern *regexp.Regexp
}

// SharedPageSource locates releases on a download page shared by several
// sibling projects. Every anchor matching Pattern must fall into exactly one
// bucket by filename prefix.
type SharedPageSource struct {
	URL     string
	Pattern *regexp.Regexp
	Buckets []PageBucket
	// Bucket is the bucket this project consumes from the shared page.
	Bucket string
}

// PageBucket classifies shared-page candidates by filename prefix.
type PageBucket struct {
	Name   string
	Prefix string
}

// HomepageSource locates the single release advertised on a project homepage.
type HomepageSource struct {
	URL     string
	Pattern *regexp.Regexp
}

// TagsSource locates releases through a hosted source-control tag listing API.
type TagsSource struct {
	Owner     string
	Repo      string
	Normalize TagNormalization
}

// ProjectSource is the upstream location of a project. Exactly one of the
// fields must be set.
type ProjectSource struct {
	FlatIndex  *FlatIndexSource
	SharedPage *SharedPageSource
	Homepage   *HomepageSource
	Tags       *TagsSource
}

// Project is one tracked upstream project.
type Project struct {
	Name        string
	Kind        ProjectKind
	Source      ProjectSource
	BuildScript string
	CopyRules   string
	Checklist   []string
}

// Validate checks the project definition is usable.
func (p Project) Validate() error {
	if p.Name == "" {
		return fmt.Errorf("project name is required: %w", ErrNotValid)
	}

	if p.Kind != ProjectKindRuntime && p.Kind != ProjectKindExtension {
		return fmt.Errorf("unknown project kind %q: %w", p.Kind, ErrNotValid)
	}

	sources := 0
	if p.Source.FlatIndex != nil {
		sources++
	}
	if p.Source.SharedPage != nil {
		sources++
	}
	if p.Source.Homepage != nil {
		sources++
	}
	if p.Source.Tags != nil {
		sources++
	}
	if sources != 1 {
		return fmt.Errorf("project %q must have exactly one source, got %d: %w", p.Name, sources, ErrNotValid)
	}

	if p.BuildScript == "" {
		return fmt.Errorf("project %q build script is required: %w", p.Name, ErrNotValid)
	}

	if len(p.Checklist) == 0 {
		return fmt.Errorf("project %q checklist is required: %w", p.Name, ErrNotValid)
	}

	return nil
}

// Manifest is the full set of tracked projects for a run.
type Manifest struct {
	Projects []Project
}

// Runtime returns the single base-runtime project.
func (m Manifest) Runtime() (*Project, error) {
	var runtime *Project
	for i := range m.Projects {
		if m.Projects[i].Kind != ProjectKindRuntime {
			continue
		}
		if runtime != nil {
			return nil, fmt.Errorf("more than one runtime project: %w", ErrNotValid)
		}
		runtime = &m.Projects[i]
	}

	if runtime == nil {
		return nil, fmt.Errorf("no runtime project: %w", ErrNotValid)
	}

	return runtime, nil
}

// Extensions returns every extension project, in manifest order.
func (m Manifest) Extensions() []Project {
	exts := make([]Project, 0, len(m.Projects))
	for _, p := range m.Projects {
		if p.Kind == ProjectKindExtension {
			exts = append(exts, p)
		}
	}
	return exts
}

// Validate checks the manifest as a whole.
func (m Manifest) Validate() error {
	if len(m.Projects) == 0 {
		return fmt.Errorf("at least one project is required: %w", ErrNotValid)
	}

	seen := map[string]bool{}
	for _, p := range m.Projects {
		if err := p.Validate(); err != nil {
			return err
		}
		if seen[p.Name] {
			return fmt.Errorf("duplicated project %q: %w", p.Name, ErrNotValid)
		}
		seen[p.Name] = true
	}

	if _, err := m.Runtime(); err != nil {
		return err
	}

	return nil
}
