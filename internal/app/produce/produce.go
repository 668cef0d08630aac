package produce

import (
	"context"
	"crypto/rand"
	"fmt"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/oklog/ulid/v2"

	"github.com/luamill/luamill/internal/checklist"
	"github.com/luamill/luamill/internal/copyrules"
	"github.com/luamill/luamill/internal/locate"
	"github.com/luamill/luamill/internal/log"
	"github.com/luamill/luamill/internal/model"
	"github.com/luamill/luamill/internal/storage"
	"github.com/luamill/luamill/internal/toolchain"
)

// LocatorFactory builds the locator for a project's upstream source.
type LocatorFactory interface {
	LocatorFor(p model.Project) (locate.Locator, error)
}

// Workspace manages release archives and build trees on disk.
type Workspace interface {
	Clean() error
	Materialize(ctx context.Context, ref model.ReleaseRef) error
}

// Packer archives finished outputs and optionally uploads them.
type Packer interface {
	PackAll(ctx context.Context) ([]string, error)
}

// ServiceConfig is the configuration of the produce Service.
type ServiceConfig struct {
	// Manifest lists the tracked projects. Required.
	Manifest model.Manifest
	// Locators builds per-project locators. Required.
	Locators LocatorFactory
	// Workspace materializes releases. Required.
	Workspace Workspace
	// Builder runs native builds. Required.
	Builder toolchain.Builder
	// Packer archives the outputs. Required.
	Packer Packer
	// RunRepository records runs for inspection. Optional, failures to record
	// are logged and never fail the run.
	RunRepository storage.RunRepository
	// SkipClean keeps the previous workspace contents at startup.
	SkipClean bool
	// Logger is optional, defaults to log.Noop.
	Logger log.Logger
}

func (c *ServiceConfig) defaults() error {
	if err := c.Manifest.Validate(); err != nil {
		return fmt.Errorf("invalid manifest: %w", err)
	}
	if c.Locators == nil {
		return fmt.Errorf("locator factory is required")
	}
	if c.Workspace == nil {
		return fmt.Errorf("workspace is required")
	}
	if c.Builder == nil {
		return fmt.Errorf("builder is required")
	}
	if c.Packer == nil {
		return fmt.Errorf("packer is required")
	}
	if c.Logger == nil {
		c.Logger = log.Noop
	}
	c.Logger = c.Logger.WithValues(log.Kv{"app-svc": "produce.Service"})

	return nil
}

// Report is the outcome of a production run. A run can complete with missing
// checklist artifacts, callers decide what that means for them.
type Report struct {
	RunID    string
	Releases []model.ResolvedRelease
	Verify   model.VerifyResult
	Archives []string
}

// Service resolves the latest release of every manifest project, builds them
// with the base runtime finishing before any extension starts, copies the
// declared outputs, verifies the checklists and packs whatever passed.
type Service struct {
	manifest  model.Manifest
	locators  LocatorFactory
	workspace Workspace
	builder   toolchain.Builder
	packer    Packer
	repo      storage.RunRepository
	skipClean bool
	logger    log.Logger
}

// NewService creates a new produce service.
func NewService(cfg ServiceConfig) (*Service, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &Service{
		manifest:  cfg.Manifest,
		locators:  cfg.Locators,
		workspace: cfg.Workspace,
		builder:   cfg.Builder,
		packer:    cfg.Packer,
		repo:      cfg.RunRepository,
		skipClean: cfg.SkipClean,
		logger:    cfg.Logger,
	}, nil
}

// Run executes one full production run.
func (s *Service) Run(ctx context.Context) (*Report, error) {
	run := model.Run{
		ID:        ulid.MustNew(ulid.Timestamp(time.Now()), rand.Reader).String(),
		StartedAt: time.Now().UTC(),
	}
	logger := s.logger.WithValues(log.Kv{"run-id": run.ID})
	logger.Infof("Starting production run")

	if !s.skipClean {
		if err := s.workspace.Clean(); err != nil {
			return nil, fmt.Errorf("could not clean workspace: %w", err)
		}
	}

	base, err := s.manifest.Runtime()
	if err != nil {
		return nil, err
	}
	extensions := s.manifest.Extensions()

	// The base runtime is materialized and its build started first, then the
	// extensions are materialized while it compiles. Extension builds must not
	// start until the base build has succeeded, their build scripts link
	// against the freshly built runtime.
	baseRef, err := s.materialize(ctx, *base, logger)
	if err != nil {
		return nil, fmt.Errorf("base runtime %q: %w", base.Name, err)
	}
	run.Releases = append(run.Releases, resolvedRelease(*base, baseRef))

	baseBuild, err := s.builder.Start(ctx, base.Name, baseRef.BuildPath, base.BuildScript)
	if err != nil {
		return nil, fmt.Errorf("could not start base build %q: %w", base.Name, err)
	}

	refs := map[string]*model.ReleaseRef{base.Name: baseRef}
	for _, p := range extensions {
		ref, err := s.materialize(ctx, p, logger)
		if err != nil {
			return nil, fmt.Errorf("extension %q: %w", p.Name, err)
		}
		refs[p.Name] = ref
		run.Releases = append(run.Releases, resolvedRelease(p, ref))
	}

	s.recordStart(ctx, run, logger)

	if err := baseBuild.Await(); err != nil {
		s.recordFinish(ctx, run, false, logger)
		return nil, fmt.Errorf("base build %q: %w", base.Name, err)
	}
	logger.WithValues(log.Kv{"project": base.Name}).Infof("Base runtime built")

	builds := make(map[string]toolchain.Handle, len(extensions))
	for _, p := range extensions {
		h, err := s.builder.Start(ctx, p.Name, refs[p.Name].BuildPath, p.BuildScript)
		if err != nil {
			s.recordFinish(ctx, run, false, logger)
			return nil, fmt.Errorf("could not start extension build %q: %w", p.Name, err)
		}
		builds[p.Name] = h
	}

	var buildErr error
	for _, p := range extensions {
		if err := builds[p.Name].Await(); err != nil {
			buildErr = multierror.Append(buildErr, fmt.Errorf("extension %q: %w", p.Name, err))
		}
	}
	if buildErr != nil {
		s.recordFinish(ctx, run, false, logger)
		return nil, buildErr
	}

	if err := s.copyOutputs(refs, logger); err != nil {
		s.recordFinish(ctx, run, false, logger)
		return nil, err
	}

	// A run with missing checklist artifacts still completes, the report
	// carries the misses and the caller decides the outcome.
	verify, verifyErr := s.verify(refs, logger)
	run.Missing = verify.Missing

	var archives []string
	if verify.OK() {
		archives, err = s.packer.PackAll(ctx)
		if err != nil {
			s.recordFinish(ctx, run, false, logger)
			return nil, fmt.Errorf("could not pack outputs: %w", err)
		}
	} else {
		logger.Warningf("Checklist verification failed, skipping packaging: %s", verifyErr)
	}

	s.recordFinish(ctx, run, verify.OK(), logger)
	logger.WithValues(log.Kv{"missing": len(verify.Missing), "archives": len(archives)}).Infof("Production run finished")

	return &Report{
		RunID:    run.ID,
		Releases: run.Releases,
		Verify:   verify,
		Archives: archives,
	}, nil
}

func (s *Service) materialize(ctx context.Context, p model.Project, logger log.Logger) (*model.ReleaseRef, error) {
	loc, err := s.locators.LocatorFor(p)
	if err != nil {
		return nil, fmt.Errorf("could not build locator: %w", err)
	}

	ref, err := loc.Locate(ctx)
	if err != nil {
		return nil, fmt.Errorf("could not locate latest release: %w", err)
	}
	logger.WithValues(log.Kv{"project": p.Name, "release": ref.Name}).Infof("Latest release located")

	if err := s.workspace.Materialize(ctx, *ref); err != nil {
		return nil, fmt.Errorf("could not materialize release %q: %w", ref.Name, err)
	}

	return ref, nil
}

func (s *Service) copyOutputs(refs map[string]*model.ReleaseRef, logger log.Logger) error {
	for _, p := range s.manifest.Projects {
		rules, err := copyrules.Parse(p.CopyRules)
		if err != nil {
			return fmt.Errorf("invalid copy rules for %q: %w", p.Name, err)
		}

		ref := refs[p.Name]
		plog := logger.WithValues(log.Kv{"project": p.Name})
		if err := copyrules.Apply(rules, ref.BuildPath, ref.OutputPath, plog); err != nil {
			return fmt.Errorf("could not copy outputs for %q: %w", p.Name, err)
		}
	}

	return nil
}

func (s *Service) verify(refs map[string]*model.ReleaseRef, logger log.Logger) (model.VerifyResult, error) {
	items := make([]checklist.Item, 0, len(s.manifest.Projects))
	for _, p := range s.manifest.Projects {
		items = append(items, checklist.Item{
			Project:    p.Name,
			OutputPath: refs[p.Name].OutputPath,
			Files:      p.Checklist,
		})
	}

	return checklist.Verify(items, logger)
}

// The run ledger is observational, storage errors never fail a run.
func (s *Service) recordStart(ctx context.Context, run model.Run, logger log.Logger) {
	if s.repo == nil {
		return
	}
	if err := s.repo.CreateRun(ctx, run); err != nil {
		logger.Warningf("Could not record run start: %s", err)
	}
}

func (s *Service) recordFinish(ctx context.Context, run model.Run, success bool, logger log.Logger) {
	if s.repo == nil {
		return
	}
	now := time.Now().UTC()
	run.FinishedAt = &now
	run.Success = success
	if err := s.repo.FinishRun(ctx, run); err != nil {
		logger.Warningf("Could not record run finish: %s", err)
	}
}

func resolvedRelease(p model.Project, ref *model.ReleaseRef) model.ResolvedRelease {
	return model.ResolvedRelease{
		Project: p.Name,
		Release: ref.Name,
		URL:     ref.URL,
	}
}
