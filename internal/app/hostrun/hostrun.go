// Package hostrun runs the producer inside an isolated machine and does the
// trust-sensitive steps (verification, packaging, upload) from the host side.
package hostrun

import (
	"context"
	"fmt"

	"github.com/luamill/luamill/internal/checklist"
	"github.com/luamill/luamill/internal/conventions"
	"github.com/luamill/luamill/internal/log"
	"github.com/luamill/luamill/internal/model"
	"github.com/luamill/luamill/internal/storage"
)

// Machine runs one command to completion in an isolated environment.
type Machine interface {
	Run(ctx context.Context, spec model.MachineSpec) (int64, error)
}

// Workspace manages release archives and build trees on disk.
type Workspace interface {
	Clean() error
}

// Packer archives finished outputs and optionally uploads them.
type Packer interface {
	PackAll(ctx context.Context) ([]string, error)
}

// ServiceConfig is the configuration of the hostrun Service.
type ServiceConfig struct {
	// Manifest lists the tracked projects. Required.
	Manifest model.Manifest
	// Machine executes the producer in isolation. Required.
	Machine Machine
	// MachineSpec describes the machine the producer runs in. Required.
	MachineSpec model.MachineSpec
	// Workspace is the host view of the shared data dir. Required.
	Workspace Workspace
	// Packer archives and uploads from the host side. Required.
	Packer Packer
	// RunRepository reads the run the machine recorded in the shared ledger.
	// Required, host mode cannot verify without it.
	RunRepository storage.RunRepository
	// DataDir is the host data directory the machine bind-mounts.
	DataDir string
	// Logger is optional, defaults to log.Noop.
	Logger log.Logger
}

func (c *ServiceConfig) defaults() error {
	if err := c.Manifest.Validate(); err != nil {
		return fmt.Errorf("invalid manifest: %w", err)
	}
	if c.Machine == nil {
		return fmt.Errorf("machine is required")
	}
	if err := c.MachineSpec.Validate(); err != nil {
		return fmt.Errorf("invalid machine spec: %w", err)
	}
	if c.Workspace == nil {
		return fmt.Errorf("workspace is required")
	}
	if c.Packer == nil {
		return fmt.Errorf("packer is required")
	}
	if c.RunRepository == nil {
		return fmt.Errorf("run repository is required")
	}
	if c.DataDir == "" {
		return fmt.Errorf("data dir is required")
	}
	if c.Logger == nil {
		c.Logger = log.Noop
	}
	c.Logger = c.Logger.WithValues(log.Kv{"app-svc": "hostrun.Service"})

	return nil
}

// Report is the outcome of a host-mode run.
type Report struct {
	RunID    string
	Releases []model.ResolvedRelease
	Verify   model.VerifyResult
	Archives []string
}

// Service clears the workspace, runs the producer inside the machine against
// the bind-mounted data dir, then verifies, packs and uploads on the host.
type Service struct {
	manifest model.Manifest
	machine  Machine
	spec     model.MachineSpec
	ws       Workspace
	packer   Packer
	repo     storage.RunRepository
	dataDir  string
	logger   log.Logger
}

// NewService creates a new hostrun service.
func NewService(cfg ServiceConfig) (*Service, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &Service{
		manifest: cfg.Manifest,
		machine:  cfg.Machine,
		spec:     cfg.MachineSpec,
		ws:       cfg.Workspace,
		packer:   cfg.Packer,
		repo:     cfg.RunRepository,
		dataDir:  cfg.DataDir,
		logger:   cfg.Logger,
	}, nil
}

// Run executes one host-mode run.
func (s *Service) Run(ctx context.Context) (*Report, error) {
	s.logger.Infof("Starting host run")

	if err := s.ws.Clean(); err != nil {
		return nil, fmt.Errorf("could not clean workspace: %w", err)
	}

	code, err := s.machine.Run(ctx, s.spec)
	if err != nil {
		return nil, fmt.Errorf("machine run failed: %w", err)
	}
	if code != 0 {
		return nil, fmt.Errorf("producer exited with code %d: %w", code, model.ErrBuildFailed)
	}

	run, err := s.repo.LatestRun(ctx)
	if err != nil {
		return nil, fmt.Errorf("could not read producer run from ledger: %w", err)
	}
	logger := s.logger.WithValues(log.Kv{"run-id": run.ID})
	logger.Infof("Producer finished, verifying from the host")

	verify, verifyErr := s.verify(run.Releases, logger)

	var archives []string
	if verify.OK() {
		archives, err = s.packer.PackAll(ctx)
		if err != nil {
			return nil, fmt.Errorf("could not pack outputs: %w", err)
		}
	} else {
		logger.Warningf("Host-side verification failed, skipping packaging: %s", verifyErr)
	}

	logger.WithValues(log.Kv{"missing": len(verify.Missing), "archives": len(archives)}).Infof("Host run finished")

	return &Report{
		RunID:    run.ID,
		Releases: run.Releases,
		Verify:   verify,
		Archives: archives,
	}, nil
}

// verify re-checks every project checklist against the bind-mounted output
// trees. The machine already verified, the host does not take its word for it.
func (s *Service) verify(releases []model.ResolvedRelease, logger log.Logger) (model.VerifyResult, error) {
	byProject := make(map[string]model.ResolvedRelease, len(releases))
	for _, rel := range releases {
		byProject[rel.Project] = rel
	}

	var result model.VerifyResult
	items := make([]checklist.Item, 0, len(s.manifest.Projects))
	for _, p := range s.manifest.Projects {
		rel, ok := byProject[p.Name]
		if !ok {
			logger.Warningf("No release recorded for project %s", p.Name)
			result.Missing = append(result.Missing, fmt.Sprintf("%s: no release recorded", p.Name))
			continue
		}

		items = append(items, checklist.Item{
			Project:    p.Name,
			OutputPath: conventions.ProjectOutputPath(s.dataDir, rel.Release),
			Files:      p.Checklist,
		})
	}

	verified, err := checklist.Verify(items, logger)
	result.Missing = append(result.Missing, verified.Missing...)

	return result, err
}
