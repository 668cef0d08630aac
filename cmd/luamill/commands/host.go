package commands

import (
	"context"
	"fmt"

	"github.com/alecthomas/kingpin/v2"

	"github.com/luamill/luamill/internal/app/hostrun"
	"github.com/luamill/luamill/internal/conventions"
	"github.com/luamill/luamill/internal/fetch"
	"github.com/luamill/luamill/internal/machine/docker"
	"github.com/luamill/luamill/internal/model"
	"github.com/luamill/luamill/internal/storage/sqlite"
)

// machineDataDir is where the data dir is bind-mounted inside the machine.
const machineDataDir = "/var/lib/luamill"

type HostCommand struct {
	Cmd     *kingpin.CmdClause
	rootCmd *RootCommand

	image      string
	uploadDest string
	auto       bool
}

// NewHostCommand returns the host command.
func NewHostCommand(rootCmd *RootCommand, app *kingpin.Application) *HostCommand {
	c := &HostCommand{rootCmd: rootCmd}

	c.Cmd = app.Command("host", "Run the producer inside an isolated Docker machine, then verify, pack and upload from the host.")

	c.Cmd.Flag("image", "Container image with the vendor toolchain preinstalled.").Envar("LUAMILL_IMAGE").Required().StringVar(&c.image)
	c.Cmd.Flag("upload-dest", "scp destination (host:path) for the packed archives. No upload when empty.").Envar("LUAMILL_UPLOAD_DEST").StringVar(&c.uploadDest)
	c.Cmd.Flag("auto", "Unattended run: power the machine down when the producer finishes.").BoolVar(&c.auto)

	return c
}

func (c HostCommand) Name() string { return c.Cmd.FullCommand() }

func (c HostCommand) Run(ctx context.Context) error {
	logger := c.rootCmd.Logger
	dataDir := c.rootCmd.DataDir

	manifest, err := loadManifest(ctx, c.rootCmd)
	if err != nil {
		return fmt.Errorf("could not load manifest: %w", err)
	}

	// Host-side view of the shared data dir. The fetcher and extractor are
	// never used here, the machine does the downloading and building.
	fetcher, err := fetch.NewHTTPFetcher(fetch.HTTPFetcherConfig{Logger: logger})
	if err != nil {
		return fmt.Errorf("could not create fetcher: %w", err)
	}
	ws, err := fetch.NewWorkspace(fetch.WorkspaceConfig{
		ArchivesDir: conventions.ArchivesPath(dataDir),
		BuildsDir:   conventions.BuildsPath(dataDir),
		BinariesDir: conventions.BinariesPath(dataDir),
		Fetcher:     fetcher,
		Extractor:   fetch.NewExecExtractor(),
		Logger:      logger,
	})
	if err != nil {
		return fmt.Errorf("could not create workspace: %w", err)
	}

	machine, err := docker.NewMachine(docker.MachineConfig{
		Output: c.rootCmd.Stdout,
		Logger: logger,
	})
	if err != nil {
		return fmt.Errorf("could not create machine: %w", err)
	}

	packer, err := newPacker(dataDir, c.uploadDest, logger)
	if err != nil {
		return err
	}

	repo, err := sqlite.NewRepository(ctx, sqlite.RepositoryConfig{
		DBPath: c.rootCmd.LedgerDBPath(),
		Logger: logger,
	})
	if err != nil {
		return fmt.Errorf("could not open run ledger: %w", err)
	}
	defer repo.Close()

	// The producer inside the machine writes through the bind mount, the
	// host already cleaned the workspace.
	spec := model.MachineSpec{
		Image: c.image,
		Cmd: []string{
			"luamill",
			"--data-dir", machineDataDir,
			"produce",
			"--skip-clean",
		},
		Binds:      []string{fmt.Sprintf("%s:%s", dataDir, machineDataDir)},
		AutoRemove: c.auto,
	}

	svc, err := hostrun.NewService(hostrun.ServiceConfig{
		Manifest:      manifest,
		Machine:       machine,
		MachineSpec:   spec,
		Workspace:     ws,
		Packer:        packer,
		RunRepository: repo,
		DataDir:       dataDir,
		Logger:        logger,
	})
	if err != nil {
		return fmt.Errorf("could not create hostrun service: %w", err)
	}

	report, err := svc.Run(ctx)
	if err != nil {
		return err
	}

	printReport(c.rootCmd.Stdout, report.Releases, report.Verify, report.Archives)

	if !report.Verify.OK() {
		return fmt.Errorf("%d checklist artifacts missing: %w", len(report.Verify.Missing), model.ErrMissingArtifact)
	}

	return nil
}
