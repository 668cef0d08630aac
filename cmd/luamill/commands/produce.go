package commands

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/alecthomas/kingpin/v2"

	"github.com/luamill/luamill/internal/app/produce"
	"github.com/luamill/luamill/internal/conventions"
	"github.com/luamill/luamill/internal/fetch"
	"github.com/luamill/luamill/internal/locate"
	"github.com/luamill/luamill/internal/log"
	"github.com/luamill/luamill/internal/model"
	"github.com/luamill/luamill/internal/pack"
	"github.com/luamill/luamill/internal/storage"
	storageio "github.com/luamill/luamill/internal/storage/io"
	"github.com/luamill/luamill/internal/storage/sqlite"
	"github.com/luamill/luamill/internal/toolchain"
)

type ProduceCommand struct {
	Cmd     *kingpin.CmdClause
	rootCmd *RootCommand

	toolchainRoot string
	uploadDest    string
	skipClean     bool
}

// NewProduceCommand returns the produce command.
func NewProduceCommand(rootCmd *RootCommand, app *kingpin.Application) *ProduceCommand {
	c := &ProduceCommand{rootCmd: rootCmd}

	c.Cmd = app.Command("produce", "Resolve, build, verify and pack the latest release of every tracked project.")

	c.Cmd.Flag("toolchain-root", "Toolchain installation root. Discovered through the probe chain when empty.").Envar("LUAMILL_TOOLCHAIN_ROOT").StringVar(&c.toolchainRoot)
	c.Cmd.Flag("upload-dest", "scp destination (host:path) for the packed archives. No upload when empty.").Envar("LUAMILL_UPLOAD_DEST").StringVar(&c.uploadDest)
	c.Cmd.Flag("skip-clean", "Keep the previous workspace contents at startup.").BoolVar(&c.skipClean)

	return c
}

func (c ProduceCommand) Name() string { return c.Cmd.FullCommand() }

func (c ProduceCommand) Run(ctx context.Context) error {
	logger := c.rootCmd.Logger
	dataDir := c.rootCmd.DataDir

	manifest, err := loadManifest(ctx, c.rootCmd)
	if err != nil {
		return fmt.Errorf("could not load manifest: %w", err)
	}

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

	locators, err := locate.NewFactory(locate.FactoryConfig{
		Fetcher:  fetcher,
		Resolver: ws,
		Logger:   logger,
	})
	if err != nil {
		return fmt.Errorf("could not create locator factory: %w", err)
	}

	toolchainRoot, err := toolchain.Locate(c.toolchainRoot, toolchain.DefaultProbes(), logger)
	if err != nil {
		return fmt.Errorf("could not locate toolchain: %w", err)
	}

	// Build output goes to stdout and to the run log inside the data dir.
	buildOutput := c.rootCmd.Stdout
	logPath := filepath.Join(dataDir, conventions.RunLogFile)
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return fmt.Errorf("could not create data dir: %w", err)
	}
	logFile, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		logger.Warningf("Could not open run log %s: %s", logPath, err)
	} else {
		defer logFile.Close()
		buildOutput = io.MultiWriter(c.rootCmd.Stdout, logFile)
	}

	builder, err := toolchain.NewExecBuilder(toolchain.BuilderConfig{
		ToolchainRoot: toolchainRoot,
		Output:        buildOutput,
		Logger:        logger,
	})
	if err != nil {
		return fmt.Errorf("could not create builder: %w", err)
	}

	packer, err := newPacker(dataDir, c.uploadDest, logger)
	if err != nil {
		return err
	}

	// The ledger is observational, produce runs fine without it.
	var runRepo storage.RunRepository
	repo, err := sqlite.NewRepository(ctx, sqlite.RepositoryConfig{
		DBPath: c.rootCmd.LedgerDBPath(),
		Logger: logger,
	})
	if err != nil {
		logger.Warningf("Run ledger unavailable: %s", err)
	} else {
		defer repo.Close()
		runRepo = repo
	}

	svc, err := produce.NewService(produce.ServiceConfig{
		Manifest:      manifest,
		Locators:      locators,
		Workspace:     ws,
		Builder:       builder,
		Packer:        packer,
		RunRepository: runRepo,
		SkipClean:     c.skipClean,
		Logger:        logger,
	})
	if err != nil {
		return fmt.Errorf("could not create produce service: %w", err)
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

// loadManifest loads the manifest file behind --manifest, or the embedded
// default when the flag is empty.
func loadManifest(ctx context.Context, rootCmd *RootCommand) (model.Manifest, error) {
	if rootCmd.ManifestPath == "" {
		return storageio.DefaultManifest()
	}

	abs, err := filepath.Abs(rootCmd.ManifestPath)
	if err != nil {
		return model.Manifest{}, fmt.Errorf("invalid manifest path %q: %w", rootCmd.ManifestPath, err)
	}

	repo := storageio.NewManifestYAMLRepository(os.DirFS(filepath.Dir(abs)))
	return repo.GetManifest(ctx, filepath.Base(abs))
}

// newPacker builds the packer, wiring an scp uploader when a destination is
// configured.
func newPacker(dataDir, uploadDest string, logger log.Logger) (*pack.Packer, error) {
	var uploader pack.Uploader
	if uploadDest != "" {
		scp, err := pack.NewScpUploader(pack.ScpUploaderConfig{
			Dest:   uploadDest,
			Logger: logger,
		})
		if err != nil {
			return nil, fmt.Errorf("could not create uploader: %w", err)
		}
		uploader = scp
	}

	packer, err := pack.NewPacker(pack.PackerConfig{
		BinariesDir: conventions.BinariesPath(dataDir),
		Uploader:    uploader,
		Logger:      logger,
	})
	if err != nil {
		return nil, fmt.Errorf("could not create packer: %w", err)
	}

	return packer, nil
}
