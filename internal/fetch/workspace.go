package fetch

import (
	"compress/gzip"
	"context"
	"fmt"
	"io"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"github.com/luamill/luamill/internal/log"
	"github.com/luamill/luamill/internal/model"
	"github.com/luamill/luamill/internal/version"
)

// WorkspaceConfig is the configuration for the fetch/unpack workspace.
type WorkspaceConfig struct {
	// ArchivesDir caches downloaded archives across runs. Required.
	ArchivesDir string
	// BuildsDir holds the extraction trees. Required.
	BuildsDir string
	// BinariesDir holds the per-release output trees. Required.
	BinariesDir string
	// Fetcher downloads archives. Required.
	Fetcher Fetcher
	// Extractor unpacks archives. Required.
	Extractor Extractor
	// Logger is optional, defaults to log.Noop.
	Logger log.Logger
}

func (c *WorkspaceConfig) defaults() error {
	if c.ArchivesDir == "" || c.BuildsDir == "" || c.BinariesDir == "" {
		return fmt.Errorf("archives, builds and binaries dirs are required")
	}
	if c.Fetcher == nil {
		return fmt.Errorf("fetcher is required")
	}
	if c.Extractor == nil {
		return fmt.Errorf("extractor is required")
	}
	if c.Logger == nil {
		c.Logger = log.Noop
	}
	c.Logger = c.Logger.WithValues(log.Kv{"svc": "fetch.Workspace"})
	return nil
}

// Workspace derives canonical local paths for releases and materializes them:
// idempotent download into the archives cache, extraction into the builds
// tree, and normalization of the extracted directory name.
type Workspace struct {
	archivesDir string
	buildsDir   string
	binariesDir string
	fetcher     Fetcher
	extractor   Extractor
	logger      log.Logger
}

// NewWorkspace creates a new workspace.
func NewWorkspace(cfg WorkspaceConfig) (*Workspace, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &Workspace{
		archivesDir: cfg.ArchivesDir,
		buildsDir:   cfg.BuildsDir,
		binariesDir: cfg.BinariesDir,
		fetcher:     cfg.Fetcher,
		extractor:   cfg.Extractor,
		logger:      cfg.Logger,
	}, nil
}

// Clean removes and recreates the builds and binaries trees. The archives
// cache is never wiped.
func (w *Workspace) Clean() error {
	for _, dir := range []string{w.buildsDir, w.binariesDir} {
		if err := os.RemoveAll(dir); err != nil {
			return fmt.Errorf("removing %s: %w", dir, err)
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("creating %s: %w", dir, err)
		}
	}

	if err := os.MkdirAll(w.archivesDir, 0o755); err != nil {
		return fmt.Errorf("creating %s: %w", w.archivesDir, err)
	}

	return nil
}

// Resolve derives the canonical release name and local paths for a download
// URL. Pure path derivation, no I/O. An empty filename means derive it from
// the URL path.
func (w *Workspace) Resolve(rawURL string, filename string) (model.ReleaseRef, error) {
	if filename == "" {
		u, err := url.Parse(rawURL)
		if err != nil {
			return model.ReleaseRef{}, fmt.Errorf("parsing url %q: %w", rawURL, err)
		}
		filename = path.Base(u.Path)
	}

	if filename == "" || filename == "." || filename == "/" {
		return model.ReleaseRef{}, fmt.Errorf("no usable filename in %q: %w", rawURL, model.ErrNotValid)
	}

	name := strings.ToLower(version.StripExtensions(filename))

	return model.ReleaseRef{
		URL:         rawURL,
		Name:        name,
		ArchivePath: filepath.Join(w.archivesDir, filename),
		BuildPath:   filepath.Join(w.buildsDir, name),
		OutputPath:  filepath.Join(w.binariesDir, name),
	}, nil
}

// Materialize downloads the release archive (skipping the download when the
// archive is already cached) and extracts it so that ref.BuildPath exists.
//
// The extracted top-level directory name cannot be predicted from the archive
// filename (upstream archives differ in casing and punctuation), so the
// builds root is snapshotted before and after extraction: exactly one new
// entry must appear, and it is renamed to the canonical release name.
func (w *Workspace) Materialize(ctx context.Context, ref model.ReleaseRef) error {
	if err := w.download(ctx, ref); err != nil {
		return err
	}

	format, gzipped, err := formatFor(filepath.Base(ref.ArchivePath))
	if err != nil {
		return err
	}

	archivePath := ref.ArchivePath
	if gzipped {
		// The extraction utility consumes a plain tar, so decompress to an
		// intermediate file first. The cached original stays untouched.
		archivePath = filepath.Join(w.buildsDir, ref.Name+".tar")
		if err := w.gunzip(ref.ArchivePath, archivePath); err != nil {
			return fmt.Errorf("decompressing %s: %w", ref.ArchivePath, err)
		}
		defer os.Remove(archivePath)
	}

	before, err := sortedEntries(w.buildsDir)
	if err != nil {
		return fmt.Errorf("listing builds dir: %w", err)
	}

	if err := w.extractor.Extract(ctx, format, archivePath, w.buildsDir); err != nil {
		return err
	}

	after, err := sortedEntries(w.buildsDir)
	if err != nil {
		return fmt.Errorf("listing builds dir: %w", err)
	}

	// The intermediate tar shows up in the after listing, ignore it.
	if gzipped {
		after = remove(after, filepath.Base(archivePath))
	}

	newEntries := diffEntries(before, after)
	if len(newEntries) != 1 {
		return fmt.Errorf("extraction of %s produced %d new entries, want 1: %w",
			ref.ArchivePath, len(newEntries), model.ErrAmbiguousExtraction)
	}

	extracted := newEntries[0]
	if extracted != ref.Name {
		w.logger.Debugf("Normalizing extracted dir %q to %q", extracted, ref.Name)
		if err := os.Rename(filepath.Join(w.buildsDir, extracted), ref.BuildPath); err != nil {
			return fmt.Errorf("renaming extracted dir: %w", err)
		}
	}

	return nil
}

func (w *Workspace) download(ctx context.Context, ref model.ReleaseRef) error {
	if _, err := os.Stat(ref.ArchivePath); err == nil {
		// Cache hit, not re-verified.
		w.logger.Infof("Archive %s already present, skipping download", filepath.Base(ref.ArchivePath))
		return nil
	}

	w.logger.Infof("Downloading %s", ref.URL)
	data, err := w.fetcher.Fetch(ctx, ref.URL)
	if err != nil {
		return fmt.Errorf("downloading %s: %w", ref.URL, err)
	}

	if err := os.MkdirAll(w.archivesDir, 0o755); err != nil {
		return fmt.Errorf("creating archives dir: %w", err)
	}
	if err := os.WriteFile(ref.ArchivePath, data, 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", ref.ArchivePath, err)
	}

	return nil
}

func (w *Workspace) gunzip(srcPath, dstPath string) error {
	src, err := os.Open(srcPath)
	if err != nil {
		return err
	}
	defer src.Close()

	gz, err := gzip.NewReader(src)
	if err != nil {
		return err
	}
	defer gz.Close()

	if err := os.MkdirAll(filepath.Dir(dstPath), 0o755); err != nil {
		return err
	}
	dst, err := os.Create(dstPath)
	if err != nil {
		return err
	}
	defer dst.Close()

	if _, err := io.Copy(dst, gz); err != nil {
		os.Remove(dstPath)
		return err
	}

	return nil
}

func sortedEntries(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	sort.Strings(names)

	return names, nil
}

// diffEntries returns the names present in after but not in before. Both
// slices must be sorted.
func diffEntries(before, after []string) []string {
	var diff []string
	i := 0
	for _, name := range after {
		for i < len(before) && before[i] < name {
			i++
		}
		if i < len(before) && before[i] == name {
			i++
			continue
		}
		diff = append(diff, name)
	}
	return diff
}

func remove(names []string, name string) []string {
	out := names[:0]
	for _, n := range names {
		if n != name {
			out = append(out, n)
		}
	}
	return out
}
