// Package pack builds the final per-release zip archives and hands them to
// the configured upload destination.
package pack

import (
	"archive/zip"
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/luamill/luamill/internal/log"
)

// Uploader pushes a packaged archive to a remote destination.
type Uploader interface {
	Upload(ctx context.Context, path string) error
}

// PackerConfig is the configuration for the packer.
type PackerConfig struct {
	// BinariesDir is the output root holding one subdirectory per release. Required.
	BinariesDir string
	// Uploader is optional: when nil, packaged archives stay local and upload
	// is silently skipped.
	Uploader Uploader
	// Logger is optional, defaults to log.Noop.
	Logger log.Logger
}

func (c *PackerConfig) defaults() error {
	if c.BinariesDir == "" {
		return fmt.Errorf("binaries dir is required")
	}
	if c.Logger == nil {
		c.Logger = log.Noop
	}
	c.Logger = c.Logger.WithValues(log.Kv{"svc": "pack.Packer"})
	return nil
}

// Packer zips every per-release output subdirectory into an archive named
// after it.
type Packer struct {
	binariesDir string
	uploader    Uploader
	logger      log.Logger
}

// NewPacker creates a new packer.
func NewPacker(cfg PackerConfig) (*Packer, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &Packer{
		binariesDir: cfg.BinariesDir,
		uploader:    cfg.Uploader,
		logger:      cfg.Logger,
	}, nil
}

// PackAll archives every output subdirectory and uploads the results when an
// uploader is configured. It returns the created archive paths.
func (p *Packer) PackAll(ctx context.Context) ([]string, error) {
	entries, err := os.ReadDir(p.binariesDir)
	if err != nil {
		return nil, fmt.Errorf("listing %s: %w", p.binariesDir, err)
	}

	var archives []string
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}

		zipPath := filepath.Join(p.binariesDir, entry.Name()+".zip")
		if err := zipTree(filepath.Join(p.binariesDir, entry.Name()), zipPath); err != nil {
			return nil, fmt.Errorf("packaging %s: %w", entry.Name(), err)
		}

		p.logger.Infof("Packaged %s", filepath.Base(zipPath))
		archives = append(archives, zipPath)

		if p.uploader == nil {
			continue
		}
		if err := p.uploader.Upload(ctx, zipPath); err != nil {
			return nil, fmt.Errorf("uploading %s: %w", zipPath, err)
		}
	}

	return archives, nil
}

// zipTree writes the contents of srcDir into a zip archive, entry names
// relative to srcDir with forward slashes.
func zipTree(srcDir, zipPath string) error {
	out, err := os.Create(zipPath)
	if err != nil {
		return err
	}
	defer out.Close()

	zw := zip.NewWriter(out)
	defer zw.Close()

	err = filepath.WalkDir(srcDir, func(path string, d os.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return err
		}

		rel, err := filepath.Rel(srcDir, path)
		if err != nil {
			return err
		}

		w, err := zw.Create(filepath.ToSlash(rel))
		if err != nil {
			return err
		}

		in, err := os.Open(path)
		if err != nil {
			return err
		}
		defer in.Close()

		_, err = io.Copy(w, in)
		return err
	})
	if err != nil {
		return err
	}

	return zw.Close()
}

// ScpUploaderConfig is the configuration for the scp uploader.
type ScpUploaderConfig struct {
	// Dest is the remote destination in host:path form. Required.
	Dest string
	// Logger is optional, defaults to log.Noop.
	Logger log.Logger
}

func (c *ScpUploaderConfig) defaults() error {
	if c.Dest == "" {
		return fmt.Errorf("destination is required")
	}
	if !strings.Contains(c.Dest, ":") {
		return fmt.Errorf("destination %q is not in host:path form", c.Dest)
	}
	if c.Logger == nil {
		c.Logger = log.Noop
	}
	c.Logger = c.Logger.WithValues(log.Kv{"svc": "pack.ScpUploader"})
	return nil
}

// ScpUploader copies archives to a host:path destination with the external
// scp utility.
type ScpUploader struct {
	dest   string
	logger log.Logger
}

// NewScpUploader creates a new scp uploader.
func NewScpUploader(cfg ScpUploaderConfig) (*ScpUploader, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &ScpUploader{
		dest:   cfg.Dest,
		logger: cfg.Logger,
	}, nil
}

// Upload implements Uploader.
func (u *ScpUploader) Upload(ctx context.Context, path string) error {
	u.logger.Infof("Uploading %s to %s", filepath.Base(path), u.dest)

	cmd := exec.CommandContext(ctx, "scp", "-q", path, u.dest)
	out, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("scp %s: %w (output: %s)", path, err, strings.TrimSpace(string(out)))
	}

	return nil
}
