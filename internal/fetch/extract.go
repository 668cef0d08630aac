package fetch

import (
	"context"
	"fmt"
	"os/exec"
	"strings"

	"github.com/luamill/luamill/internal/model"
)

// ArchiveFormat is one of the supported archive container formats.
type ArchiveFormat string

const (
	// FormatTar is a tar container (possibly gzip-compressed on the wire).
	FormatTar ArchiveFormat = "tar"
	// FormatZip is a zip container.
	FormatZip ArchiveFormat = "zip"
)

// formatFor dispatches strictly by filename suffix. Anything outside the two
// supported containers is a hard error.
func formatFor(filename string) (ArchiveFormat, bool, error) {
	switch {
	case strings.HasSuffix(filename, ".tar.gz"), strings.HasSuffix(filename, ".tgz"):
		return FormatTar, true, nil
	case strings.HasSuffix(filename, ".tar"):
		return FormatTar, false, nil
	case strings.HasSuffix(filename, ".zip"):
		return FormatZip, false, nil
	}
	return "", false, fmt.Errorf("archive %q: %w", filename, model.ErrUnsupportedFormat)
}

// Extractor unpacks an archive into a destination directory. Extraction is an
// external collaborator: the production implementation shells out to the
// platform's archive utilities.
type Extractor interface {
	Extract(ctx context.Context, format ArchiveFormat, archivePath, destDir string) error
}

// ExecExtractor extracts archives with the external tar and unzip utilities.
type ExecExtractor struct{}

// NewExecExtractor creates an extractor backed by external utilities.
func NewExecExtractor() *ExecExtractor { return &ExecExtractor{} }

// Extract implements Extractor.
func (e *ExecExtractor) Extract(ctx context.Context, format ArchiveFormat, archivePath, destDir string) error {
	var cmd *exec.Cmd
	switch format {
	case FormatTar:
		cmd = exec.CommandContext(ctx, "tar", "-xf", archivePath, "-C", destDir)
	case FormatZip:
		cmd = exec.CommandContext(ctx, "unzip", "-q", "-o", archivePath, "-d", destDir)
	default:
		return fmt.Errorf("format %q: %w", format, model.ErrUnsupportedFormat)
	}

	out, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("extracting %s: %w (output: %s)", archivePath, err, strings.TrimSpace(string(out)))
	}

	return nil
}
