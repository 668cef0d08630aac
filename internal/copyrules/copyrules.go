// Package copyrules implements the per-project copy manifests: a small
// line-oriented language selecting which build outputs land in the final
// output tree.
//
//	src/lua.exe              copy keeping the relative path
//	etc/lua.hpp -> include/  copy into another directory
//	lib/ -> jit/             trailing slash: copy directory contents recursively
//
// A source that does not exist on disk is silently skipped: projects don't
// always ship the same optional files.
package copyrules

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/luamill/luamill/internal/log"
)

// Rule is one parsed copy instruction.
type Rule struct {
	// Src is the source path relative to the build tree.
	Src string
	// Dst is the destination path relative to the output tree.
	Dst string
	// Recursive copies the directory contents of Src into Dst.
	Recursive bool
}

// Parse reads a copy manifest. Blank lines and # comments are skipped.
func Parse(manifest string) ([]Rule, error) {
	var rules []Rule

	for i, line := range strings.Split(manifest, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		src, dst := line, ""
		if before, after, ok := strings.Cut(line, "->"); ok {
			src = strings.TrimSpace(before)
			dst = strings.TrimSpace(after)
			if src == "" || dst == "" {
				return nil, fmt.Errorf("line %d: malformed rename rule %q", i+1, line)
			}
		}

		recursive := strings.HasSuffix(src, "/")
		src = strings.TrimSuffix(src, "/")
		if dst == "" {
			dst = src
		}
		dst = strings.TrimSuffix(dst, "/")

		rules = append(rules, Rule{Src: src, Dst: dst, Recursive: recursive})
	}

	return rules, nil
}

// Apply executes the rules, copying from the build tree srcDir into the
// output tree dstDir.
func Apply(rules []Rule, srcDir, dstDir string, logger log.Logger) error {
	if logger == nil {
		logger = log.Noop
	}

	for _, rule := range rules {
		src := filepath.Join(srcDir, filepath.FromSlash(rule.Src))
		dst := filepath.Join(dstDir, filepath.FromSlash(rule.Dst))

		info, err := os.Stat(src)
		if os.IsNotExist(err) {
			logger.Debugf("Copy source %s missing, skipping", rule.Src)
			continue
		}
		if err != nil {
			return fmt.Errorf("stat %s: %w", src, err)
		}

		if rule.Recursive || info.IsDir() {
			if err := copyTree(src, dst); err != nil {
				return fmt.Errorf("copying tree %s: %w", rule.Src, err)
			}
			continue
		}

		if err := copyFile(src, dst, info.Mode()); err != nil {
			return fmt.Errorf("copying %s: %w", rule.Src, err)
		}
	}

	return nil
}

func copyTree(srcDir, dstDir string) error {
	return filepath.WalkDir(srcDir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}

		rel, err := filepath.Rel(srcDir, path)
		if err != nil {
			return err
		}
		dst := filepath.Join(dstDir, rel)

		if d.IsDir() {
			return os.MkdirAll(dst, 0o755)
		}

		info, err := d.Info()
		if err != nil {
			return err
		}

		return copyFile(path, dst, info.Mode())
	})
}

func copyFile(src, dst string, mode os.FileMode) error {
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return err
	}

	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, mode.Perm())
	if err != nil {
		return err
	}
	defer out.Close()

	if _, err := io.Copy(out, in); err != nil {
		os.Remove(dst)
		return err
	}

	return nil
}
