// Package checklist verifies that every expected output file of every project
// exists after the builds. Verification never stops at the first gap: all
// missing files are collected so one run reports every problem.
package checklist

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/hashicorp/go-multierror"

	"github.com/luamill/luamill/internal/log"
	"github.com/luamill/luamill/internal/model"
)

// Item is one project's expected outputs.
type Item struct {
	// Project is the project label.
	Project string
	// OutputPath is the project's output tree.
	OutputPath string
	// Files are the required paths, relative to OutputPath.
	Files []string
}

// Verify checks every file of every item. The returned result lists all
// missing files; the error aggregates them and is nil when everything is
// present.
func Verify(items []Item, logger log.Logger) (model.VerifyResult, error) {
	if logger == nil {
		logger = log.Noop
	}

	var result model.VerifyResult
	var errs *multierror.Error

	for _, item := range items {
		for _, file := range item.Files {
			path := filepath.Join(item.OutputPath, filepath.FromSlash(file))
			if _, err := os.Stat(path); err == nil {
				continue
			}

			logger.Warningf("Missing artifact: %s", path)
			result.Missing = append(result.Missing, fmt.Sprintf("%s: %s", item.Project, file))
			errs = multierror.Append(errs, fmt.Errorf("%s: %s: %w", item.Project, file, model.ErrMissingArtifact))
		}
	}

	return result, errs.ErrorOrNil()
}
