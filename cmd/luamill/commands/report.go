package commands

import (
	"fmt"
	"io"

	"github.com/luamill/luamill/internal/model"
)

// printReport writes the run outcome to stdout: resolved releases, missing
// checklist artifacts and packed archives.
func printReport(w io.Writer, releases []model.ResolvedRelease, verify model.VerifyResult, archives []string) {
	for _, rel := range releases {
		fmt.Fprintf(w, "%-14s %s\n", rel.Project, rel.Release)
	}

	if !verify.OK() {
		fmt.Fprintln(w)
		for _, missing := range verify.Missing {
			fmt.Fprintf(w, "MISSING %s\n", missing)
		}
		return
	}

	if len(archives) > 0 {
		fmt.Fprintln(w)
		for _, archive := range archives {
			fmt.Fprintf(w, "PACKED %s\n", archive)
		}
	}
}
