// Package toolchain drives the vendor native toolchain: it discovers the
// toolchain installation through an ordered probe chain, prepares per-build
// driver scripts and launches builds as non-blocking child processes with an
// await-later completion handle.
package toolchain

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/luamill/luamill/internal/log"
)

// envScriptName is the toolchain environment setup script expected inside a
// toolchain root.
const envScriptName = "envsetup.sh"

// Probe is one location strategy for finding the toolchain root.
type Probe struct {
	// Name describes the strategy for error reporting.
	Name string
	// Root returns a candidate toolchain root, or false when the strategy
	// has nothing to offer.
	Root func() (string, bool)
}

// DefaultProbes returns the probe chain used when no explicit root is
// configured: conventional install locations first, then PATH.
func DefaultProbes() []Probe {
	return []Probe{
		{Name: "opt install", Root: func() (string, bool) { return "/opt/vendor-toolchain", true }},
		{Name: "usr-local install", Root: func() (string, bool) { return "/usr/local/vendor-toolchain", true }},
		{Name: "PATH lookup", Root: func() (string, bool) {
			p, err := exec.LookPath(envScriptName)
			if err != nil {
				return "", false
			}
			return filepath.Dir(p), true
		}},
	}
}

// Locate resolves the toolchain root. An explicit root is probed first; the
// chain is walked in order and the first candidate that actually contains the
// environment script wins. Exhausting the chain is a fatal error.
func Locate(explicitRoot string, probes []Probe, logger log.Logger) (string, error) {
	if logger == nil {
		logger = log.Noop
	}

	if explicitRoot != "" {
		probes = append([]Probe{{
			Name: "configured root",
			Root: func() (string, bool) { return explicitRoot, true },
		}}, probes...)
	}

	tried := 0
	for _, probe := range probes {
		root, ok := probe.Root()
		if !ok {
			continue
		}
		tried++

		if _, err := os.Stat(filepath.Join(root, envScriptName)); err == nil {
			logger.Debugf("Toolchain found at %s (%s)", root, probe.Name)
			return root, nil
		}
	}

	return "", fmt.Errorf("no toolchain found after %d probes", tried)
}
