package toolchain

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sync"

	"github.com/luamill/luamill/internal/log"
	"github.com/luamill/luamill/internal/model"
)

// Handle is the completion token of an in-flight build. Await blocks until
// the toolchain process exits; it is idempotent, repeat calls return the
// cached result.
type Handle interface {
	Await() error
}

// Builder starts native builds and hands back completion handles without
// blocking, so several builds can be started before waiting on any.
type Builder interface {
	Start(ctx context.Context, label, workDir, buildScript string) (Handle, error)
}

// BuilderConfig is the configuration for the toolchain builder.
type BuilderConfig struct {
	// ToolchainRoot is the resolved toolchain installation. Required.
	ToolchainRoot string
	// Output receives the combined stdout/stderr of every build process.
	// Defaults to discarding it.
	Output io.Writer
	// Logger is optional, defaults to log.Noop.
	Logger log.Logger
}

func (c *BuilderConfig) defaults() error {
	if c.ToolchainRoot == "" {
		return fmt.Errorf("toolchain root is required")
	}
	if c.Output == nil {
		c.Output = io.Discard
	}
	if c.Logger == nil {
		c.Logger = log.Noop
	}
	c.Logger = c.Logger.WithValues(log.Kv{"svc": "toolchain.Builder"})
	return nil
}

// ExecBuilder launches builds through a generated driver script: it sets up
// the vendor toolchain environment for the fixed x86 release target, changes
// to the working directory and runs the project's build command.
type ExecBuilder struct {
	toolchainRoot string
	output        io.Writer
	logger        log.Logger
}

// NewExecBuilder creates a new process-backed builder.
func NewExecBuilder(cfg BuilderConfig) (*ExecBuilder, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &ExecBuilder{
		toolchainRoot: cfg.ToolchainRoot,
		output:        cfg.Output,
		logger:        cfg.Logger,
	}, nil
}

// Start implements Builder. The child process is launched before returning;
// the caller decides when to block on it. There is no cancellation of a
// launched build and no timeout: a hung toolchain hangs the run.
func (b *ExecBuilder) Start(ctx context.Context, label, workDir, buildScript string) (Handle, error) {
	scriptPath, err := b.writeDriverScript(label, workDir, buildScript)
	if err != nil {
		return nil, fmt.Errorf("preparing driver script for %s: %w", label, err)
	}

	cmd := exec.CommandContext(ctx, "/bin/sh", scriptPath)
	cmd.Stdout = b.output
	cmd.Stderr = b.output

	if err := cmd.Start(); err != nil {
		os.Remove(scriptPath)
		return nil, fmt.Errorf("launching build for %s: %w", label, err)
	}

	b.logger.Infof("Build started: %s (pid %d)", label, cmd.Process.Pid)

	return &processHandle{
		label:      label,
		cmd:        cmd,
		scriptPath: scriptPath,
		logger:     b.logger,
	}, nil
}

func (b *ExecBuilder) writeDriverScript(label, workDir, buildScript string) (string, error) {
	f, err := os.CreateTemp("", fmt.Sprintf("luamill-build-%s-*.sh", label))
	if err != nil {
		return "", err
	}

	content := fmt.Sprintf(`#!/bin/sh
set -e
. %q x86 release
cd %q
%s
`, b.toolchainRoot+"/"+envScriptName, workDir, buildScript)

	if _, err := f.WriteString(content); err != nil {
		f.Close()
		os.Remove(f.Name())
		return "", err
	}
	if err := f.Close(); err != nil {
		os.Remove(f.Name())
		return "", err
	}
	if err := os.Chmod(f.Name(), 0o755); err != nil {
		os.Remove(f.Name())
		return "", err
	}

	return f.Name(), nil
}

type processHandle struct {
	label      string
	cmd        *exec.Cmd
	scriptPath string
	logger     log.Logger

	once sync.Once
	err  error
}

func (h *processHandle) Await() error {
	h.once.Do(func() {
		err := h.cmd.Wait()
		os.Remove(h.scriptPath)

		if err != nil {
			h.err = fmt.Errorf("build %s: %v: %w", h.label, err, model.ErrBuildFailed)
			return
		}

		h.logger.Infof("Build finished: %s", h.label)
	})

	return h.err
}
