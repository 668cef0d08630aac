// Package docker runs a producer inside an isolated Docker container with the
// vendor toolchain image, streaming its output and reporting its exit status.
package docker

import (
	"context"
	"crypto/rand"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/image"
	"github.com/docker/docker/api/types/network"
	"github.com/docker/docker/client"
	"github.com/docker/docker/pkg/stdcopy"
	"github.com/oklog/ulid/v2"
	ocispec "github.com/opencontainers/image-spec/specs-go/v1"

	"github.com/luamill/luamill/internal/log"
	"github.com/luamill/luamill/internal/model"
)

// DockerClient is the interface for Docker operations that we use.
// This allows us to mock the Docker client for testing.
type DockerClient interface {
	ImagePull(ctx context.Context, refStr string, options image.PullOptions) (io.ReadCloser, error)
	ContainerCreate(ctx context.Context, config *container.Config, hostConfig *container.HostConfig, networkingConfig *network.NetworkingConfig, platform *ocispec.Platform, containerName string) (container.CreateResponse, error)
	ContainerStart(ctx context.Context, containerID string, options container.StartOptions) error
	ContainerWait(ctx context.Context, containerID string, condition container.WaitCondition) (<-chan container.WaitResponse, <-chan error)
	ContainerLogs(ctx context.Context, containerID string, options container.LogsOptions) (io.ReadCloser, error)
	ContainerRemove(ctx context.Context, containerID string, options container.RemoveOptions) error
}

// MachineConfig is the configuration for the Docker machine.
type MachineConfig struct {
	// Client is optional, defaults to a client from the environment.
	Client DockerClient
	// Output receives the machine's combined stdout and stderr. Optional,
	// defaults to os.Stdout.
	Output io.Writer
	// Logger is optional, defaults to log.Noop.
	Logger log.Logger
}

func (c *MachineConfig) defaults() error {
	if c.Client == nil {
		cli, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
		if err != nil {
			return fmt.Errorf("could not create Docker client: %w", err)
		}
		c.Client = cli
	}
	if c.Output == nil {
		c.Output = os.Stdout
	}
	if c.Logger == nil {
		c.Logger = log.Noop
	}
	c.Logger = c.Logger.WithValues(log.Kv{"svc": "machine.Docker"})
	return nil
}

// Machine runs one command to completion inside a fresh Docker container.
type Machine struct {
	client DockerClient
	output io.Writer
	logger log.Logger
}

// NewMachine creates a new Docker machine.
func NewMachine(cfg MachineConfig) (*Machine, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &Machine{
		client: cfg.Client,
		output: cfg.Output,
		logger: cfg.Logger,
	}, nil
}

// Run pulls the image, creates and starts the container, streams its logs and
// waits for it to exit. It returns the command's exit code.
func (m *Machine) Run(ctx context.Context, spec model.MachineSpec) (int64, error) {
	if err := spec.Validate(); err != nil {
		return 0, fmt.Errorf("invalid machine spec: %w", err)
	}

	id := ulid.MustNew(ulid.Timestamp(time.Now()), rand.Reader).String()
	containerName := fmt.Sprintf("luamill-%s", strings.ToLower(id))
	logger := m.logger.WithValues(log.Kv{"container": containerName})

	logger.Infof("[1/3] Pulling image: %s", spec.Image)
	pullResp, err := m.client.ImagePull(ctx, spec.Image, image.PullOptions{})
	if err != nil {
		return 0, fmt.Errorf("failed to pull image %s: %w", spec.Image, err)
	}
	// Consume the pull response to ensure it completes.
	_, _ = io.Copy(io.Discard, pullResp)
	pullResp.Close()

	logger.Infof("[2/3] Creating container: %s", containerName)
	var envVars []string
	for k, v := range spec.Env {
		envVars = append(envVars, fmt.Sprintf("%s=%s", k, v))
	}

	containerConfig := &container.Config{
		Image: spec.Image,
		Env:   envVars,
		Cmd:   spec.Cmd,
	}
	hostConfig := &container.HostConfig{
		Binds: spec.Binds,
	}

	resp, err := m.client.ContainerCreate(ctx, containerConfig, hostConfig, nil, nil, containerName)
	if err != nil {
		return 0, fmt.Errorf("failed to create container: %w", err)
	}
	containerID := resp.ID

	if spec.AutoRemove {
		defer m.remove(containerID, logger)
	}

	logger.Infof("[3/3] Starting container: %s", containerID)
	if err := m.client.ContainerStart(ctx, containerID, container.StartOptions{}); err != nil {
		return 0, fmt.Errorf("failed to start container: %w", err)
	}

	logsDone := m.streamLogs(ctx, containerID, logger)

	statusCh, errCh := m.client.ContainerWait(ctx, containerID, container.WaitConditionNotRunning)
	var exitCode int64
	select {
	case err := <-errCh:
		if err != nil {
			return 0, fmt.Errorf("failed waiting for container: %w", err)
		}
	case status := <-statusCh:
		exitCode = status.StatusCode
	}
	<-logsDone

	logger.Infof("Container exited with code %d", exitCode)

	return exitCode, nil
}

// streamLogs copies the container's multiplexed log stream to the machine
// output. The returned channel closes when the stream is drained.
func (m *Machine) streamLogs(ctx context.Context, containerID string, logger log.Logger) <-chan struct{} {
	done := make(chan struct{})

	logs, err := m.client.ContainerLogs(ctx, containerID, container.LogsOptions{
		ShowStdout: true,
		ShowStderr: true,
		Follow:     true,
	})
	if err != nil {
		logger.Warningf("Could not stream container logs: %s", err)
		close(done)
		return done
	}

	go func() {
		defer close(done)
		defer logs.Close()
		if _, err := stdcopy.StdCopy(m.output, m.output, logs); err != nil {
			logger.Debugf("Log stream ended: %s", err)
		}
	}()

	return done
}

// remove powers the machine down. Removal runs with its own context so a
// canceled run still cleans up.
func (m *Machine) remove(containerID string, logger log.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := m.client.ContainerRemove(ctx, containerID, container.RemoveOptions{Force: true}); err != nil {
		if strings.Contains(err.Error(), "No such container") {
			logger.Debugf("Container already removed")
			return
		}
		logger.Warningf("Could not remove container: %s", err)
		return
	}
	logger.Infof("Removed container")
}
