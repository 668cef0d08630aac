// Package dockermock has a mock for the Docker client interface.
package dockermock

import (
	"context"
	"io"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/image"
	"github.com/docker/docker/api/types/network"
	ocispec "github.com/opencontainers/image-spec/specs-go/v1"
	"github.com/stretchr/testify/mock"
)

// MockDockerClient is a mock implementation of docker.DockerClient.
type MockDockerClient struct {
	mock.Mock
}

// ImagePull mock.
func (m *MockDockerClient) ImagePull(ctx context.Context, refStr string, options image.PullOptions) (io.ReadCloser, error) {
	args := m.Called(ctx, refStr, options)
	rc, _ := args.Get(0).(io.ReadCloser)
	return rc, args.Error(1)
}

// ContainerCreate mock.
func (m *MockDockerClient) ContainerCreate(ctx context.Context, config *container.Config, hostConfig *container.HostConfig, networkingConfig *network.NetworkingConfig, platform *ocispec.Platform, containerName string) (container.CreateResponse, error) {
	args := m.Called(ctx, config, hostConfig, networkingConfig, platform, containerName)
	resp, _ := args.Get(0).(container.CreateResponse)
	return resp, args.Error(1)
}

// ContainerStart mock.
func (m *MockDockerClient) ContainerStart(ctx context.Context, containerID string, options container.StartOptions) error {
	args := m.Called(ctx, containerID, options)
	return args.Error(0)
}

// ContainerWait mock.
func (m *MockDockerClient) ContainerWait(ctx context.Context, containerID string, condition container.WaitCondition) (<-chan container.WaitResponse, <-chan error) {
	args := m.Called(ctx, containerID, condition)
	statusCh, _ := args.Get(0).(<-chan container.WaitResponse)
	errCh, _ := args.Get(1).(<-chan error)
	return statusCh, errCh
}

// ContainerLogs mock.
func (m *MockDockerClient) ContainerLogs(ctx context.Context, containerID string, options container.LogsOptions) (io.ReadCloser, error) {
	args := m.Called(ctx, containerID, options)
	rc, _ := args.Get(0).(io.ReadCloser)
	return rc, args.Error(1)
}

// ContainerRemove mock.
func (m *MockDockerClient) ContainerRemove(ctx context.Context, containerID string, options container.RemoveOptions) error {
	args := m.Called(ctx, containerID, options)
	return args.Error(0)
}
