package docker_test

import (
	"bytes"
	"context"
	"encoding/binary"
	"io"
	"strings"
	"testing"

	"github.com/docker/docker/api/types/container"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/luamill/luamill/internal/machine/docker"
	"github.com/luamill/luamill/internal/machine/docker/dockermock"
	"github.com/luamill/luamill/internal/model"
)

func testSpec() model.MachineSpec {
	return model.MachineSpec{
		Image: "luamill/toolchain:latest",
		Cmd:   []string{"luamill", "produce"},
		Env:   map[string]string{"LUAMILL_DATA": "/data"},
		Binds: []string{"/home/ci/.luamill:/data"},
	}
}

// stdoutFrame builds one multiplexed Docker log frame for stdout.
func stdoutFrame(payload string) []byte {
	frame := make([]byte, 8+len(payload))
	frame[0] = 1
	binary.BigEndian.PutUint32(frame[4:8], uint32(len(payload)))
	copy(frame[8:], payload)
	return frame
}

func waitChannels(code int64) (<-chan container.WaitResponse, <-chan error) {
	statusCh := make(chan container.WaitResponse, 1)
	statusCh <- container.WaitResponse{StatusCode: code}
	return statusCh, make(chan error)
}

func expectHappyPath(client *dockermock.MockDockerClient, exitCode int64, logs []byte) {
	client.On("ImagePull", mock.Anything, "luamill/toolchain:latest", mock.Anything).Once().
		Return(io.NopCloser(bytes.NewReader(nil)), nil)
	client.On("ContainerCreate", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).Once().
		Return(container.CreateResponse{ID: "cid-1234"}, nil)
	client.On("ContainerStart", mock.Anything, "cid-1234", mock.Anything).Once().Return(nil)
	client.On("ContainerLogs", mock.Anything, "cid-1234", mock.Anything).Once().
		Return(io.NopCloser(bytes.NewReader(logs)), nil)
	statusCh, errCh := waitChannels(exitCode)
	client.On("ContainerWait", mock.Anything, "cid-1234", container.WaitConditionNotRunning).Once().
		Return(statusCh, errCh)
}

func TestMachineRun(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)

	client := &dockermock.MockDockerClient{}
	expectHappyPath(client, 0, stdoutFrame("resolving latest releases\n"))

	var output bytes.Buffer
	m, err := docker.NewMachine(docker.MachineConfig{Client: client, Output: &output})
	require.NoError(err)

	code, err := m.Run(context.Background(), testSpec())

	require.NoError(err)
	assert.Equal(int64(0), code)
	assert.Equal("resolving latest releases\n", output.String())
	client.AssertNotCalled(t, "ContainerRemove", mock.Anything, mock.Anything, mock.Anything)
	client.AssertExpectations(t)
}

func TestMachineRunPassesSpecToContainer(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)

	client := &dockermock.MockDockerClient{}
	client.On("ImagePull", mock.Anything, mock.Anything, mock.Anything).Once().
		Return(io.NopCloser(bytes.NewReader(nil)), nil)
	client.On("ContainerCreate", mock.Anything,
		mock.MatchedBy(func(cfg *container.Config) bool {
			return cfg.Image == "luamill/toolchain:latest" &&
				len(cfg.Cmd) == 2 && cfg.Cmd[0] == "luamill" &&
				len(cfg.Env) == 1 && cfg.Env[0] == "LUAMILL_DATA=/data"
		}),
		mock.MatchedBy(func(cfg *container.HostConfig) bool {
			return len(cfg.Binds) == 1 && cfg.Binds[0] == "/home/ci/.luamill:/data"
		}),
		mock.Anything, mock.Anything,
		mock.MatchedBy(func(name string) bool {
			return strings.HasPrefix(name, "luamill-")
		})).Once().
		Return(container.CreateResponse{ID: "cid-1234"}, nil)
	client.On("ContainerStart", mock.Anything, "cid-1234", mock.Anything).Once().Return(nil)
	client.On("ContainerLogs", mock.Anything, "cid-1234", mock.Anything).Once().
		Return(io.NopCloser(bytes.NewReader(nil)), nil)
	statusCh, errCh := waitChannels(0)
	client.On("ContainerWait", mock.Anything, "cid-1234", container.WaitConditionNotRunning).Once().
		Return(statusCh, errCh)

	m, err := docker.NewMachine(docker.MachineConfig{Client: client, Output: io.Discard})
	require.NoError(err)

	_, err = m.Run(context.Background(), testSpec())

	require.NoError(err)
	assert.True(client.AssertExpectations(t), "all docker calls should happen")
}

func TestMachineRunNonZeroExit(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)

	client := &dockermock.MockDockerClient{}
	expectHappyPath(client, 1, nil)

	m, err := docker.NewMachine(docker.MachineConfig{Client: client, Output: io.Discard})
	require.NoError(err)

	code, err := m.Run(context.Background(), testSpec())

	require.NoError(err)
	assert.Equal(int64(1), code)
}

func TestMachineRunAutoRemove(t *testing.T) {
	require := require.New(t)

	client := &dockermock.MockDockerClient{}
	expectHappyPath(client, 0, nil)
	client.On("ContainerRemove", mock.Anything, "cid-1234", mock.MatchedBy(func(opts container.RemoveOptions) bool {
		return opts.Force
	})).Once().Return(nil)

	m, err := docker.NewMachine(docker.MachineConfig{Client: client, Output: io.Discard})
	require.NoError(err)

	spec := testSpec()
	spec.AutoRemove = true
	_, err = m.Run(context.Background(), spec)

	require.NoError(err)
	client.AssertExpectations(t)
}

func TestMachineRunInvalidSpec(t *testing.T) {
	require := require.New(t)

	client := &dockermock.MockDockerClient{}
	m, err := docker.NewMachine(docker.MachineConfig{Client: client, Output: io.Discard})
	require.NoError(err)

	_, err = m.Run(context.Background(), model.MachineSpec{})

	require.Error(err)
	require.ErrorIs(err, model.ErrNotValid)
	client.AssertNotCalled(t, "ImagePull", mock.Anything, mock.Anything, mock.Anything)
}

func TestMachineRunPullFailure(t *testing.T) {
	require := require.New(t)

	client := &dockermock.MockDockerClient{}
	client.On("ImagePull", mock.Anything, mock.Anything, mock.Anything).Once().
		Return(nil, context.DeadlineExceeded)

	m, err := docker.NewMachine(docker.MachineConfig{Client: client, Output: io.Discard})
	require.NoError(err)

	_, err = m.Run(context.Background(), testSpec())

	require.Error(err)
	client.AssertNotCalled(t, "ContainerCreate", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}
