package hostrun_test

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/luamill/luamill/internal/app/hostrun"
	"github.com/luamill/luamill/internal/app/hostrun/hostrunmock"
	"github.com/luamill/luamill/internal/model"
	"github.com/luamill/luamill/internal/storage/storagemock"
)

func testManifest() model.Manifest {
	return model.Manifest{Projects: []model.Project{
		{
			Name: "lua",
			Kind: model.ProjectKindRuntime,
			Source: model.ProjectSource{Homepage: &model.HomepageSource{
				URL:     "https://lua.example.org/download.html",
				Pattern: regexp.MustCompile(`lua-[\d.]+\.tar\.gz`),
			}},
			BuildScript: "make linux",
			Checklist:   []string{"bin/lua"},
		},
	}}
}

func testMachineSpec() model.MachineSpec {
	return model.MachineSpec{
		Image: "luamill/toolchain:latest",
		Cmd:   []string{"luamill", "produce"},
	}
}

func testRun() *model.Run {
	return &model.Run{
		ID:      "01JCK7HOSTRUN000000000000",
		Success: true,
		Releases: []model.ResolvedRelease{
			{Project: "lua", Release: "lua-5.4.8", URL: "https://lua.example.org/lua-5.4.8.tar.gz"},
		},
	}
}

type testMocks struct {
	machine *hostrunmock.MockMachine
	ws      *hostrunmock.MockWorkspace
	packer  *hostrunmock.MockPacker
	repo    *storagemock.MockRunRepository
}

func newService(t *testing.T, dataDir string) (*hostrun.Service, *testMocks) {
	t.Helper()

	m := &testMocks{
		machine: &hostrunmock.MockMachine{},
		ws:      &hostrunmock.MockWorkspace{},
		packer:  &hostrunmock.MockPacker{},
		repo:    &storagemock.MockRunRepository{},
	}

	svc, err := hostrun.NewService(hostrun.ServiceConfig{
		Manifest:      testManifest(),
		Machine:       m.machine,
		MachineSpec:   testMachineSpec(),
		Workspace:     m.ws,
		Packer:        m.packer,
		RunRepository: m.repo,
		DataDir:       dataDir,
	})
	require.NoError(t, err)

	return svc, m
}

func writeArtifact(t *testing.T, dataDir, release, file string) {
	t.Helper()

	path := filepath.Join(dataDir, "binaries", release, filepath.FromSlash(file))
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte("x"), 0o644))
}

func TestServiceRunHappyPath(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)

	dataDir := t.TempDir()
	svc, m := newService(t, dataDir)

	m.ws.On("Clean").Once().Return(nil)
	m.machine.On("Run", mock.Anything, testMachineSpec()).Once().Return(int64(0), nil)
	m.repo.On("LatestRun", mock.Anything).Once().Return(testRun(), nil)
	m.packer.On("PackAll", mock.Anything).Once().Return([]string{"lua-5.4.8.zip"}, nil)

	writeArtifact(t, dataDir, "lua-5.4.8", "bin/lua")

	report, err := svc.Run(context.Background())

	require.NoError(err)
	assert.Equal("01JCK7HOSTRUN000000000000", report.RunID)
	assert.True(report.Verify.OK())
	assert.Equal([]string{"lua-5.4.8.zip"}, report.Archives)
	m.machine.AssertExpectations(t)
	m.packer.AssertExpectations(t)
}

func TestServiceRunMachineNonZeroExit(t *testing.T) {
	require := require.New(t)

	svc, m := newService(t, t.TempDir())

	m.ws.On("Clean").Once().Return(nil)
	m.machine.On("Run", mock.Anything, mock.Anything).Once().Return(int64(2), nil)

	_, err := svc.Run(context.Background())

	require.Error(err)
	require.ErrorIs(err, model.ErrBuildFailed)
	m.repo.AssertNotCalled(t, "LatestRun", mock.Anything)
	m.packer.AssertNotCalled(t, "PackAll", mock.Anything)
}

func TestServiceRunMachineFailure(t *testing.T) {
	require := require.New(t)

	svc, m := newService(t, t.TempDir())

	m.ws.On("Clean").Once().Return(nil)
	m.machine.On("Run", mock.Anything, mock.Anything).Once().Return(int64(0), fmt.Errorf("cannot connect to the Docker daemon"))

	_, err := svc.Run(context.Background())

	require.Error(err)
	m.repo.AssertNotCalled(t, "LatestRun", mock.Anything)
}

func TestServiceRunNoLedgerRun(t *testing.T) {
	require := require.New(t)

	svc, m := newService(t, t.TempDir())

	m.ws.On("Clean").Once().Return(nil)
	m.machine.On("Run", mock.Anything, mock.Anything).Once().Return(int64(0), nil)
	m.repo.On("LatestRun", mock.Anything).Once().Return(nil, model.ErrNotFound)

	_, err := svc.Run(context.Background())

	require.Error(err)
	require.ErrorIs(err, model.ErrNotFound)
	m.packer.AssertNotCalled(t, "PackAll", mock.Anything)
}

func TestServiceRunMissingArtifactSkipsPackaging(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)

	// The machine reported success but the output tree lacks bin/lua.
	svc, m := newService(t, t.TempDir())

	m.ws.On("Clean").Once().Return(nil)
	m.machine.On("Run", mock.Anything, mock.Anything).Once().Return(int64(0), nil)
	m.repo.On("LatestRun", mock.Anything).Once().Return(testRun(), nil)

	report, err := svc.Run(context.Background())

	require.NoError(err)
	assert.False(report.Verify.OK())
	assert.Equal([]string{"lua: bin/lua"}, report.Verify.Missing)
	m.packer.AssertNotCalled(t, "PackAll", mock.Anything)
}

func TestServiceRunNoReleaseRecorded(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)

	svc, m := newService(t, t.TempDir())

	run := testRun()
	run.Releases = nil

	m.ws.On("Clean").Once().Return(nil)
	m.machine.On("Run", mock.Anything, mock.Anything).Once().Return(int64(0), nil)
	m.repo.On("LatestRun", mock.Anything).Once().Return(run, nil)

	report, err := svc.Run(context.Background())

	require.NoError(err)
	assert.False(report.Verify.OK())
	assert.Equal([]string{"lua: no release recorded"}, report.Verify.Missing)
}
