package commands

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testManifestYAML = `
projects:
  - name: lua
    kind: runtime
    source:
      flat_index:
        url: https://www.lua.org/ftp/
        pattern: '^lua-5\.1.*\.tar\.gz$'
    build_script: make
    checklist:
      - bin/lua
`

func TestLoadManifest(t *testing.T) {
	tests := map[string]struct {
		manifestPath func(t *testing.T) string
		expProjects  []string
		expErr       bool
	}{
		"Empty path should load the embedded default manifest": {
			manifestPath: func(t *testing.T) string { return "" },
			expProjects:  []string{"lua", "luajit", "luasocket", "luafilesystem", "luazip"},
		},

		"A manifest file path should load that file": {
			manifestPath: func(t *testing.T) string {
				path := filepath.Join(t.TempDir(), "projects.yaml")
				require.NoError(t, os.WriteFile(path, []byte(testManifestYAML), 0o644))
				return path
			},
			expProjects: []string{"lua"},
		},

		"A missing manifest file should fail": {
			manifestPath: func(t *testing.T) string {
				return filepath.Join(t.TempDir(), "does-not-exist.yaml")
			},
			expErr: true,
		},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			rootCmd := &RootCommand{ManifestPath: tc.manifestPath(t)}

			manifest, err := loadManifest(context.Background(), rootCmd)

			if tc.expErr {
				require.Error(t, err)
				return
			}

			require.NoError(t, err)
			gotProjects := []string{}
			for _, p := range manifest.Projects {
				gotProjects = append(gotProjects, p.Name)
			}
			assert.Equal(t, tc.expProjects, gotProjects)
		})
	}
}

func TestLedgerDBPath(t *testing.T) {
	tests := map[string]struct {
		rootCmd RootCommand
		expPath string
	}{
		"Default should live inside the data dir": {
			rootCmd: RootCommand{DataDir: "/data/luamill"},
			expPath: filepath.Join("/data/luamill", "luamill.db"),
		},

		"An explicit db path should win": {
			rootCmd: RootCommand{DataDir: "/data/luamill", DBPath: "/tmp/other.db"},
			expPath: "/tmp/other.db",
		},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			assert.Equal(t, tc.expPath, tc.rootCmd.LedgerDBPath())
		})
	}
}
