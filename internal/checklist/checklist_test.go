package checklist_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/luamill/luamill/internal/checklist"
	"github.com/luamill/luamill/internal/model"
)

func TestVerify(t *testing.T) {
	tests := map[string]struct {
		present    map[string][]string // project -> files created on disk
		checklists map[string][]string // project -> required files
		expMissing []string
	}{
		"All files present passes": {
			present: map[string][]string{
				"lua":       {"lua.exe", "lua51.dll"},
				"luasocket": {"socket/core.dll"},
			},
			checklists: map[string][]string{
				"lua":       {"lua.exe", "lua51.dll"},
				"luasocket": {"socket/core.dll"},
			},
		},
		"Single gap is reported without hiding the other project": {
			present: map[string][]string{
				"lua":       {"lua.exe", "lua51.dll"},
				"luasocket": {"socket/core.dll", "mime/core.dll"},
			},
			checklists: map[string][]string{
				"lua":       {"lua.exe", "luac.exe", "lua51.dll"},
				"luasocket": {"socket/core.dll", "mime/core.dll", "ltn12.lua"},
			},
			expMissing: []string{"lua: luac.exe", "luasocket: ltn12.lua"},
		},
		"Every gap of one project is collected": {
			present: map[string][]string{"lua": {}},
			checklists: map[string][]string{
				"lua": {"lua.exe", "lua51.dll"},
			},
			expMissing: []string{"lua: lua.exe", "lua: lua51.dll"},
		},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			var items []checklist.Item
			outputs := map[string]string{}
			// Deterministic item order: lua first, then luasocket.
			for _, project := range []string{"lua", "luasocket"} {
				files, ok := tt.checklists[project]
				if !ok {
					continue
				}
				dir := t.TempDir()
				outputs[project] = dir
				items = append(items, checklist.Item{Project: project, OutputPath: dir, Files: files})
			}
			for project, files := range tt.present {
				for _, f := range files {
					path := filepath.Join(outputs[project], filepath.FromSlash(f))
					require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
					require.NoError(t, os.WriteFile(path, []byte("x"), 0o644))
				}
			}

			result, err := checklist.Verify(items, nil)

			if len(tt.expMissing) == 0 {
				require.NoError(t, err)
				assert.True(t, result.OK())
				return
			}

			require.ErrorIs(t, err, model.ErrMissingArtifact)
			assert.False(t, result.OK())
			assert.Equal(t, tt.expMissing, result.Missing)
		})
	}
}
