package pack_test

import (
	"archive/zip"
	"context"
	"os"
	"path/filepath"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/luamill/luamill/internal/pack"
	"github.com/luamill/luamill/internal/pack/packmock"
)

func TestPackAll(t *testing.T) {
	binDir := t.TempDir()

	// Two release output trees.
	for rel, content := range map[string]string{
		"lua-5.1.10/lua.exe":             "exe",
		"lua-5.1.10/include/lua.hpp":     "hpp",
		"luasocket-2.0.2/socket/core.so": "so",
	} {
		path := filepath.Join(binDir, filepath.FromSlash(rel))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	}

	mu := &packmock.MockUploader{}
	mu.On("Upload", mock.Anything, mock.Anything).Return(nil)

	packer, err := pack.NewPacker(pack.PackerConfig{
		BinariesDir: binDir,
		Uploader:    mu,
	})
	require.NoError(t, err)

	archives, err := packer.PackAll(context.Background())
	require.NoError(t, err)

	require.Len(t, archives, 2)
	assert.FileExists(t, filepath.Join(binDir, "lua-5.1.10.zip"))
	assert.FileExists(t, filepath.Join(binDir, "luasocket-2.0.2.zip"))

	// Archive contents use slash-separated paths relative to the tree.
	zr, err := zip.OpenReader(filepath.Join(binDir, "lua-5.1.10.zip"))
	require.NoError(t, err)
	defer zr.Close()

	var names []string
	for _, f := range zr.File {
		names = append(names, f.Name)
	}
	sort.Strings(names)
	assert.Equal(t, []string{"include/lua.hpp", "lua.exe"}, names)

	mu.AssertNumberOfCalls(t, "Upload", 2)
}

func TestPackAllWithoutUploader(t *testing.T) {
	binDir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(binDir, "lua-5.1.4"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(binDir, "lua-5.1.4", "lua.exe"), []byte("x"), 0o644))

	packer, err := pack.NewPacker(pack.PackerConfig{BinariesDir: binDir})
	require.NoError(t, err)

	// No uploader configured: packaging succeeds, upload silently skipped.
	archives, err := packer.PackAll(context.Background())
	require.NoError(t, err)
	assert.Len(t, archives, 1)
}

func TestNewScpUploaderValidation(t *testing.T) {
	tests := map[string]struct {
		dest   string
		expErr string
	}{
		"Empty destination fails":       {dest: "", expErr: "destination is required"},
		"Destination without host part": {dest: "/local/path", expErr: "host:path form"},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := pack.NewScpUploader(pack.ScpUploaderConfig{Dest: tt.dest})
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.expErr)
		})
	}
}
