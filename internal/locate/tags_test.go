package locate_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/luamill/luamill/internal/locate"
	"github.com/luamill/luamill/internal/locate/locatemock"
	"github.com/luamill/luamill/internal/model"
)

func TestTagsLocate(t *testing.T) {
	tests := map[string]struct {
		tagsJSON    string
		normalize   model.TagNormalization
		expURL      string
		expFilename string
		expErr      error
	}{
		"Dotted tags select the numeric maximum": {
			tagsJSON:    `[{"name":"v1.4.0"},{"name":"v1.4.1"},{"name":"v1.4.10"}]`,
			normalize:   model.TagNormalizeDots,
			expURL:      "https://downloads.example.org/keplerproject/luafilesystem/archive/refs/tags/v1.4.10.tar.gz",
			expFilename: "luafilesystem-1.4.10.tar.gz",
		},
		"Underscore tags normalize before comparing": {
			tagsJSON:    `[{"name":"v1_2_0"},{"name":"v1.10.0"}]`,
			normalize:   model.TagNormalizeUnderscores,
			expURL:      "https://downloads.example.org/keplerproject/luafilesystem/archive/refs/tags/v1.10.0.tar.gz",
			expFilename: "luafilesystem-1.10.0.tar.gz",
		},
		"Rejected tags don't compete at all": {
			tagsJSON:    `[{"name":"pre-history"},{"name":"v1.2.0"},{"name":"snapshot-2008"}]`,
			normalize:   model.TagNormalizeDots,
			expURL:      "https://downloads.example.org/keplerproject/luafilesystem/archive/refs/tags/v1.2.0.tar.gz",
			expFilename: "luafilesystem-1.2.0.tar.gz",
		},
		"Only rejected tags fail with not found": {
			tagsJSON:  `[{"name":"pre-history"},{"name":"snapshot-2008"}]`,
			normalize: model.TagNormalizeDots,
			expErr:    model.ErrNotFound,
		},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			mf := &locatemock.MockFetcher{}
			mr := &locatemock.MockResolver{}
			mf.On("Fetch", mock.Anything, "https://api.example.org/repos/keplerproject/luafilesystem/tags?per_page=100").
				Return([]byte(tt.tagsJSON), nil)
			if tt.expErr == nil {
				mr.On("Resolve", tt.expURL, tt.expFilename).Return(model.ReleaseRef{URL: tt.expURL}, nil)
			}

			loc, err := locate.NewTagsWithBaseURL(locate.TagsConfig{
				Owner:     "keplerproject",
				Repo:      "luafilesystem",
				Normalize: tt.normalize,
				Fetcher:   mf,
				Resolver:  mr,
			}, "https://api.example.org", "https://downloads.example.org")
			require.NoError(t, err)

			ref, err := loc.Locate(context.Background())

			if tt.expErr != nil {
				require.ErrorIs(t, err, tt.expErr)
				return
			}

			require.NoError(t, err)
			assert.Equal(t, tt.expURL, ref.URL)
			mr.AssertExpectations(t)
		})
	}
}

func TestNewTagsValidation(t *testing.T) {
	_, err := locate.NewTags(locate.TagsConfig{Repo: "x"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "owner and repo are required")
}
