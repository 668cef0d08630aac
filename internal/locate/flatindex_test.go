package locate_test

import (
	"context"
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/luamill/luamill/internal/locate"
	"github.com/luamill/luamill/internal/locate/locatemock"
	"github.com/luamill/luamill/internal/model"
)

const luaIndexPage = `<html><body><pre>
<a href="lua-5.1.2.tar.gz">lua-5.1.2.tar.gz</a>
<a href="lua-5.1.3.tar.gz">lua-5.1.3.tar.gz</a>
<a href="lua-5.1.10.tar.gz">lua-5.1.10.tar.gz</a>
<a href="lua-5.1.3.tar.gz.md5">lua-5.1.3.tar.gz.md5</a>
<a href="README">README</a>
</pre></body></html>`

func TestFlatIndexLocate(t *testing.T) {
	tests := map[string]struct {
		page       string
		pattern    string
		setupMocks func(f *locatemock.MockFetcher, r *locatemock.MockResolver)
		expURL     string
		expErr     error
	}{
		"Highest release wins by numeric token order": {
			page:    luaIndexPage,
			pattern: `^lua-5\.1(\.\d+)?\.tar\.gz$`,
			setupMocks: func(f *locatemock.MockFetcher, r *locatemock.MockResolver) {
				r.On("Resolve", "https://www.lua.org/ftp/lua-5.1.10.tar.gz", "").
					Return(model.ReleaseRef{URL: "https://www.lua.org/ftp/lua-5.1.10.tar.gz", Name: "lua-5.1.10"}, nil)
			},
			expURL: "https://www.lua.org/ftp/lua-5.1.10.tar.gz",
		},
		"No matching anchor fails with not found": {
			page:    `<html><a href="other.txt">other</a></html>`,
			pattern: `^lua-.*\.tar\.gz$`,
			expErr:  model.ErrNotFound,
		},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			mf := &locatemock.MockFetcher{}
			mr := &locatemock.MockResolver{}
			mf.On("Fetch", mock.Anything, "https://www.lua.org/ftp/").Return([]byte(tt.page), nil)
			if tt.setupMocks != nil {
				tt.setupMocks(mf, mr)
			}

			loc, err := locate.NewFlatIndex(locate.FlatIndexConfig{
				URL:      "https://www.lua.org/ftp/",
				Pattern:  regexp.MustCompile(tt.pattern),
				Fetcher:  mf,
				Resolver: mr,
			})
			require.NoError(t, err)

			ref, err := loc.Locate(context.Background())

			if tt.expErr != nil {
				require.ErrorIs(t, err, tt.expErr)
				return
			}

			require.NoError(t, err)
			assert.Equal(t, tt.expURL, ref.URL)
			mf.AssertExpectations(t)
			mr.AssertExpectations(t)
		})
	}
}

func TestNewFlatIndexValidation(t *testing.T) {
	_, err := locate.NewFlatIndex(locate.FlatIndexConfig{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "url is required")
}
