// Package locate turns a project's upstream source (directory listing, shared
// download page, homepage or tag-listing API) into a concrete ReleaseRef for
// the newest available release.
package locate

import (
	"context"
	"fmt"
	"strings"

	"golang.org/x/net/html"

	"github.com/luamill/luamill/internal/model"
	"github.com/luamill/luamill/internal/version"
)

// Locator resolves the latest release of one project.
type Locator interface {
	Locate(ctx context.Context) (*model.ReleaseRef, error)
}

// Fetcher downloads the bytes behind a URL.
type Fetcher interface {
	Fetch(ctx context.Context, url string) ([]byte, error)
}

// Resolver derives the canonical release name and local paths for a download
// URL. An empty filename means derive it from the URL path.
type Resolver interface {
	Resolve(url string, filename string) (model.ReleaseRef, error)
}

// selectMaxName picks the highest release filename under the version token
// order, stripping known archive suffixes before comparing.
func selectMaxName(candidates []string) (string, error) {
	best, err := version.SelectMax(candidates, true)
	if err != nil {
		return "", fmt.Errorf("selecting max candidate: %w", err)
	}
	return best, nil
}

// anchorHrefs extracts the href target of every anchor in an HTML document.
// The tokenizer is forgiving with real-world markup, which matters because
// the upstream pages are hand-edited HTML.
func anchorHrefs(page []byte) []string {
	var hrefs []string

	tokenizer := html.NewTokenizer(strings.NewReader(string(page)))
	for {
		tt := tokenizer.Next()
		if tt == html.ErrorToken {
			return hrefs
		}
		if tt != html.StartTagToken && tt != html.SelfClosingTagToken {
			continue
		}

		name, hasAttr := tokenizer.TagName()
		if string(name) != "a" || !hasAttr {
			continue
		}

		for {
			key, val, more := tokenizer.TagAttr()
			if string(key) == "href" {
				hrefs = append(hrefs, string(val))
			}
			if !more {
				break
			}
		}
	}
}

// hrefFilename returns the filename component of an anchor target, ignoring
// any query or fragment part.
func hrefFilename(href string) string {
	if i := strings.IndexAny(href, "?#"); i >= 0 {
		href = href[:i]
	}
	if i := strings.LastIndex(href, "/"); i >= 0 {
		href = href[i+1:]
	}
	return href
}
