package model

// ReleaseRef identifies one discovered release candidate and the canonical
// local paths derived from it. It is a plain value, immutable once created.
type ReleaseRef struct {
	// URL is the release download URL.
	URL string
	// Name is the canonical release name: lower-cased basename of the URL
	// path with known archive extensions stripped (e.g. "lua-5.1.4").
	Name string
	// ArchivePath is where the downloaded archive lives.
	ArchivePath string
	// BuildPath is the extraction/working tree for the release.
	BuildPath string
	// OutputPath is the per-project final binaries tree.
	OutputPath string
}
