package model

import "errors"

var (
	// ErrNotFound is returned when a release locator finds no candidate
	// matching the project's filename pattern.
	ErrNotFound = errors.New("not found")
	// ErrEmptyInput is returned when a selection is attempted over zero candidates.
	ErrEmptyInput = errors.New("empty input")
	// ErrClassification is returned when a download page anchor matches the
	// general file pattern but none of the configured buckets. It signals that
	// the upstream page format no longer matches our assumptions.
	ErrClassification = errors.New("unclassifiable candidate")
	// ErrUnsupportedFormat is returned when an archive suffix is not recognized.
	ErrUnsupportedFormat = errors.New("unsupported archive format")
	// ErrAmbiguousExtraction is returned when an extraction produced zero or
	// more than one new top-level entry in the builds root.
	ErrAmbiguousExtraction = errors.New("ambiguous extraction")
	// ErrBuildFailed is returned when a toolchain process exited non-zero or abnormally.
	ErrBuildFailed = errors.New("build failed")
	// ErrMissingArtifact is returned when a checklist file is absent after a build.
	ErrMissingArtifact = errors.New("missing artifact")
	// ErrNotValid is returned when a resource is not valid.
	ErrNotValid = errors.New("not valid")
)
