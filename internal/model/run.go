package model

import "time"

// ResolvedRelease records which release a run resolved for a project.
type ResolvedRelease struct {
	Project string
	Release string
	URL     string
}

// Run is the ledger record of one pipeline invocation.
type Run struct {
	ID         string
	StartedAt  time.Time
	FinishedAt *time.Time
	Success    bool
	Releases   []ResolvedRelease
	// Missing holds every checklist path absent after the builds, relative to
	// the binaries root. Empty on success.
	Missing []string
}

// VerifyResult is the aggregate outcome of the post-build checklist pass.
type VerifyResult struct {
	// Missing holds every absent checklist file as "project: relative/path".
	Missing []string
}

// OK reports whether every checklist file of every project was present.
func (v VerifyResult) OK() bool { return len(v.Missing) == 0 }
