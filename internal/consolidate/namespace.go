// Package consolidate implements the write/read/push/pull/removal
// protocols (spec §4.4) on top of internal/refs and internal/notes.
package consolidate

const (
	// CanonicalRef is the remote-synchronized branch of consolidated
	// measurements.
	CanonicalRef = "refs/notes/perf-v3"

	// WriteSymbolicRef names the current write target indirectly, so it can
	// be rotated atomically during push without invalidating in-flight
	// appends.
	WriteSymbolicRef = "refs/notes/perf-v3-write"

	writeTargetPrefix  = "refs/notes/perf-v3-write-"
	addTargetPrefix    = "refs/notes/perf-v3-add-"
	rewriteTargetPrefix = "refs/notes/perf-v3-rewrite-"
	mergeBranchPrefix  = "refs/notes/perf-v3-merge-"
	readPrefix         = "refs/notes/perf-v3-read-"

	// DefaultRemote is the dedicated remote name git-perf prefers for
	// measurement sync, falling back to origin if unset.
	DefaultRemote = "git-perf-origin"

	// OriginRemote is the standard git remote name used as a fallback.
	OriginRemote = "origin"
)
