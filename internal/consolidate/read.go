package consolidate

import (
	"context"
	"fmt"

	"github.com/Sumatoshi-tech/gitperf/internal/vcs"
)

// CommitNote pairs a commit with the decoded-ready note body attached to it
// (empty if the commit has no note under the read snapshot).
type CommitNote struct {
	Commit string
	Note   string
}

// newReadRef builds a scoped read ref at the current canonical tip with
// every pending write ref merged in (spec §4.4.2 steps 1-3; also used by
// ListCommitsWithMeasurements, matching update_read_branch in the original).
func (e *Engine) newReadRef(ctx context.Context) (*TempRef, error) {
	upstream, err := e.resolveOrEmpty(ctx, CanonicalRef)
	if err != nil {
		return nil, err
	}

	readRef, err := e.newTempRef(ctx, readPrefix, upstream)
	if err != nil {
		return nil, err
	}

	if _, err := e.consolidateInto(ctx, readRef.Name, ""); err != nil {
		_ = readRef.Close(ctx)
		return nil, err
	}

	return readRef, nil
}

// Read materializes a consistent view of canonical plus all pending local
// writes, then walks up to maxCommits commits reachable (first-parent) from
// from, returning each commit's note body (spec §4.4.2).
func (e *Engine) Read(ctx context.Context, from string, maxCommits int) ([]CommitNote, error) {
	readRef, err := e.newReadRef(ctx)
	if err != nil {
		return nil, err
	}

	defer func() { _ = readRef.Close(ctx) }()

	commits, shallow, err := e.walkCommits(ctx, from, maxCommits)
	if err != nil {
		return nil, err
	}

	if shallow && len(commits) < maxCommits {
		return nil, vcs.ErrShallowRepository
	}

	out := make([]CommitNote, 0, len(commits))

	for _, commit := range commits {
		body, err := e.Runner.Capture(ctx, "notes", "--ref", readRef.Name, "show", commit)

		note := ""

		if err == nil {
			note = body.Stdout
		}

		out = append(out, CommitNote{Commit: commit, Note: note})
	}

	return out, nil
}

// ListCommitsWithMeasurements returns every commit hash annotated under the
// current read snapshot (canonical plus pending writes), matching
// list_commits_with_measurements in the original.
func (e *Engine) ListCommitsWithMeasurements(ctx context.Context) ([]string, error) {
	readRef, err := e.newReadRef(ctx)
	if err != nil {
		return nil, err
	}

	defer func() { _ = readRef.Close(ctx) }()

	entries, err := e.Notes.List(ctx, readRef.Name)
	if err != nil {
		return nil, err
	}

	commits := make([]string, 0, len(entries))
	for _, entry := range entries {
		commits = append(commits, entry.CommitOID)
	}

	return commits, nil
}

// walkCommits lists up to maxCommits first-parent commit ids starting at
// from, and reports whether the walk hit a shallow-clone grafted boundary.
func (e *Engine) walkCommits(ctx context.Context, from string, maxCommits int) ([]string, bool, error) {
	shallowOut, err := e.Runner.Capture(ctx, "rev-parse", "--is-shallow-repository")
	if err != nil {
		return nil, false, fmt.Errorf("determine shallow-repository status: %w", err)
	}

	shallow := trimBool(shallowOut.Stdout)

	logOut, err := e.Runner.Capture(ctx, "log", "--first-parent", "--format=%H",
		fmt.Sprintf("-n%d", maxCommits), from)
	if err != nil {
		return nil, shallow, &vcs.MissingHeadError{Reference: from}
	}

	var commits []string

	for _, line := range splitLines(logOut.Stdout) {
		commits = append(commits, line)
	}

	return commits, shallow, nil
}

func trimBool(s string) bool {
	return trimmedEquals(s, "true")
}

func trimmedEquals(s, want string) bool {
	n := len(s)
	for n > 0 && (s[n-1] == '\n' || s[n-1] == '\r') {
		n--
	}

	return s[:n] == want
}

func splitLines(s string) []string {
	var lines []string

	start := 0

	for i := 0; i < len(s); i++ {
		if s[i] == '\n' {
			if i > start {
				lines = append(lines, s[start:i])
			}

			start = i + 1
		}
	}

	if start < len(s) {
		lines = append(lines, s[start:])
	}

	return lines
}
