package consolidate

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/Sumatoshi-tech/gitperf/internal/refs"
	"github.com/Sumatoshi-tech/gitperf/internal/vcs"
)

// RemoveOlderThan drops measurements attached to commits whose commit time
// is at or before threshold, then pushes the rewritten history back to
// canonical (spec §4.4.5).
func (e *Engine) RemoveOlderThan(ctx context.Context, remote string, threshold time.Time) error {
	return e.rewrite(ctx, remote, func(ctx context.Context, rewriteRef string) error {
		return e.removeOlderThan(ctx, rewriteRef, threshold)
	})
}

// Prune drops measurements attached to commits no longer reachable in
// history, then pushes the rewritten history back to canonical. Same
// pipeline as RemoveOlderThan without the time filter (spec §4.4.5).
func (e *Engine) Prune(ctx context.Context, remote string) error {
	return e.rewrite(ctx, remote, func(ctx context.Context, rewriteRef string) error {
		return e.Notes.Prune(ctx, rewriteRef)
	})
}

// rewrite implements the shared shallow-refusal, snapshot, filter, compact,
// push-with-lease sequence that backs both RemoveOlderThan and Prune.
func (e *Engine) rewrite(ctx context.Context, remote string, filter func(ctx context.Context, rewriteRef string) error) error {
	shallowOut, err := e.Runner.Capture(ctx, "rev-parse", "--is-shallow-repository")
	if err != nil {
		return fmt.Errorf("determine shallow-repository status: %w", err)
	}

	if trimBool(shallowOut.Stdout) {
		return fmt.Errorf("remove/prune measurements: %w", vcs.ErrShallowRepository)
	}

	if err := e.Pull(ctx, remote); err != nil {
		return err
	}

	snapshot, err := e.resolveOrEmpty(ctx, CanonicalRef)
	if err != nil {
		return err
	}

	rewriteRef, err := e.newTempRef(ctx, rewriteTargetPrefix, snapshot)
	if err != nil {
		return err
	}

	defer func() { _ = rewriteRef.Close(ctx) }()

	if err := filter(ctx, rewriteRef.Name); err != nil {
		return err
	}

	if err := e.Notes.Compact(ctx, rewriteRef.Name); err != nil {
		return err
	}

	remoteName, err := e.resolveRemote(ctx, remote)
	if err != nil {
		return err
	}

	if err := e.pushNotesRef(ctx, remoteName, snapshot, rewriteRef.Name); err != nil {
		return err
	}

	newTip, err := e.Refs.Resolve(ctx, rewriteRef.Name)
	if err != nil {
		return fmt.Errorf("resolve rewritten tip: %w", err)
	}

	txn := refs.NewTransaction().Update(CanonicalRef, newTip, snapshot)

	return e.Refs.Commit(ctx, txn)
}

// removeOlderThan runs the list -> commit-time lookup -> remove pipeline.
// The note listing is read in full before the other stages start; the
// commit-time lookup then runs in a goroutine that streams matching commit
// ids over a channel to the concurrently running remove process. Only the
// last two stages overlap.
func (e *Engine) removeOlderThan(ctx context.Context, rewriteRef string, threshold time.Time) error {
	entries, err := e.Notes.List(ctx, rewriteRef)
	if err != nil {
		return err
	}

	commits := make(chan string)
	errCh := make(chan error, 1)

	go func() {
		defer close(commits)

		for _, entry := range entries {
			ctime, err := e.commitTime(ctx, entry.CommitOID)
			if err != nil {
				errCh <- err
				return
			}

			if !ctime.After(threshold) {
				select {
				case commits <- entry.CommitOID:
				case <-ctx.Done():
					errCh <- ctx.Err()
					return
				}
			}
		}

		errCh <- nil
	}()

	if err := e.Notes.Remove(ctx, rewriteRef, commits); err != nil {
		return err
	}

	return <-errCh
}

func (e *Engine) commitTime(ctx context.Context, commit string) (time.Time, error) {
	out, err := e.Runner.Capture(ctx, "log", "-1", "--format=%ct", commit)
	if err != nil {
		return time.Time{}, fmt.Errorf("resolve commit time for %s: %w", commit, err)
	}

	secs, err := strconv.ParseInt(strings.TrimSpace(out.Stdout), 10, 64)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse commit time for %s: %w", commit, err)
	}

	return time.Unix(secs, 0).UTC(), nil
}

