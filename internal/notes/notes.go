// Package notes wraps git's notes machinery (spec §4.3): appending to,
// merging, listing, streaming-removing from, and compacting the note tree
// attached to one reference.
package notes

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/Sumatoshi-tech/gitperf/internal/refs"
	"github.com/Sumatoshi-tech/gitperf/internal/vcs"
)

// Store operates on the notes tree rooted at references under one
// repository.
type Store struct {
	Runner *vcs.Runner
}

// New returns a Store backed by r.
func New(r *vcs.Runner) *Store {
	return &Store{Runner: r}
}

// Append adds one line to commit's note under ref.
func (s *Store) Append(ctx context.Context, ref, commit, line string) error {
	_, err := s.Runner.Capture(ctx, "notes", "--ref", ref, "append", "-m", line, commit)
	if err != nil {
		return fmt.Errorf("append note to %s under %s: %w", commit, ref, err)
	}

	return nil
}

// Merge merges src's notes into dst using the cat_sort_uniq strategy: line
// union, sorted, deduplicated. This is the commutative/associative/
// idempotent property (spec I2) that makes note-ref merge order irrelevant.
func (s *Store) Merge(ctx context.Context, dst, src string) error {
	_, err := s.Runner.Capture(ctx, "notes", "--ref", dst, "merge", "-s", "cat_sort_uniq", src)
	if err != nil {
		return fmt.Errorf("merge notes %s into %s: %w", src, dst, err)
	}

	return nil
}

// Entry is one (note object, annotated commit) pair as returned by `notes
// list`.
type Entry struct {
	NoteOID   string
	CommitOID string
}

// List enumerates every (note, commit) pair under ref.
func (s *Store) List(ctx context.Context, ref string) ([]Entry, error) {
	out, err := s.Runner.Capture(ctx, "notes", "--ref", ref, "list")
	if err != nil {
		return nil, fmt.Errorf("list notes under %s: %w", ref, err)
	}

	var entries []Entry

	for _, line := range strings.Split(out.Stdout, "\n") {
		if line == "" {
			continue
		}

		fields := strings.Fields(line)
		if len(fields) != 2 {
			return nil, fmt.Errorf("malformed notes list line: %q", line)
		}

		entries = append(entries, Entry{NoteOID: fields[0], CommitOID: fields[1]})
	}

	return entries, nil
}

// Remove streams commit ids from commits to `git notes remove --stdin
// --ignore-missing` under ref, so a caller can filter a potentially large
// commit set without materializing it (spec §4.4.5, three-stage pipeline).
func (s *Store) Remove(ctx context.Context, ref string, commits <-chan string) error {
	proc, err := s.Runner.Spawn(ctx, []string{"notes", "--ref", ref, "remove", "--stdin", "--ignore-missing"})
	if err != nil {
		return fmt.Errorf("spawn notes remove under %s: %w", ref, err)
	}

	writeErr := make(chan error, 1)

	go func() {
		defer close(writeErr)
		defer proc.Stdin.Close()

		w := bufio.NewWriter(proc.Stdin)

		for commit := range commits {
			if _, err := w.WriteString(commit + "\n"); err != nil {
				writeErr <- err
				return
			}
		}

		writeErr <- w.Flush()
	}()

	_, _ = io.Copy(io.Discard, proc.Stdout)

	if err := <-writeErr; err != nil {
		_ = proc.Wait()
		return fmt.Errorf("stream commits to notes remove under %s: %w", ref, err)
	}

	if err := proc.Wait(); err != nil {
		return fmt.Errorf("notes remove under %s: %w", ref, err)
	}

	return nil
}

// Prune removes notes whose annotated commit no longer exists.
func (s *Store) Prune(ctx context.Context, ref string) error {
	_, err := s.Runner.Capture(ctx, "notes", "--ref", ref, "prune")
	if err != nil {
		return fmt.Errorf("prune notes under %s: %w", ref, err)
	}

	return nil
}

// Compact severs ref's history: it replaces the note tree's underlying
// commit-ish object graph with a single fresh commit carrying the same
// tree, so history no longer grows unbounded across every append/merge
// (spec §4.4.5 step 5).
func (s *Store) Compact(ctx context.Context, ref string) error {
	rm := refs.New(s.Runner)

	before, err := rm.Resolve(ctx, ref)
	if err != nil {
		return fmt.Errorf("resolve %s before compaction: %w", ref, err)
	}

	treeOut, err := s.Runner.Capture(ctx, "rev-parse", ref+"^{tree}")
	if err != nil {
		return fmt.Errorf("resolve tree for %s: %w", ref, err)
	}

	tree := strings.TrimSpace(treeOut.Stdout)

	commitOut, err := s.Runner.Capture(ctx, "commit-tree", "-m", "cutoff history", tree)
	if err != nil {
		return fmt.Errorf("create compacted commit for %s: %w", ref, err)
	}

	compacted := strings.TrimSpace(commitOut.Stdout)

	txn := refs.NewTransaction().Update(ref, compacted, before)
	if err := rm.Commit(ctx, txn); err != nil {
		return fmt.Errorf("install compacted commit for %s: %w", ref, err)
	}

	return nil
}
