package measurement

import (
	"context"

	"github.com/Sumatoshi-tech/gitperf/internal/codec"
)

// Walk walks up to maxCommits commits (first-parent) starting at from,
// decoding each commit's measurements (spec's `walk_commits` verb, grounded
// on measurement_retrieval.rs's walk_commits_from).
func (e *Engine) Walk(ctx context.Context, from string, maxCommits int) ([]Commit, error) {
	notes, err := e.consolidate.Read(ctx, from, maxCommits)
	if err != nil {
		return nil, err
	}

	commits := make([]Commit, 0, len(notes))
	for _, n := range notes {
		commits = append(commits, Commit{Hash: n.Commit, Measurements: codec.Decode(n.Note)})
	}

	return commits, nil
}

// ListCommitsWithMeasurements returns every commit hash with at least one
// recorded measurement, including ones not yet pushed.
func (e *Engine) ListCommitsWithMeasurements(ctx context.Context) ([]string, error) {
	return e.consolidate.ListCommitsWithMeasurements(ctx)
}

// TakeWhileSameEpoch truncates commits at the first commit whose first
// measurement's epoch differs from the first commit's epoch, using name to
// select which measurement's epoch to compare (spec's epoch-gate,
// grounded on measurement_retrieval.rs's take_while_same_epoch). A commit
// with no matching measurement does not break the run.
func TakeWhileSameEpoch(commits []Commit, name string) []Commit {
	var firstEpoch *uint32

	out := make([]Commit, 0, len(commits))

	for _, c := range commits {
		epoch, ok := epochOf(c, name)
		if !ok {
			out = append(out, c)
			continue
		}

		if firstEpoch == nil {
			e := epoch
			firstEpoch = &e
		} else if *firstEpoch != epoch {
			break
		}

		out = append(out, c)
	}

	return out
}

func epochOf(c Commit, name string) (uint32, bool) {
	for _, m := range c.Measurements {
		if m.Name == name {
			return m.Epoch, true
		}
	}

	return 0, false
}
