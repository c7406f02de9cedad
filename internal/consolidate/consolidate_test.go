package consolidate_test

import (
	"context"
	"os/exec"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sumatoshi-tech/gitperf/internal/codec"
	"github.com/Sumatoshi-tech/gitperf/internal/consolidate"
	"github.com/Sumatoshi-tech/gitperf/internal/vcs"
)

func hermeticEnv(t *testing.T) {
	t.Helper()
	t.Setenv("GIT_CONFIG_NOSYSTEM", "true")
	t.Setenv("GIT_CONFIG_GLOBAL", "/dev/null")
	t.Setenv("GIT_AUTHOR_NAME", "testuser")
	t.Setenv("GIT_AUTHOR_EMAIL", "testuser@example.com")
	t.Setenv("GIT_COMMITTER_NAME", "testuser")
	t.Setenv("GIT_COMMITTER_EMAIL", "testuser@example.com")
}

func runGit(t *testing.T, dir string, args ...string) string {
	t.Helper()

	cmd := exec.Command("git", args...)
	cmd.Dir = dir
	out, err := cmd.CombinedOutput()
	require.NoErrorf(t, err, "git %v: %s", args, out)

	return string(out)
}

func trimNL(s string) string {
	for len(s) > 0 && (s[len(s)-1] == '\n' || s[len(s)-1] == '\r') {
		s = s[:len(s)-1]
	}

	return s
}

// setupClone returns (bare dir, clone dir, HEAD oid) for a repo that has one remote
// "origin" pointing at a bare repository, matching the clone topology
// git-perf expects two peers to share.
func setupClone(t *testing.T) (string, string, string) {
	t.Helper()
	hermeticEnv(t)

	bareDir := t.TempDir()
	runGit(t, bareDir, "init", "--bare", "--initial-branch", "main")

	cloneDir := t.TempDir()
	runGit(t, "", "clone", bareDir, cloneDir)
	runGit(t, cloneDir, "commit", "--allow-empty", "-m", "initial commit")
	runGit(t, cloneDir, "push", "origin", "main")

	head := trimNL(runGit(t, cloneDir, "rev-parse", "HEAD"))

	return bareDir, cloneDir, head
}

func TestRepeatedAppendAnnotatesSingleCommit(t *testing.T) {
	_, dir, head := setupClone(t)

	r := vcs.NewRunner(dir)
	e := consolidate.New(r)
	ctx := context.Background()

	line := codec.Encode([]codec.Record{{Epoch: 1, Name: "wall", Timestamp: 1, Value: 2}})

	require.NoError(t, e.Append(ctx, head, line))
	require.NoError(t, e.Append(ctx, head, line))

	notes, err := e.Read(ctx, head, 10)
	require.NoError(t, err)
	require.Len(t, notes, 1)
	assert.Contains(t, notes[0].Note, "wall")
}

func TestPushThenPullRoundTrip(t *testing.T) {
	_, dir, head := setupClone(t)

	r := vcs.NewRunner(dir)
	e := consolidate.New(r)
	ctx := context.Background()

	line := codec.Encode([]codec.Record{{Epoch: 1, Name: "wall", Timestamp: 1, Value: 2}})
	require.NoError(t, e.Append(ctx, head, line))

	require.NoError(t, e.Push(ctx, "origin"))

	records, err := e.Read(ctx, head, 10)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Contains(t, records[0].Note, "wall")
}

func TestPushEmptyFailsWithMissingMeasurements(t *testing.T) {
	_, dir, _ := setupClone(t)

	r := vcs.NewRunner(dir)
	e := consolidate.New(r)
	ctx := context.Background()

	err := e.Push(ctx, "origin")
	require.Error(t, err)
	assert.ErrorIs(t, err, vcs.ErrMissingMeasurements)
}

func TestTwoAppendersMergeWithoutDataLoss(t *testing.T) {
	bareDir, dirA, head := setupClone(t)

	dirB := t.TempDir()
	runGit(t, "", "clone", bareDir, dirB)

	rA := vcs.NewRunner(dirA)
	eA := consolidate.New(rA)
	rB := vcs.NewRunner(dirB)
	eB := consolidate.New(rB)
	ctx := context.Background()

	lineA := codec.Encode([]codec.Record{{Epoch: 1, Name: "a", Timestamp: 1, Value: 1}})
	lineB := codec.Encode([]codec.Record{{Epoch: 1, Name: "b", Timestamp: 1, Value: 2}})

	require.NoError(t, eA.Append(ctx, head, lineA))
	require.NoError(t, eA.Push(ctx, "origin"))

	require.NoError(t, eB.Append(ctx, head, lineB))
	// Push is a single CAS attempt against the locally observed canonical
	// tip, so B fetches A's published canonical before pushing.
	require.NoError(t, eB.Pull(ctx, "origin"))
	require.NoError(t, eB.Push(ctx, "origin"))

	require.NoError(t, eA.Pull(ctx, "origin"))

	records, err := eA.Read(ctx, head, 10)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Contains(t, records[0].Note, "a")
	assert.Contains(t, records[0].Note, "b")
}

func TestRemoveOlderThanDropsOldMeasurements(t *testing.T) {
	_, dir, head := setupClone(t)

	r := vcs.NewRunner(dir)
	e := consolidate.New(r)
	ctx := context.Background()

	line := codec.Encode([]codec.Record{{Epoch: 1, Name: "wall", Timestamp: 1, Value: 2}})
	require.NoError(t, e.Append(ctx, head, line))
	require.NoError(t, e.Push(ctx, "origin"))

	require.NoError(t, e.RemoveOlderThan(ctx, "origin", time.Now().Add(time.Hour)))

	records, err := e.Read(ctx, head, 10)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Empty(t, records[0].Note)
}
