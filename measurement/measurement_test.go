package measurement_test

import (
	"context"
	"os/exec"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sumatoshi-tech/gitperf/internal/codec"
	"github.com/Sumatoshi-tech/gitperf/internal/config"
	"github.com/Sumatoshi-tech/gitperf/internal/observability"
	"github.com/Sumatoshi-tech/gitperf/internal/vcs"
	"github.com/Sumatoshi-tech/gitperf/measurement"
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

func initRepo(t *testing.T) (string, string) {
	t.Helper()
	hermeticEnv(t)

	dir := t.TempDir()

	run := func(args ...string) string {
		cmd := exec.Command("git", args...)
		cmd.Dir = dir
		out, err := cmd.CombinedOutput()
		require.NoErrorf(t, err, "git %v: %s", args, out)
		return string(out)
	}

	run("init", "--initial-branch", "main")
	run("commit", "--allow-empty", "-m", "initial commit")

	return dir, trimNL(run("rev-parse", "HEAD"))
}

func trimNL(s string) string {
	for len(s) > 0 && (s[len(s)-1] == '\n' || s[len(s)-1] == '\r') {
		s = s[:len(s)-1]
	}

	return s
}

func TestAddThenWalk(t *testing.T) {
	dir, head := initRepo(t)
	r := vcs.NewRunner(dir)
	e := measurement.New(r, &config.Document{})
	ctx := context.Background()

	require.NoError(t, e.Add(ctx, "wall_clock", 12.5, map[string]string{"os": "linux"}))

	commits, err := e.Walk(ctx, head, 10)
	require.NoError(t, err)
	require.Len(t, commits, 1)
	require.Len(t, commits[0].Measurements, 1)
	assert.Equal(t, "wall_clock", commits[0].Measurements[0].Name)
	assert.InEpsilon(t, 12.5, commits[0].Measurements[0].Value, 0.0001)
}

func TestAddMultiple(t *testing.T) {
	dir, head := initRepo(t)
	r := vcs.NewRunner(dir)
	e := measurement.New(r, &config.Document{})
	ctx := context.Background()

	require.NoError(t, e.AddMultiple(ctx, "wall_clock", []float64{1, 2, 3}, nil))

	commits, err := e.Walk(ctx, head, 10)
	require.NoError(t, err)
	require.Len(t, commits, 1)
	assert.Len(t, commits[0].Measurements, 3)
}

func TestAddUsesConfiguredEpoch(t *testing.T) {
	dir, head := initRepo(t)
	r := vcs.NewRunner(dir)

	cfg, err := config.Parse([]byte(`[measurement."wall_clock"]
epoch = "12344555"
`))
	require.NoError(t, err)

	e := measurement.New(r, cfg)
	ctx := context.Background()

	require.NoError(t, e.Add(ctx, "wall_clock", 1, nil))

	commits, err := e.Walk(ctx, head, 10)
	require.NoError(t, err)
	require.Len(t, commits, 1)
	assert.Equal(t, uint32(0x12344555), commits[0].Measurements[0].Epoch)
}

func TestListCommitsWithMeasurements(t *testing.T) {
	dir, head := initRepo(t)
	r := vcs.NewRunner(dir)
	e := measurement.New(r, &config.Document{})
	ctx := context.Background()

	require.NoError(t, e.Add(ctx, "wall_clock", 1, nil))

	commits, err := e.ListCommitsWithMeasurements(ctx)
	require.NoError(t, err)
	require.Len(t, commits, 1)
	assert.Equal(t, head, commits[0])
}

func TestTakeWhileSameEpoch(t *testing.T) {
	withEpoch := func(epoch uint32) []codec.Record {
		return []codec.Record{{Epoch: epoch, Name: "m", Timestamp: 1, Value: 1}}
	}

	commits := []measurement.Commit{
		{Hash: "a", Measurements: withEpoch(1)},
		{Hash: "b", Measurements: withEpoch(1)},
		{Hash: "c", Measurements: withEpoch(2)},
		{Hash: "d", Measurements: withEpoch(2)},
	}

	got := measurement.TakeWhileSameEpoch(commits, "m")
	require.Len(t, got, 2)
	assert.Equal(t, "a", got[0].Hash)
	assert.Equal(t, "b", got[1].Hash)
}

func TestBumpEpochChangesSubsequentAdds(t *testing.T) {
	dir, head := initRepo(t)
	r := vcs.NewRunner(dir)
	cfg := &config.Document{}
	e := measurement.New(r, cfg)
	ctx := context.Background()

	require.NoError(t, e.Add(ctx, "wall_clock", 1, nil))

	path := dir + "/.gitperfconfig"
	require.NoError(t, e.BumpEpoch(ctx, path, "wall_clock"))

	loaded, err := config.Load(path)
	require.NoError(t, err)

	e2 := measurement.New(r, loaded)
	require.NoError(t, e2.Add(ctx, "wall_clock", 2, nil))

	commits, err := e2.Walk(ctx, head, 10)
	require.NoError(t, err)
	require.Len(t, commits, 1)
	require.Len(t, commits[0].Measurements, 2)
	assert.NotEqual(t, commits[0].Measurements[0].Epoch, commits[0].Measurements[1].Epoch)
}

// setupClone returns (clone dir, HEAD oid) for a repo with a remote
// "origin" pointing at a bare repository, matching consolidate_test.go's
// topology.
func setupClone(t *testing.T) (string, string) {
	t.Helper()
	hermeticEnv(t)

	bareDir := t.TempDir()
	run := func(dir string, args ...string) string {
		cmd := exec.Command("git", args...)
		cmd.Dir = dir
		out, err := cmd.CombinedOutput()
		require.NoErrorf(t, err, "git %v: %s", args, out)
		return string(out)
	}
	run(bareDir, "init", "--bare", "--initial-branch", "main")

	cloneDir := t.TempDir()
	run("", "clone", bareDir, cloneDir)
	run(cloneDir, "commit", "--allow-empty", "-m", "initial commit")
	run(cloneDir, "push", "origin", "main")

	return cloneDir, trimNL(run(cloneDir, "rev-parse", "HEAD"))
}

func TestPushRecordsMetricsAttemptAndOutcome(t *testing.T) {
	dir, _ := setupClone(t)
	r := vcs.NewRunner(dir)
	metrics, reg := observability.NewMetrics()
	e := measurement.New(r, &config.Document{}, measurement.WithMetrics(metrics))
	ctx := context.Background()

	require.NoError(t, e.Add(ctx, "wall_clock", 1, nil))
	require.NoError(t, e.Push(ctx, "origin"))

	count := testutil.CollectAndCount(reg, "gitperf_operation_attempts_total")
	assert.Positive(t, count)
}

func TestPullRecordsMetricsAttempt(t *testing.T) {
	dir, _ := setupClone(t)
	r := vcs.NewRunner(dir)
	metrics, reg := observability.NewMetrics()
	e := measurement.New(r, &config.Document{}, measurement.WithMetrics(metrics))
	ctx := context.Background()

	// The remote has no canonical ref yet, so the pull fails permanently; the
	// failed attempt is still counted.
	require.ErrorIs(t, e.Pull(ctx, "origin"), vcs.ErrNoRemoteMeasurements)

	count := testutil.CollectAndCount(reg, "gitperf_operation_attempts_total")
	assert.Positive(t, count)
}

func TestNilMetricsIsSafeForPush(t *testing.T) {
	dir, _ := setupClone(t)
	r := vcs.NewRunner(dir)
	e := measurement.New(r, &config.Document{})
	ctx := context.Background()

	require.NoError(t, e.Add(ctx, "wall_clock", 1, nil))
	require.NoError(t, e.Push(ctx, "origin"))
}

func TestClockOverrideIsUsedForTimestamps(t *testing.T) {
	dir, head := initRepo(t)
	r := vcs.NewRunner(dir)

	fixed := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	e := measurement.New(r, &config.Document{}, measurement.WithClock(func() time.Time { return fixed }))
	ctx := context.Background()

	require.NoError(t, e.Add(ctx, "wall_clock", 1, nil))

	commits, err := e.Walk(ctx, head, 10)
	require.NoError(t, err)
	require.Len(t, commits, 1)
	assert.InEpsilon(t, float64(fixed.Unix()), commits[0].Measurements[0].Timestamp, 0.0001)
}
