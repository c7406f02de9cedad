// Package commands implements the gitperf CLI's subcommands, one file per
// command group, mirroring cmd/codefang/commands' structure: an XCommand
// struct holding parsed flags and a NewXCommand constructor returning a
// configured *cobra.Command.
package commands

import (
	"fmt"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/Sumatoshi-tech/gitperf/internal/config"
	"github.com/Sumatoshi-tech/gitperf/internal/observability"
	"github.com/Sumatoshi-tech/gitperf/internal/vcs"
	"github.com/Sumatoshi-tech/gitperf/measurement"
)

// Globals bound to root's persistent flags in cmd/gitperf/main.go, read by
// every subcommand (mirrors codefang's package-level verbose/quiet vars,
// extended with the repo/remote plumbing git-perf's core needs).
var (
	RepoDir string
	Remote  string

	// EngineMetrics is set once by main.go before Execute and threaded into
	// every Engine newEngine builds, so push/pull/prune attempt and retry
	// counts are always counted, whether or not --metrics-addr serves them.
	EngineMetrics *observability.Metrics
)

// newEngine loads the repo's config and builds a measurement.Engine rooted
// at RepoDir.
func newEngine() (*measurement.Engine, error) {
	runner := vcs.NewRunner(RepoDir)

	cfg, err := config.Load(filepath.Join(RepoDir, config.DefaultPath))
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	return measurement.New(runner, cfg, measurement.WithMetrics(EngineMetrics)), nil
}

// parseKeyValues splits "k=v" pairs (cli_types' parse_key_value) into a map.
func parseKeyValues(pairs []string) (map[string]string, error) {
	if len(pairs) == 0 {
		return nil, nil
	}

	out := make(map[string]string, len(pairs))

	for _, p := range pairs {
		k, v, ok := strings.Cut(p, "=")
		if !ok || k == "" {
			return nil, fmt.Errorf("invalid key-value pair %q, expected key=value", p)
		}

		out[k] = v
	}

	return out, nil
}

// parseFloat parses a measurement value, rejecting anything non-numeric.
func parseFloat(s string) (float64, error) {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid measurement value %q: %w", s, err)
	}

	return v, nil
}

// parseFloats parses add-multiple's space-separated value list.
func parseFloats(args []string) ([]float64, error) {
	out := make([]float64, 0, len(args))

	for _, a := range args {
		v, err := parseFloat(a)
		if err != nil {
			return nil, err
		}

		out = append(out, v)
	}

	return out, nil
}
