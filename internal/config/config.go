// Package config reads and writes the .gitperfconfig TOML file: per-
// measurement epochs, backoff tuning, and audit deviation thresholds (spec
// §4.6 and the ambient configuration layer).
//
// Unlike the original's toml_edit-based editor, go-toml/v2 has no
// document/AST editing API, so BumpEpoch round-trips through a typed
// struct rather than preserving comments and unknown keys verbatim. Any
// .gitperfconfig content outside the fields below is not preserved across
// a bump-epoch write.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/pelletier/go-toml/v2"
)

// DefaultPath is the config file name git-perf reads relative to the
// repository root.
const DefaultPath = ".gitperfconfig"

// DefaultBackoffMaxElapsedSeconds is used when no [backoff] table is
// present.
const DefaultBackoffMaxElapsedSeconds = 60

// MeasurementSection holds per-measurement-name settings.
type MeasurementSection struct {
	// Epoch is stored as a hex string (matching the original's
	// get_head_revision()[0..8] convention for bump-epoch).
	Epoch string `toml:"epoch"`
}

// BackoffSection tunes the retry controller.
type BackoffSection struct {
	MaxElapsedSeconds int64 `toml:"max_elapsed_seconds"`
}

// AuditThreshold is one min-relative-deviation gate.
type AuditThreshold struct {
	MinRelativeDeviation float64 `toml:"min_relative_deviation"`
}

// AuditSection holds audit deviation thresholds, global and per measurement.
type AuditSection struct {
	Global      AuditThreshold            `toml:"global"`
	Measurement map[string]AuditThreshold `toml:"measurement"`
}

// LoggingSection configures the ambient slog logger (not present in the
// original; carried because the teacher always configures logging level
// and format, per SPEC_FULL.md's ambient stack).
type LoggingSection struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}

// Document is the parsed form of .gitperfconfig.
type Document struct {
	Measurement map[string]MeasurementSection `toml:"measurement"`
	Backoff     BackoffSection                `toml:"backoff"`
	Audit       AuditSection                  `toml:"audit"`
	Logging     LoggingSection                `toml:"logging"`
}

// Load reads and parses path. A missing file is not an error: it returns an
// empty Document, matching read_config().unwrap_or_default() in config.rs.
func Load(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return &Document{}, nil
		}

		return nil, fmt.Errorf("read config %s: %w", path, err)
	}

	return Parse(data)
}

// Parse decodes raw TOML bytes into a Document.
func Parse(data []byte) (*Document, error) {
	var doc Document
	if err := toml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	return &doc, nil
}

// Write serializes the document and writes it to path.
func (d *Document) Write(path string) error {
	data, err := toml.Marshal(d)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write config %s: %w", path, err)
	}

	return nil
}

// DetermineEpoch looks up measurement's epoch, falling back to the "*"
// wildcard section, then to absent.
func (d *Document) DetermineEpoch(measurement string) (uint32, bool) {
	if epoch, ok := d.epochFor(measurement); ok {
		return epoch, true
	}

	return d.epochFor("*")
}

func (d *Document) epochFor(section string) (uint32, bool) {
	if d == nil || d.Measurement == nil {
		return 0, false
	}

	m, ok := d.Measurement[section]
	if !ok || m.Epoch == "" {
		return 0, false
	}

	epoch, err := strconv.ParseUint(m.Epoch, 16, 32)
	if err != nil {
		return 0, false
	}

	return uint32(epoch), true
}

// BumpEpoch sets measurement's epoch to headRevision's first 8 hex
// characters (spec's "bump-epoch" supplemented verb, grounded on
// bump_epoch_in_conf).
func (d *Document) BumpEpoch(measurement, headRevision string) error {
	if len(headRevision) < 8 {
		return fmt.Errorf("head revision %q shorter than 8 characters", headRevision)
	}

	if d.Measurement == nil {
		d.Measurement = make(map[string]MeasurementSection)
	}

	d.Measurement[measurement] = MeasurementSection{Epoch: headRevision[:8]}

	return nil
}

// BackoffMaxElapsed returns the configured retry budget, or
// DefaultBackoffMaxElapsedSeconds if unset.
func (d *Document) BackoffMaxElapsed() time.Duration {
	if d == nil || d.Backoff.MaxElapsedSeconds <= 0 {
		return DefaultBackoffMaxElapsedSeconds * time.Second
	}

	return time.Duration(d.Backoff.MaxElapsedSeconds) * time.Second
}

// AuditMinRelativeDeviation returns the deviation threshold for measurement,
// preferring a measurement-specific setting over the global one (spec's
// "audit epoch-gate/min-relative-deviation" supplemented feature).
func (d *Document) AuditMinRelativeDeviation(measurement string) (float64, bool) {
	if d == nil {
		return 0, false
	}

	if t, ok := d.Audit.Measurement[measurement]; ok {
		return t.MinRelativeDeviation, true
	}

	if d.Audit.Global.MinRelativeDeviation != 0 {
		return d.Audit.Global.MinRelativeDeviation, true
	}

	return 0, false
}
