// Package codec encodes and decodes the one-record-per-line measurement
// format stored in git notes (spec §4.6).
package codec

import (
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"strings"
	"sync"
)

// FieldSeparator is the US (unit separator) control character delimiting
// fields within one record line.
const FieldSeparator = "\x1F"

var warnDuplicateKeyOnce sync.Once

// Record is one measurement sample: an epoch-scoped, named, timestamped
// value with arbitrary key=value metadata.
type Record struct {
	Epoch     uint32
	Name      string
	Timestamp float64
	Value     float64
	KeyValues map[string]string
}

// Encode renders records as the note body: one line per record, LF
// terminated, fields separated by FieldSeparator. Key-value pairs are
// sorted by key so that two notes with the same logical content always
// produce byte-identical output — required for cat-sort-uniq idempotence
// (spec §4.6, "the codec must be stable").
func Encode(records []Record) string {
	var b strings.Builder

	for _, r := range records {
		b.WriteString(encodeLine(r))
		b.WriteByte('\n')
	}

	return b.String()
}

func encodeLine(r Record) string {
	fields := []string{
		strconv.FormatUint(uint64(r.Epoch), 10),
		r.Name,
		formatFloat(r.Timestamp),
		formatFloat(r.Value),
	}

	keys := make([]string, 0, len(r.KeyValues))
	for k := range r.KeyValues {
		keys = append(keys, k)
	}

	sort.Strings(keys)

	for _, k := range keys {
		fields = append(fields, k+"="+r.KeyValues[k])
	}

	return strings.Join(fields, FieldSeparator)
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}

// Decode parses a note body into records, skipping and warning on any line
// that does not conform to the grammar rather than failing the whole note
// (spec §4.6).
func Decode(blob string) []Record {
	var records []Record

	for lineNo, line := range strings.Split(blob, "\n") {
		line = strings.TrimRight(line, "\r")
		if line == "" {
			continue
		}

		rec, err := decodeLine(line)
		if err != nil {
			slog.Warn("skipping malformed measurement record", "line", lineNo+1, "error", err)
			continue
		}

		records = append(records, rec)
	}

	return records
}

func decodeLine(line string) (Record, error) {
	fields := strings.Split(line, FieldSeparator)
	if len(fields) < 4 {
		return Record{}, fmt.Errorf("record has %d fields, want at least 4", len(fields))
	}

	epoch, err := strconv.ParseUint(fields[0], 10, 32)
	if err != nil {
		return Record{}, fmt.Errorf("parse epoch %q: %w", fields[0], err)
	}

	name := fields[1]
	if name == "" || strings.ContainsAny(name, " \t") {
		return Record{}, fmt.Errorf("invalid measurement name %q", name)
	}

	timestamp, err := strconv.ParseFloat(fields[2], 64)
	if err != nil {
		return Record{}, fmt.Errorf("parse timestamp %q: %w", fields[2], err)
	}

	value, err := strconv.ParseFloat(fields[3], 64)
	if err != nil {
		return Record{}, fmt.Errorf("parse value %q: %w", fields[3], err)
	}

	rec := Record{
		Epoch:     uint32(epoch),
		Name:      name,
		Timestamp: timestamp,
		Value:     value,
	}

	if len(fields) > 4 {
		kv, err := decodeKeyValues(fields[4:])
		if err != nil {
			return Record{}, err
		}

		rec.KeyValues = kv
	}

	return rec, nil
}

func decodeKeyValues(fields []string) (map[string]string, error) {
	kv := make(map[string]string, len(fields))

	for _, f := range fields {
		k, v, ok := strings.Cut(f, "=")
		if !ok {
			return nil, fmt.Errorf("key-value entry %q is missing '='", f)
		}

		if existing, seen := kv[k]; seen {
			warnDuplicateKey(k, existing, v)
		}

		kv[k] = v
	}

	return kv, nil
}

// warnDuplicateKey logs at most once per process for a duplicate-key
// occurrence, matching the Rust implementation's std::sync::Once-gated
// notice in serialization.rs.
func warnDuplicateKey(key, previous, next string) {
	warnDuplicateKeyOnce.Do(func() {
		if previous == next {
			slog.Warn("duplicate key-value with same value in measurement record", "key", key, "value", next)
		} else {
			slog.Warn("duplicate key-value with conflicting values in measurement record", "key", key, "previous", previous, "next", next)
		}
	})
}
