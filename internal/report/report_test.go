package report_test

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sumatoshi-tech/gitperf/internal/codec"
	"github.com/Sumatoshi-tech/gitperf/internal/report"
	"github.com/Sumatoshi-tech/gitperf/measurement"
)

func rec(name string, value float64, kv map[string]string) codec.Record {
	return codec.Record{Name: name, Value: value, Timestamp: 1, KeyValues: kv}
}

func TestRenderProducesHTMLWithSeriesNames(t *testing.T) {
	commits := []measurement.Commit{
		{Hash: "bbbbbbbbbbbb", Measurements: []codec.Record{rec("wall_clock", 2, nil)}},
		{Hash: "aaaaaaaaaaaa", Measurements: []codec.Record{rec("wall_clock", 1, nil)}},
	}

	var buf bytes.Buffer
	require.NoError(t, report.Render(&buf, commits, report.Options{}))

	out := buf.String()
	assert.Contains(t, out, "wall_clock")
	assert.Contains(t, out, "aaaaaaaa")
}

func TestRenderFiltersByMeasurementAndSelector(t *testing.T) {
	commits := []measurement.Commit{
		{Hash: "cccccccccccc", Measurements: []codec.Record{
			rec("wall_clock", 5, map[string]string{"os": "linux"}),
			rec("wall_clock", 9, map[string]string{"os": "mac"}),
			rec("memory", 1, nil),
		}},
	}

	var buf bytes.Buffer
	require.NoError(t, report.Render(&buf, commits, report.Options{
		Measurements: []string{"wall_clock"},
		Selectors:    map[string]string{"os": "linux"},
	}))

	out := buf.String()
	assert.True(t, strings.Contains(out, "wall_clock"))
	assert.False(t, strings.Contains(out, "\"memory\""))
}

func TestRenderSeparatesByKeyAndAggregates(t *testing.T) {
	commits := []measurement.Commit{
		{Hash: "dddddddddddd", Measurements: []codec.Record{
			rec("wall_clock", 1, map[string]string{"os": "linux"}),
			rec("wall_clock", 3, map[string]string{"os": "linux"}),
			rec("wall_clock", 10, map[string]string{"os": "mac"}),
		}},
	}

	var buf bytes.Buffer
	require.NoError(t, report.Render(&buf, commits, report.Options{
		SeparateBy:  "os",
		AggregateBy: report.ReductionMean,
	}))

	out := buf.String()
	assert.Contains(t, out, "wall_clock (linux)")
	assert.Contains(t, out, "wall_clock (mac)")
}
