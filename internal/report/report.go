// Package report renders walked measurement history as an HTML line chart,
// grounded on the go-echarts line-series construction idiom in the
// teacher's burndown analyzer (series-per-group, area opacity, legend/grid
// global options) adapted to git-perf's flat commit/measurement/value
// shape instead of a survival-matrix.
package report

import (
	"fmt"
	"io"
	"sort"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/Sumatoshi-tech/gitperf/internal/codec"
	"github.com/Sumatoshi-tech/gitperf/measurement"
)

// Reduction names the aggregation applied when several values land on the
// same commit within one series (cli_types' ReductionFunc).
type Reduction string

// Supported reductions. The zero value means "no reduction": only the last
// value recorded for a series at a commit is plotted.
const (
	ReductionMin    Reduction = "min"
	ReductionMax    Reduction = "max"
	ReductionMedian Reduction = "median"
	ReductionMean   Reduction = "mean"
)

const (
	chartWidth  = "1200px"
	chartHeight = "600px"
	areaOpacity = 0.2
	hashDigits  = 8
)

// Options selects and shapes what Render plots.
type Options struct {
	// Measurements restricts the plot to these names; empty means all.
	Measurements []string

	// Selectors restricts to measurements whose key-values contain every
	// pair given here.
	Selectors map[string]string

	// SeparateBy, if set, is a key whose value splits one measurement name
	// into multiple series (cli_types' separate_by).
	SeparateBy string

	// AggregateBy reduces multiple same-series values at one commit to a
	// single point.
	AggregateBy Reduction
}

type seriesKey struct {
	measurement string
	group       string
}

// Render takes commits newest-first, as measurement.Walk returns them,
// reverses them so the x axis runs oldest to newest, and writes an HTML
// report to w.
func Render(w io.Writer, commits []measurement.Commit, o Options) error {
	reversed := make([]measurement.Commit, len(commits))
	for i, c := range commits {
		reversed[len(commits)-1-i] = c
	}

	xLabels := make([]string, len(reversed))
	for i, c := range reversed {
		n := hashDigits
		if len(c.Hash) < n {
			n = len(c.Hash)
		}

		xLabels[i] = c.Hash[:n]
	}

	series := buildSeries(reversed, o)

	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithTitleOpts(opts.Title{Title: "git-perf measurements"}),
		charts.WithInitializationOpts(opts.Initialization{Width: chartWidth, Height: chartHeight}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true), Type: "scroll", Top: "5%"}),
		charts.WithGridOpts(opts.Grid{ContainLabel: opts.Bool(true)}),
		charts.WithXAxisOpts(opts.XAxis{Name: "commit"}),
	)
	line.SetXAxis(xLabels)

	keys := make([]seriesKey, 0, len(series))
	for k := range series {
		keys = append(keys, k)
	}

	sort.Slice(keys, func(i, j int) bool {
		if keys[i].measurement != keys[j].measurement {
			return keys[i].measurement < keys[j].measurement
		}

		return keys[i].group < keys[j].group
	})

	for _, k := range keys {
		values := series[k]
		data := make([]opts.LineData, len(values))

		for i, v := range values {
			if v != nil {
				data[i] = opts.LineData{Value: *v}
			}
		}

		line.AddSeries(seriesLabel(k), data,
			charts.WithAreaStyleOpts(opts.AreaStyle{Opacity: opts.Float(areaOpacity)}),
		)
	}

	return line.Render(w)
}

func seriesLabel(k seriesKey) string {
	if k.group == "" {
		return k.measurement
	}

	return fmt.Sprintf("%s (%s)", k.measurement, k.group)
}

// buildSeries groups commits' matching measurements into series-by-x
// buckets, then reduces each bucket per o.AggregateBy.
func buildSeries(commits []measurement.Commit, o Options) map[seriesKey][]*float64 {
	buckets := make(map[seriesKey][][]float64)

	for i, c := range commits {
		for _, m := range c.Measurements {
			if !wantedMeasurement(m.Name, o.Measurements) || !matchesSelectors(m, o.Selectors) {
				continue
			}

			group := ""
			if o.SeparateBy != "" {
				group = m.KeyValues[o.SeparateBy]
			}

			key := seriesKey{measurement: m.Name, group: group}

			if _, ok := buckets[key]; !ok {
				buckets[key] = make([][]float64, len(commits))
			}

			buckets[key][i] = append(buckets[key][i], m.Value)
		}
	}

	out := make(map[seriesKey][]*float64, len(buckets))

	for key, perCommit := range buckets {
		values := make([]*float64, len(perCommit))

		for i, vs := range perCommit {
			if len(vs) == 0 {
				continue
			}

			v := reduce(vs, o.AggregateBy)
			values[i] = &v
		}

		out[key] = values
	}

	return out
}

func reduce(values []float64, how Reduction) float64 {
	switch how {
	case ReductionMin:
		m := values[0]
		for _, v := range values[1:] {
			if v < m {
				m = v
			}
		}

		return m
	case ReductionMax:
		m := values[0]
		for _, v := range values[1:] {
			if v > m {
				m = v
			}
		}

		return m
	case ReductionMedian:
		return median(values)
	case ReductionMean:
		var sum float64
		for _, v := range values {
			sum += v
		}

		return sum / float64(len(values))
	default:
		return values[len(values)-1]
	}
}

func median(values []float64) float64 {
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)

	mid := len(sorted) / 2
	if len(sorted)%2 == 0 {
		return (sorted[mid-1] + sorted[mid]) / 2
	}

	return sorted[mid]
}

func matchesSelectors(m codec.Record, selectors map[string]string) bool {
	for k, v := range selectors {
		if m.KeyValues[k] != v {
			return false
		}
	}

	return true
}

func wantedMeasurement(name string, wanted []string) bool {
	if len(wanted) == 0 {
		return true
	}

	for _, w := range wanted {
		if w == name {
			return true
		}
	}

	return false
}
