package commands

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/Sumatoshi-tech/gitperf/internal/report"
)

// ReportCommand holds the configuration for the report command.
type ReportCommand struct {
	output      string
	maxCount    int
	measurement []string
	keyValue    []string
	separateBy  string
	aggregateBy string
}

// NewReportCommand creates and configures the report command.
func NewReportCommand() *cobra.Command {
	rc := &ReportCommand{}

	cobraCmd := &cobra.Command{
		Use:   "report",
		Short: "Create an HTML performance report",
		Args:  cobra.NoArgs,
		RunE:  rc.run,
	}

	cobraCmd.Flags().StringVarP(&rc.output, "output", "o", "output.html", "HTML output file")
	cobraCmd.Flags().IntVarP(&rc.maxCount, "max-count", "n", 40, "limit the number of previous commits considered")
	cobraCmd.Flags().StringSliceVarP(&rc.measurement, "measurement", "m", nil, "select individual measurements instead of all")
	cobraCmd.Flags().StringSliceVarP(&rc.keyValue, "key-value", "k", nil, "key=value pairs, select only matching measurements")
	cobraCmd.Flags().StringVarP(&rc.separateBy, "separate-by", "s", "", "create individual traces by grouping with this selector's value")
	cobraCmd.Flags().StringVarP(&rc.aggregateBy, "aggregate-by", "a", "", "reduction applied within a group: min, max, median, mean")

	return cobraCmd
}

func (rc *ReportCommand) run(cobraCmd *cobra.Command, _ []string) error {
	selectors, err := parseKeyValues(rc.keyValue)
	if err != nil {
		return err
	}

	engine, err := newEngine()
	if err != nil {
		return err
	}

	commits, err := engine.Walk(cobraCmd.Context(), "HEAD", rc.maxCount)
	if err != nil {
		return err
	}

	f, err := os.Create(rc.output)
	if err != nil {
		return err
	}
	defer f.Close()

	return report.Render(f, commits, report.Options{
		Measurements: rc.measurement,
		Selectors:    selectors,
		SeparateBy:   rc.separateBy,
		AggregateBy:  report.Reduction(rc.aggregateBy),
	})
}
