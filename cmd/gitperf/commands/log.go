package commands

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

// LogCommand holds the configuration for the log command.
type LogCommand struct {
	committish string
	maxCount   int
}

// NewLogCommand creates and configures the log command.
func NewLogCommand() *cobra.Command {
	lc := &LogCommand{}

	cobraCmd := &cobra.Command{
		Use:   "log",
		Short: "Print recorded measurements for recent commits as a table",
		Args:  cobra.NoArgs,
		RunE:  lc.run,
	}

	cobraCmd.Flags().StringVar(&lc.committish, "committish", "HEAD", "starting commit to walk from")
	cobraCmd.Flags().IntVarP(&lc.maxCount, "max-count", "n", 40, "limit the number of previous commits considered")

	return cobraCmd
}

func (lc *LogCommand) run(cobraCmd *cobra.Command, _ []string) error {
	engine, err := newEngine()
	if err != nil {
		return err
	}

	commits, err := engine.Walk(cobraCmd.Context(), lc.committish, lc.maxCount)
	if err != nil {
		return err
	}

	tbl := table.NewWriter()
	tbl.SetOutputMirror(cobraCmd.OutOrStdout())
	tbl.SetStyle(table.StyleLight)
	tbl.AppendHeader(table.Row{"commit", "measurement", "epoch", "timestamp", "value", "key-values"})

	for _, c := range commits {
		for _, m := range c.Measurements {
			tbl.AppendRow(table.Row{
				c.Hash[:minInt(8, len(c.Hash))],
				m.Name,
				fmt.Sprintf("%08x", m.Epoch),
				time.Unix(int64(m.Timestamp), 0).UTC().Format(time.RFC3339),
				m.Value,
				formatKeyValues(m.KeyValues),
			})
		}
	}

	tbl.Render()

	return nil
}

func formatKeyValues(kv map[string]string) string {
	keys := make([]string, 0, len(kv))
	for k := range kv {
		keys = append(keys, k)
	}

	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+"="+kv[k])
	}

	return strings.Join(parts, ",")
}

func minInt(a, b int) int {
	if a < b {
		return a
	}

	return b
}
