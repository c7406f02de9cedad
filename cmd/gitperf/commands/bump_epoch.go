package commands

import (
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/Sumatoshi-tech/gitperf/internal/config"
)

// BumpEpochCommand holds the configuration for the bump-epoch command.
type BumpEpochCommand struct {
	measurement string
}

// NewBumpEpochCommand creates and configures the bump-epoch command.
//
// Accept a changed HEAD measurement for audit even though it falls outside
// the historical range, by starting a new epoch recorded in .gitperfconfig.
func NewBumpEpochCommand() *cobra.Command {
	bc := &BumpEpochCommand{}

	cobraCmd := &cobra.Command{
		Use:   "bump-epoch",
		Short: "Start a new epoch for a measurement at HEAD",
		Args:  cobra.NoArgs,
		RunE:  bc.run,
	}

	cobraCmd.Flags().StringVarP(&bc.measurement, "measurement", "m", "", "name of the measurement")
	_ = cobraCmd.MarkFlagRequired("measurement")

	return cobraCmd
}

func (bc *BumpEpochCommand) run(cobraCmd *cobra.Command, _ []string) error {
	engine, err := newEngine()
	if err != nil {
		return err
	}

	path := filepath.Join(RepoDir, config.DefaultPath)

	return engine.BumpEpoch(cobraCmd.Context(), path, bc.measurement)
}
