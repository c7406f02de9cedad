package commands

import (
	"github.com/spf13/cobra"
)

// NewPruneCommand creates and configures the prune command.
func NewPruneCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "prune",
		Short: "Drop measurements for commits no longer reachable from any ref",
		Args:  cobra.NoArgs,
		RunE: func(cobraCmd *cobra.Command, _ []string) error {
			engine, err := newEngine()
			if err != nil {
				return err
			}

			return engine.Prune(cobraCmd.Context(), Remote)
		},
	}
}
