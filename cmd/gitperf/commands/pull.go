package commands

import (
	"github.com/spf13/cobra"
)

// NewPullCommand creates and configures the pull command.
func NewPullCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "pull",
		Short: "Fetch performance measurements from the remote",
		Args:  cobra.NoArgs,
		RunE: func(cobraCmd *cobra.Command, _ []string) error {
			engine, err := newEngine()
			if err != nil {
				return err
			}

			return engine.Pull(cobraCmd.Context(), Remote)
		},
	}
}
