package commands

import (
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
)

// NewPushCommand creates and configures the push command.
func NewPushCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "push",
		Short: "Consolidate local measurements and publish them to the remote",
		Args:  cobra.NoArgs,
		RunE: func(cobraCmd *cobra.Command, _ []string) error {
			engine, err := newEngine()
			if err != nil {
				return err
			}

			before, err := engine.ListCommitsWithMeasurements(cobraCmd.Context())
			if err != nil {
				return err
			}

			if err := engine.Push(cobraCmd.Context(), Remote); err != nil {
				return err
			}

			fmt.Fprintf(cobraCmd.OutOrStdout(), "pushed measurements for %s commits\n", humanize.Comma(int64(len(before))))

			return nil
		},
	}
}
