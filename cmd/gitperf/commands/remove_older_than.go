package commands

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

// RemoveOlderThanCommand holds the configuration for the remove-older-than
// command.
type RemoveOlderThanCommand struct {
	olderThan string
}

// NewRemoveOlderThanCommand creates and configures the remove-older-than
// command.
func NewRemoveOlderThanCommand() *cobra.Command {
	rc := &RemoveOlderThanCommand{}

	cobraCmd := &cobra.Command{
		Use:   "remove-older-than",
		Short: "Remove measurements for commits committed before the given age",
		Args:  cobra.NoArgs,
		RunE:  rc.run,
	}

	cobraCmd.Flags().StringVar(&rc.olderThan, "older-than", "", "age threshold, e.g. 720h (30 days); commits older than this are pruned")
	_ = cobraCmd.MarkFlagRequired("older-than")

	return cobraCmd
}

func (rc *RemoveOlderThanCommand) run(cobraCmd *cobra.Command, _ []string) error {
	age, err := time.ParseDuration(rc.olderThan)
	if err != nil {
		return fmt.Errorf("invalid --older-than duration %q: %w", rc.olderThan, err)
	}

	engine, err := newEngine()
	if err != nil {
		return err
	}

	return engine.RemoveOlderThan(cobraCmd.Context(), Remote, time.Now().Add(-age))
}
