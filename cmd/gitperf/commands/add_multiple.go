package commands

import (
	"github.com/spf13/cobra"
)

// AddMultipleCommand holds the configuration for the add-multiple command.
type AddMultipleCommand struct {
	measurement string
	keyValue    []string
}

// NewAddMultipleCommand creates and configures the add-multiple command.
func NewAddMultipleCommand() *cobra.Command {
	ac := &AddMultipleCommand{}

	cobraCmd := &cobra.Command{
		Use:   "add-multiple <value>...",
		Short: "Add several values for one measurement, sharing one timestamp",
		Args:  cobra.MinimumNArgs(1),
		RunE:  ac.run,
	}

	cobraCmd.Flags().StringVarP(&ac.measurement, "measurement", "m", "", "name of the measurement")
	cobraCmd.Flags().StringSliceVarP(&ac.keyValue, "key-value", "k", nil, "key=value pairs attached to every value")

	_ = cobraCmd.MarkFlagRequired("measurement")

	return cobraCmd
}

func (ac *AddMultipleCommand) run(cobraCmd *cobra.Command, args []string) error {
	values, err := parseFloats(args)
	if err != nil {
		return err
	}

	keyValues, err := parseKeyValues(ac.keyValue)
	if err != nil {
		return err
	}

	engine, err := newEngine()
	if err != nil {
		return err
	}

	return engine.AddMultiple(cobraCmd.Context(), ac.measurement, values, keyValues)
}
