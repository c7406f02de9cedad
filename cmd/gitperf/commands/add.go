package commands

import (
	"github.com/spf13/cobra"
)

// AddCommand holds the configuration for the add command.
type AddCommand struct {
	measurement string
	keyValue    []string
}

// NewAddCommand creates and configures the add command.
func NewAddCommand() *cobra.Command {
	ac := &AddCommand{}

	cobraCmd := &cobra.Command{
		Use:   "add <value>",
		Short: "Add a single measurement against HEAD",
		Args:  cobra.ExactArgs(1),
		RunE:  ac.run,
	}

	cobraCmd.Flags().StringVarP(&ac.measurement, "measurement", "m", "", "name of the measurement")
	cobraCmd.Flags().StringSliceVarP(&ac.keyValue, "key-value", "k", nil, "key=value pairs attached to the measurement")

	_ = cobraCmd.MarkFlagRequired("measurement")

	return cobraCmd
}

func (ac *AddCommand) run(cobraCmd *cobra.Command, args []string) error {
	value, err := parseFloat(args[0])
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

	return engine.Add(cobraCmd.Context(), ac.measurement, value, keyValues)
}
