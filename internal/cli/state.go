package cli

import (
	"github.com/spf13/cobra"
)

func newStateCmd() *cobra.Command {
	var (
		sel    selectorFlags
		output string
	)

	cmd := &cobra.Command{
		Use:   "state",
		Short: "Show the current state of one thing",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := validateOutput(output); err != nil {
				return err
			}
			selector, err := sel.selector()
			if err != nil {
				return err
			}
			client, _, _, err := wireClient(cmd)
			if err != nil {
				return err
			}
			defer client.Close()

			thing, err := client.GetState(cmd.Context(), selector)
			if err != nil {
				return err
			}
			return writeThing(cmd.OutOrStdout(), output, thing)
		},
	}

	sel.register(cmd)
	addOutputFlag(cmd, &output)
	return cmd
}
