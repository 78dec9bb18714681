package cli

import (
	"github.com/spf13/cobra"
)

func newThingsCmd() *cobra.Command {
	var (
		refresh bool
		output  string
	)

	cmd := &cobra.Command{
		Use:   "things",
		Short: "List the things on the account",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := validateOutput(output); err != nil {
				return err
			}
			client, _, _, err := wireClient(cmd)
			if err != nil {
				return err
			}
			defer client.Close()

			things, err := client.Things(cmd.Context(), refresh)
			if err != nil {
				return err
			}
			return writeThings(cmd.OutOrStdout(), output, things)
		},
	}

	cmd.Flags().BoolVar(&refresh, "refresh", false, "Bypass the in-process device cache")
	addOutputFlag(cmd, &output)
	return cmd
}
