package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newSetCmd() *cobra.Command {
	var sel selectorFlags

	cmd := &cobra.Command{
		Use:   "set <key> <value>",
		Short: "Write a raw key on a thing",
		Long:  "Write a raw vendor key on a thing, for example requestPosition or delay.",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			selector, err := sel.selector()
			if err != nil {
				return err
			}
			client, _, _, err := wireClient(cmd)
			if err != nil {
				return err
			}
			defer client.Close()

			if err := client.ChangeKey(cmd.Context(), args[0], args[1], selector); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Set %s=%s on %s\n", args[0], args[1], selector)
			return nil
		},
	}

	sel.register(cmd)
	return cmd
}
