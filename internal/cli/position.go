package cli

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	brunt "github.com/tj-smith47/brunt-go"
)

func newPositionCmd() *cobra.Command {
	var (
		sel selectorFlags
		all bool
	)

	cmd := &cobra.Command{
		Use:   "position <0-100>",
		Short: "Move a blind to a position",
		Long:  "Move a blind to a position, where 0 is fully closed and 100 fully open.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			position, err := strconv.Atoi(args[0])
			if err != nil {
				return fmt.Errorf("%w: %q is not an integer", brunt.ErrInvalidPosition, args[0])
			}
			if all {
				return moveAll(cmd, position)
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

			if err := client.ChangeRequestPosition(cmd.Context(), position, selector); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Requested position %d for %s\n", position, selector)
			return nil
		},
	}

	sel.register(cmd)
	cmd.Flags().BoolVar(&all, "all", false, "Move every thing on the account")
	cmd.MarkFlagsMutuallyExclusive("all", "name")
	cmd.MarkFlagsMutuallyExclusive("all", "uri")
	cmd.MarkFlagsMutuallyExclusive("all", "serial")
	return cmd
}

func moveAll(cmd *cobra.Command, position int) error {
	client, _, _, err := wireClient(cmd)
	if err != nil {
		return err
	}
	defer client.Close()

	things, err := client.Things(cmd.Context(), true)
	if err != nil {
		return err
	}
	sels := make([]brunt.Selector, len(things))
	for i, t := range things {
		sels[i] = brunt.ByURI(t.URI)
	}

	var errs []error
	for _, r := range client.ChangeRequestPositionBatch(cmd.Context(), position, sels, nil) {
		if r.Err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", r.Selector, r.Err))
			continue
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Requested position %d for %s\n", position, r.Selector)
	}
	return errors.Join(errs...)
}
