package cli

import (
	"context"

	"github.com/spf13/cobra"
)

// Execute runs the brunt command line with the given context.
func Execute(ctx context.Context) error {
	return newRootCmd().ExecuteContext(ctx)
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "brunt",
		Short:         "Control Brunt blinds from the terminal",
		Long:          "brunt lists the Brunt Blind Engines on your account, reads their state, moves them, and can mirror them onto an MQTT broker.",
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	flags := rootCmd.PersistentFlags()
	flags.String(keyConfig, "", "Config file (default ~/.config/brunt/config.toml)")
	flags.String(keyUsername, "", "Brunt account e-mail (env BRUNT_USERNAME)")
	flags.String(keyPassword, "", "Brunt account password (env BRUNT_PASSWORD)")
	flags.String(keySessionFile, "", "Session cache file (default ~/.config/brunt/session.toml)")
	flags.String(keyLogLevel, "warn", "Log level: debug, info, warn, error")
	flags.Float64(keyRate, 0, "Maximum requests per second to the vendor (0 = unlimited)")
	flags.Duration(keyTimeout, 0, "HTTP request timeout (0 = library default)")
	flags.String(keyAccountHost, "", "Override the account host")
	flags.String(keyThingsHost, "", "Override the things host")
	_ = flags.MarkHidden(keyAccountHost)
	_ = flags.MarkHidden(keyThingsHost)

	rootCmd.AddCommand(
		newThingsCmd(),
		newStateCmd(),
		newPositionCmd(),
		newSetCmd(),
		newBridgeCmd(),
	)

	return rootCmd
}
