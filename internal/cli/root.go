// Package cli implements the blink terminal client.
package cli

import (
	"github.com/spf13/cobra"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Verbose bool
}

// NewRootCommand creates the root command for the blink CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:           "blink",
		Short:         "blink - ephemeral one-to-one chat",
		Long:          "Anonymous chat where messages disappear after an hour (eight for VIPs).",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "debug logging")

	cmd.AddCommand(NewChatCommand(opts))
	cmd.AddCommand(NewProfileCommand(opts))
	cmd.AddCommand(NewNicknameCommand(opts))
	cmd.AddCommand(NewDeleteAccountCommand(opts))
	cmd.AddCommand(NewWhoamiCommand(opts))

	return cmd
}
