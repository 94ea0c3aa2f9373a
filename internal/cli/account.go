package cli

import (
	"fmt"

	"github.com/gookit/color"
	"github.com/spf13/cobra"
	"github.com/vedran77/blink/internal/account"
)

func NewDeleteAccountCommand(opts *RootOptions) *cobra.Command {
	var confirmed bool

	cmd := &cobra.Command{
		Use:   "delete-account",
		Short: "Delete your account and forget this device's identity",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !confirmed {
				return fmt.Errorf("refusing to delete without --yes")
			}
			e, err := loadEnv(opts)
			if err != nil {
				return err
			}
			if e.cfg.DeleteAccountURL == "" {
				return fmt.Errorf("DELETE_ACCOUNT_URL is not set")
			}
			userID, err := e.userID()
			if err != nil {
				return err
			}

			client := account.NewClient(e.cfg.DeleteAccountURL, e.tokens(userID), e.log)
			if err := client.DeleteUserAccount(cmd.Context(), userID.String()); err != nil {
				return err
			}
			if err := e.identity.Forget(); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), color.Yellow.Sprint("Account deleted."))
			return nil
		},
	}
	cmd.Flags().BoolVarP(&confirmed, "yes", "y", false, "confirm deletion")
	return cmd
}
