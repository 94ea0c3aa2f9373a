package cli

import (
	"errors"
	"fmt"

	"github.com/gookit/color"
	"github.com/spf13/cobra"
	"github.com/vedran77/blink/internal/service"
)

func NewNicknameCommand(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "nickname",
		Short: "Nickname utilities",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "check <nickname>",
		Short: "Check whether a nickname is valid and free",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := loadEnv(opts)
			if err != nil {
				return err
			}
			if err := e.connect(cmd.Context()); err != nil {
				return err
			}
			defer e.close()

			out := cmd.OutOrStdout()
			errs, err := service.NewNicknameService(e.profiles, e.log).Check(cmd.Context(), args[0])
			switch {
			case errs.HasErrors():
				printValidationErrors(out, errs)
				return errInvalidInput
			case errors.Is(err, service.ErrNicknameTaken):
				fmt.Fprintln(out, color.Red.Sprintf("%q is taken", args[0]))
				return err
			case err != nil:
				return err
			}
			fmt.Fprintln(out, color.Green.Sprintf("%q is available", args[0]))
			return nil
		},
	})
	return cmd
}
