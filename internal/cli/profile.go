package cli

import (
	"errors"
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/gookit/color"
	"github.com/spf13/cobra"
	"github.com/vedran77/blink/internal/domain"
	"github.com/vedran77/blink/internal/service"
	"github.com/vedran77/blink/pkg/validator"
)

var errInvalidInput = errors.New("invalid input")

func NewProfileCommand(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "profile",
		Short: "Show or edit your profile",
	}
	cmd.AddCommand(newProfileShowCommand(opts))
	cmd.AddCommand(newProfileSetCommand(opts))
	return cmd
}

func newProfileShowCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Show your profile",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := loadEnv(opts)
			if err != nil {
				return err
			}
			userID, err := e.userID()
			if err != nil {
				return err
			}
			if err := e.connect(cmd.Context()); err != nil {
				return err
			}
			defer e.close()

			svc := service.NewProfileService(e.profiles, service.NewNicknameService(e.profiles, e.log))
			profile, err := svc.Get(cmd.Context(), userID.String())
			if errors.Is(err, service.ErrProfileNotFound) {
				return fmt.Errorf("no profile yet, run `blink profile set --nickname <name>`")
			}
			if err != nil {
				return err
			}
			renderUsers(cmd.OutOrStdout(), []domain.UserPresence{profile.Presence(time.Now())}, nil)
			return nil
		},
	}
}

func newProfileSetCommand(opts *RootOptions) *cobra.Command {
	var input service.ProfileInput

	cmd := &cobra.Command{
		Use:   "set",
		Short: "Create or update your profile",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := loadEnv(opts)
			if err != nil {
				return err
			}
			userID, err := e.userID()
			if err != nil {
				return err
			}
			if err := e.connect(cmd.Context()); err != nil {
				return err
			}
			defer e.close()

			out := cmd.OutOrStdout()
			svc := service.NewProfileService(e.profiles, service.NewNicknameService(e.profiles, e.log))
			profile, errs, err := svc.Save(cmd.Context(), userID.String(), input)
			if errs.HasErrors() {
				printValidationErrors(out, errs)
				return errInvalidInput
			}
			if err != nil {
				return err
			}
			fmt.Fprintln(out, color.Green.Sprintf("Profile saved as %s", *profile.Nickname))
			return nil
		},
	}

	cmd.Flags().StringVarP(&input.Nickname, "nickname", "n", "", "nickname shown to other users")
	cmd.Flags().StringVar(&input.Gender, "gender", "", "gender")
	cmd.Flags().IntVar(&input.Age, "age", 0, "age")
	cmd.Flags().StringVar(&input.CountryCode, "country", "", "two-letter country code")
	cmd.Flags().StringSliceVar(&input.Interests, "interests", nil, "comma separated interests")
	_ = cmd.MarkFlagRequired("nickname")

	return cmd
}

func printValidationErrors(w io.Writer, errs validator.ValidationErrors) {
	fields := make([]string, 0, len(errs))
	for field := range errs {
		fields = append(fields, field)
	}
	sort.Strings(fields)
	for _, field := range fields {
		fmt.Fprintln(w, color.Red.Sprintf("%s: %s", field, errs[field]))
	}
}
