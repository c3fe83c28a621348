package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"Mansoor88-6/team-time-tracker/internal/config"
)

// NewSignInCommand creates the signin command.
func NewSignInCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "signin <email>",
		Short: "Sign in and store the session token in the config file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := rootOpts.load(cmd)
			if err != nil {
				return err
			}
			defer e.log.Sync()

			api, err := e.api(false)
			if err != nil {
				return err
			}
			resp, err := api.SignIn(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			if err := config.SaveToken(rootOpts.ConfigPath, resp.Token); err != nil {
				return WrapExitError(ExitCommandError, "failed to save token", err)
			}

			return e.out.Success(resp.Profile, func(w io.Writer) {
				fmt.Fprintf(w, "Signed in as %s\n", resp.Profile.Email)
			})
		},
	}
}

// NewSignOutCommand creates the signout command.
func NewSignOutCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "signout",
		Short: "End the session and clear the stored token",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := rootOpts.load(cmd)
			if err != nil {
				return err
			}
			defer e.log.Sync()

			api, err := e.api(true)
			if err != nil {
				return err
			}
			if err := api.SignOut(cmd.Context()); err != nil {
				return err
			}
			if err := config.SaveToken(rootOpts.ConfigPath, ""); err != nil {
				return WrapExitError(ExitCommandError, "failed to clear token", err)
			}

			return e.out.Success(map[string]bool{"signed_out": true}, func(w io.Writer) {
				fmt.Fprintln(w, "Signed out")
			})
		},
	}
}
