package cli

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
)

// NewLoginCommand stores the operator's backend token.
func NewLoginCommand(opts *RootOptions) *cobra.Command {
	var (
		token     string
		tokenFile string
	)

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Store a backend API token and adopt its identity",
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := opts.App(cmd)
			if err != nil {
				return err
			}
			if token == "" && tokenFile != "" {
				data, err := os.ReadFile(tokenFile)
				if err != nil {
					return fmt.Errorf("read token file: %w", err)
				}
				token = strings.TrimSpace(string(data))
			}
			if token == "" {
				return fmt.Errorf("pass --token or --token-file")
			}

			user, err := app.Identity.Login(cmd.Context(), token)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Logged in as %s (user id %d)\n", user.Username, user.UserID)
			return nil
		},
	}

	cmd.Flags().StringVar(&token, "token", "", "JWT issued by the backend")
	cmd.Flags().StringVar(&tokenFile, "token-file", "", "file containing the token")
	return cmd
}

// NewLogoutCommand forgets the stored identity.
func NewLogoutCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Forget the stored backend token",
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := opts.App(cmd)
			if err != nil {
				return err
			}
			if err := app.Identity.Logout(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Logged out.")
			return nil
		},
	}
}
