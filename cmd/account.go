package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/example/fanyu-assistant/internal/booking"
)

func newAccountCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "account",
		Short: "Manage the booking platform account",
	}
	cmd.AddCommand(newAccountSetCmd())
	cmd.AddCommand(newAccountShowCmd())
	return cmd
}

func newAccountSetCmd() *cobra.Command {
	var username, password string

	c := &cobra.Command{
		Use:   "set",
		Short: "Set the platform credentials (password is encrypted at rest)",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, store, state, err := openState()
			if err != nil {
				return err
			}
			defer store.Close()

			ctx := cmd.Context()
			if err := state.Init(ctx); err != nil {
				return err
			}
			if err := state.SaveAccount(ctx, booking.Account{Username: username, Password: password}); err != nil {
				return err
			}
			fmt.Fprintf(os.Stdout, "account %q saved\n", username)
			return nil
		},
	}

	c.Flags().StringVar(&username, "username", "", "platform username")
	c.Flags().StringVar(&password, "password", "", "platform password")
	_ = c.MarkFlagRequired("username")
	_ = c.MarkFlagRequired("password")
	return c
}

func newAccountShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Show the configured username",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, store, state, err := openState()
			if err != nil {
				return err
			}
			defer store.Close()

			account, err := state.Account(cmd.Context())
			if err != nil {
				return err
			}
			if !account.Complete() {
				fmt.Fprintln(os.Stdout, "account not configured")
				return nil
			}
			fmt.Fprintf(os.Stdout, "username=%s\n", account.Username)
			return nil
		},
	}
}
