package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/example/fanyu-assistant/internal/auth"
)

func newUserCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "user",
		Short: "Manage the local web UI user",
	}
	cmd.AddCommand(newUserSetPasswordCmd())
	return cmd
}

func newUserSetPasswordCmd() *cobra.Command {
	var password string

	c := &cobra.Command{
		Use:   "set-password",
		Short: "Set the web UI login password",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, store, _, err := openState()
			if err != nil {
				return err
			}
			defer store.Close()

			authStore := auth.NewStore(store, cfg.SessionHashKey, cfg.SessionBlockKey)
			if err := authStore.SetPassword(cmd.Context(), password); err != nil {
				return err
			}
			fmt.Fprintln(os.Stdout, "web UI password updated")
			return nil
		},
	}
	c.Flags().StringVar(&password, "password", "", "new password")
	_ = c.MarkFlagRequired("password")
	return c
}
