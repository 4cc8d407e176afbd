package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/example/fanyu-assistant/internal/fanyu"
)

func newRemoteCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "remote",
		Short: "Inspect and cancel bookings on the platform side",
	}
	cmd.AddCommand(newRemoteListCmd())
	cmd.AddCommand(newRemoteCancelCmd())
	return cmd
}

func newRemoteListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List the account's bookings as the platform sees them",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, closeStore, err := loginClient(cmd.Context())
			if err != nil {
				return err
			}
			defer closeStore()

			courses, err := client.FetchUserCourses(cmd.Context())
			if err != nil {
				return err
			}
			for _, c := range courses {
				fmt.Fprintf(os.Stdout, "id=%s course=%q date=%s %s store=%q\n",
					c.ID, c.Course.Name, c.Date, c.StartTime, c.Store.Name)
			}
			return nil
		},
	}
}

func newRemoteCancelCmd() *cobra.Command {
	var bookID string

	c := &cobra.Command{
		Use:   "cancel",
		Short: "Cancel a booking by its booking id",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, closeStore, err := loginClient(cmd.Context())
			if err != nil {
				return err
			}
			defer closeStore()

			if _, err := client.CancelCourse(cmd.Context(), bookID); err != nil {
				return err
			}
			fmt.Fprintf(os.Stdout, "cancelled booking %s\n", bookID)
			return nil
		},
	}
	c.Flags().StringVar(&bookID, "id", "", "booking id (see 'fanyuassist remote list')")
	_ = c.MarkFlagRequired("id")
	return c
}

// loginClient builds a client authenticated with the stored account.
func loginClient(ctx context.Context) (*fanyu.Client, func(), error) {
	cfg, store, state, err := openState()
	if err != nil {
		return nil, nil, err
	}
	closeStore := func() { _ = store.Close() }

	account, err := state.Account(ctx)
	if err != nil {
		closeStore()
		return nil, nil, err
	}
	if !account.Complete() {
		closeStore()
		return nil, nil, fmt.Errorf("account not configured, run 'fanyuassist account set' first")
	}

	client := fanyu.New(cfg.RemoteBase)
	if _, err := client.Login(ctx, account.Username, account.Password); err != nil {
		closeStore()
		return nil, nil, fmt.Errorf("login failed: %w", err)
	}
	return client, closeStore, nil
}
