package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func newBookedCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "booked",
		Short: "Inspect locally recorded bookings",
	}
	cmd.AddCommand(newBookedListCmd())
	return cmd
}

func newBookedListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List courses booked by the daemon",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, store, state, err := openState()
			if err != nil {
				return err
			}
			defer store.Close()

			booked, err := state.Booked(cmd.Context())
			if err != nil {
				return err
			}
			for _, b := range booked {
				fmt.Fprintf(os.Stdout, "id=%s course=%q date=%s %s store=%q bookedAt=%s\n",
					b.ID, b.Course.Course.Name, b.Date, b.StartTime, b.Store.Name,
					b.BookedAt.Format("2006-01-02 15:04:05"))
			}
			return nil
		},
	}
}
