package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func newProcessingCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "processing",
		Short: "Control the processing flag the daemon mirrors",
	}
	cmd.AddCommand(newProcessingSetCmd(true))
	cmd.AddCommand(newProcessingSetCmd(false))
	cmd.AddCommand(newProcessingStatusCmd())
	return cmd
}

func newProcessingSetCmd(on bool) *cobra.Command {
	use := "on"
	if !on {
		use = "off"
	}
	return &cobra.Command{
		Use:   use,
		Short: fmt.Sprintf("Turn book request processing %s", use),
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
			return state.SetProcessing(ctx, on)
		},
	}
}

func newProcessingStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show whether processing is enabled",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, store, state, err := openState()
			if err != nil {
				return err
			}
			defer store.Close()

			on, err := state.Processing(cmd.Context())
			if err != nil {
				return err
			}
			if on {
				fmt.Fprintln(os.Stdout, "processing: on")
			} else {
				fmt.Fprintln(os.Stdout, "processing: off")
			}
			return nil
		},
	}
}
