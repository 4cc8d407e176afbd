package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/example/fanyu-assistant/internal/fanyu"
)

func newStoresCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stores",
		Short: "List the platform's stores (for picking a store id)",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, store, _, err := openState()
			if err != nil {
				return err
			}
			defer store.Close()

			client := fanyu.New(cfg.RemoteBase)
			stores, err := client.FetchStores(cmd.Context())
			if err != nil {
				return err
			}
			for _, s := range stores {
				fmt.Fprintf(os.Stdout, "id=%s name=%q\n", s.ID, s.Name)
			}
			return nil
		},
	}
}
