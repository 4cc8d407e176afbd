package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/example/fanyu-assistant/internal/booking"
	"github.com/example/fanyu-assistant/internal/config"
	"github.com/example/fanyu-assistant/internal/crypto"
	"github.com/example/fanyu-assistant/internal/kv"
)

var (
	Version   = "dev"
	CommitSHA = "none"
	BuildDate = "unknown"
)

func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "fanyuassist",
		Short: "Auto-books recurring classes on the booking platform from your time-window preferences",
	}

	root.AddCommand(newVersionCmd())
	root.AddCommand(newKeysCmd())
	root.AddCommand(newServeCmd())
	root.AddCommand(newAccountCmd())
	root.AddCommand(newRequestCmd())
	root.AddCommand(newProcessingCmd())
	root.AddCommand(newBookedCmd())
	root.AddCommand(newStoresCmd())
	root.AddCommand(newRemoteCmd())
	root.AddCommand(newUserCmd())

	return root
}

func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// openState loads config and opens the store for the management
// commands. The caller must Close the returned store.
func openState() (config.Config, *kv.Store, *booking.State, error) {
	cfg, err := config.Load()
	if err != nil {
		return config.Config{}, nil, nil, err
	}
	store, err := kv.Open(cfg.DBPath)
	if err != nil {
		return config.Config{}, nil, nil, err
	}
	aead, err := crypto.New(cfg.CredEncKey)
	if err != nil {
		_ = store.Close()
		return config.Config{}, nil, nil, err
	}
	return cfg, store, booking.NewState(store, aead), nil
}
