package cmd

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func newKeysCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "keys",
		Short: "Generate session_hash_key, session_block_key and cred_enc_key values (base64)",
		RunE: func(cmd *cobra.Command, args []string) error {
			for _, name := range []string{"session_hash_key", "session_block_key", "cred_enc_key"} {
				key := make([]byte, 32)
				if _, err := rand.Read(key); err != nil {
					return err
				}
				fmt.Fprintf(os.Stdout, "%s: %s\n", name, base64.StdEncoding.EncodeToString(key))
			}
			return nil
		},
	}
}
