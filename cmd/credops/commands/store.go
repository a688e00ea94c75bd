package commands

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"github.com/systmms/credops/internal/config"
	"github.com/systmms/credops/internal/secure"
)

// NewStoreCommand persists a credential pair. The secret is read from
// stdin into a protected buffer so it never sits in ordinary memory or
// shell history.
func NewStoreCommand(cfg *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "store <client-id>",
		Short: "Store a credential pair in the vault (secret read from stdin)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := buildServices(cfg)
			if err != nil {
				return err
			}

			if isTerminal(cmd.InOrStdin()) {
				fmt.Fprint(cmd.OutOrStdout(), "Client secret: ")
			}
			buf, err := secure.ReadLine(cmd.InOrStdin())
			if err != nil {
				return fmt.Errorf("failed to read secret: %w", err)
			}

			clientID := args[0]
			return buf.WithString(func(secret string) error {
				ok, err := svc.store.StoreWithRetry(cmd.Context(), clientID, secret)
				if err != nil {
					return err
				}
				if !ok {
					return fmt.Errorf("vault declined to store credential for %s", clientID)
				}
				cfg.Logger.Info("stored credential for %s", clientID)
				return nil
			})
		},
	}
}

func isTerminal(r io.Reader) bool {
	f, ok := r.(*os.File)
	if !ok {
		return false
	}
	info, err := f.Stat()
	if err != nil {
		return false
	}
	return (info.Mode() & os.ModeCharDevice) != 0
}
