package commands

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/systmms/credops/internal/config"
	"github.com/systmms/credops/internal/logging"
)

// NewGetCommand fetches a client's credential record.
func NewGetCommand(cfg *config.Config) *cobra.Command {
	var showSecret bool

	cmd := &cobra.Command{
		Use:   "get <client-id>",
		Short: "Retrieve a credential record from the vault",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := buildServices(cfg)
			if err != nil {
				return err
			}

			cred, err := svc.store.RetrieveWithRetry(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			if !showSecret {
				cred.ClientSecret = logging.Mask(cred.ClientSecret)
			}
			out, err := json.MarshalIndent(cred, "", "  ")
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(out))
			return nil
		},
	}

	cmd.Flags().BoolVar(&showSecret, "show-secret", false, "Print the client secret in clear text")
	return cmd
}
