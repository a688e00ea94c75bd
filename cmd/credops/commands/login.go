package commands

import (
	"github.com/spf13/cobra"
	"github.com/systmms/credops/internal/config"
)

// NewLoginCommand verifies that the configured identity can obtain a
// vault session token.
func NewLoginCommand(cfg *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "login",
		Short: "Authenticate against the vault and cache a session token",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := buildServices(cfg)
			if err != nil {
				return err
			}

			if _, err := svc.auth.AuthenticateWithRetry(cmd.Context()); err != nil {
				return err
			}
			cfg.Logger.Info("authenticated as %s against %s",
				cfg.Definition.Vault.AuthnLogin, cfg.Definition.Vault.URL)
			return nil
		},
	}
}
