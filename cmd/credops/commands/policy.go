package commands

import (
	"os"

	"github.com/spf13/cobra"
	"github.com/systmms/credops/internal/config"
)

// NewPolicyCommand groups policy operations. Policy management is setup
// tooling: the heavy lifting stays on the vault side, this only ships a
// YAML document to it.
func NewPolicyCommand(cfg *config.Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "policy",
		Short: "Manage vault policy documents",
	}
	cmd.AddCommand(newPolicyApplyCommand(cfg))
	return cmd
}

func newPolicyApplyCommand(cfg *config.Config) *cobra.Command {
	var file string

	cmd := &cobra.Command{
		Use:   "apply <policy-id>",
		Short: "Apply a YAML policy document to the vault",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := buildServices(cfg)
			if err != nil {
				return err
			}

			document, err := os.ReadFile(file)
			if err != nil {
				return err
			}

			token, err := svc.auth.AuthenticateWithRetry(cmd.Context())
			if err != nil {
				return err
			}

			if err := svc.client.ApplyPolicy(cmd.Context(), token, args[0], string(document)); err != nil {
				return err
			}
			cfg.Logger.Info("applied policy %s", args[0])
			return nil
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", "", "Path to the YAML policy document")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}
