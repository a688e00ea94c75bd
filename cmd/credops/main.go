package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/systmms/credops/cmd/credops/commands"
	"github.com/systmms/credops/internal/config"
	"github.com/systmms/credops/internal/logging"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var (
		configFile string
		noColor    bool
		debug      bool
	)

	cfg := &config.Config{}

	rootCmd := &cobra.Command{
		Use:   "credops",
		Short: "Credential lifecycle operations against the secrets vault",
		Long: `credops manages service-to-service credentials stored in the secrets
vault: obtaining session tokens, fetching and storing client credential
pairs, and rotating them with a dual-validity transition window.`,
		Version: fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date),
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			cfg.Path = configFile
			cfg.Logger = logging.New(debug, noColor)
		},
	}

	rootCmd.PersistentFlags().StringVar(&configFile, "config", "credops.yaml", "Config file path")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "Disable colored output")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "Enable debug logging")

	rootCmd.AddCommand(
		commands.NewLoginCommand(cfg),
		commands.NewGetCommand(cfg),
		commands.NewStoreCommand(cfg),
		commands.NewRotateCommand(cfg),
		commands.NewPolicyCommand(cfg),
	)

	return rootCmd.Execute()
}
