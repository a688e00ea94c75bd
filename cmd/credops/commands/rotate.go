package commands

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"github.com/systmms/credops/internal/config"
	"github.com/systmms/credops/pkg/rotation"
)

// NewRotateCommand rotates a client's credential with a dual-validity
// transition window.
func NewRotateCommand(cfg *config.Config) *cobra.Command {
	var (
		transition time.Duration
		interval   time.Duration
		metrics    bool
	)

	cmd := &cobra.Command{
		Use:   "rotate <client-id>",
		Short: "Rotate a credential with a dual-validity transition window",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := buildServices(cfg)
			if err != nil {
				return err
			}

			if metrics {
				rotation.InitMetrics()
			}

			rotCfg := cfg.Definition.RotationConfig()
			if transition > 0 {
				rotCfg.TransitionPeriod = transition
			}
			if interval > 0 {
				rotCfg.MonitoringInterval = interval
			}

			result := svc.orchestrator.RotateWithRetry(cmd.Context(), args[0], rotCfg)

			out, err := json.MarshalIndent(result, "", "  ")
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(out))

			if !result.Success {
				return fmt.Errorf("rotation for %s failed in state %s: %s",
					result.ClientID, result.State, result.ErrorMessage)
			}
			return nil
		},
	}

	cmd.Flags().DurationVar(&transition, "transition", 0, "Override the transition period (e.g. 24h)")
	cmd.Flags().DurationVar(&interval, "monitoring-interval", 0, "Override the usage monitoring interval (e.g. 5m)")
	cmd.Flags().BoolVar(&metrics, "metrics", false, "Register Prometheus rotation metrics")
	return cmd
}
