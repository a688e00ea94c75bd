package commands

import (
	"github.com/systmms/credops/internal/cache"
	"github.com/systmms/credops/internal/config"
	"github.com/systmms/credops/internal/credential"
	"github.com/systmms/credops/internal/retry"
	"github.com/systmms/credops/internal/vault"
	"github.com/systmms/credops/pkg/rotation"
)

// services wires the credential lifecycle stack for one command run.
// Caches live for the process; each CLI invocation is one process, so a
// fresh instance per run matches the production singleton behavior.
type services struct {
	client       *vault.Client
	auth         *vault.Authenticator
	store        *credential.Store
	orchestrator *rotation.Orchestrator
}

// buildServices loads the config file and assembles the stack.
func buildServices(cfg *config.Config) (*services, error) {
	def, err := config.Load(cfg.Path, cfg.Logger)
	if err != nil {
		return nil, err
	}
	cfg.Definition = def

	client, err := vault.NewClient(def.Vault, cfg.Logger)
	if err != nil {
		return nil, err
	}

	executor := retry.NewExecutor(def.RetryPolicy(), cfg.Logger)
	auth := vault.NewAuthenticator(client, cache.New[vault.TokenKey, string](), executor, cfg.Logger)
	store := credential.NewStore(client, auth, cache.New[string, credential.Credential](), executor, cfg.Logger)

	generator := credential.NewGenerator(def.SecretLength)
	monitor := rotation.NewMonitor(rotation.NewDecayingUsageSignal(), cfg.Logger)
	orchestrator := rotation.NewOrchestrator(store, generator, monitor, executor, cfg.Logger)

	return &services{
		client:       client,
		auth:         auth,
		store:        store,
		orchestrator: orchestrator,
	}, nil
}
