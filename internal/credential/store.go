package credential

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/systmms/credops/internal/cache"
	crederrors "github.com/systmms/credops/internal/errors"
	"github.com/systmms/credops/internal/logging"
	"github.com/systmms/credops/internal/retry"
	"github.com/systmms/credops/internal/vault"
)

// DefaultCacheTTL is the lifetime of cached credential records.
const DefaultCacheTTL = 300 * time.Second

// Store retrieves and persists credential records at their per-client
// vault path. Reads are cached; writes go straight through.
type Store struct {
	client   *vault.Client
	auth     *vault.Authenticator
	creds    *cache.TTL[string, Credential]
	executor *retry.Executor
	logger   *logging.Logger
	cacheTTL time.Duration
}

// NewStore creates a credential store. The credential cache is injected
// so tests can supply isolated instances.
func NewStore(client *vault.Client, auth *vault.Authenticator, creds *cache.TTL[string, Credential], executor *retry.Executor, logger *logging.Logger) *Store {
	return &Store{
		client:   client,
		auth:     auth,
		creds:    creds,
		executor: executor,
		logger:   logger,
		cacheTTL: DefaultCacheTTL,
	}
}

// Retrieve fetches the credential record for clientID, serving from
// cache when a fresh entry exists. The identifier rules are enforced on
// writes only; legacy records provisioned under names that predate them
// stay readable.
func (s *Store) Retrieve(ctx context.Context, clientID string) (Credential, error) {
	config := s.client.Config()
	if err := config.Validate(); err != nil {
		return Credential{}, err
	}

	if cred, ok := s.creds.Get(clientID); ok {
		s.logger.Debug("credential cache hit for %s", clientID)
		return cred, nil
	}

	token, err := s.auth.AuthenticateWithRetry(ctx)
	if err != nil {
		return Credential{}, err
	}

	body, err := s.client.GetSecret(ctx, token, config.CredentialPath(clientID))
	if err != nil {
		return Credential{}, err
	}

	cred := parseCredentialBody(clientID, body)
	s.creds.Put(clientID, cred, s.cacheTTL)
	return cred, nil
}

// RetrieveWithRetry runs Retrieve under the retry policy. After the
// budget is exhausted it falls back to the live cache: a still-unexpired
// entry beats total unavailability. Entries past their TTL are not
// served; staleness here means recent, not arbitrary.
func (s *Store) RetrieveWithRetry(ctx context.Context, clientID string) (Credential, error) {
	var cred Credential
	err := s.executor.Execute("retrieve credential", func() error {
		var opErr error
		cred, opErr = s.Retrieve(ctx, clientID)
		return opErr
	})
	if err == nil {
		return cred, nil
	}

	if cached, ok := s.creds.Get(clientID); ok {
		s.logger.Warn("retrieval for %s failed, serving cached credential", clientID)
		return cached, nil
	}
	return Credential{}, err
}

// Store validates and persists a new credential record built from the
// given pair. It reports success as a boolean: generic vault failures
// are logged and swallowed to keep rotation call sites simple, while
// authentication, permission and connection errors propagate.
func (s *Store) Store(ctx context.Context, clientID, clientSecret string) (bool, error) {
	if err := ValidateClientID(clientID); err != nil {
		return false, err
	}
	if err := ValidateSecret(clientSecret); err != nil {
		return false, err
	}

	now := time.Now().UTC()
	return s.StoreRecord(ctx, Credential{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		CreatedAt:    &now,
		UpdatedAt:    &now,
		Version:      uuid.NewString(),
		Status:       StatusActive,
	})
}

// StoreRecord persists a full credential record, rotation metadata
// included. Error semantics match Store.
func (s *Store) StoreRecord(ctx context.Context, cred Credential) (bool, error) {
	config := s.client.Config()
	if err := config.Validate(); err != nil {
		return false, err
	}
	if err := cred.Validate(); err != nil {
		return false, err
	}

	token, err := s.auth.AuthenticateWithRetry(ctx)
	if err != nil {
		return false, err
	}

	payload, err := json.Marshal(cred)
	if err != nil {
		return false, crederrors.Precondition("credential", "failed to encode credential record: "+err.Error())
	}

	if err := s.client.SetSecret(ctx, token, config.CredentialPath(cred.ClientID), payload); err != nil {
		switch crederrors.KindOf(err) {
		case crederrors.KindAuthentication, crederrors.KindPermission, crederrors.KindConnection:
			return false, err
		default:
			s.logger.Warn("storing credential for %s failed: %s",
				cred.ClientID, logging.Redact(err.Error(), []string{cred.ClientSecret}))
			return false, nil
		}
	}

	s.creds.Put(cred.ClientID, cred, s.cacheTTL)
	return true, nil
}

// StoreWithRetry runs Store under the retry policy.
func (s *Store) StoreWithRetry(ctx context.Context, clientID, clientSecret string) (bool, error) {
	var ok bool
	err := s.executor.Execute("store credential", func() error {
		var opErr error
		ok, opErr = s.Store(ctx, clientID, clientSecret)
		return opErr
	})
	return ok, err
}

// Invalidate drops the cached record for clientID, forcing the next
// read to fetch the authoritative version.
func (s *Store) Invalidate(clientID string) {
	s.creds.Invalidate(clientID)
}

// ClearCache drops every cached credential record.
func (s *Store) ClearCache() {
	s.creds.Clear()
}

// parseCredentialBody interprets a vault variable body leniently. A JSON
// document with both halves of the pair is taken as a full record; valid
// JSON missing either half is wrapped verbatim as the secret; anything
// else is treated as a raw secret string. The client_id is always set
// explicitly since older records may lack it.
func parseCredentialBody(clientID string, body []byte) Credential {
	var cred Credential
	if err := json.Unmarshal(body, &cred); err == nil {
		if cred.ClientID != "" && cred.ClientSecret != "" {
			cred.ClientID = clientID
			return cred
		}
		if json.Valid(body) {
			return Credential{ClientID: clientID, ClientSecret: string(body)}
		}
	}
	return Credential{ClientID: clientID, ClientSecret: string(body)}
}
