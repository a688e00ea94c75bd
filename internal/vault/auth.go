package vault

import (
	"context"
	"encoding/base64"
	"time"

	"github.com/systmms/credops/internal/cache"
	"github.com/systmms/credops/internal/logging"
	"github.com/systmms/credops/internal/retry"
)

// TokenKey identifies a cached session token. Tokens from different
// vaults, accounts or identities never collide.
type TokenKey struct {
	URL     string
	Account string
	Login   string
}

// Authenticator obtains vault session tokens, preferring the
// certificate handshake and falling back to the two-step
// login/authenticate flow when no certificate is configured. Tokens are
// cached with a fixed TTL; the vault asserts no expiry of its own.
type Authenticator struct {
	client   *Client
	tokens   *cache.TTL[TokenKey, string]
	executor *retry.Executor
	logger   *logging.Logger
	tokenTTL time.Duration
}

// NewAuthenticator creates an authenticator over the given client. The
// token cache is injected so tests and embedders control its lifetime.
func NewAuthenticator(client *Client, tokens *cache.TTL[TokenKey, string], executor *retry.Executor, logger *logging.Logger) *Authenticator {
	return &Authenticator{
		client:   client,
		tokens:   tokens,
		executor: executor,
		logger:   logger,
		tokenTTL: DefaultTokenTTL,
	}
}

// Authenticate returns a base64-encoded session token, from cache when
// possible. The base64 step is mandatory: the raw token is not safe to
// place verbatim into an Authorization header.
func (a *Authenticator) Authenticate(ctx context.Context) (string, error) {
	config := a.client.Config()
	if err := config.Validate(); err != nil {
		return "", err
	}

	key := TokenKey{URL: config.URL, Account: config.Account, Login: config.AuthnLogin}
	if token, ok := a.tokens.Get(key); ok {
		a.logger.Debug("session token cache hit for account %s", config.Account)
		return token, nil
	}

	var raw []byte
	var err error
	if a.client.HasCertificate() {
		raw, err = a.client.Authenticate(ctx, "")
	} else {
		a.logger.Warn("no client certificate configured for %s, falling back to login authentication", config.AuthnLogin)
		var apiKey string
		apiKey, err = a.client.Login(ctx)
		if err == nil {
			raw, err = a.client.Authenticate(ctx, apiKey)
		}
	}
	if err != nil {
		return "", err
	}

	token := base64.StdEncoding.EncodeToString(raw)
	a.tokens.Put(key, token, a.tokenTTL)
	a.logger.Debug("obtained session token %s for account %s", logging.Secret(token), config.Account)
	return token, nil
}

// AuthenticateWithRetry runs Authenticate under the retry policy.
// Connection failures are retried; rejected identities are not.
func (a *Authenticator) AuthenticateWithRetry(ctx context.Context) (string, error) {
	var token string
	err := a.executor.Execute("authenticate", func() error {
		var err error
		token, err = a.Authenticate(ctx)
		return err
	})
	return token, err
}

// ClearTokenCache drops every cached session token. Rotation-completion
// hooks and test teardown use this.
func (a *Authenticator) ClearTokenCache() {
	a.tokens.Clear()
}
