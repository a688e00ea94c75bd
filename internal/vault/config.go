package vault

import (
	"net/url"
	"os"
	"strings"
	"time"

	crederrors "github.com/systmms/credops/internal/errors"
)

const (
	// DefaultTimeout bounds every vault HTTP call.
	DefaultTimeout = 30 * time.Second

	// DefaultTokenTTL is the fixed lifetime applied to cached session
	// tokens. The vault does not assert an expiry in its responses.
	DefaultTokenTTL = 600 * time.Second

	// DefaultCredentialPathTemplate locates a client's credential record.
	DefaultCredentialPathTemplate = "secrets/{account}/variable/payment/credentials/{client_id}"
)

// Config holds the connection and identity settings for one vault.
type Config struct {
	// URL is the vault base address, e.g. https://vault.example.com.
	URL string `yaml:"url" json:"url"`

	// Account is the vault organization account.
	Account string `yaml:"account" json:"account"`

	// AuthnLogin is the authenticator identity, e.g. host/payment-svc.
	AuthnLogin string `yaml:"authn_login" json:"authn_login"`

	// CertPath points at a PEM client certificate. When empty the client
	// falls back to the weaker login/authenticate handshake.
	CertPath string `yaml:"cert_path,omitempty" json:"cert_path,omitempty"`

	// KeyPath points at the certificate's private key. Defaults to
	// CertPath for combined PEM files.
	KeyPath string `yaml:"key_path,omitempty" json:"key_path,omitempty"`

	// CredentialPathTemplate overrides the credential record location.
	// {account} and {client_id} are substituted.
	CredentialPathTemplate string `yaml:"credential_path_template,omitempty" json:"credential_path_template,omitempty"`

	// TimeoutSeconds bounds each HTTP call. Zero means DefaultTimeout.
	TimeoutSeconds int `yaml:"timeout_seconds,omitempty" json:"timeout_seconds,omitempty"`
}

// ApplyDefaults fills unset optional fields.
func (c *Config) ApplyDefaults() {
	if c.CredentialPathTemplate == "" {
		c.CredentialPathTemplate = DefaultCredentialPathTemplate
	}
	if c.KeyPath == "" {
		c.KeyPath = c.CertPath
	}
}

// ApplyEnv overrides configuration from the environment, mirroring the
// CLI convention of env taking precedence over the config file.
func (c *Config) ApplyEnv() {
	if v := os.Getenv("CREDOPS_VAULT_URL"); v != "" {
		c.URL = v
	}
	if v := os.Getenv("CREDOPS_VAULT_ACCOUNT"); v != "" {
		c.Account = v
	}
	if v := os.Getenv("CREDOPS_AUTHN_LOGIN"); v != "" {
		c.AuthnLogin = v
	}
	if v := os.Getenv("CREDOPS_CERT_PATH"); v != "" {
		c.CertPath = v
	}
}

// Validate checks the configuration before any network use. A configured
// certificate path must point at an existing file.
func (c *Config) Validate() error {
	if c.URL == "" {
		return crederrors.Precondition("url", "vault URL is required")
	}
	if u, err := url.Parse(c.URL); err != nil || u.Scheme == "" || u.Host == "" {
		return crederrors.Precondition("url", "vault URL must be an absolute http(s) URL")
	}
	if c.Account == "" {
		return crederrors.Precondition("account", "vault account is required")
	}
	if c.AuthnLogin == "" {
		return crederrors.Precondition("authn_login", "authenticator login is required")
	}
	if c.CertPath != "" {
		if _, err := os.Stat(c.CertPath); err != nil {
			return crederrors.Precondition("cert_path", "client certificate file does not exist: "+c.CertPath)
		}
	}
	return nil
}

// Timeout returns the effective per-call timeout.
func (c *Config) Timeout() time.Duration {
	if c.TimeoutSeconds > 0 {
		return time.Duration(c.TimeoutSeconds) * time.Second
	}
	return DefaultTimeout
}

// CredentialPath expands the path template for a client.
func (c *Config) CredentialPath(clientID string) string {
	template := c.CredentialPathTemplate
	if template == "" {
		template = DefaultCredentialPathTemplate
	}
	path := strings.ReplaceAll(template, "{account}", c.Account)
	return strings.ReplaceAll(path, "{client_id}", clientID)
}
