package vault

import (
	"bytes"
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	crederrors "github.com/systmms/credops/internal/errors"
	"github.com/systmms/credops/internal/logging"
	"gopkg.in/yaml.v3"
)

// Client is the low-level HTTP client for the vault API. It performs
// single requests and maps responses onto the error taxonomy; callers
// layer caching and retries on top.
type Client struct {
	config Config
	http   *http.Client
	logger *logging.Logger
}

// NewClient builds a client for the given configuration. When a client
// certificate is configured it is loaded eagerly so a broken keypair
// fails construction, not the first rotation.
func NewClient(config Config, logger *logging.Logger) (*Client, error) {
	config.ApplyDefaults()

	httpClient := &http.Client{Timeout: config.Timeout()}
	if config.CertPath != "" {
		cert, err := tls.LoadX509KeyPair(config.CertPath, config.KeyPath)
		if err != nil {
			return nil, crederrors.Precondition("cert_path", "failed to load client certificate: "+err.Error())
		}
		httpClient.Transport = &http.Transport{
			TLSClientConfig: &tls.Config{Certificates: []tls.Certificate{cert}},
		}
	}

	return &Client{
		config: config,
		http:   httpClient,
		logger: logger,
	}, nil
}

// Config returns the client's configuration.
func (c *Client) Config() Config {
	return c.config
}

// HasCertificate reports whether a client certificate is configured.
func (c *Client) HasCertificate() bool {
	return c.config.CertPath != ""
}

// Login obtains an API key via the fallback handshake: GET
// /authn/{account}/login with basic auth using the login name and an
// empty password.
func (c *Client) Login(ctx context.Context) (string, error) {
	const op = "vault login"

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint("authn", c.config.Account, "login"), nil)
	if err != nil {
		return "", crederrors.Connection(op, "failed to build request", err)
	}
	req.SetBasicAuth(c.config.AuthnLogin, "")

	body, err := c.do(op, req)
	if err != nil {
		return "", err
	}
	return string(body), nil
}

// Authenticate exchanges an API key for a raw session token via POST
// /authn/{account}/{login}/authenticate. With a client certificate
// configured the TLS handshake itself carries the identity and apiKey
// may be empty.
func (c *Client) Authenticate(ctx context.Context, apiKey string) ([]byte, error) {
	const op = "vault authenticate"

	endpoint := c.endpoint("authn", c.config.Account, url.PathEscape(c.config.AuthnLogin), "authenticate")
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(apiKey))
	if err != nil {
		return nil, crederrors.Connection(op, "failed to build request", err)
	}
	req.Header.Set("Content-Type", "text/plain")

	return c.do(op, req)
}

// GetSecret fetches the raw body of a variable. The path is the full
// templated variable path, e.g. secrets/acct/variable/payment/credentials/c1.
func (c *Client) GetSecret(ctx context.Context, token, path string) ([]byte, error) {
	const op = "vault get secret"

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint(path), nil)
	if err != nil {
		return nil, crederrors.Connection(op, "failed to build request", err)
	}
	setTokenHeader(req, token)

	return c.do(op, req)
}

// SetSecret stores a JSON document at a variable path.
func (c *Client) SetSecret(ctx context.Context, token, path string, payload []byte) error {
	const op = "vault set secret"

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint(path), bytes.NewReader(payload))
	if err != nil {
		return crederrors.Connection(op, "failed to build request", err)
	}
	req.Header.Set("Content-Type", "application/json")
	setTokenHeader(req, token)

	_, err = c.do(op, req)
	return err
}

// ApplyPolicy loads a YAML policy document via PUT
// /policies/{account}/policy/{policyID}. The document is checked for
// YAML well-formedness locally before it leaves the process.
func (c *Client) ApplyPolicy(ctx context.Context, token, policyID, document string) error {
	const op = "vault apply policy"

	var parsed interface{}
	if err := yaml.Unmarshal([]byte(document), &parsed); err != nil {
		return crederrors.Precondition("policy", "policy document is not valid YAML: "+err.Error())
	}

	endpoint := c.endpoint("policies", c.config.Account, "policy", url.PathEscape(policyID))
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, endpoint, strings.NewReader(document))
	if err != nil {
		return crederrors.Connection(op, "failed to build request", err)
	}
	req.Header.Set("Content-Type", "application/x-yaml")
	setTokenHeader(req, token)

	_, err = c.do(op, req)
	return err
}

// do executes the request and returns the response body, mapping
// transport failures and non-2xx statuses onto the error taxonomy.
func (c *Client) do(op string, req *http.Request) ([]byte, error) {
	c.logger.Debug("%s %s", req.Method, req.URL.Path)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, crederrors.Connection(op, "request failed", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil, crederrors.FromStatus(op, resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, crederrors.Connection(op, "failed to read response body", err)
	}
	return body, nil
}

func (c *Client) endpoint(parts ...string) string {
	return strings.TrimSuffix(c.config.URL, "/") + "/" + strings.Join(parts, "/")
}

// setTokenHeader applies the vault's bearer convention. The token is
// already base64 encoded; the raw token is not header-safe.
func setTokenHeader(req *http.Request, token string) {
	req.Header.Set("Authorization", fmt.Sprintf("Token token=%q", token))
}
