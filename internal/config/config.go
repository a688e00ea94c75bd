package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	crederrors "github.com/systmms/credops/internal/errors"
	"github.com/systmms/credops/internal/logging"
	"github.com/systmms/credops/internal/retry"
	"github.com/systmms/credops/internal/vault"
	"github.com/systmms/credops/pkg/rotation"
	"github.com/xeipuuv/gojsonschema"
	"gopkg.in/yaml.v3"
)

// Config holds the runtime configuration shared across CLI commands.
type Config struct {
	Path       string
	Logger     *logging.Logger
	Definition *Definition
}

// Definition is the credops.yaml structure.
type Definition struct {
	Vault    vault.Config     `yaml:"vault" json:"vault"`
	Rotation RotationSettings `yaml:"rotation" json:"rotation"`
	Retry    RetrySettings    `yaml:"retry" json:"retry"`

	// SecretLength sets generated secret length. Zero means the default.
	SecretLength int `yaml:"secret_length,omitempty" json:"secret_length,omitempty"`
}

// RotationSettings mirrors the rotation timing options in seconds, as
// they appear on the wire and in the config file.
type RotationSettings struct {
	TransitionPeriodSeconds   int `yaml:"transition_period_seconds,omitempty" json:"transition_period_seconds,omitempty"`
	MonitoringIntervalSeconds int `yaml:"monitoring_interval_seconds,omitempty" json:"monitoring_interval_seconds,omitempty"`
}

// RetrySettings mirrors the retry policy options.
type RetrySettings struct {
	MaxRetries    int     `yaml:"max_retries,omitempty" json:"max_retries,omitempty"`
	BackoffFactor float64 `yaml:"backoff_factor,omitempty" json:"backoff_factor,omitempty"`
	JitterFactor  float64 `yaml:"jitter_factor,omitempty" json:"jitter_factor,omitempty"`
}

// definitionSchema validates the shape of credops.yaml before it is
// trusted. Unknown fields are tolerated; wrong types are not.
const definitionSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "required": ["vault"],
  "properties": {
    "vault": {
      "type": "object",
      "required": ["url", "account", "authn_login"],
      "properties": {
        "url": {"type": "string", "minLength": 1},
        "account": {"type": "string", "minLength": 1},
        "authn_login": {"type": "string", "minLength": 1},
        "cert_path": {"type": "string"},
        "key_path": {"type": "string"},
        "credential_path_template": {"type": "string"},
        "timeout_seconds": {"type": "integer", "minimum": 1}
      }
    },
    "rotation": {
      "type": "object",
      "properties": {
        "transition_period_seconds": {"type": "integer", "minimum": 1},
        "monitoring_interval_seconds": {"type": "integer", "minimum": 1}
      }
    },
    "retry": {
      "type": "object",
      "properties": {
        "max_retries": {"type": "integer", "minimum": 0},
        "backoff_factor": {"type": "number", "minimum": 0},
        "jitter_factor": {"type": "number", "minimum": 0}
      }
    },
    "secret_length": {"type": "integer", "minimum": 16}
  }
}`

// Load reads, schema-validates and parses credops.yaml, then applies
// defaults and environment overrides.
func Load(path string, logger *logging.Logger) (*Definition, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, crederrors.Precondition("config", "cannot read config file: "+err.Error())
	}
	return Parse(data, logger)
}

// Parse handles raw YAML config bytes. Split out from Load for tests.
func Parse(data []byte, logger *logging.Logger) (*Definition, error) {
	var raw map[string]interface{}
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, crederrors.Precondition("config", "invalid YAML: "+err.Error())
	}

	if err := validateSchema(raw); err != nil {
		return nil, err
	}

	var def Definition
	if err := yaml.Unmarshal(data, &def); err != nil {
		return nil, crederrors.Precondition("config", "invalid config structure: "+err.Error())
	}

	def.Vault.ApplyDefaults()
	def.Vault.ApplyEnv()

	if def.Vault.CertPath == "" {
		logger.Warn("no cert_path configured; authentication will use the weaker login fallback")
	}
	return &def, nil
}

func validateSchema(raw map[string]interface{}) error {
	jsonData, err := json.Marshal(raw)
	if err != nil {
		return crederrors.Precondition("config", "cannot normalize config for validation: "+err.Error())
	}

	result, err := gojsonschema.Validate(
		gojsonschema.NewStringLoader(definitionSchema),
		gojsonschema.NewBytesLoader(jsonData),
	)
	if err != nil {
		return crederrors.Precondition("config", "schema validation error: "+err.Error())
	}
	if !result.Valid() {
		var messages []string
		for _, desc := range result.Errors() {
			messages = append(messages, desc.String())
		}
		return crederrors.Precondition("config",
			fmt.Sprintf("config file is invalid:\n  - %s", strings.Join(messages, "\n  - ")))
	}
	return nil
}

// RotationConfig converts the file settings into the rotation engine's
// duration-based config, falling back to the defaults.
func (d *Definition) RotationConfig() rotation.Config {
	cfg := rotation.DefaultConfig()
	if d.Rotation.TransitionPeriodSeconds > 0 {
		cfg.TransitionPeriod = secondsToDuration(d.Rotation.TransitionPeriodSeconds)
	}
	if d.Rotation.MonitoringIntervalSeconds > 0 {
		cfg.MonitoringInterval = secondsToDuration(d.Rotation.MonitoringIntervalSeconds)
	}
	return cfg
}

func secondsToDuration(s int) time.Duration {
	return time.Duration(s) * time.Second
}

// RetryPolicy converts the file settings into a retry policy.
func (d *Definition) RetryPolicy() retry.Policy {
	policy := retry.DefaultPolicy()
	if d.Retry.MaxRetries > 0 {
		policy.MaxRetries = d.Retry.MaxRetries
	}
	if d.Retry.BackoffFactor > 0 {
		policy.BackoffFactor = d.Retry.BackoffFactor
	}
	if d.Retry.JitterFactor > 0 {
		policy.JitterFactor = d.Retry.JitterFactor
	}
	return policy
}
