package credential

import (
	"regexp"
	"time"

	crederrors "github.com/systmms/credops/internal/errors"
)

// Status describes a credential record's lifecycle standing.
type Status string

// StatusActive is the only status the vault currently stores.
const StatusActive Status = "active"

// Credential is the managed client_id/client_secret pair persisted as a
// JSON record in the vault. The vault is the single source of truth;
// cached copies are derived, invalidateable views.
type Credential struct {
	ClientID     string `json:"client_id"`
	ClientSecret string `json:"client_secret"`

	CreatedAt *time.Time `json:"created_at,omitempty"`
	UpdatedAt *time.Time `json:"updated_at,omitempty"`

	// Version is an opaque identifier refreshed on every store.
	Version string `json:"version,omitempty"`
	Status  Status `json:"status,omitempty"`

	// Rotation is co-located with the secret so one read/write round
	// trip covers both the value and its lifecycle state.
	Rotation *RotationMetadata `json:"rotation,omitempty"`
}

// RotationMetadata tracks an in-flight or completed rotation. State
// values come from the rotation state machine in pkg/rotation.
type RotationMetadata struct {
	State                   string     `json:"state"`
	OldVersion              string     `json:"old_version,omitempty"`
	StartedAt               *time.Time `json:"started_at,omitempty"`
	TransitionPeriodSeconds int        `json:"transition_period_seconds,omitempty"`
	CompletedAt             *time.Time `json:"completed_at,omitempty"`
}

var clientIDPattern = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

// ValidateClientID enforces the local identifier rules: at least three
// characters from [A-Za-z0-9_-].
func ValidateClientID(clientID string) error {
	if len(clientID) < 3 {
		return crederrors.Precondition("client_id", "must be at least 3 characters")
	}
	if !clientIDPattern.MatchString(clientID) {
		return crederrors.Precondition("client_id", "may only contain letters, digits, underscore and hyphen")
	}
	return nil
}

// ValidateSecret enforces the complexity rules: at least 16 characters
// containing an upper-case letter, a lower-case letter, a digit and a
// non-alphanumeric character.
func ValidateSecret(secret string) error {
	if len(secret) < 16 {
		return crederrors.Precondition("client_secret", "must be at least 16 characters")
	}

	var hasUpper, hasLower, hasDigit, hasSymbol bool
	for _, r := range secret {
		switch {
		case r >= 'A' && r <= 'Z':
			hasUpper = true
		case r >= 'a' && r <= 'z':
			hasLower = true
		case r >= '0' && r <= '9':
			hasDigit = true
		default:
			hasSymbol = true
		}
	}

	if !hasUpper || !hasLower || !hasDigit || !hasSymbol {
		return crederrors.Precondition("client_secret",
			"must contain upper-case, lower-case, digit and non-alphanumeric characters")
	}
	return nil
}

// Validate checks both halves of the pair.
func (c *Credential) Validate() error {
	if err := ValidateClientID(c.ClientID); err != nil {
		return err
	}
	return ValidateSecret(c.ClientSecret)
}
