package credential

import (
	"crypto/rand"
	"fmt"
	"time"

	"github.com/google/uuid"
)

const (
	// DefaultSecretLength is used when no length is configured.
	DefaultSecretLength = 32

	secretCharset = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789!@#$%^&*()-_=+"
)

// Generator produces fresh credentials with cryptographically random
// secrets that satisfy the complexity rules.
type Generator struct {
	length int
}

// NewGenerator creates a generator. A non-positive length falls back to
// DefaultSecretLength; lengths below 16 cannot satisfy the complexity
// rule and are raised to it.
func NewGenerator(length int) *Generator {
	if length <= 0 {
		length = DefaultSecretLength
	}
	if length < 16 {
		length = 16
	}
	return &Generator{length: length}
}

// Generate builds a new credential. When clientID is empty a random one
// is minted. The secret is redrawn until it passes ValidateSecret; with
// a mixed charset the expected number of draws is small.
func (g *Generator) Generate(clientID string) (Credential, error) {
	if clientID == "" {
		clientID = "client-" + uuid.NewString()[:8]
	}
	if err := ValidateClientID(clientID); err != nil {
		return Credential{}, err
	}

	secret, err := g.drawSecret()
	if err != nil {
		return Credential{}, err
	}

	now := time.Now().UTC()
	return Credential{
		ClientID:     clientID,
		ClientSecret: secret,
		CreatedAt:    &now,
		UpdatedAt:    &now,
		Version:      uuid.NewString(),
		Status:       StatusActive,
	}, nil
}

func (g *Generator) drawSecret() (string, error) {
	for {
		buf := make([]byte, g.length)
		if _, err := rand.Read(buf); err != nil {
			return "", fmt.Errorf("failed to read random bytes: %w", err)
		}
		for i := range buf {
			buf[i] = secretCharset[int(buf[i])%len(secretCharset)]
		}
		secret := string(buf)
		if ValidateSecret(secret) == nil {
			return secret, nil
		}
	}
}
