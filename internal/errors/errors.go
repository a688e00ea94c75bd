package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies a failure so callers can decide whether to retry,
// re-authenticate, or give up.
type Kind string

const (
	// KindConnection covers network failures, timeouts and 5xx responses.
	// Connection failures are the only retryable kind.
	KindConnection Kind = "connection"
	// KindAuthentication signals a rejected identity (HTTP 401).
	KindAuthentication Kind = "authentication"
	// KindPermission signals an authorization gap (HTTP 403).
	KindPermission Kind = "permission"
	// KindNotFound signals a missing resource (HTTP 404).
	KindNotFound Kind = "not_found"
	// KindPrecondition signals a local validation failure that never
	// reached the network.
	KindPrecondition Kind = "precondition"
	// KindVault covers any other non-2xx vault response.
	KindVault Kind = "vault"
)

// VaultError is a classified failure from a vault interaction.
// The message never contains secret material.
type VaultError struct {
	Kind       Kind
	Op         string
	StatusCode int
	Message    string
	Err        error
}

func (e *VaultError) Error() string {
	msg := fmt.Sprintf("%s: %s error", e.Op, e.Kind)
	if e.StatusCode != 0 {
		msg += fmt.Sprintf(" (status %d)", e.StatusCode)
	}
	if e.Message != "" {
		msg += ": " + e.Message
	}
	if e.Err != nil && e.Message == "" {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *VaultError) Unwrap() error {
	return e.Err
}

// PreconditionError reports invalid local input, such as a malformed
// configuration field or a credential that fails the complexity rules.
type PreconditionError struct {
	Field   string
	Message string
}

func (e *PreconditionError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("precondition failed for '%s': %s", e.Field, e.Message)
	}
	return "precondition failed: " + e.Message
}

// OperationFailedError wraps a non-domain failure after the retry budget
// is exhausted, preserving the attempt count and the original cause.
type OperationFailedError struct {
	Op       string
	Attempts int
	Err      error
}

func (e *OperationFailedError) Error() string {
	return fmt.Sprintf("%s failed after %d attempts: %v", e.Op, e.Attempts, e.Err)
}

func (e *OperationFailedError) Unwrap() error {
	return e.Err
}

// Connection builds a retryable connection error.
func Connection(op, message string, err error) error {
	return &VaultError{Kind: KindConnection, Op: op, Message: message, Err: err}
}

// Precondition builds a local validation error.
func Precondition(field, message string) error {
	return &PreconditionError{Field: field, Message: message}
}

// FromStatus maps a non-2xx vault response to a classified error.
// Response bodies are deliberately not included in the message; they can
// echo request material.
func FromStatus(op string, status int) error {
	switch {
	case status == http.StatusUnauthorized:
		return &VaultError{Kind: KindAuthentication, Op: op, StatusCode: status, Message: "vault rejected the provided identity"}
	case status == http.StatusForbidden:
		return &VaultError{Kind: KindPermission, Op: op, StatusCode: status, Message: "access to the resource is not permitted"}
	case status == http.StatusNotFound:
		return &VaultError{Kind: KindNotFound, Op: op, StatusCode: status, Message: "resource not found"}
	case status >= 500:
		return &VaultError{Kind: KindConnection, Op: op, StatusCode: status, Message: "vault server error"}
	default:
		return &VaultError{Kind: KindVault, Op: op, StatusCode: status, Message: "unexpected vault response"}
	}
}

// KindOf returns the classification of err, unwrapping as needed.
// Unclassified errors report KindVault.
func KindOf(err error) Kind {
	var ve *VaultError
	if errors.As(err, &ve) {
		return ve.Kind
	}
	var pe *PreconditionError
	if errors.As(err, &pe) {
		return KindPrecondition
	}
	return KindVault
}

// HasKind reports whether err carries the given classification.
func HasKind(err error, kind Kind) bool {
	if err == nil {
		return false
	}
	return KindOf(err) == kind
}

// IsRetryable reports whether err is worth retrying. Only connection
// failures qualify; auth, permission and not-found responses are stable.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	return KindOf(err) == KindConnection
}

// IsDomain reports whether err is one of the classified error types
// defined by this package, as opposed to an arbitrary wrapped failure.
func IsDomain(err error) bool {
	var ve *VaultError
	var pe *PreconditionError
	return errors.As(err, &ve) || errors.As(err, &pe)
}
