package domain

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

var (
	ErrAuthenticationUnavailable = errors.New("authentication_unavailable")
	ErrCredentialExchangeFailed  = errors.New("credential_exchange_failed")
	ErrPreconditionFailed        = errors.New("precondition_failed")
	ErrRemoteMutationFailed      = errors.New("remote_mutation_failed")
	ErrDecodeSkipped             = errors.New("decode_skipped")
	ErrSubscriptionFailed        = errors.New("subscription_failed")

	ErrUnauthorized       = errors.New("unauthorized")
	ErrForbidden          = errors.New("forbidden")
	ErrNotFound           = errors.New("not_found")
	ErrAlreadyExists      = errors.New("already_exists")
	ErrInvalidCredentials = errors.New("invalid_credentials")
	ErrEmailTaken         = errors.New("email_taken")
)

// ValidationError reports which request fields failed a local precondition.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	if len(e.Fields) == 0 {
		return "precondition failed"
	}
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s: %s", k, e.Fields[k]))
	}
	return "precondition failed: " + strings.Join(parts, ", ")
}

func (e *ValidationError) Unwrap() error { return ErrPreconditionFailed }

func NewValidationError(fields map[string]string) error {
	return &ValidationError{Fields: fields}
}

// RequireFields returns a ValidationError naming every empty value.
func RequireFields(fields map[string]string) error {
	missing := map[string]string{}
	for name, v := range fields {
		if strings.TrimSpace(v) == "" {
			missing[name] = "required"
		}
	}
	if len(missing) == 0 {
		return nil
	}
	return NewValidationError(missing)
}

// RemoteError is returned when a mutation RPC fails or reports failure.
type RemoteError struct {
	Op      string
	Code    string
	Message string
	// Err is the transport failure, if any.
	Err error
}

func (e *RemoteError) Error() string {
	if e.Code == "" {
		return fmt.Sprintf("%s: %s", e.Op, e.Message)
	}
	return fmt.Sprintf("%s: %s: %s", e.Op, e.Code, e.Message)
}

func (e *RemoteError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrRemoteMutationFailed}
	}
	return []error{ErrRemoteMutationFailed, e.Err}
}
