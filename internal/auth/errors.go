// AngelaMos | 2026
// errors.go

package auth

import (
	"fmt"
	"sort"
	"strings"

	"github.com/carterperez-dev/templates/hotel-backend/internal/core"
)

// ValidationError is returned before any mutation when input fields fail
// the registration rules.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+e.Fields[k])
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

func (e *ValidationError) Unwrap() error {
	return core.ErrInvalidInput
}

type validationBuilder map[string]string

func (v validationBuilder) add(field, message string) {
	if _, exists := v[field]; !exists {
		v[field] = message
	}
}

func (v validationBuilder) err() error {
	if len(v) == 0 {
		return nil
	}
	return &ValidationError{Fields: v}
}

// ConflictError reports a duplicate identity, either in the primary store
// or at the external provider.
type ConflictError struct {
	Field  string
	Remote bool
}

func (e *ConflictError) Error() string {
	where := "locally"
	if e.Remote {
		where = "at the identity provider"
	}
	return fmt.Sprintf("%s already registered %s", e.Field, where)
}

func (e *ConflictError) Unwrap() error {
	return core.ErrConflict
}

type AuthReason string

const (
	ReasonInvalid     AuthReason = "invalid"
	ReasonExpired     AuthReason = "expired"
	ReasonNotFound    AuthReason = "not_found"
	ReasonInactive    AuthReason = "inactive"
	ReasonBadPassword AuthReason = "bad_password"
)

type AuthError struct {
	Reason AuthReason
	Err    error
}

func (e *AuthError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("authentication failed (%s): %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("authentication failed (%s)", e.Reason)
}

func (e *AuthError) Unwrap() []error {
	errs := []error{core.ErrUnauthorized}
	if e.Reason == ReasonExpired {
		errs = append(errs, core.ErrTokenExpired)
	}
	if e.Err != nil {
		errs = append(errs, e.Err)
	}
	return errs
}

// PublicMessage is the caller-facing text; it never includes the cause.
func (e *AuthError) PublicMessage() string {
	switch e.Reason {
	case ReasonNotFound:
		return "no account is linked to this credential"
	case ReasonInactive:
		return "account is disabled"
	case ReasonExpired:
		return "token has expired"
	case ReasonBadPassword:
		return "invalid email or password"
	default:
		return "invalid token"
	}
}

func newAuthError(reason AuthReason, err error) *AuthError {
	return &AuthError{Reason: reason, Err: err}
}
