// AngelaMos | 2026
// client.go

package identity

import (
	"context"
	"errors"
	"fmt"
)

// Client is the external identity-as-a-service boundary. Implementations
// make a single attempt per call and never retry.
type Client interface {
	CreateIdentity(
		ctx context.Context,
		email, secret, displayName string,
	) (string, error)
	// DeleteIdentity treats an unknown subject as already deleted.
	DeleteIdentity(ctx context.Context, subjectID string) error
	VerifyToken(ctx context.Context, token string) (*Subject, error)
}

type Subject struct {
	ID            string
	Email         string
	EmailVerified bool
	Name          string
}

type Kind string

const (
	KindAlreadyExists Kind = "already_exists"
	KindWeakSecret    Kind = "weak_secret"
	KindInvalidInput  Kind = "invalid_input"
	KindUnavailable   Kind = "unavailable"
	KindInvalidToken  Kind = "invalid_token"
)

type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("identity %s: %s: %v", e.Op, e.Kind, e.Err)
	}
	return fmt.Sprintf("identity %s: %s", e.Op, e.Kind)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func NewError(op string, kind Kind, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

// KindOf returns the provider error kind carried by err. Errors that did
// not come from a provider are reported as unavailable.
func KindOf(err error) Kind {
	var idErr *Error
	if errors.As(err, &idErr) {
		return idErr.Kind
	}
	return KindUnavailable
}

func IsKind(err error, kind Kind) bool {
	var idErr *Error
	return errors.As(err, &idErr) && idErr.Kind == kind
}
