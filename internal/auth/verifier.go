// AngelaMos | 2026
// verifier.go

package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/carterperez-dev/templates/hotel-backend/internal/core"
	"github.com/carterperez-dev/templates/hotel-backend/internal/identity"
	"github.com/carterperez-dev/templates/hotel-backend/internal/middleware"
	"github.com/carterperez-dev/templates/hotel-backend/internal/user"
)

const (
	SourceLocal    = "local"
	SourceExternal = "external"
)

type LocalTokenVerifier interface {
	VerifyAccessToken(ctx context.Context, token string) (*LocalClaims, error)
}

// Verifier resolves a bearer credential to a local identity. Locally signed
// tokens are checked first; the external provider is consulted only when
// that fails and the provider was enabled at startup.
type Verifier struct {
	local    LocalTokenVerifier
	external identity.Client
	store    user.Store
	logger   *slog.Logger
}

func NewVerifier(
	local LocalTokenVerifier,
	external identity.Client,
	store user.Store,
	logger *slog.Logger,
) *Verifier {
	return &Verifier{
		local:    local,
		external: external,
		store:    store,
		logger:   logger,
	}
}

func (v *Verifier) Verify(
	ctx context.Context,
	rawToken string,
) (*middleware.Identity, error) {
	rawToken = strings.TrimSpace(rawToken)
	if rawToken == "" {
		return nil, newAuthError(ReasonInvalid, errors.New("empty token"))
	}

	claims, localErr := v.local.VerifyAccessToken(ctx, rawToken)
	if localErr == nil {
		u, err := v.store.FindByID(ctx, claims.UserID)
		if err != nil {
			return nil, v.lookupError(err, "resolve local token")
		}
		return resolveIdentity(u, SourceLocal)
	}

	// An expired token already passed our signature check, so it cannot
	// have come from the provider.
	if errors.Is(localErr, core.ErrTokenExpired) {
		return nil, newAuthError(ReasonExpired, localErr)
	}

	if v.external == nil {
		return nil, newAuthError(ReasonInvalid, localErr)
	}

	subject, extErr := v.external.VerifyToken(ctx, rawToken)
	if extErr != nil {
		if !identity.IsKind(extErr, identity.KindInvalidToken) {
			v.logger.Warn("external token verification unavailable",
				"error", extErr,
			)
		}
		return nil, newAuthError(ReasonInvalid, errors.Join(localErr, extErr))
	}

	u, err := v.store.FindByExternalSubject(ctx, subject.ID)
	if err != nil {
		return nil, v.lookupError(err, "resolve external token")
	}

	return resolveIdentity(u, SourceExternal)
}

func (v *Verifier) lookupError(err error, op string) error {
	if errors.Is(err, core.ErrNotFound) {
		return newAuthError(ReasonNotFound, err)
	}
	return fmt.Errorf("%s: %w", op, err)
}

func resolveIdentity(u *user.User, source string) (*middleware.Identity, error) {
	if !u.CanAuthenticate() {
		return nil, newAuthError(ReasonInactive, nil)
	}

	return &middleware.Identity{
		UserID:       u.ID,
		Email:        u.Email,
		Role:         string(u.Role),
		AuthProvider: string(u.AuthProvider),
		Source:       source,
	}, nil
}

var _ middleware.TokenVerifier = (*Verifier)(nil)
