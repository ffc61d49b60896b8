// AngelaMos | 2026
// service.go

package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/carterperez-dev/templates/hotel-backend/internal/core"
	"github.com/carterperez-dev/templates/hotel-backend/internal/user"
)

// Service handles password login for users that already exist locally.
type Service struct {
	store  user.Store
	tokens TokenIssuer
	logger *slog.Logger
}

func NewService(store user.Store, tokens TokenIssuer, logger *slog.Logger) *Service {
	return &Service{
		store:  store,
		tokens: tokens,
		logger: logger,
	}
}

func (s *Service) Login(
	ctx context.Context,
	email, password string,
) (*user.User, *Token, error) {
	u, err := s.store.FindByEmail(ctx, user.NormalizeEmail(email))
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			//nolint:errcheck // timing attack prevention
			_, _, _ = core.VerifyPasswordTimingSafe(password, nil)
			return nil, nil, newAuthError(ReasonBadPassword, nil)
		}
		return nil, nil, fmt.Errorf("login: %w", err)
	}

	if !u.HasPassword() {
		//nolint:errcheck // timing attack prevention
		_, _, _ = core.VerifyPasswordTimingSafe(password, nil)
		return nil, nil, newAuthError(ReasonBadPassword, nil)
	}

	valid, newHash, err := core.VerifyPasswordTimingSafe(password, u.PasswordHash)
	if err != nil {
		s.logger.Warn("stored password hash unreadable",
			"user_id", u.ID,
			"error", err,
		)
		return nil, nil, newAuthError(ReasonBadPassword, nil)
	}
	if !valid {
		return nil, nil, newAuthError(ReasonBadPassword, nil)
	}

	if !u.CanAuthenticate() {
		return nil, nil, newAuthError(ReasonInactive, nil)
	}

	if newHash != "" {
		if err := s.store.UpdatePasswordHash(ctx, u.ID, newHash); err != nil {
			s.logger.Warn("failed to upgrade password hash",
				"user_id", u.ID,
				"error", err,
			)
		}
	}

	u, err = s.store.RecordLogin(ctx, u.ID)
	if err != nil {
		return nil, nil, fmt.Errorf("record login: %w", err)
	}

	token, err := s.tokens.CreateAccessToken(LocalClaims{
		UserID: u.ID,
		Email:  u.Email,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("issue token: %w", err)
	}

	return u, token, nil
}

func (s *Service) CurrentUser(ctx context.Context, userID string) (*user.User, error) {
	u, err := s.store.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			return nil, newAuthError(ReasonNotFound, err)
		}
		return nil, fmt.Errorf("current user: %w", err)
	}
	if !u.CanAuthenticate() {
		return nil, newAuthError(ReasonInactive, nil)
	}
	return u, nil
}
