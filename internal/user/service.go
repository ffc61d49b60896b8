// AngelaMos | 2026
// service.go

package user

import (
	"context"
	"errors"
	"fmt"

	"github.com/carterperez-dev/templates/hotel-backend/internal/core"
)

var (
	ErrSelfDeactivation = fmt.Errorf("cannot change your own active state: %w", core.ErrForbidden)
	ErrOutranked        = fmt.Errorf("insufficient role to change this account: %w", core.ErrForbidden)
)

type Service struct {
	store Store
}

func NewService(store Store) *Service {
	return &Service{store: store}
}

func (s *Service) GetMe(ctx context.Context, userID string) (*User, error) {
	if userID == "" {
		return nil, fmt.Errorf("get me: %w", core.ErrUnauthorized)
	}

	u, err := s.store.FindByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	if !u.CanAuthenticate() {
		return nil, fmt.Errorf("get me: %w", core.ErrNotFound)
	}

	return u, nil
}

// SetActive enables or disables a target account on behalf of an admin.
// Only superadmins may change other admins, and nobody may change
// themselves.
func (s *Service) SetActive(
	ctx context.Context,
	actorID string,
	actorRole Role,
	targetID string,
	active bool,
) (*User, error) {
	if actorID == "" {
		return nil, fmt.Errorf("set active: %w", core.ErrUnauthorized)
	}
	if actorID == targetID {
		return nil, ErrSelfDeactivation
	}

	target, err := s.store.FindByID(ctx, targetID)
	if err != nil {
		return nil, err
	}

	if target.Role.AtLeast(RoleAdmin) && actorRole != RoleSuperAdmin {
		return nil, ErrOutranked
	}

	u, err := s.store.SetActive(ctx, targetID, active)
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("set active: %w", err)
	}

	return u, nil
}
