// AngelaMos | 2026
// memory.go

package user

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/carterperez-dev/templates/hotel-backend/internal/core"
)

// MemoryStore is a process-local Store. Every operation runs under one
// mutex, which gives it the same atomic uniqueness and conditional-link
// behaviour as the Postgres indexes.
type MemoryStore struct {
	mu    sync.Mutex
	users map[string]*User
	now   func() time.Time
}

type MemoryOption func(*MemoryStore)

// WithClock overrides the time source used for timestamps and sweeps.
func WithClock(now func() time.Time) MemoryOption {
	return func(s *MemoryStore) {
		s.now = now
	}
}

func NewMemoryStore(opts ...MemoryOption) *MemoryStore {
	s := &MemoryStore{
		users: make(map[string]*User),
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *MemoryStore) CreateLocal(
	_ context.Context,
	p CreateParams,
) (*User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, err := s.insertLocked(p)
	if err != nil {
		return nil, fmt.Errorf("create local user: %w", err)
	}

	return clone(u), nil
}

func (s *MemoryStore) CreateLinked(
	_ context.Context,
	p CreateParams,
	subjectID string,
) (*User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.subjectTakenLocked(subjectID) {
		return nil, fmt.Errorf("create linked user: %w", core.ErrDuplicateKey)
	}

	u, err := s.insertLocked(p)
	if err != nil {
		return nil, fmt.Errorf("create linked user: %w", err)
	}

	now := s.now()
	sub := subjectID
	u.ExternalSubjectID = &sub
	u.AuthProvider = ProviderExternal
	u.RegistrationState = StateLinked
	u.LinkAttemptedAt = &now
	u.LinkedAt = &now

	return clone(u), nil
}

func (s *MemoryStore) LinkExternal(
	_ context.Context,
	id, subjectID string,
) (*User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[id]
	if !ok || u.IsDeleted || u.IsLinked() {
		return nil, fmt.Errorf("link external subject: %w", core.ErrNotFound)
	}

	if s.subjectTakenLocked(subjectID) {
		return nil, fmt.Errorf("link external subject: %w", core.ErrDuplicateKey)
	}

	now := s.now()
	sub := subjectID
	u.ExternalSubjectID = &sub
	u.AuthProvider = ProviderExternal
	u.RegistrationState = StateLinked
	u.LinkedAt = &now
	u.UpdatedAt = now

	return clone(u), nil
}

func (s *MemoryStore) MarkLinkAttempted(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[id]
	if !ok || u.IsDeleted {
		return fmt.Errorf("mark link attempted: %w", core.ErrNotFound)
	}

	now := s.now()
	u.LinkAttemptedAt = &now
	u.UpdatedAt = now
	return nil
}

func (s *MemoryStore) MarkLocalOnly(_ context.Context, id string) (*User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[id]
	if !ok || u.IsDeleted || u.IsLinked() {
		return nil, fmt.Errorf("mark local only: %w", core.ErrNotFound)
	}

	u.RegistrationState = StateLocalOnly
	u.UpdatedAt = s.now()
	return clone(u), nil
}

func (s *MemoryStore) RecordLogin(_ context.Context, id string) (*User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[id]
	if !ok || u.IsDeleted {
		return nil, fmt.Errorf("record login: %w", core.ErrNotFound)
	}

	now := s.now()
	u.LastLoginAt = &now
	u.LoginCount++
	return clone(u), nil
}

func (s *MemoryStore) FindByEmail(_ context.Context, email string) (*User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if u := s.liveByEmailLocked(NormalizeEmail(email)); u != nil {
		return clone(u), nil
	}
	return nil, fmt.Errorf("find user by email: %w", core.ErrNotFound)
}

func (s *MemoryStore) FindByExternalSubject(
	_ context.Context,
	subjectID string,
) (*User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, u := range s.users {
		if !u.IsDeleted && u.IsLinked() && *u.ExternalSubjectID == subjectID {
			return clone(u), nil
		}
	}
	return nil, fmt.Errorf("find user by external subject: %w", core.ErrNotFound)
}

func (s *MemoryStore) FindByID(_ context.Context, id string) (*User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[id]
	if !ok || u.IsDeleted {
		return nil, fmt.Errorf("find user: %w", core.ErrNotFound)
	}
	return clone(u), nil
}

func (s *MemoryStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.users[id]; !ok {
		return fmt.Errorf("delete user: %w", core.ErrNotFound)
	}
	delete(s.users, id)
	return nil
}

func (s *MemoryStore) MarkOrphanedOlderThan(
	_ context.Context,
	olderThan time.Duration,
	scope OrphanScope,
) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	cutoff := now.Add(-olderThan)

	var count int64
	for _, u := range s.users {
		if u.IsDeleted || u.AuthProvider != ProviderLocal || u.IsLinked() {
			continue
		}
		if !u.CreatedAt.Before(cutoff) {
			continue
		}
		if scope == ScopeFailedLink &&
			u.RegistrationState != StatePendingLink &&
			u.LinkAttemptedAt == nil {
			continue
		}

		deletedAt := now
		u.IsDeleted = true
		u.DeletedAt = &deletedAt
		u.UpdatedAt = now
		count++
	}

	return count, nil
}

func (s *MemoryStore) insertLocked(p CreateParams) (*User, error) {
	email := NormalizeEmail(p.Email)
	if s.liveByEmailLocked(email) != nil {
		return nil, core.ErrDuplicateKey
	}

	now := s.now()
	u := &User{
		ID:                uuid.New().String(),
		Email:             email,
		FirstName:         p.FirstName,
		LastName:          p.LastName,
		DisplayName:       p.DisplayName,
		AuthProvider:      ProviderLocal,
		Role:              p.Role,
		RegistrationState: StatePendingLink,
		IsActive:          true,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	if p.PasswordHash != nil {
		hash := *p.PasswordHash
		u.PasswordHash = &hash
	}

	s.users[u.ID] = u
	return u, nil
}

func (s *MemoryStore) liveByEmailLocked(email string) *User {
	for _, u := range s.users {
		if !u.IsDeleted && u.Email == email {
			return u
		}
	}
	return nil
}

func (s *MemoryStore) subjectTakenLocked(subjectID string) bool {
	for _, u := range s.users {
		if u.IsLinked() && *u.ExternalSubjectID == subjectID {
			return true
		}
	}
	return false
}

func (s *MemoryStore) UpdatePasswordHash(_ context.Context, id, hash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[id]
	if !ok || u.IsDeleted {
		return fmt.Errorf("update password hash: %w", core.ErrNotFound)
	}
	u.PasswordHash = &hash
	u.UpdatedAt = s.now()
	return nil
}

func (s *MemoryStore) SetActive(_ context.Context, id string, active bool) (*User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[id]
	if !ok || u.IsDeleted {
		return nil, fmt.Errorf("set active: %w", core.ErrNotFound)
	}
	u.IsActive = active
	u.UpdatedAt = s.now()
	return clone(u), nil
}

func clone(u *User) *User {
	c := *u
	if u.PasswordHash != nil {
		v := *u.PasswordHash
		c.PasswordHash = &v
	}
	if u.ExternalSubjectID != nil {
		v := *u.ExternalSubjectID
		c.ExternalSubjectID = &v
	}
	return &c
}

var _ Store = (*MemoryStore)(nil)
