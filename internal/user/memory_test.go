// AngelaMos | 2026
// memory_test.go

package user

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carterperez-dev/templates/hotel-backend/internal/core"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newClockedStore() (*MemoryStore, *fakeClock) {
	clock := &fakeClock{now: time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)}
	return NewMemoryStore(WithClock(clock.Now)), clock
}

func params(email string) CreateParams {
	hash := "hash"
	return CreateParams{
		Email:        email,
		PasswordHash: &hash,
		FirstName:    "Ada",
		LastName:     "Lovelace",
		DisplayName:  "Ada Lovelace",
		Role:         RoleMember,
	}
}

func TestMemoryStore_CreateLocal(t *testing.T) {
	ctx := context.Background()
	s, _ := newClockedStore()

	u, err := s.CreateLocal(ctx, params("  Ada@Example.COM "))
	require.NoError(t, err)

	assert.Equal(t, "ada@example.com", u.Email)
	assert.Equal(t, StatePendingLink, u.RegistrationState)
	assert.Equal(t, ProviderLocal, u.AuthProvider)
	assert.True(t, u.IsActive)
	assert.False(t, u.IsLinked())

	_, err = s.CreateLocal(ctx, params("ADA@example.com"))
	assert.ErrorIs(t, err, core.ErrDuplicateKey)
}

func TestMemoryStore_ConcurrentCreateOneWins(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	var (
		wg   sync.WaitGroup
		wins atomic.Int32
	)
	for range 16 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := s.CreateLocal(ctx, params("race@example.com")); err == nil {
				wins.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), wins.Load())
}

func TestMemoryStore_LinkExternalIsConditional(t *testing.T) {
	ctx := context.Background()
	s, _ := newClockedStore()

	u, err := s.CreateLocal(ctx, params("a@x.com"))
	require.NoError(t, err)

	linked, err := s.LinkExternal(ctx, u.ID, "auth0|1")
	require.NoError(t, err)
	assert.Equal(t, StateLinked, linked.RegistrationState)
	assert.Equal(t, ProviderExternal, linked.AuthProvider)
	require.NotNil(t, linked.LinkedAt)

	_, err = s.LinkExternal(ctx, u.ID, "auth0|2")
	assert.ErrorIs(t, err, core.ErrNotFound)

	other, err := s.CreateLocal(ctx, params("b@x.com"))
	require.NoError(t, err)
	_, err = s.LinkExternal(ctx, other.ID, "auth0|1")
	assert.ErrorIs(t, err, core.ErrDuplicateKey)

	found, err := s.FindByExternalSubject(ctx, "auth0|1")
	require.NoError(t, err)
	assert.Equal(t, u.ID, found.ID)
}

func TestMemoryStore_CreateLinked(t *testing.T) {
	ctx := context.Background()
	s, _ := newClockedStore()

	u, err := s.CreateLinked(ctx, CreateParams{
		Email:     "ext@x.com",
		FirstName: "Ext",
		Role:      RoleGuest,
	}, "auth0|ext")
	require.NoError(t, err)
	assert.Equal(t, StateLinked, u.RegistrationState)
	assert.False(t, u.HasPassword())

	_, err = s.CreateLinked(ctx, params("other@x.com"), "auth0|ext")
	assert.ErrorIs(t, err, core.ErrDuplicateKey)
}

func TestMemoryStore_MarkLocalOnlyAndLogin(t *testing.T) {
	ctx := context.Background()
	s, _ := newClockedStore()

	u, err := s.CreateLocal(ctx, params("a@x.com"))
	require.NoError(t, err)

	require.NoError(t, s.MarkLinkAttempted(ctx, u.ID))

	local, err := s.MarkLocalOnly(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, StateLocalOnly, local.RegistrationState)
	assert.NotNil(t, local.LinkAttemptedAt)

	logged, err := s.RecordLogin(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, logged.LoginCount)
	assert.NotNil(t, logged.LastLoginAt)
}

func TestMemoryStore_DeleteRemovesRecord(t *testing.T) {
	ctx := context.Background()
	s, _ := newClockedStore()

	u, err := s.CreateLocal(ctx, params("a@x.com"))
	require.NoError(t, err)

	require.NoError(t, s.Delete(ctx, u.ID))

	_, err = s.FindByEmail(ctx, "a@x.com")
	assert.ErrorIs(t, err, core.ErrNotFound)
	assert.ErrorIs(t, s.Delete(ctx, u.ID), core.ErrNotFound)
}

func TestMemoryStore_UpdatePasswordHashAndSetActive(t *testing.T) {
	ctx := context.Background()
	s, _ := newClockedStore()

	u, err := s.CreateLocal(ctx, params("a@x.com"))
	require.NoError(t, err)

	require.NoError(t, s.UpdatePasswordHash(ctx, u.ID, "upgraded"))
	again, err := s.FindByID(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, "upgraded", *again.PasswordHash)

	off, err := s.SetActive(ctx, u.ID, false)
	require.NoError(t, err)
	assert.False(t, off.CanAuthenticate())

	on, err := s.SetActive(ctx, u.ID, true)
	require.NoError(t, err)
	assert.True(t, on.CanAuthenticate())

	assert.ErrorIs(t, s.UpdatePasswordHash(ctx, "missing", "x"), core.ErrNotFound)
	_, err = s.SetActive(ctx, "missing", false)
	assert.ErrorIs(t, err, core.ErrNotFound)
}

func TestMemoryStore_ReturnsCopies(t *testing.T) {
	ctx := context.Background()
	s, _ := newClockedStore()

	u, err := s.CreateLocal(ctx, params("a@x.com"))
	require.NoError(t, err)

	u.Role = RoleSuperAdmin
	*u.PasswordHash = "tampered"

	again, err := s.FindByID(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, RoleMember, again.Role)
	assert.Equal(t, "hash", *again.PasswordHash)
}

func TestMemoryStore_MarkOrphanedOlderThan(t *testing.T) {
	ctx := context.Background()

	setup := func(t *testing.T) (*MemoryStore, map[string]string) {
		t.Helper()
		s, clock := newClockedStore()
		ids := map[string]string{}

		old, err := s.CreateLocal(ctx, params("old@x.com"))
		require.NoError(t, err)
		_, err = s.MarkLocalOnly(ctx, old.ID)
		require.NoError(t, err)
		ids["oldLocalOnly"] = old.ID

		attempted, err := s.CreateLocal(ctx, params("attempted@x.com"))
		require.NoError(t, err)
		require.NoError(t, s.MarkLinkAttempted(ctx, attempted.ID))
		_, err = s.MarkLocalOnly(ctx, attempted.ID)
		require.NoError(t, err)
		ids["oldAttempted"] = attempted.ID

		pending, err := s.CreateLocal(ctx, params("pending@x.com"))
		require.NoError(t, err)
		ids["oldPending"] = pending.ID

		linked, err := s.CreateLocal(ctx, params("linked@x.com"))
		require.NoError(t, err)
		_, err = s.LinkExternal(ctx, linked.ID, "auth0|l")
		require.NoError(t, err)
		ids["oldLinked"] = linked.ID

		clock.Advance(2 * time.Hour)

		fresh, err := s.CreateLocal(ctx, params("fresh@x.com"))
		require.NoError(t, err)
		ids["fresh"] = fresh.ID

		return s, ids
	}

	t.Run("any unlinked", func(t *testing.T) {
		s, ids := setup(t)

		n, err := s.MarkOrphanedOlderThan(ctx, time.Hour, ScopeAnyUnlinked)
		require.NoError(t, err)
		assert.Equal(t, int64(3), n)

		for _, key := range []string{"oldLocalOnly", "oldAttempted", "oldPending"} {
			_, err := s.FindByID(ctx, ids[key])
			assert.ErrorIs(t, err, core.ErrNotFound, key)
		}
		for _, key := range []string{"oldLinked", "fresh"} {
			_, err := s.FindByID(ctx, ids[key])
			assert.NoError(t, err, key)
		}

		// Soft-deleted emails become available again.
		_, err = s.CreateLocal(ctx, params("old@x.com"))
		assert.NoError(t, err)
	})

	t.Run("failed link only", func(t *testing.T) {
		s, ids := setup(t)

		n, err := s.MarkOrphanedOlderThan(ctx, time.Hour, ScopeFailedLink)
		require.NoError(t, err)
		assert.Equal(t, int64(2), n)

		_, err = s.FindByID(ctx, ids["oldLocalOnly"])
		assert.NoError(t, err)
	})
}

func TestRole(t *testing.T) {
	assert.True(t, RoleAdmin.AtLeast(RoleMember))
	assert.True(t, RoleMember.AtLeast(RoleMember))
	assert.False(t, RoleGuest.AtLeast(RoleMember))
	assert.False(t, Role("owner").AtLeast(RoleGuest))

	r, ok := ParseRole(" Admin ")
	assert.True(t, ok)
	assert.Equal(t, RoleAdmin, r)

	_, ok = ParseRole("root")
	assert.False(t, ok)
}

func TestParseOrphanScope(t *testing.T) {
	s, ok := ParseOrphanScope("failed_link")
	assert.True(t, ok)
	assert.Equal(t, ScopeFailedLink, s)

	_, ok = ParseOrphanScope("everything")
	assert.False(t, ok)
}
