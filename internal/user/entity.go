// AngelaMos | 2026
// entity.go

package user

import (
	"strings"
	"time"
)

type User struct {
	ID                string            `db:"id"`
	Email             string            `db:"email"`
	PasswordHash      *string           `db:"password_hash"`
	FirstName         string            `db:"first_name"`
	LastName          string            `db:"last_name"`
	DisplayName       string            `db:"display_name"`
	ExternalSubjectID *string           `db:"external_subject_id"`
	AuthProvider      AuthProvider      `db:"auth_provider"`
	Role              Role              `db:"role"`
	RegistrationState RegistrationState `db:"registration_state"`
	LinkAttemptedAt   *time.Time        `db:"link_attempted_at"`
	IsActive          bool              `db:"is_active"`
	IsDeleted         bool              `db:"is_deleted"`
	DeletedAt         *time.Time        `db:"deleted_at"`
	CreatedAt         time.Time         `db:"created_at"`
	UpdatedAt         time.Time         `db:"updated_at"`
	LinkedAt          *time.Time        `db:"linked_at"`
	LastLoginAt       *time.Time        `db:"last_login_at"`
	LoginCount        int               `db:"login_count"`
}

// CanAuthenticate reports whether the user may resolve as an identity.
func (u *User) CanAuthenticate() bool {
	return u.IsActive && !u.IsDeleted
}

func (u *User) IsLinked() bool {
	return u.ExternalSubjectID != nil && *u.ExternalSubjectID != ""
}

func (u *User) HasPassword() bool {
	return u.PasswordHash != nil && *u.PasswordHash != ""
}

type AuthProvider string

const (
	ProviderLocal    AuthProvider = "local"
	ProviderExternal AuthProvider = "external"
)

type RegistrationState string

const (
	StatePendingLink RegistrationState = "pending_link"
	StateLinked      RegistrationState = "linked"
	StateLocalOnly   RegistrationState = "local_only"
)

type Role string

const (
	RoleGuest      Role = "guest"
	RoleMember     Role = "member"
	RoleAdmin      Role = "admin"
	RoleSuperAdmin Role = "superadmin"
)

var roleRank = map[Role]int{
	RoleGuest:      0,
	RoleMember:     1,
	RoleAdmin:      2,
	RoleSuperAdmin: 3,
}

func (r Role) IsValid() bool {
	_, ok := roleRank[r]
	return ok
}

// AtLeast reports whether r ranks at or above min. Unknown roles never do.
func (r Role) AtLeast(min Role) bool {
	have, ok := roleRank[r]
	if !ok {
		return false
	}
	want, ok := roleRank[min]
	if !ok {
		return false
	}
	return have >= want
}

func ParseRole(s string) (Role, bool) {
	r := Role(strings.ToLower(strings.TrimSpace(s)))
	return r, r.IsValid()
}

// OrphanScope selects which unlinked records the reaper treats as orphans.
type OrphanScope string

const (
	// ScopeAnyUnlinked covers every local, unlinked record past the grace period.
	ScopeAnyUnlinked OrphanScope = "any_unlinked"
	// ScopeFailedLink covers only records stuck mid-saga or whose link attempt failed.
	ScopeFailedLink OrphanScope = "failed_link"
)

func ParseOrphanScope(s string) (OrphanScope, bool) {
	switch OrphanScope(s) {
	case ScopeAnyUnlinked, ScopeFailedLink:
		return OrphanScope(s), true
	default:
		return "", false
	}
}

func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
