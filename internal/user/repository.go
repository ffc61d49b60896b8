// AngelaMos | 2026
// repository.go

package user

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/carterperez-dev/templates/hotel-backend/internal/core"
)

type CreateParams struct {
	Email        string
	PasswordHash *string
	FirstName    string
	LastName     string
	DisplayName  string
	Role         Role
}

// Store owns user records and their lifecycle fields. Lookups fail with
// core.ErrNotFound; uniqueness violations fail with core.ErrDuplicateKey.
type Store interface {
	CreateLocal(ctx context.Context, p CreateParams) (*User, error)
	CreateLinked(ctx context.Context, p CreateParams, subjectID string) (*User, error)
	// LinkExternal only succeeds while the record is unlinked and live.
	LinkExternal(ctx context.Context, id, subjectID string) (*User, error)
	MarkLinkAttempted(ctx context.Context, id string) error
	MarkLocalOnly(ctx context.Context, id string) (*User, error)
	RecordLogin(ctx context.Context, id string) (*User, error)
	UpdatePasswordHash(ctx context.Context, id, hash string) error
	SetActive(ctx context.Context, id string, active bool) (*User, error)
	FindByEmail(ctx context.Context, email string) (*User, error)
	FindByExternalSubject(ctx context.Context, subjectID string) (*User, error)
	FindByID(ctx context.Context, id string) (*User, error)
	Delete(ctx context.Context, id string) error
	MarkOrphanedOlderThan(
		ctx context.Context,
		olderThan time.Duration,
		scope OrphanScope,
	) (int64, error)
}

const userColumns = `id, email, password_hash, first_name, last_name, display_name,
		       external_subject_id, auth_provider, role, registration_state,
		       link_attempted_at, is_active, is_deleted, deleted_at, created_at,
		       updated_at, linked_at, last_login_at, login_count`

type PostgresStore struct {
	db core.DBTX
}

func NewPostgresStore(db core.DBTX) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) CreateLocal(
	ctx context.Context,
	p CreateParams,
) (*User, error) {
	query := `
		INSERT INTO users (
			id, email, password_hash, first_name, last_name, display_name,
			auth_provider, role, registration_state
		) VALUES ($1, $2, $3, $4, $5, $6, 'local', $7, 'pending_link')
		RETURNING ` + userColumns

	var u User
	err := s.db.GetContext(ctx, &u, query,
		uuid.New().String(),
		NormalizeEmail(p.Email),
		p.PasswordHash,
		p.FirstName,
		p.LastName,
		p.DisplayName,
		p.Role,
	)
	if err != nil {
		if isDuplicateKeyError(err) {
			return nil, fmt.Errorf("create local user: %w", core.ErrDuplicateKey)
		}
		return nil, fmt.Errorf("create local user: %w", err)
	}

	return &u, nil
}

func (s *PostgresStore) CreateLinked(
	ctx context.Context,
	p CreateParams,
	subjectID string,
) (*User, error) {
	query := `
		INSERT INTO users (
			id, email, password_hash, first_name, last_name, display_name,
			external_subject_id, auth_provider, role, registration_state,
			link_attempted_at, linked_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, 'external', $8, 'linked', NOW(), NOW()
		)
		RETURNING ` + userColumns

	var u User
	err := s.db.GetContext(ctx, &u, query,
		uuid.New().String(),
		NormalizeEmail(p.Email),
		p.PasswordHash,
		p.FirstName,
		p.LastName,
		p.DisplayName,
		subjectID,
		p.Role,
	)
	if err != nil {
		if isDuplicateKeyError(err) {
			return nil, fmt.Errorf("create linked user: %w", core.ErrDuplicateKey)
		}
		return nil, fmt.Errorf("create linked user: %w", err)
	}

	return &u, nil
}

func (s *PostgresStore) LinkExternal(
	ctx context.Context,
	id, subjectID string,
) (*User, error) {
	query := `
		UPDATE users
		SET external_subject_id = $2,
		    auth_provider = 'external',
		    registration_state = 'linked',
		    linked_at = NOW(),
		    updated_at = NOW()
		WHERE id = $1
		  AND external_subject_id IS NULL
		  AND is_deleted = FALSE
		RETURNING ` + userColumns

	var u User
	err := s.db.GetContext(ctx, &u, query, id, subjectID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("link external subject: %w", core.ErrNotFound)
	}
	if err != nil {
		if isDuplicateKeyError(err) {
			return nil, fmt.Errorf("link external subject: %w", core.ErrDuplicateKey)
		}
		return nil, fmt.Errorf("link external subject: %w", err)
	}

	return &u, nil
}

func (s *PostgresStore) MarkLinkAttempted(ctx context.Context, id string) error {
	query := `
		UPDATE users
		SET link_attempted_at = NOW(), updated_at = NOW()
		WHERE id = $1 AND is_deleted = FALSE`

	result, err := s.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("mark link attempted: %w", err)
	}

	return requireRows(result, "mark link attempted")
}

func (s *PostgresStore) MarkLocalOnly(
	ctx context.Context,
	id string,
) (*User, error) {
	query := `
		UPDATE users
		SET registration_state = 'local_only', updated_at = NOW()
		WHERE id = $1
		  AND external_subject_id IS NULL
		  AND is_deleted = FALSE
		RETURNING ` + userColumns

	var u User
	err := s.db.GetContext(ctx, &u, query, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("mark local only: %w", core.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("mark local only: %w", err)
	}

	return &u, nil
}

func (s *PostgresStore) RecordLogin(ctx context.Context, id string) (*User, error) {
	query := `
		UPDATE users
		SET last_login_at = NOW(), login_count = login_count + 1
		WHERE id = $1 AND is_deleted = FALSE
		RETURNING ` + userColumns

	var u User
	err := s.db.GetContext(ctx, &u, query, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("record login: %w", core.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("record login: %w", err)
	}

	return &u, nil
}

func (s *PostgresStore) UpdatePasswordHash(
	ctx context.Context,
	id, hash string,
) error {
	query := `
		UPDATE users
		SET password_hash = $2, updated_at = NOW()
		WHERE id = $1 AND is_deleted = FALSE`

	result, err := s.db.ExecContext(ctx, query, id, hash)
	if err != nil {
		return fmt.Errorf("update password hash: %w", err)
	}

	return requireRows(result, "update password hash")
}

func (s *PostgresStore) SetActive(
	ctx context.Context,
	id string,
	active bool,
) (*User, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, fmt.Errorf("set active: %w", core.ErrNotFound)
	}

	query := `
		UPDATE users
		SET is_active = $2, updated_at = NOW()
		WHERE id = $1 AND is_deleted = FALSE
		RETURNING ` + userColumns

	var u User
	err := s.db.GetContext(ctx, &u, query, id, active)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("set active: %w", core.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("set active: %w", err)
	}

	return &u, nil
}

func (s *PostgresStore) FindByEmail(
	ctx context.Context,
	email string,
) (*User, error) {
	query := `
		SELECT ` + userColumns + `
		FROM users
		WHERE LOWER(email) = $1 AND is_deleted = FALSE`

	return s.findOne(ctx, "find user by email", query, NormalizeEmail(email))
}

func (s *PostgresStore) FindByExternalSubject(
	ctx context.Context,
	subjectID string,
) (*User, error) {
	query := `
		SELECT ` + userColumns + `
		FROM users
		WHERE external_subject_id = $1 AND is_deleted = FALSE`

	return s.findOne(ctx, "find user by external subject", query, subjectID)
}

func (s *PostgresStore) FindByID(ctx context.Context, id string) (*User, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, fmt.Errorf("find user: %w", core.ErrNotFound)
	}

	query := `
		SELECT ` + userColumns + `
		FROM users
		WHERE id = $1 AND is_deleted = FALSE`

	return s.findOne(ctx, "find user", query, id)
}

func (s *PostgresStore) Delete(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM users WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete user: %w", err)
	}

	return requireRows(result, "delete user")
}

func (s *PostgresStore) MarkOrphanedOlderThan(
	ctx context.Context,
	olderThan time.Duration,
	scope OrphanScope,
) (int64, error) {
	query := `
		UPDATE users
		SET is_deleted = TRUE, deleted_at = NOW(), updated_at = NOW()
		WHERE is_deleted = FALSE
		  AND auth_provider = 'local'
		  AND external_subject_id IS NULL
		  AND created_at < $1`

	if scope == ScopeFailedLink {
		query += `
		  AND (registration_state = 'pending_link' OR link_attempted_at IS NOT NULL)`
	}

	cutoff := time.Now().Add(-olderThan)

	result, err := s.db.ExecContext(ctx, query, cutoff)
	if err != nil {
		return 0, fmt.Errorf("mark orphaned users: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("mark orphaned users: %w", err)
	}

	return rows, nil
}

func (s *PostgresStore) findOne(
	ctx context.Context,
	op, query string,
	arg any,
) (*User, error) {
	var u User
	err := s.db.GetContext(ctx, &u, query, arg)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%s: %w", op, core.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return &u, nil
}

func requireRows(result sql.Result, op string) error {
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	if rows == 0 {
		return fmt.Errorf("%s: %w", op, core.ErrNotFound)
	}

	return nil
}

func isDuplicateKeyError(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return false
}

var _ Store = (*PostgresStore)(nil)
