// AngelaMos | 2026
// auth_test.go

package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carterperez-dev/templates/hotel-backend/internal/core"
)

type verifierFunc func(ctx context.Context, token string) (*Identity, error)

func (f verifierFunc) Verify(ctx context.Context, token string) (*Identity, error) {
	return f(ctx, token)
}

type rejection struct{ msg string }

func (r rejection) Error() string         { return "rejected: " + r.msg }
func (r rejection) PublicMessage() string { return r.msg }
func (r rejection) Unwrap() error         { return core.ErrUnauthorized }

func echoIdentity(w http.ResponseWriter, r *http.Request) {
	id := GetIdentity(r.Context())
	core.OK(w, map[string]string{"userId": id.UserID, "role": id.Role})
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) core.ErrorBody {
	t.Helper()

	var env core.Response
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	require.NotNil(t, env.Error)
	return *env.Error
}

func TestExtractToken(t *testing.T) {
	tests := map[string]string{
		"":                   "",
		"Bearer abc":         "abc",
		"bearer   abc  ":     "abc",
		"Basic dXNlcjpwYXNz": "",
		"Bearer":             "",
		"abc":                "",
	}

	for header, want := range tests {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		if header != "" {
			req.Header.Set("Authorization", header)
		}
		assert.Equal(t, want, ExtractToken(req), "header %q", header)
	}
}

func TestAuthenticator(t *testing.T) {
	verifier := verifierFunc(func(_ context.Context, token string) (*Identity, error) {
		switch token {
		case "good":
			return &Identity{UserID: "u1", Role: "member", Source: "local"}, nil
		case "expired":
			return nil, fmt.Errorf("verify: %w", core.ErrTokenExpired)
		case "unlinked":
			return nil, rejection{msg: "no account is linked to this credential"}
		case "broken":
			return nil, errors.New("database down")
		default:
			return nil, fmt.Errorf("verify: %w", core.ErrTokenInvalid)
		}
	})
	handler := Authenticator(verifier)(http.HandlerFunc(echoIdentity))

	serve := func(token string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		if token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		return rec
	}

	t.Run("valid", func(t *testing.T) {
		rec := serve("good")
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), `"userId":"u1"`)
	})

	t.Run("missing", func(t *testing.T) {
		rec := serve("")
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.Equal(t, "missing authorization token", decodeError(t, rec).Message)
	})

	t.Run("expired", func(t *testing.T) {
		rec := serve("expired")
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.Equal(t, "TOKEN_EXPIRED", decodeError(t, rec).Code)
	})

	t.Run("public message", func(t *testing.T) {
		rec := serve("unlinked")
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.Equal(t, "no account is linked to this credential", decodeError(t, rec).Message)
	})

	t.Run("invalid", func(t *testing.T) {
		rec := serve("whatever")
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.Equal(t, "invalid token", decodeError(t, rec).Message)
	})

	t.Run("internal failure", func(t *testing.T) {
		core.ExposeErrorDetail(false)
		rec := serve("broken")
		assert.Equal(t, http.StatusInternalServerError, rec.Code)
		assert.NotContains(t, rec.Body.String(), "database down")
	})
}

func TestRequireRole(t *testing.T) {
	handler := RequireRole("admin", "superadmin")(http.HandlerFunc(echoIdentity))

	serve := func(id *Identity) int {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		if id != nil {
			req = req.WithContext(WithIdentity(req.Context(), id))
		}
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		return rec.Code
	}

	assert.Equal(t, http.StatusUnauthorized, serve(nil))
	assert.Equal(t, http.StatusForbidden, serve(&Identity{UserID: "u", Role: "member"}))
	assert.Equal(t, http.StatusForbidden, serve(&Identity{UserID: "u", Role: "guest"}))
	assert.Equal(t, http.StatusOK, serve(&Identity{UserID: "u", Role: "admin"}))
	assert.Equal(t, http.StatusOK, serve(&Identity{UserID: "u", Role: "superadmin", Source: "external"}))
}

func TestIdentityAccessors(t *testing.T) {
	ctx := context.Background()
	assert.Nil(t, GetIdentity(ctx))
	assert.Empty(t, GetUserID(ctx))
	assert.Empty(t, GetUserRole(ctx))

	ctx = WithIdentity(ctx, &Identity{UserID: "u1", Role: "guest"})
	assert.Equal(t, "u1", GetUserID(ctx))
	assert.Equal(t, "guest", GetUserRole(ctx))
}
