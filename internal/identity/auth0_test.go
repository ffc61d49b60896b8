// AngelaMos | 2026
// auth0_test.go

package identity

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/big"
	"net/http"
	"testing"
	"time"

	"github.com/MicahParks/keyfunc/v2"
	"github.com/auth0/go-auth0"
	"github.com/auth0/go-auth0/management"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carterperez-dev/templates/hotel-backend/internal/config"
)

const (
	testIssuer   = "https://tenant.example.com/"
	testAudience = "hotel-api"
	testKID      = "test-key"
)

type apiError struct {
	status  int
	message string
}

func (e *apiError) Error() string { return fmt.Sprintf("%d: %s", e.status, e.message) }
func (e *apiError) Status() int   { return e.status }

var _ management.Error = (*apiError)(nil)

type fakeUsers struct {
	createErr error
	deleteErr error
	assignID  string
	created   []*management.User
	deleted   []string
}

func (f *fakeUsers) Create(
	_ context.Context,
	u *management.User,
	_ ...management.RequestOption,
) error {
	f.created = append(f.created, u)
	if f.createErr != nil {
		return f.createErr
	}
	u.ID = auth0.String(f.assignID)
	return nil
}

func (f *fakeUsers) Delete(
	_ context.Context,
	id string,
	_ ...management.RequestOption,
) error {
	f.deleted = append(f.deleted, id)
	return f.deleteErr
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testConfig() config.IdentityConfig {
	return config.IdentityConfig{
		Domain:     "tenant.example.com",
		Connection: "Username-Password-Authentication",
		Audience:   testAudience,
		Timeout:    time.Second,
	}
}

func newSigningKey(t *testing.T) (*rsa.PrivateKey, jwt.Keyfunc) {
	t.Helper()

	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	set := map[string]any{
		"keys": []map[string]string{{
			"kty": "RSA",
			"kid": testKID,
			"alg": "RS256",
			"use": "sig",
			"n":   base64.RawURLEncoding.EncodeToString(key.N.Bytes()),
			"e": base64.RawURLEncoding.EncodeToString(
				big.NewInt(int64(key.E)).Bytes(),
			),
		}},
	}
	raw, err := json.Marshal(set)
	require.NoError(t, err)

	jwks, err := keyfunc.NewJSON(raw)
	require.NoError(t, err)

	return key, jwks.Keyfunc
}

func signToken(t *testing.T, key *rsa.PrivateKey, claims jwt.MapClaims) string {
	t.Helper()

	token := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	token.Header["kid"] = testKID

	signed, err := token.SignedString(key)
	require.NoError(t, err)
	return signed
}

func validClaims() jwt.MapClaims {
	return jwt.MapClaims{
		"sub":            "auth0|abc123",
		"iss":            testIssuer,
		"aud":            testAudience,
		"exp":            time.Now().Add(time.Hour).Unix(),
		"iat":            time.Now().Unix(),
		"email":          "Guest@Example.com",
		"email_verified": true,
		"name":           "Guest User",
	}
}

func TestCreateIdentity_ReturnsSubject(t *testing.T) {
	users := &fakeUsers{assignID: "auth0|new"}
	c := newAuth0Client(users, nil, testConfig(), testLogger())

	id, err := c.CreateIdentity(context.Background(), "a@x.com", "secret1", "A B")
	require.NoError(t, err)
	assert.Equal(t, "auth0|new", id)

	require.Len(t, users.created, 1)
	sent := users.created[0]
	assert.Equal(t, "a@x.com", sent.GetEmail())
	assert.Equal(t, "secret1", sent.GetPassword())
	assert.Equal(t, "A B", sent.GetName())
	assert.Equal(t, "Username-Password-Authentication", sent.GetConnection())
}

func TestCreateIdentity_ClassifiesErrors(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Kind
	}{
		{"conflict", &apiError{409, "The user already exists."}, KindAlreadyExists},
		{"weak password", &apiError{400, "PasswordStrengthError: Password is too weak"}, KindWeakSecret},
		{"bad input", &apiError{400, "Payload validation error"}, KindInvalidInput},
		{"server error", &apiError{503, "service unavailable"}, KindUnavailable},
		{"timeout", fmt.Errorf("post: %w", context.DeadlineExceeded), KindUnavailable},
		{"transport", errors.New("connection refused"), KindUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newAuth0Client(&fakeUsers{createErr: tt.err}, nil, testConfig(), testLogger())

			_, err := c.CreateIdentity(context.Background(), "a@x.com", "secret1", "")
			require.Error(t, err)
			assert.Equal(t, tt.want, KindOf(err))
			assert.ErrorIs(t, err, tt.err)
		})
	}
}

func TestCreateIdentity_MissingSubjectIsUnavailable(t *testing.T) {
	c := newAuth0Client(&fakeUsers{}, nil, testConfig(), testLogger())

	_, err := c.CreateIdentity(context.Background(), "a@x.com", "secret1", "")
	assert.True(t, IsKind(err, KindUnavailable))
}

func TestDeleteIdentity(t *testing.T) {
	t.Run("not found is success", func(t *testing.T) {
		users := &fakeUsers{deleteErr: &apiError{http.StatusNotFound, "not found"}}
		c := newAuth0Client(users, nil, testConfig(), testLogger())

		require.NoError(t, c.DeleteIdentity(context.Background(), "auth0|gone"))
		assert.Equal(t, []string{"auth0|gone"}, users.deleted)
	})

	t.Run("empty subject is a no-op", func(t *testing.T) {
		users := &fakeUsers{}
		c := newAuth0Client(users, nil, testConfig(), testLogger())

		require.NoError(t, c.DeleteIdentity(context.Background(), " "))
		assert.Empty(t, users.deleted)
	})

	t.Run("server error surfaces", func(t *testing.T) {
		users := &fakeUsers{deleteErr: &apiError{500, "boom"}}
		c := newAuth0Client(users, nil, testConfig(), testLogger())

		err := c.DeleteIdentity(context.Background(), "auth0|x")
		assert.True(t, IsKind(err, KindUnavailable))
	})
}

func TestVerifyToken(t *testing.T) {
	key, keyFunc := newSigningKey(t)
	c := newAuth0Client(&fakeUsers{}, keyFunc, testConfig(), testLogger())

	t.Run("valid", func(t *testing.T) {
		subject, err := c.VerifyToken(context.Background(), signToken(t, key, validClaims()))
		require.NoError(t, err)
		assert.Equal(t, "auth0|abc123", subject.ID)
		assert.Equal(t, "guest@example.com", subject.Email)
		assert.True(t, subject.EmailVerified)
		assert.Equal(t, "Guest User", subject.Name)
	})

	rejects := map[string]func(jwt.MapClaims){
		"expired":        func(c jwt.MapClaims) { c["exp"] = time.Now().Add(-time.Minute).Unix() },
		"wrong issuer":   func(c jwt.MapClaims) { c["iss"] = "https://evil.example.com/" },
		"wrong audience": func(c jwt.MapClaims) { c["aud"] = "someone-else" },
		"no expiry":      func(c jwt.MapClaims) { delete(c, "exp") },
		"no subject":     func(c jwt.MapClaims) { delete(c, "sub") },
	}
	for name, mutate := range rejects {
		t.Run(name, func(t *testing.T) {
			claims := validClaims()
			mutate(claims)

			_, err := c.VerifyToken(context.Background(), signToken(t, key, claims))
			assert.True(t, IsKind(err, KindInvalidToken), "got %v", err)
		})
	}

	t.Run("foreign key", func(t *testing.T) {
		other, _ := newSigningKey(t)
		_, err := c.VerifyToken(context.Background(), signToken(t, other, validClaims()))
		assert.True(t, IsKind(err, KindInvalidToken))
	})

	t.Run("garbage", func(t *testing.T) {
		_, err := c.VerifyToken(context.Background(), "a-very-long-string-that-is-not-a-jwt-at-all")
		assert.True(t, IsKind(err, KindInvalidToken))
	})
}

func TestKindOf_NonProviderError(t *testing.T) {
	assert.Equal(t, KindUnavailable, KindOf(errors.New("plain")))
	assert.False(t, IsKind(errors.New("plain"), KindAlreadyExists))
}
