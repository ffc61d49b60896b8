// AngelaMos | 2026
// handler_test.go

package auth

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/carterperez-dev/templates/hotel-backend/internal/core"
	"github.com/carterperez-dev/templates/hotel-backend/internal/identity"
	"github.com/carterperez-dev/templates/hotel-backend/internal/middleware"
	"github.com/carterperez-dev/templates/hotel-backend/internal/user"
)

type apiEnvelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *core.ErrorBody `json:"error"`
}

type server struct {
	router   *chi.Mux
	store    *user.MemoryStore
	provider *mockProvider
	jwt      *JWTManager
}

func newServer(t *testing.T) *server {
	t.Helper()

	store := user.NewMemoryStore()
	provider := &mockProvider{}
	jwtManager := newJWT(t, newKeyFiles(t), time.Hour)
	logger := discardLogger()

	orch := NewOrchestrator(store, provider, jwtManager, time.Second, logger)
	svc := NewService(store, jwtManager, logger)
	reaper := NewReaper(store, ReaperOptions{}, logger)
	verifier := NewVerifier(jwtManager, provider, store, logger)

	r := chi.NewRouter()
	r.Route("/v1", func(r chi.Router) {
		NewHandler(orch, svc, reaper).RegisterRoutes(r, middleware.Authenticator(verifier), nil)
	})

	return &server{router: r, store: store, provider: provider, jwt: jwtManager}
}

func (s *server) do(t *testing.T, method, path, token string, body any) (int, apiEnvelope) {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}

	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)

	var env apiEnvelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env), rec.Body.String())
	return rec.Code, env
}

func (s *server) tokenFor(t *testing.T, email string, role user.Role) string {
	t.Helper()

	u, err := s.store.CreateLocal(context.Background(), user.CreateParams{
		Email: email, FirstName: "Staff", LastName: "Member", Role: role,
	})
	require.NoError(t, err)

	token, err := s.jwt.CreateAccessToken(LocalClaims{UserID: u.ID, Email: u.Email})
	require.NoError(t, err)
	return token.Value
}

func registerBody() map[string]any {
	return map[string]any{
		"email":     "a@x.com",
		"password":  "secret1",
		"firstName": "A",
		"lastName":  "B",
	}
}

func TestHandler_RegisterLocalOnlyWhenProviderUnavailable(t *testing.T) {
	s := newServer(t)
	s.provider.On("CreateIdentity", mock.Anything, "a@x.com", "secret1", "A B").
		Return("", identity.NewError("create", identity.KindUnavailable, nil))

	code, env := s.do(t, http.MethodPost, "/v1/auth/register", "", registerBody())
	require.Equal(t, http.StatusCreated, code)
	assert.True(t, env.Success)

	var resp RegisterResponse
	require.NoError(t, json.Unmarshal(env.Data, &resp))
	assert.Equal(t, FlowLocalOnly, resp.Flow)
	assert.Equal(t, "local", resp.User.AuthProvider)
	assert.Equal(t, "unavailable", resp.ExternalFailure)
	assert.Equal(t, "Bearer", resp.Token.TokenType)
	assert.NotEmpty(t, resp.Token.AccessToken)
}

func TestHandler_RegisterTwiceConflicts(t *testing.T) {
	s := newServer(t)

	body := registerBody()
	body["skipExternal"] = true

	code, _ := s.do(t, http.MethodPost, "/v1/auth/register", "", body)
	require.Equal(t, http.StatusCreated, code)

	code, env := s.do(t, http.MethodPost, "/v1/auth/register", "", body)
	assert.Equal(t, http.StatusConflict, code)
	require.NotNil(t, env.Error)
	assert.Equal(t, "CONFLICT", env.Error.Code)
}

func TestHandler_RegisterRemoteDuplicateConflicts(t *testing.T) {
	s := newServer(t)
	s.provider.On("CreateIdentity", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return("", identity.NewError("create", identity.KindAlreadyExists, nil))

	code, env := s.do(t, http.MethodPost, "/v1/auth/register", "", registerBody())
	assert.Equal(t, http.StatusConflict, code)
	require.NotNil(t, env.Error)
	assert.Equal(t, "email is already registered with the identity provider", env.Error.Message)

	_, err := s.store.FindByEmail(context.Background(), "a@x.com")
	assert.ErrorIs(t, err, core.ErrNotFound)
}

func TestHandler_RegisterValidation(t *testing.T) {
	s := newServer(t)

	tests := map[string]map[string]any{
		"missing names":  {"email": "a@x.com", "password": "secret1"},
		"bad email":      {"email": "nope", "password": "secret1", "firstName": "A", "lastName": "B"},
		"short password": {"email": "a@x.com", "password": "123", "firstName": "A", "lastName": "B"},
		"admin role":     {"email": "a@x.com", "password": "secret1", "firstName": "A", "lastName": "B", "role": "admin"},
	}

	for name, body := range tests {
		t.Run(name, func(t *testing.T) {
			code, env := s.do(t, http.MethodPost, "/v1/auth/register", "", body)
			assert.Equal(t, http.StatusBadRequest, code)
			require.NotNil(t, env.Error)
			assert.Equal(t, "VALIDATION_ERROR", env.Error.Code)
		})
	}

	req := httptest.NewRequest(http.MethodPost, "/v1/auth/register", bytes.NewBufferString("{"))
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandler_RegisterExternal(t *testing.T) {
	s := newServer(t)
	s.provider.On("VerifyToken", mock.Anything, "good").
		Return(&identity.Subject{ID: "auth0|x", Email: "x@x.com", EmailVerified: true}, nil)
	s.provider.On("VerifyToken", mock.Anything, "bad").
		Return(nil, identity.NewError("verify", identity.KindInvalidToken, nil))

	body := map[string]any{"externalToken": "good", "additionalData": map[string]any{"firstName": "Xena"}}

	code, env := s.do(t, http.MethodPost, "/v1/auth/register-external", "", body)
	require.Equal(t, http.StatusCreated, code)
	var resp RegisterResponse
	require.NoError(t, json.Unmarshal(env.Data, &resp))
	assert.Equal(t, FlowCreateAndLink, resp.Flow)
	assert.Equal(t, "Xena", resp.User.FirstName)

	code, env = s.do(t, http.MethodPost, "/v1/auth/register-external", "", body)
	require.Equal(t, http.StatusOK, code)
	require.NoError(t, json.Unmarshal(env.Data, &resp))
	assert.Equal(t, FlowExistingLinked, resp.Flow)

	code, _ = s.do(t, http.MethodPost, "/v1/auth/register-external", "",
		map[string]any{"externalToken": "bad"})
	assert.Equal(t, http.StatusUnauthorized, code)
}

func TestHandler_LoginAndMe(t *testing.T) {
	s := newServer(t)

	body := registerBody()
	body["skipExternal"] = true
	code, _ := s.do(t, http.MethodPost, "/v1/auth/register", "", body)
	require.Equal(t, http.StatusCreated, code)

	code, env := s.do(t, http.MethodPost, "/v1/auth/login", "",
		map[string]any{"email": "A@x.com", "password": "wrong-password"})
	assert.Equal(t, http.StatusUnauthorized, code)
	assert.Equal(t, "invalid email or password", env.Error.Message)

	code, _ = s.do(t, http.MethodPost, "/v1/auth/login", "",
		map[string]any{"email": "nobody@x.com", "password": "secret1"})
	assert.Equal(t, http.StatusUnauthorized, code)

	code, env = s.do(t, http.MethodPost, "/v1/auth/login", "",
		map[string]any{"email": "A@x.com", "password": "secret1"})
	require.Equal(t, http.StatusOK, code)

	var auth AuthResponse
	require.NoError(t, json.Unmarshal(env.Data, &auth))
	assert.Equal(t, 1, auth.User.LoginCount)

	code, env = s.do(t, http.MethodGet, "/v1/auth/me", auth.Token.AccessToken, nil)
	require.Equal(t, http.StatusOK, code)
	var me MeResponse
	require.NoError(t, json.Unmarshal(env.Data, &me))
	assert.Equal(t, "a@x.com", me.User.Email)
	assert.Equal(t, SourceLocal, me.Source)

	code, _ = s.do(t, http.MethodGet, "/v1/auth/me", "", nil)
	assert.Equal(t, http.StatusUnauthorized, code)
}

func TestHandler_CleanupOrphanedRequiresAdmin(t *testing.T) {
	s := newServer(t)
	s.provider.On("VerifyToken", mock.Anything, mock.Anything).
		Return(nil, identity.NewError("verify", identity.KindInvalidToken, nil)).Maybe()

	member := s.tokenFor(t, "member@x.com", user.RoleMember)
	admin := s.tokenFor(t, "admin@x.com", user.RoleAdmin)

	code, _ := s.do(t, http.MethodDelete, "/v1/auth/cleanup-orphaned", "", nil)
	assert.Equal(t, http.StatusUnauthorized, code)

	code, env := s.do(t, http.MethodDelete, "/v1/auth/cleanup-orphaned", member, nil)
	assert.Equal(t, http.StatusForbidden, code)
	assert.Equal(t, "FORBIDDEN", env.Error.Code)

	code, _ = s.do(t, http.MethodDelete, "/v1/auth/cleanup-orphaned?olderThan=abc", admin, nil)
	assert.Equal(t, http.StatusBadRequest, code)

	code, _ = s.do(t, http.MethodDelete, "/v1/auth/cleanup-orphaned?olderThan=0", admin, nil)
	assert.Equal(t, http.StatusBadRequest, code)

	code, env = s.do(t, http.MethodDelete, "/v1/auth/cleanup-orphaned?olderThan=30", admin, nil)
	require.Equal(t, http.StatusOK, code)

	var resp CleanupResponse
	require.NoError(t, json.Unmarshal(env.Data, &resp))
	assert.Equal(t, 30, resp.OlderThanMinutes)
	assert.Zero(t, resp.CleanedCount)
}

func TestHandler_RandomBearerIsRejected(t *testing.T) {
	s := newServer(t)
	s.provider.On("VerifyToken", mock.Anything, mock.Anything).
		Return(nil, identity.NewError("verify", identity.KindInvalidToken, nil))

	code, env := s.do(t, http.MethodGet, "/v1/auth/me", "aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa", nil)
	assert.Equal(t, http.StatusUnauthorized, code)
	assert.Equal(t, "invalid token", env.Error.Message)
}
