// AngelaMos | 2026
// helpers_test.go

package auth

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/carterperez-dev/templates/hotel-backend/internal/config"
	"github.com/carterperez-dev/templates/hotel-backend/internal/identity"
	"github.com/carterperez-dev/templates/hotel-backend/internal/user"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type keyFiles struct {
	private string
	public  string
}

func newKeyFiles(t *testing.T) keyFiles {
	t.Helper()

	dir := t.TempDir()
	kf := keyFiles{
		private: filepath.Join(dir, "private.pem"),
		public:  filepath.Join(dir, "public.pem"),
	}
	require.NoError(t, GenerateKeyPair(kf.private, kf.public))
	return kf
}

func newJWT(t *testing.T, kf keyFiles, expire time.Duration) *JWTManager {
	t.Helper()

	m, err := NewJWTManager(config.JWTConfig{
		PrivateKeyPath:    kf.private,
		PublicKeyPath:     kf.public,
		AccessTokenExpire: expire,
		Issuer:            "hotel-backend",
		Audience:          "hotel-backend-api",
	})
	require.NoError(t, err)
	return m
}

type mockProvider struct {
	mock.Mock
}

func (m *mockProvider) CreateIdentity(
	ctx context.Context,
	email, secret, displayName string,
) (string, error) {
	args := m.Called(ctx, email, secret, displayName)
	return args.String(0), args.Error(1)
}

func (m *mockProvider) DeleteIdentity(ctx context.Context, subjectID string) error {
	return m.Called(ctx, subjectID).Error(0)
}

func (m *mockProvider) VerifyToken(
	ctx context.Context,
	token string,
) (*identity.Subject, error) {
	args := m.Called(ctx, token)
	subject, _ := args.Get(0).(*identity.Subject)
	return subject, args.Error(1)
}

var _ identity.Client = (*mockProvider)(nil)

// linkFailingStore fails every linkage write.
type linkFailingStore struct {
	*user.MemoryStore
}

var errLinkWrite = errors.New("link write failed")

func (s *linkFailingStore) LinkExternal(
	_ context.Context,
	_, _ string,
) (*user.User, error) {
	return nil, errLinkWrite
}

type harness struct {
	store    *user.MemoryStore
	provider *mockProvider
	jwt      *JWTManager
	orch     *Orchestrator
}

func newHarness(t *testing.T, withProvider bool) *harness {
	t.Helper()

	h := &harness{
		store: user.NewMemoryStore(),
		jwt:   newJWT(t, newKeyFiles(t), time.Hour),
	}

	var provider identity.Client
	if withProvider {
		h.provider = &mockProvider{}
		provider = h.provider
		t.Cleanup(func() { h.provider.AssertExpectations(t) })
	}

	h.orch = NewOrchestrator(h.store, provider, h.jwt, time.Second, discardLogger())
	return h
}

func validInput() RegisterInput {
	return RegisterInput{
		Email:     "a@x.com",
		Password:  "secret1",
		FirstName: "A",
		LastName:  "B",
	}
}

func deactivate(t *testing.T, store *user.MemoryStore, id string) {
	t.Helper()

	_, err := store.SetActive(context.Background(), id, false)
	require.NoError(t, err)
}
