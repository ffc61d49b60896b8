// AngelaMos | 2026
// auth0.go

package identity

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/MicahParks/keyfunc/v2"
	"github.com/auth0/go-auth0"
	"github.com/auth0/go-auth0/management"
	"github.com/golang-jwt/jwt/v5"

	"github.com/carterperez-dev/templates/hotel-backend/internal/config"
)

// userAPI is the slice of the Auth0 management user API the client needs.
type userAPI interface {
	Create(
		ctx context.Context,
		u *management.User,
		opts ...management.RequestOption,
	) error
	Delete(
		ctx context.Context,
		id string,
		opts ...management.RequestOption,
	) error
}

type Auth0Client struct {
	users      userAPI
	keyFunc    jwt.Keyfunc
	jwks       *keyfunc.JWKS
	connection string
	issuer     string
	audience   string
	timeout    time.Duration
	logger     *slog.Logger
}

func NewAuth0Client(
	ctx context.Context,
	cfg config.IdentityConfig,
	logger *slog.Logger,
) (*Auth0Client, error) {
	domain := strings.TrimSpace(cfg.Domain)
	if domain == "" {
		return nil, fmt.Errorf("auth0: domain is required")
	}

	mgmt, err := management.New(
		domain,
		management.WithClientCredentials(ctx, cfg.ClientID, cfg.ClientSecret),
	)
	if err != nil {
		return nil, fmt.Errorf("auth0: create management client: %w", err)
	}

	issuer := cfg.IssuerURL()
	jwksURL := strings.TrimSuffix(issuer, "/") + "/.well-known/jwks.json"

	jwks, err := keyfunc.Get(jwksURL, keyfunc.Options{
		Ctx:               ctx,
		RefreshInterval:   cfg.JWKSRefresh,
		RefreshRateLimit:  cfg.JWKSRefreshRate,
		RefreshTimeout:    cfg.Timeout,
		RefreshUnknownKID: true,
		RefreshErrorHandler: func(err error) {
			logger.Warn("auth0 jwks refresh failed", "error", err)
		},
	})
	if err != nil {
		return nil, fmt.Errorf("auth0: load jwks: %w", err)
	}

	c := newAuth0Client(mgmt.User, jwks.Keyfunc, cfg, logger)
	c.jwks = jwks
	return c, nil
}

func newAuth0Client(
	users userAPI,
	keyFunc jwt.Keyfunc,
	cfg config.IdentityConfig,
	logger *slog.Logger,
) *Auth0Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}

	return &Auth0Client{
		users:      users,
		keyFunc:    keyFunc,
		connection: cfg.Connection,
		issuer:     cfg.IssuerURL(),
		audience:   cfg.Audience,
		timeout:    timeout,
		logger:     logger,
	}
}

func (c *Auth0Client) CreateIdentity(
	ctx context.Context,
	email, secret, displayName string,
) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	u := &management.User{
		Connection: auth0.String(c.connection),
		Email:      auth0.String(email),
		Password:   auth0.String(secret),
	}
	if displayName != "" {
		u.Name = auth0.String(displayName)
	}

	if err := c.users.Create(ctx, u); err != nil {
		idErr := classify("create", err)
		c.logger.Warn("auth0 create identity failed",
			"kind", idErr.Kind,
			"error", err,
		)
		return "", idErr
	}

	subjectID := u.GetID()
	if subjectID == "" {
		return "", NewError(
			"create",
			KindUnavailable,
			errors.New("provider returned no subject id"),
		)
	}

	c.logger.Info("auth0 identity created", "subject_id", subjectID)
	return subjectID, nil
}

func (c *Auth0Client) DeleteIdentity(ctx context.Context, subjectID string) error {
	if strings.TrimSpace(subjectID) == "" {
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	if err := c.users.Delete(ctx, subjectID); err != nil {
		if statusOf(err) == http.StatusNotFound {
			return nil
		}
		idErr := classify("delete", err)
		c.logger.Warn("auth0 delete identity failed",
			"subject_id", subjectID,
			"kind", idErr.Kind,
			"error", err,
		)
		return idErr
	}

	c.logger.Info("auth0 identity deleted", "subject_id", subjectID)
	return nil
}

type externalClaims struct {
	jwt.RegisteredClaims
	Email         string `json:"email"`
	EmailVerified bool   `json:"email_verified"`
	Name          string `json:"name"`
}

func (c *Auth0Client) VerifyToken(
	ctx context.Context,
	token string,
) (*Subject, error) {
	if err := ctx.Err(); err != nil {
		return nil, NewError("verify", KindUnavailable, err)
	}

	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{"RS256"}),
		jwt.WithExpirationRequired(),
		jwt.WithIssuer(c.issuer),
	}
	if c.audience != "" {
		opts = append(opts, jwt.WithAudience(c.audience))
	}

	var claims externalClaims
	if _, err := jwt.ParseWithClaims(token, &claims, c.keyFunc, opts...); err != nil {
		return nil, NewError("verify", KindInvalidToken, err)
	}

	if claims.Subject == "" {
		return nil, NewError(
			"verify",
			KindInvalidToken,
			errors.New("token has no subject"),
		)
	}

	return &Subject{
		ID:            claims.Subject,
		Email:         strings.ToLower(strings.TrimSpace(claims.Email)),
		EmailVerified: claims.EmailVerified,
		Name:          claims.Name,
	}, nil
}

// Close stops the background JWKS refresh.
func (c *Auth0Client) Close() {
	if c.jwks != nil {
		c.jwks.EndBackground()
	}
}

func classify(op string, err error) *Error {
	if errors.Is(err, context.DeadlineExceeded) ||
		errors.Is(err, context.Canceled) {
		return NewError(op, KindUnavailable, err)
	}

	switch status := statusOf(err); {
	case status == http.StatusConflict:
		return NewError(op, KindAlreadyExists, err)
	case status == http.StatusBadRequest &&
		strings.Contains(strings.ToLower(err.Error()), "password"):
		return NewError(op, KindWeakSecret, err)
	case status == http.StatusBadRequest,
		status == http.StatusUnprocessableEntity:
		return NewError(op, KindInvalidInput, err)
	default:
		return NewError(op, KindUnavailable, err)
	}
}

func statusOf(err error) int {
	var mErr management.Error
	if errors.As(err, &mErr) {
		return mErr.Status()
	}
	return 0
}

var _ Client = (*Auth0Client)(nil)
