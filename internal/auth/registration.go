// AngelaMos | 2026
// registration.go

package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/carterperez-dev/templates/hotel-backend/internal/core"
	"github.com/carterperez-dev/templates/hotel-backend/internal/identity"
	"github.com/carterperez-dev/templates/hotel-backend/internal/user"
)

const (
	tracerName = "github.com/carterperez-dev/templates/hotel-backend/internal/auth"

	minPasswordLength = 6
	maxPasswordLength = 128

	defaultProviderTimeout = 5 * time.Second
)

type Flow string

const (
	FlowLinked         Flow = "linked"
	FlowLocalOnly      Flow = "local_only"
	FlowRollback       Flow = "rollback"
	FlowExistingLinked Flow = "existing-linked"
	FlowAdoptAndLink   Flow = "adopt-and-link"
	FlowCreateAndLink  Flow = "create-and-link"
)

// Reasons recorded in Result.ExternalFailure when the provider was not called.
const (
	FailureDisabled   = "disabled"
	FailureSkipped    = "skipped"
	FailureNoSecret   = "no_secret"
	FailureLinkFailed = "link_failed"
)

type RegisterInput struct {
	Email        string
	Password     string
	FirstName    string
	LastName     string
	DisplayName  string
	Role         string
	SkipExternal bool
	SkipPassword bool
}

// AdditionalData fills profile fields the external token does not carry.
type AdditionalData struct {
	FirstName   string
	LastName    string
	DisplayName string
	Role        string
}

type Result struct {
	User            *user.User
	Token           *Token
	State           user.RegistrationState
	Flow            Flow
	ExternalFailure string
}

// Created reports whether the call produced a new local record.
func (r *Result) Created() bool {
	return r.Flow != FlowExistingLinked
}

type TokenIssuer interface {
	CreateAccessToken(claims LocalClaims) (*Token, error)
}

// Orchestrator runs the registration saga: local create, external create,
// linkage, with compensation when a later step fails. A nil provider means
// the external identity feature is disabled.
type Orchestrator struct {
	store           user.Store
	provider        identity.Client
	tokens          TokenIssuer
	logger          *slog.Logger
	validate        *validator.Validate
	providerTimeout time.Duration
}

func NewOrchestrator(
	store user.Store,
	provider identity.Client,
	tokens TokenIssuer,
	providerTimeout time.Duration,
	logger *slog.Logger,
) *Orchestrator {
	if providerTimeout <= 0 {
		providerTimeout = defaultProviderTimeout
	}
	return &Orchestrator{
		store:           store,
		provider:        provider,
		tokens:          tokens,
		logger:          logger,
		validate:        validator.New(),
		providerTimeout: providerTimeout,
	}
}

func (o *Orchestrator) Register(
	ctx context.Context,
	in RegisterInput,
) (*Result, error) {
	ctx, span := otel.Tracer(tracerName).Start(ctx, "auth.Register")
	defer span.End()

	params, err := o.validateRegistration(in)
	if err != nil {
		return nil, err
	}

	if _, err := o.store.FindByEmail(ctx, params.Email); err == nil {
		return nil, &ConflictError{Field: "email"}
	} else if !errors.Is(err, core.ErrNotFound) {
		return nil, fmt.Errorf("check email: %w", err)
	}

	if in.Password != "" {
		hash, hashErr := core.HashPassword(in.Password)
		if hashErr != nil {
			return nil, fmt.Errorf("hash password: %w", hashErr)
		}
		params.PasswordHash = &hash
	}

	created, err := o.store.CreateLocal(ctx, params)
	if err != nil {
		if errors.Is(err, core.ErrDuplicateKey) {
			return nil, &ConflictError{Field: "email"}
		}
		return nil, fmt.Errorf("create local user: %w", err)
	}
	core.AddSpanEvent(ctx, "user.created",
		attribute.String("user.id", created.ID),
	)

	// Past the first write the saga must reach a terminal state even if the
	// caller goes away.
	sagaCtx := context.WithoutCancel(ctx)

	final, flow, failure, err := o.mirrorExternally(sagaCtx, created, in)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	span.SetAttributes(
		attribute.String("registration.flow", string(flow)),
		attribute.String("registration.state", string(final.RegistrationState)),
	)

	return o.finish(final, flow, failure)
}

func (o *Orchestrator) mirrorExternally(
	ctx context.Context,
	u *user.User,
	in RegisterInput,
) (*user.User, Flow, string, error) {
	switch {
	case o.provider == nil:
		return o.finalizeLocalOnly(ctx, u, FlowLocalOnly, FailureDisabled)
	case in.SkipExternal:
		return o.finalizeLocalOnly(ctx, u, FlowLocalOnly, FailureSkipped)
	case in.Password == "":
		return o.finalizeLocalOnly(ctx, u, FlowLocalOnly, FailureNoSecret)
	}

	if err := o.store.MarkLinkAttempted(ctx, u.ID); err != nil {
		o.logger.Warn("failed to stamp link attempt",
			"user_id", u.ID,
			"error", err,
		)
	}

	subjectID, err := o.createIdentity(ctx, u, in.Password)
	if err != nil {
		kind := identity.KindOf(err)
		if kind == identity.KindAlreadyExists {
			o.compensateLocal(ctx, u)
			return nil, "", "", &ConflictError{Field: "email", Remote: true}
		}

		o.logger.Warn("external identity creation failed, continuing local only",
			"user_id", u.ID,
			"kind", kind,
			"error", err,
		)
		return o.finalizeLocalOnly(ctx, u, FlowLocalOnly, string(kind))
	}

	linked, err := o.store.LinkExternal(ctx, u.ID, subjectID)
	if err != nil {
		o.logger.Error("link external identity failed, rolling back",
			"user_id", u.ID,
			"subject_id", subjectID,
			"error", err,
		)
		o.compensateExternal(ctx, subjectID)
		return o.finalizeLocalOnly(ctx, u, FlowRollback, FailureLinkFailed)
	}

	core.AddSpanEvent(ctx, "user.linked",
		attribute.String("user.id", linked.ID),
		attribute.String("identity.subject", subjectID),
	)
	return linked, FlowLinked, "", nil
}

func (o *Orchestrator) createIdentity(
	ctx context.Context,
	u *user.User,
	secret string,
) (string, error) {
	callCtx, cancel := context.WithTimeout(ctx, o.providerTimeout)
	defer cancel()

	subjectID, err := o.provider.CreateIdentity(
		callCtx,
		u.Email,
		secret,
		u.DisplayName,
	)
	if err != nil {
		core.AddSpanEvent(ctx, "identity.create_failed",
			attribute.String("identity.error_kind", string(identity.KindOf(err))),
		)
		return "", err
	}

	o.logger.Info("external identity created",
		"user_id", u.ID,
		"subject_id", subjectID,
	)
	core.AddSpanEvent(ctx, "identity.created",
		attribute.String("identity.subject", subjectID),
	)
	return subjectID, nil
}

// compensateLocal removes the record created by the first step. A failure
// here leaves a pending_link row for the orphan reaper.
func (o *Orchestrator) compensateLocal(ctx context.Context, u *user.User) {
	if err := o.store.Delete(ctx, u.ID); err != nil &&
		!errors.Is(err, core.ErrNotFound) {
		o.logger.Error("compensation: delete local user failed",
			"user_id", u.ID,
			"trace_id", core.TraceIDFromContext(ctx),
			"error", err,
		)
		core.SetSpanError(ctx, err)
		return
	}
	core.AddSpanEvent(ctx, "compensation.local_deleted",
		attribute.String("user.id", u.ID),
	)
}

func (o *Orchestrator) compensateExternal(ctx context.Context, subjectID string) {
	callCtx, cancel := context.WithTimeout(ctx, o.providerTimeout)
	defer cancel()

	if err := o.provider.DeleteIdentity(callCtx, subjectID); err != nil {
		o.logger.Error("compensation: delete external identity failed",
			"subject_id", subjectID,
			"trace_id", core.TraceIDFromContext(ctx),
			"error", err,
		)
		core.SetSpanError(ctx, err)
		return
	}

	o.logger.Info("external identity deleted", "subject_id", subjectID)
	core.AddSpanEvent(ctx, "compensation.identity_deleted",
		attribute.String("identity.subject", subjectID),
	)
}

func (o *Orchestrator) finalizeLocalOnly(
	ctx context.Context,
	u *user.User,
	flow Flow,
	failure string,
) (*user.User, Flow, string, error) {
	updated, err := o.store.MarkLocalOnly(ctx, u.ID)
	if err != nil {
		o.logger.Warn("failed to finalize local only state",
			"user_id", u.ID,
			"error", err,
		)
		return u, flow, failure, nil
	}
	return updated, flow, failure, nil
}

// RegisterFromExternal resolves a provider-issued token to a local user,
// linking or creating the local record as needed.
func (o *Orchestrator) RegisterFromExternal(
	ctx context.Context,
	externalToken string,
	data AdditionalData,
) (*Result, error) {
	ctx, span := otel.Tracer(tracerName).Start(ctx, "auth.RegisterFromExternal")
	defer span.End()

	if o.provider == nil {
		return nil, newAuthError(ReasonInvalid,
			errors.New("external identity is disabled"))
	}

	if strings.TrimSpace(externalToken) == "" {
		return nil, &ValidationError{
			Fields: map[string]string{"externalToken": "externalToken is required"},
		}
	}

	role, err := o.publicRole(data.Role)
	if err != nil {
		return nil, err
	}

	verifyCtx, cancel := context.WithTimeout(ctx, o.providerTimeout)
	subject, err := o.provider.VerifyToken(verifyCtx, externalToken)
	cancel()
	if err != nil {
		return nil, newAuthError(ReasonInvalid, err)
	}

	sagaCtx := context.WithoutCancel(ctx)

	u, flow, err := o.resolveSubject(sagaCtx, subject, data, role)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	span.SetAttributes(attribute.String("registration.flow", string(flow)))

	u, err = o.store.RecordLogin(sagaCtx, u.ID)
	if err != nil {
		return nil, fmt.Errorf("record login: %w", err)
	}

	return o.finish(u, flow, "")
}

func (o *Orchestrator) resolveSubject(
	ctx context.Context,
	subject *identity.Subject,
	data AdditionalData,
	role user.Role,
) (*user.User, Flow, error) {
	existing, err := o.findBySubject(ctx, subject.ID)
	if err != nil {
		return nil, "", err
	}
	if existing != nil {
		return existing, FlowExistingLinked, nil
	}

	email := user.NormalizeEmail(subject.Email)
	if email == "" {
		return nil, "", &ValidationError{
			Fields: map[string]string{"email": "external token carries no email"},
		}
	}

	candidate, err := o.store.FindByEmail(ctx, email)
	switch {
	case err == nil:
		return o.adopt(ctx, candidate, subject)
	case !errors.Is(err, core.ErrNotFound):
		return nil, "", fmt.Errorf("find by email: %w", err)
	}

	first, last := splitName(subject.Name, email)
	params := user.CreateParams{
		Email:       email,
		FirstName:   firstNonEmpty(data.FirstName, first),
		LastName:    firstNonEmpty(data.LastName, last),
		DisplayName: strings.TrimSpace(data.DisplayName),
		Role:        role,
	}
	if params.DisplayName == "" {
		params.DisplayName = firstNonEmpty(
			strings.TrimSpace(subject.Name),
			strings.TrimSpace(params.FirstName+" "+params.LastName),
		)
	}

	created, err := o.store.CreateLinked(ctx, params, subject.ID)
	if err != nil {
		if errors.Is(err, core.ErrDuplicateKey) {
			return o.afterLostRace(ctx, subject.ID)
		}
		return nil, "", fmt.Errorf("create linked user: %w", err)
	}

	o.logger.Info("linked user created from external identity",
		"user_id", created.ID,
		"subject_id", subject.ID,
	)
	return created, FlowCreateAndLink, nil
}

func (o *Orchestrator) adopt(
	ctx context.Context,
	candidate *user.User,
	subject *identity.Subject,
) (*user.User, Flow, error) {
	if candidate.IsLinked() {
		return nil, "", &ConflictError{Field: "email"}
	}
	if !candidate.CanAuthenticate() {
		return nil, "", newAuthError(ReasonInactive, nil)
	}
	if !subject.EmailVerified {
		return nil, "", &ConflictError{Field: "email"}
	}

	linked, err := o.store.LinkExternal(ctx, candidate.ID, subject.ID)
	if err != nil {
		if errors.Is(err, core.ErrNotFound) ||
			errors.Is(err, core.ErrDuplicateKey) {
			return o.afterLostRace(ctx, subject.ID)
		}
		return nil, "", fmt.Errorf("link existing user: %w", err)
	}

	o.logger.Info("existing user adopted by external identity",
		"user_id", linked.ID,
		"subject_id", subject.ID,
	)
	return linked, FlowAdoptAndLink, nil
}

// afterLostRace handles a concurrent request that linked the subject first.
func (o *Orchestrator) afterLostRace(
	ctx context.Context,
	subjectID string,
) (*user.User, Flow, error) {
	winner, err := o.findBySubject(ctx, subjectID)
	if err != nil {
		return nil, "", err
	}
	if winner == nil {
		return nil, "", &ConflictError{Field: "email"}
	}
	return winner, FlowExistingLinked, nil
}

// findBySubject returns nil without error when no live user is linked.
func (o *Orchestrator) findBySubject(
	ctx context.Context,
	subjectID string,
) (*user.User, error) {
	u, err := o.store.FindByExternalSubject(ctx, subjectID)
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("find by subject: %w", err)
	}
	if !u.CanAuthenticate() {
		return nil, newAuthError(ReasonInactive, nil)
	}
	return u, nil
}

func (o *Orchestrator) finish(
	u *user.User,
	flow Flow,
	failure string,
) (*Result, error) {
	token, err := o.tokens.CreateAccessToken(LocalClaims{
		UserID: u.ID,
		Email:  u.Email,
	})
	if err != nil {
		return nil, fmt.Errorf("issue token: %w", err)
	}

	return &Result{
		User:            u,
		Token:           token,
		State:           u.RegistrationState,
		Flow:            flow,
		ExternalFailure: failure,
	}, nil
}

func (o *Orchestrator) validateRegistration(
	in RegisterInput,
) (user.CreateParams, error) {
	errs := validationBuilder{}

	email := user.NormalizeEmail(in.Email)
	if email == "" {
		errs.add("email", "email is required")
	} else if o.validate.Var(email, "email,max=255") != nil {
		errs.add("email", "email must be a valid email")
	}

	firstName := strings.TrimSpace(in.FirstName)
	if firstName == "" {
		errs.add("firstName", "firstName is required")
	}
	lastName := strings.TrimSpace(in.LastName)
	if lastName == "" {
		errs.add("lastName", "lastName is required")
	}

	switch {
	case in.Password == "" && !in.SkipPassword:
		errs.add("password", "password is required")
	case in.Password != "" && len(in.Password) < minPasswordLength:
		errs.add("password", fmt.Sprintf(
			"password must be at least %d characters", minPasswordLength))
	case len(in.Password) > maxPasswordLength:
		errs.add("password", fmt.Sprintf(
			"password must be at most %d characters", maxPasswordLength))
	}

	role, roleErr := o.publicRole(in.Role)
	if roleErr != nil {
		errs.add("role", "role must be one of: guest member")
	}

	if err := errs.err(); err != nil {
		return user.CreateParams{}, err
	}

	displayName := strings.TrimSpace(in.DisplayName)
	if displayName == "" {
		displayName = firstName + " " + lastName
	}

	return user.CreateParams{
		Email:       email,
		FirstName:   firstName,
		LastName:    lastName,
		DisplayName: displayName,
		Role:        role,
	}, nil
}

// publicRole limits self-service callers to non-privileged roles.
func (o *Orchestrator) publicRole(requested string) (user.Role, error) {
	if strings.TrimSpace(requested) == "" {
		return user.RoleMember, nil
	}
	role, ok := user.ParseRole(requested)
	if !ok || role.AtLeast(user.RoleAdmin) {
		return "", &ValidationError{
			Fields: map[string]string{"role": "role must be one of: guest member"},
		}
	}
	return role, nil
}

func splitName(name, email string) (string, string) {
	fields := strings.Fields(name)
	switch len(fields) {
	case 0:
		local, _, _ := strings.Cut(email, "@")
		return local, ""
	case 1:
		return fields[0], ""
	default:
		return fields[0], strings.Join(fields[1:], " ")
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}
