// AngelaMos | 2026
// handler.go

package auth

import (
	"encoding/json"
	"errors"
	"net/http"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/carterperez-dev/templates/hotel-backend/internal/core"
	"github.com/carterperez-dev/templates/hotel-backend/internal/middleware"
	"github.com/carterperez-dev/templates/hotel-backend/internal/user"
)

const defaultCleanupMinutes = 60

type Handler struct {
	orchestrator *Orchestrator
	service      *Service
	reaper       *Reaper
	validator    *validator.Validate
}

func NewHandler(orchestrator *Orchestrator, service *Service, reaper *Reaper) *Handler {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})

	return &Handler{
		orchestrator: orchestrator,
		service:      service,
		reaper:       reaper,
		validator:    v,
	}
}

// RegisterRoutes mounts the auth routes. registrationLimit may be nil.
func (h *Handler) RegisterRoutes(
	r chi.Router,
	authenticator func(http.Handler) http.Handler,
	registrationLimit func(http.Handler) http.Handler,
) {
	r.Route("/auth", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			if registrationLimit != nil {
				r.Use(registrationLimit)
			}
			r.Post("/register", h.Register)
			r.Post("/register-external", h.RegisterExternal)
			r.Post("/login", h.Login)
		})

		r.Group(func(r chi.Router) {
			r.Use(authenticator)
			r.Get("/me", h.GetMe)

			r.With(middleware.RequireRole(
				string(user.RoleAdmin),
				string(user.RoleSuperAdmin),
			)).Delete("/cleanup-orphaned", h.CleanupOrphaned)
		})
	})
}

func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if !h.decode(w, r, &req) {
		return
	}

	res, err := h.orchestrator.Register(r.Context(), req.toInput())
	if err != nil {
		writeError(w, err)
		return
	}

	core.Created(w, toRegisterResponse(res))
}

func (h *Handler) RegisterExternal(w http.ResponseWriter, r *http.Request) {
	var req RegisterExternalRequest
	if !h.decode(w, r, &req) {
		return
	}

	res, err := h.orchestrator.RegisterFromExternal(
		r.Context(),
		req.ExternalToken,
		AdditionalData{
			FirstName:   req.AdditionalData.FirstName,
			LastName:    req.AdditionalData.LastName,
			DisplayName: req.AdditionalData.DisplayName,
			Role:        req.AdditionalData.Role,
		},
	)
	if err != nil {
		writeError(w, err)
		return
	}

	if res.Created() {
		core.Created(w, toRegisterResponse(res))
		return
	}
	core.OK(w, toRegisterResponse(res))
}

func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if !h.decode(w, r, &req) {
		return
	}

	u, token, err := h.service.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		writeError(w, err)
		return
	}

	core.OK(w, AuthResponse{
		User:  user.ToUserResponse(u),
		Token: toTokenResponse(token),
	})
}

func (h *Handler) GetMe(w http.ResponseWriter, r *http.Request) {
	id := middleware.GetIdentity(r.Context())
	if id == nil {
		core.Unauthorized(w, "")
		return
	}

	u, err := h.service.CurrentUser(r.Context(), id.UserID)
	if err != nil {
		writeError(w, err)
		return
	}

	core.OK(w, toMeResponse(u, id))
}

func (h *Handler) CleanupOrphaned(w http.ResponseWriter, r *http.Request) {
	minutes := defaultCleanupMinutes
	if raw := r.URL.Query().Get("olderThan"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			core.JSONError(w, core.ValidationError(
				"validation failed",
				map[string]string{"olderThan": "olderThan must be a positive number of minutes"},
			))
			return
		}
		minutes = parsed
	}

	cleaned, err := h.reaper.Sweep(r.Context(), time.Duration(minutes)*time.Minute)
	if err != nil {
		writeError(w, err)
		return
	}

	core.OK(w, CleanupResponse{
		CleanedCount:     cleaned,
		OlderThanMinutes: minutes,
	})
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		core.BadRequest(w, "invalid request body")
		return false
	}

	if err := h.validator.Struct(dst); err != nil {
		core.JSONError(w, core.ValidationError(
			core.FormatValidationError(err),
			core.ValidationDetails(err),
		))
		return false
	}

	return true
}

func writeError(w http.ResponseWriter, err error) {
	var (
		validationErr *ValidationError
		conflictErr   *ConflictError
		authErr       *AuthError
	)

	switch {
	case errors.As(err, &validationErr):
		core.JSONError(w, core.ValidationError("validation failed", validationErr.Fields))
	case errors.As(err, &conflictErr):
		if conflictErr.Remote {
			core.JSONError(w, core.ConflictError(
				conflictErr.Field+" is already registered with the identity provider",
			))
			return
		}
		core.JSONError(w, core.DuplicateError(conflictErr.Field))
	case errors.As(err, &authErr):
		if authErr.Reason == ReasonExpired {
			core.JSONError(w, core.TokenExpiredError())
			return
		}
		core.JSONError(w, core.UnauthorizedError(authErr.PublicMessage()))
	default:
		core.InternalServerError(w, err)
	}
}
