// AngelaMos | 2026
// dto.go

package auth

import (
	"time"

	"github.com/carterperez-dev/templates/hotel-backend/internal/middleware"
	"github.com/carterperez-dev/templates/hotel-backend/internal/user"
)

type RegisterRequest struct {
	Email        string `json:"email"        validate:"required,email,max=255"`
	Password     string `json:"password"     validate:"omitempty,min=6,max=128"`
	FirstName    string `json:"firstName"    validate:"required,max=100"`
	LastName     string `json:"lastName"     validate:"required,max=100"`
	DisplayName  string `json:"displayName"  validate:"omitempty,max=200"`
	Role         string `json:"role"         validate:"omitempty,oneof=guest member"`
	SkipExternal bool   `json:"skipExternal"`
	SkipPassword bool   `json:"skipPassword"`
}

func (r RegisterRequest) toInput() RegisterInput {
	return RegisterInput{
		Email:        r.Email,
		Password:     r.Password,
		FirstName:    r.FirstName,
		LastName:     r.LastName,
		DisplayName:  r.DisplayName,
		Role:         r.Role,
		SkipExternal: r.SkipExternal,
		SkipPassword: r.SkipPassword,
	}
}

type AdditionalDataRequest struct {
	FirstName   string `json:"firstName"   validate:"omitempty,max=100"`
	LastName    string `json:"lastName"    validate:"omitempty,max=100"`
	DisplayName string `json:"displayName" validate:"omitempty,max=200"`
	Role        string `json:"role"        validate:"omitempty,oneof=guest member"`
}

type RegisterExternalRequest struct {
	ExternalToken  string                `json:"externalToken"  validate:"required"`
	AdditionalData AdditionalDataRequest `json:"additionalData"`
}

type LoginRequest struct {
	Email    string `json:"email"    validate:"required,email,max=255"`
	Password string `json:"password" validate:"required,max=128"`
}

type TokenResponse struct {
	AccessToken string    `json:"accessToken"`
	TokenType   string    `json:"tokenType"`
	ExpiresAt   time.Time `json:"expiresAt"`
}

type AuthResponse struct {
	User  user.UserResponse `json:"user"`
	Token TokenResponse     `json:"token"`
}

type RegisterResponse struct {
	User            user.UserResponse `json:"user"`
	Token           TokenResponse     `json:"token"`
	Flow            Flow              `json:"flow"`
	State           string            `json:"state"`
	ExternalFailure string            `json:"externalFailure,omitempty"`
}

type MeResponse struct {
	User   user.UserResponse `json:"user"`
	Source string            `json:"source"`
}

type CleanupResponse struct {
	CleanedCount     int64 `json:"cleanedCount"`
	OlderThanMinutes int   `json:"olderThanMinutes"`
}

func toTokenResponse(t *Token) TokenResponse {
	return TokenResponse{
		AccessToken: t.Value,
		TokenType:   "Bearer",
		ExpiresAt:   t.ExpiresAt,
	}
}

func toRegisterResponse(res *Result) RegisterResponse {
	return RegisterResponse{
		User:            user.ToUserResponse(res.User),
		Token:           toTokenResponse(res.Token),
		Flow:            res.Flow,
		State:           string(res.State),
		ExternalFailure: res.ExternalFailure,
	}
}

func toMeResponse(u *user.User, id *middleware.Identity) MeResponse {
	return MeResponse{
		User:   user.ToUserResponse(u),
		Source: id.Source,
	}
}
