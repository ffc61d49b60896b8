// AngelaMos | 2026
// dto.go

package user

import (
	"time"
)

type UserResponse struct {
	ID                string     `json:"id"`
	Email             string     `json:"email"`
	FirstName         string     `json:"firstName"`
	LastName          string     `json:"lastName"`
	DisplayName       string     `json:"displayName"`
	Role              Role       `json:"role"`
	AuthProvider      string     `json:"authProvider"`
	ExternalSubjectID *string    `json:"externalSubjectId"`
	RegistrationState string     `json:"registrationState"`
	IsActive          bool       `json:"isActive"`
	CreatedAt         time.Time  `json:"createdAt"`
	LinkedAt          *time.Time `json:"linkedAt,omitempty"`
	LastLoginAt       *time.Time `json:"lastLoginAt,omitempty"`
	LoginCount        int        `json:"loginCount"`
}

func ToUserResponse(u *User) UserResponse {
	return UserResponse{
		ID:                u.ID,
		Email:             u.Email,
		FirstName:         u.FirstName,
		LastName:          u.LastName,
		DisplayName:       u.DisplayName,
		Role:              u.Role,
		AuthProvider:      string(u.AuthProvider),
		ExternalSubjectID: u.ExternalSubjectID,
		RegistrationState: string(u.RegistrationState),
		IsActive:          u.IsActive,
		CreatedAt:         u.CreatedAt,
		LinkedAt:          u.LinkedAt,
		LastLoginAt:       u.LastLoginAt,
		LoginCount:        u.LoginCount,
	}
}

type SetActiveRequest struct {
	IsActive *bool `json:"isActive" validate:"required"`
}
