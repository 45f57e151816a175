package auth

import (
	"github.com/angelmondragon/library-backend/internal/users"
)

// RegisterRequest is the public sign-up payload. AdminSecret is only read
// when Role is admin.
type RegisterRequest struct {
	Username    string `json:"username" validate:"required,max=64"`
	Password    string `json:"password" validate:"required,max=256"`
	Role        string `json:"role,omitempty" validate:"omitempty,role"`
	AdminSecret string `json:"adminSecret,omitempty"`
}

// LoginRequest captures the user credentials sent to the login endpoint.
type LoginRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// RefreshRequest pairs the presented access token with its refresh token.
type RefreshRequest struct {
	AccessToken  string `json:"-"`
	RefreshToken string `json:"refreshToken" validate:"required"`
}

// Response is returned by register, login and refresh. RefreshToken is empty
// when no session store is configured.
type Response struct {
	Token        string         `json:"token"`
	RefreshToken string         `json:"refreshToken,omitempty"`
	User         *users.UserDTO `json:"user"`
}
