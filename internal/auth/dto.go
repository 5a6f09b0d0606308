package auth

import "github.com/ngmtien/velora-backend/internal/users"

// LoginRequest carries the credential payload. SessionToken is the
// anonymous cart-session cookie, if the visitor has one.
type LoginRequest struct {
	Email        string `json:"email" validate:"required,email"`
	Password     string `json:"password" validate:"required"`
	SessionToken string `json:"-"`
}

// LoginResponse is returned on successful login or registration.
type LoginResponse struct {
	AccessToken string        `json:"access_token"`
	User        users.UserDTO `json:"user"`
}

// RegisterStartRequest asks for a registration code to be emailed.
type RegisterStartRequest struct {
	Email string `json:"email" validate:"required,email"`
}

// RegisterRequest completes registration with the emailed code.
type RegisterRequest struct {
	Email        string  `json:"email" validate:"required,email"`
	Code         string  `json:"code" validate:"required"`
	Password     string  `json:"password" validate:"required,min=8"`
	FullName     string  `json:"full_name" validate:"required"`
	Phone        *string `json:"phone,omitempty"`
	Address      *string `json:"address,omitempty"`
	SessionToken string  `json:"-"`
}

// PasswordResetStartRequest asks for a reset code to be emailed.
type PasswordResetStartRequest struct {
	Email string `json:"email" validate:"required,email"`
}

// PasswordResetRequest completes a reset with the emailed code.
type PasswordResetRequest struct {
	Email       string `json:"email" validate:"required,email"`
	Code        string `json:"code" validate:"required"`
	NewPassword string `json:"new_password" validate:"required,min=8"`
}
