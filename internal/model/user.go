package model

import (
	"time"

	"github.com/google/uuid"
)

// Role represents a user's role in the portal.
type Role string

const (
	RoleAdmin   Role = "admin"
	RoleStudent Role = "student"
)

// User represents a registered portal user (student or educator/admin).
type User struct {
	ID           uuid.UUID `json:"id"`
	Name         string    `json:"name"`
	RegNo        string    `json:"reg_no"`
	Email        string    `json:"email"`
	Role         Role      `json:"role"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// RegisterRequest is the payload for student self-registration.
type RegisterRequest struct {
	Name     string `json:"name" binding:"required,min=2,max=100"`
	RegNo    string `json:"reg_no" binding:"required,min=4,max=20"`
	Email    string `json:"email" binding:"required,email,max=255"`
	Password string `json:"password" binding:"required,min=6,max=128"`
}

// LoginRequest is the payload for authentication.
type LoginRequest struct {
	RegNo    string `json:"reg_no" binding:"required,min=4,max=20"`
	Password string `json:"password" binding:"required,min=6,max=128"`
}

// LoginResponse is returned after a successful login.
type LoginResponse struct {
	Token string `json:"token"`
	User  User   `json:"user"`
}

// ForgotPasswordRequest asks for a reset link. Both values must match the
// account on file.
type ForgotPasswordRequest struct {
	RegNo string `json:"reg_no" binding:"required,min=4,max=20"`
	Email string `json:"email" binding:"required,email,max=255"`
}

// ResetPasswordRequest carries the replacement password; the reset token
// travels in the Authorization header.
type ResetPasswordRequest struct {
	Password string `json:"password" binding:"required,min=6,max=128"`
}

// UpdateProfileRequest is the payload for editing the caller's own profile.
type UpdateProfileRequest struct {
	Name     string `json:"name" binding:"required,min=2,max=100"`
	Password string `json:"password" binding:"omitempty,min=6,max=128"`
}
