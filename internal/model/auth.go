package model

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// AuthRequest types
type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=8"`
}

type RegisterRequest struct {
	Email          string  `json:"email" binding:"required,email"`
	Password       string  `json:"password" binding:"required,min=8,max=72"`
	Name           string  `json:"name" binding:"required,min=2,max=100"`
	Role           Role    `json:"role" binding:"required,oneof=patient doctor"`
	Phone          *string `json:"phone" binding:"omitempty,max=32"`
	Specialization *string `json:"specialization" binding:"omitempty,max=100"`
}

// AuthResponse types
type TokenResponse struct {
	AccessToken string    `json:"access_token"`
	ExpiresAt   time.Time `json:"expires_at"`
	User        *User     `json:"user"`
}

// TokenClaims represents JWT claims. Subject carries the user ID.
type TokenClaims struct {
	jwt.RegisteredClaims
	Email string `json:"email"`
	Role  Role   `json:"role"`
}
