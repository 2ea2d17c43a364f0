package models

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// User is a course staff member or student known to the system. CWID is the
// campus-wide identifier used to correlate scores across external tools.
type User struct {
	CWID         string    `db:"cwid" json:"cwid"`
	Email        string    `db:"email" json:"email"`
	Name         string    `db:"name" json:"name"`
	PasswordHash string    `db:"password_hash" json:"-"`
	Admin        bool      `db:"is_admin" json:"admin"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
}

// JWTClaims carries the authenticated identity through request handling.
type JWTClaims struct {
	CWID  string `json:"cwid"`
	Email string `json:"email"`
	Admin bool   `json:"admin"`
	jwt.RegisteredClaims
}

// LoginRequest is the credential payload for token issuance.
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// LoginResponse returns the issued access token.
type LoginResponse struct {
	AccessToken string    `json:"access_token"`
	ExpiresAt   time.Time `json:"expires_at"`
	User        User      `json:"user"`
}
