package auth

import (
	"github.com/golang-jwt/jwt/v4"
)

type Role string

const (
	RoleMember  Role = "MEMBER"
	RoleAirline Role = "AIRLINE"
	RoleAdmin   Role = "ADMIN"
)

// Identity is the caller a verified credential resolves to
type Identity struct {
	UserID   string `json:"user_id"`
	UserType Role   `json:"user_type"`
}

// JWTClaims represents JWT token claims
type JWTClaims struct {
	UserID   string `json:"user_id"`
	UserType string `json:"user_type"`
	Type     string `json:"type"` // only "access" tokens are accepted
	jwt.RegisteredClaims
}

const tokenTypeAccess = "access"
