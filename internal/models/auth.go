package models

import (
	"github.com/golang-jwt/jwt/v5"
)

// TokenClaims are the claims carried by access tokens issued to panel administrators
type TokenClaims struct {
	Type   string `json:"type"`
	UserID string `json:"user_id"`
	Email  string `json:"email,omitempty"`
	Role   string `json:"role,omitempty"`
	jwt.RegisteredClaims
}
