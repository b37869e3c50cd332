package auth

import (
	"context"
	"time"
)

// TokenTypeAccess is the only token type the API accepts.
const TokenTypeAccess = "access"

// JWTService issues and checks bearer tokens for the card API.
type JWTService interface {
	// GenerateToken creates a signed access token for subject, which names
	// the caller (a person, a connector or an agent). Returns the token
	// string or an error if signing fails.
	GenerateToken(ctx context.Context, subject string) (string, error)

	// ValidateToken validates the provided access token string and extracts the claims.
	// Returns an error if validation fails (expired, invalid signature, etc.).
	ValidateToken(ctx context.Context, tokenString string) (*Claims, error)
}

// Claims represents the validated content of an access token.
type Claims struct {
	// Subject identifies the caller; it is recorded as the actor of card
	// transitions.
	Subject string `json:"sub,omitempty"`

	// TokenType indicates the purpose of the token.
	TokenType string `json:"type,omitempty"`

	IssuedAt  time.Time `json:"iat,omitempty"`
	ExpiresAt time.Time `json:"exp,omitempty"`
	ID        string    `json:"jti,omitempty"`
}
