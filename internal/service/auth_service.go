package service

import (
	"fmt"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/wallfair/settlement/internal/domain"
)

// ──────────────────────────────────────────────────────────────────────────────
// JWT claims
// ──────────────────────────────────────────────────────────────────────────────

// AppClaims are the access-token claims issued by the account service.
// Subject carries the user id.
type AppClaims struct {
	jwt.RegisteredClaims
	Role      string `json:"role"`
	TokenType string `json:"type"`
}

// Principal is the authenticated caller extracted from a token.
type Principal struct {
	UserID uuid.UUID
	Role   domain.UserRole
}

// ──────────────────────────────────────────────────────────────────────────────
// TokenVerifier
// ──────────────────────────────────────────────────────────────────────────────

// TokenVerifier validates HS256 access tokens. Issuing tokens is the account
// service's job; this core only verifies them.
type TokenVerifier struct {
	secret []byte
}

// NewTokenVerifier creates a TokenVerifier for the shared secret.
func NewTokenVerifier(secret string) *TokenVerifier {
	return &TokenVerifier{secret: []byte(secret)}
}

// ParseAccessToken validates signature, algorithm, expiry and token type.
func (v *TokenVerifier) ParseAccessToken(tokenString string) (*Principal, error) {
	tok, err := jwt.ParseWithClaims(tokenString, &AppClaims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return v.secret, nil
	})
	if err != nil || !tok.Valid {
		return nil, domain.ErrTokenInvalid
	}
	claims, ok := tok.Claims.(*AppClaims)
	if !ok {
		return nil, domain.ErrTokenInvalid
	}
	// Tokens without a type predate refresh tokens and count as access.
	if claims.TokenType != "" && claims.TokenType != "access" {
		return nil, domain.ErrTokenInvalid
	}

	userID, err := uuid.Parse(claims.Subject)
	if err != nil {
		return nil, domain.ErrTokenInvalid
	}
	role := domain.UserRole(claims.Role)
	if role == "" {
		role = domain.RoleUser
	}
	return &Principal{UserID: userID, Role: role}, nil
}
