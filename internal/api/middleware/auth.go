package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/wallfair/settlement/internal/domain"
	"github.com/wallfair/settlement/internal/service"
)

// ContextKey constants for gin.Context values set by middleware.
const (
	CtxUserID = "userID"
	CtxRole   = "role"
)

// TokenParser verifies access tokens. Implemented by service.TokenVerifier.
type TokenParser interface {
	ParseAccessToken(token string) (*service.Principal, error)
}

// ──────────────────────────────────────────────────────────────────────────────
// JWTMiddleware
// ──────────────────────────────────────────────────────────────────────────────

// JWTMiddleware validates the Bearer token in the Authorization header.
// On success it stores userID (uuid.UUID) and role (domain.UserRole) in the
// gin context.
func JWTMiddleware(tokens TokenParser) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" || !strings.HasPrefix(header, "Bearer ") {
			abort(c, http.StatusUnauthorized, "ERR_UNAUTHORIZED", domain.ErrUnauthorized)
			return
		}

		p, err := tokens.ParseAccessToken(strings.TrimPrefix(header, "Bearer "))
		if err != nil {
			abort(c, http.StatusUnauthorized, "ERR_TOKEN_INVALID", domain.ErrTokenInvalid)
			return
		}

		c.Set(CtxUserID, p.UserID)
		c.Set(CtxRole, p.Role)
		c.Next()
	}
}

// ──────────────────────────────────────────────────────────────────────────────
// Role checks
// ──────────────────────────────────────────────────────────────────────────────

// RoleMiddleware lets the request through when allow accepts the caller's
// role. Must be placed after JWTMiddleware in the chain.
func RoleMiddleware(allow func(domain.UserRole) bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !allow(GetRole(c)) {
			abort(c, http.StatusForbidden, "ERR_FORBIDDEN", domain.ErrForbidden)
			return
		}
		c.Next()
	}
}

// AdminMiddleware allows only admins.
func AdminMiddleware() gin.HandlerFunc {
	return RoleMiddleware(domain.UserRole.IsAdmin)
}

// ResolverMiddleware allows admins and reporters.
func ResolverMiddleware() gin.HandlerFunc {
	return RoleMiddleware(domain.UserRole.CanResolve)
}

func abort(c *gin.Context, status int, code string, err error) {
	c.AbortWithStatusJSON(status, gin.H{
		"success": false,
		"error":   err.Error(),
		"code":    code,
	})
}

// ──────────────────────────────────────────────────────────────────────────────
// Context helpers
// ──────────────────────────────────────────────────────────────────────────────

// GetUserID retrieves the authenticated user's UUID from the gin context.
// Returns uuid.Nil if the middleware was not applied or the value is missing.
func GetUserID(c *gin.Context) uuid.UUID {
	v, exists := c.Get(CtxUserID)
	if !exists {
		return uuid.Nil
	}
	id, _ := v.(uuid.UUID)
	return id
}

// GetRole retrieves the authenticated user's role from the gin context.
func GetRole(c *gin.Context) domain.UserRole {
	v, _ := c.Get(CtxRole)
	r, _ := v.(domain.UserRole)
	return r
}
