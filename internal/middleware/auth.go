package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"ngdi-portal/internal/models"
	"ngdi-portal/internal/repository"
	"ngdi-portal/internal/token"
)

// Context keys set by the auth middleware.
const (
	ContextClaims = "claims"
	ContextUser   = "user"
)

// SessionToken extracts the session token from the Authorization header or
// the session cookie. A header that isn't a Bearer credential (e.g. injected
// by a proxy) is ignored rather than masking a valid cookie session.
func SessionToken(c *gin.Context, cookieName string) string {
	authHeader := c.GetHeader("Authorization")
	if authHeader != "" {
		parts := strings.Split(authHeader, " ")
		if len(parts) == 2 && parts[0] == "Bearer" {
			return parts[1]
		}
	}

	cookie, err := c.Cookie(cookieName)
	if err != nil {
		return ""
	}
	return cookie
}

// AuthMiddleware verifies the session token and loads the user row behind it.
// Tokens carrying a refresh error are rejected: an errored session is
// unauthenticated for protected actions.
func AuthMiddleware(issuer *token.Issuer, users repository.UserRepository, cookieName string, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenString := SessionToken(c, cookieName)
		if tokenString == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Authentication required"})
			c.Abort()
			return
		}

		claims, err := issuer.Parse(tokenString)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid or expired token"})
			c.Abort()
			return
		}

		if claims.RefreshError != "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Session needs to be re-established"})
			c.Abort()
			return
		}

		user, err := users.GetUserByID(claims.Subject)
		if err != nil {
			logger.Warn("Session user not found", zap.String("user_id", claims.Subject), zap.Error(err))
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid session"})
			c.Abort()
			return
		}
		if user.Disabled {
			c.JSON(http.StatusForbidden, gin.H{"error": "Account disabled"})
			c.Abort()
			return
		}

		c.Set(ContextClaims, claims)
		c.Set(ContextUser, user)

		c.Next()
	}
}

// OptionalAuth resolves the session when a valid token is present but never
// rejects the request. Public catalog routes use it to widen results for
// signed-in staff.
func OptionalAuth(issuer *token.Issuer, users repository.UserRepository, cookieName string, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenString := SessionToken(c, cookieName)
		if tokenString == "" {
			c.Next()
			return
		}

		claims, err := issuer.Parse(tokenString)
		if err != nil || claims.RefreshError != "" {
			c.Next()
			return
		}

		user, err := users.GetUserByID(claims.Subject)
		if err != nil || user.Disabled {
			c.Next()
			return
		}

		c.Set(ContextClaims, claims)
		c.Set(ContextUser, user)
		c.Next()
	}
}

// RequireRole restricts a route group to the listed roles. Must run after
// AuthMiddleware.
func RequireRole(roles ...string) gin.HandlerFunc {
	allowed := make(map[string]struct{}, len(roles))
	for _, role := range roles {
		allowed[role] = struct{}{}
	}

	return func(c *gin.Context) {
		user := CurrentUser(c)
		if user == nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Authentication required"})
			c.Abort()
			return
		}
		if _, ok := allowed[user.Role]; !ok {
			c.JSON(http.StatusForbidden, gin.H{"error": "Insufficient permissions"})
			c.Abort()
			return
		}
		c.Next()
	}
}

// CurrentUser returns the authenticated user set by AuthMiddleware, or nil.
func CurrentUser(c *gin.Context) *models.User {
	v, ok := c.Get(ContextUser)
	if !ok {
		return nil
	}
	user, _ := v.(*models.User)
	return user
}

// CurrentClaims returns the verified session claims, or nil.
func CurrentClaims(c *gin.Context) *models.Claims {
	v, ok := c.Get(ContextClaims)
	if !ok {
		return nil
	}
	claims, _ := v.(*models.Claims)
	return claims
}
