package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"community_inbox/internal/config"
	"community_inbox/internal/domain"
	"community_inbox/internal/service"
	apperrors "community_inbox/pkg/errors"
	"community_inbox/pkg/logger"
)

const userContextKey = "current_user"

type AuthMiddleware struct {
	authService service.AuthService
	cfg         config.InboxConfig
	log         logger.Logger
}

func NewAuthMiddleware(authService service.AuthService, cfg config.InboxConfig, log logger.Logger) *AuthMiddleware {
	return &AuthMiddleware{
		authService: authService,
		cfg:         cfg,
		log:         log,
	}
}

// RequireAuth resolves the bearer token to a local user and aborts with a
// redirect hint otherwise: sign-in for missing/expired tokens, the
// registration flow for authenticated callers with no member record yet.
func (m *AuthMiddleware) RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok := bearerToken(c)
		if !ok {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Authorization header required", "redirect": m.cfg.SignInRedirect})
			c.Abort()
			return
		}

		user, err := m.authService.ResolveToken(c.Request.Context(), token)
		if err != nil {
			if errors.Is(err, apperrors.ErrRegistrationIncomplete) {
				c.JSON(http.StatusUnauthorized, gin.H{"error": "Registration incomplete", "redirect": m.cfg.RegistrationFlowURL})
			} else {
				c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid or expired token", "redirect": m.cfg.SignInRedirect})
			}
			c.Abort()
			return
		}

		c.Set(userContextKey, user)
		c.Next()
	}
}

// OptionalAuth resolves the caller when possible and continues anonymously
// otherwise. Used by the unread badge, which answers 0 instead of
// redirecting unauthenticated callers.
func (m *AuthMiddleware) OptionalAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		if token, ok := bearerToken(c); ok {
			if user, err := m.authService.ResolveToken(c.Request.Context(), token); err == nil {
				c.Set(userContextKey, user)
			}
		}
		c.Next()
	}
}

func bearerToken(c *gin.Context) (string, bool) {
	authHeader := c.GetHeader("Authorization")
	if authHeader == "" {
		return "", false
	}

	parts := strings.Split(authHeader, " ")
	if len(parts) != 2 || parts[0] != "Bearer" {
		return "", false
	}
	return parts[1], true
}

// CurrentUser returns the resolved user set by RequireAuth/OptionalAuth.
func CurrentUser(c *gin.Context) (*domain.User, bool) {
	v, exists := c.Get(userContextKey)
	if !exists {
		return nil, false
	}
	user, ok := v.(*domain.User)
	return user, ok
}
