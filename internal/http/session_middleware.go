package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"login-api/internal/domain"
	"login-api/internal/service"
)

const authSessionKey = "auth_session"

// SessionAuthMiddleware valida la cookie de sesión y guarda la identidad en el contexto.
// Sin cookie rechaza directo, sin tocar el store.
func SessionAuthMiddleware(authSvc *service.AuthService) gin.HandlerFunc {
	return func(c *gin.Context) {
		if authSvc == nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "auth not configured"})
			c.Abort()
			return
		}

		token, err := c.Cookie(SessionCookieName)
		if err != nil || token == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			c.Abort()
			return
		}

		sess, err := authSvc.Validate(c.Request.Context(), token)
		if err != nil {
			if errors.Is(err, service.ErrSessionNotFound) || errors.Is(err, service.ErrSessionExpired) {
				c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			} else {
				c.JSON(http.StatusInternalServerError, gin.H{"error": "could not validate"})
			}
			c.Abort()
			return
		}

		c.Set(authSessionKey, sess)
		c.Next()
	}
}

// GetAuthSession obtiene la sesión resuelta desde el contexto.
func GetAuthSession(c *gin.Context) (domain.Session, bool) {
	val, ok := c.Get(authSessionKey)
	if !ok {
		return domain.Session{}, false
	}
	sess, ok := val.(domain.Session)
	return sess, ok
}
