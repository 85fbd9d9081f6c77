package handlers

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/lnfunding/tipcards/internal/session"
)

// AccessTokenMiddleware authenticates requests via the Bearer access token
// and injects the user identity into the request context.
func AccessTokenMiddleware(manager *session.Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			respondDomainError(c, session.ErrAccessTokenMissing)
			c.Abort()
			return
		}

		token := strings.TrimPrefix(authHeader, "Bearer ")
		if token == authHeader {
			respondDomainError(c, session.ErrAccessTokenInvalid)
			c.Abort()
			return
		}
		token = strings.TrimSpace(token)
		if token == "" {
			respondDomainError(c, session.ErrAccessTokenMissing)
			c.Abort()
			return
		}

		claims, errParse := manager.ParseAccess(token)
		if errParse != nil {
			respondDomainError(c, errParse)
			c.Abort()
			return
		}

		c.Set("userID", claims.UserID)
		c.Set("lnurlAuthKey", claims.LnurlAuthKey)
		c.Next()
	}
}
