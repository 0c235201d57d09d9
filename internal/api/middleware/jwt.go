package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/yoockh/quantachat/internal/auth"
	"github.com/yoockh/quantachat/internal/utils"
)

type apiError struct {
	Code    utils.Code `json:"code"`
	Message string     `json:"message"`
}

func unauthorized(c *gin.Context, msg string) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, apiError{
		Code:    utils.CodeUnauthorized,
		Message: msg,
	})
}

// JWTAuth validates the bearer token and sets user_id, role and tier on the context.
func JWTAuth(issuer *auth.Issuer) gin.HandlerFunc {
	return func(c *gin.Context) {
		if issuer == nil {
			c.AbortWithStatusJSON(http.StatusInternalServerError, apiError{
				Code:    utils.CodeInternal,
				Message: "token issuer is not configured",
			})
			return
		}

		raw := bearerToken(c)
		if raw == "" {
			unauthorized(c, "missing bearer token")
			return
		}

		claims, err := issuer.Parse(raw)
		if err != nil {
			unauthorized(c, "invalid token")
			return
		}
		if claims.Subject == "" {
			unauthorized(c, "missing subject")
			return
		}

		role := claims.Role
		if role == "" {
			role = "user"
		}

		c.Set("user_id", claims.Subject)
		c.Set("role", role)
		c.Set("tier", claims.Tier)
		c.Next()
	}
}

// bearerToken reads the Authorization header, falling back to ?token= for
// browser WebSocket clients that cannot set headers.
func bearerToken(c *gin.Context) string {
	h := c.GetHeader("Authorization")
	if strings.HasPrefix(h, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(h, "Bearer "))
	}
	if c.IsWebsocket() {
		return strings.TrimSpace(c.Query("token"))
	}
	return ""
}
