package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/yoockh/quantachat/internal/models"
	"github.com/yoockh/quantachat/internal/utils"
)

func normalizeRole(r string) string { return strings.ToLower(strings.TrimSpace(r)) }

// RequireRole lets the request through only if JWTAuth set one of the allowed roles.
func RequireRole(allowed ...models.UserRole) gin.HandlerFunc {
	allow := map[string]bool{}
	for _, a := range allowed {
		if n := normalizeRole(string(a)); n != "" {
			allow[n] = true
		}
	}

	return func(c *gin.Context) {
		if !allow[normalizeRole(c.GetString("role"))] {
			c.AbortWithStatusJSON(http.StatusForbidden, apiError{
				Code:    utils.CodeForbidden,
				Message: "insufficient role",
			})
			return
		}
		c.Next()
	}
}

func RequireAdmin() gin.HandlerFunc { return RequireRole(models.RoleAdmin) }
