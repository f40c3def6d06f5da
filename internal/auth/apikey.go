package auth

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/PratikDhanave/next-action-service/internal/logging"
	"github.com/PratikDhanave/next-action-service/internal/models"
)

// HeaderAPIKey carries the caller's API key.
const HeaderAPIKey = "X-API-Key"

// APIKeyMiddleware maps X-API-Key to a client name and puts it on the request
// context, where request logs pick it up. With no keys configured every
// request passes through unauthenticated.
func APIKeyMiddleware(keys map[string]string) gin.HandlerFunc {
	if len(keys) == 0 {
		return func(c *gin.Context) { c.Next() }
	}
	return func(c *gin.Context) {
		apiKey := strings.TrimSpace(c.GetHeader(HeaderAPIKey))
		client, ok := keys[apiKey]
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, models.ErrorResponse{
				Error: "unauthorized",
				Code:  "UNAUTHORIZED",
			})
			return
		}
		c.Request = c.Request.WithContext(logging.ContextWithClient(c.Request.Context(), client))
		c.Next()
	}
}
