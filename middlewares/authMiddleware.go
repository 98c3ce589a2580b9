package middlewares

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/mmdatafocus/retail_backend/utils"
)

// AuthMiddleware resolves a bearer JWT into the request's actor.
// Requests without an Authorization header pass through untouched.
func AuthMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		auth := c.Request.Header.Get("Authorization")
		if auth == "" {
			c.Next()
			return
		}

		const bearer = "Bearer "
		if !strings.HasPrefix(auth, bearer) {
			abortUnauthorized(c)
			return
		}
		actor, err := utils.ActorFromJwt(strings.TrimSpace(auth[len(bearer):]))
		if err != nil {
			abortUnauthorized(c)
			return
		}

		ctx := utils.SetTokenInContext(c.Request.Context(), auth[len(bearer):])
		c.Request = c.Request.WithContext(utils.SetActorInContext(ctx, actor))
		c.Next()
	}
}

// RequireActorMiddleware rejects requests that no auth middleware attributed to an actor.
func RequireActorMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, err := utils.RequireActor(c.Request.Context()); err != nil {
			abortUnauthorized(c)
			return
		}
		c.Next()
	}
}

func abortUnauthorized(c *gin.Context) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
		"error": gin.H{"kind": "Unauthorized", "message": "unauthorized"},
	})
}
