package middlewares

import (
	"github.com/gin-gonic/gin"
	"github.com/mmdatafocus/retail_backend/config"
	"github.com/mmdatafocus/retail_backend/utils"
)

// SessionUser is what the auth service stores under "Token:<token>".
type SessionUser struct {
	Id   string `json:"id"`
	Name string `json:"name"`
}

// SessionMiddleware resolves the "token" header through the Redis session store.
func SessionMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		token := c.Request.Header.Get("token")
		if token == "" {
			c.Next()
			return
		}
		var user SessionUser
		exists, err := config.GetRedisObject("Token:"+token, &user)
		if err != nil || !exists || user.Id == "" {
			abortUnauthorized(c)
			return
		}

		ctx := utils.SetTokenInContext(c.Request.Context(), token)
		c.Request = c.Request.WithContext(utils.SetActorInContext(ctx, utils.Actor{Id: user.Id, Name: user.Name}))
		c.Next()
	}
}
