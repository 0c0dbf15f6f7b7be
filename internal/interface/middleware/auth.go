package middleware

import (
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"

	"github.com/inkpress/account-service/pkg/apperr"
	"github.com/inkpress/account-service/pkg/helpers"
	"github.com/inkpress/account-service/pkg/response"
)

// CtxUserIDKey is where the authenticated user id is stored in the Gin context.
const CtxUserIDKey = "userID"

// Auth validates the access token cookie and ensures an active session exists
// in Redis for the token's session id. On success the user id is set in the
// Gin context so handlers receive identity explicitly.
func Auth(rdb *redis.Client, jwt *helpers.JWTManager) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, err := c.Cookie("access_token")
		if err != nil || token == "" {
			response.AbortError(c, apperr.Authentication("missing access token"))
			return
		}
		claims, err := jwt.ParseAccessToken(token)
		if err != nil {
			response.AbortError(c, apperr.Authentication("invalid access token"))
			return
		}

		if rdb != nil {
			data, err := rdb.HGetAll(c.Request.Context(), "user:session:"+claims.UserID).Result()
			if err != nil || len(data) == 0 || data["sid"] != claims.SessionID {
				response.AbortError(c, apperr.Authentication("session not found"))
				return
			}
		}

		c.Set(CtxUserIDKey, claims.UserID)
		c.Next()
	}
}
