package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/noah-isme/learning-center-api/internal/service"
)

// Actor copies the caller identity onto the request context so services can
// stamp audit rows with it. Mount after JWT.
func Actor() gin.HandlerFunc {
	return func(c *gin.Context) {
		actor := service.Actor{IP: c.ClientIP(), UserAgent: c.GetHeader("User-Agent")}
		if claims, ok := ClaimsFrom(c); ok {
			actor.UserID = claims.UserID
		}
		c.Request = c.Request.WithContext(service.WithActor(c.Request.Context(), actor))
		c.Next()
	}
}
