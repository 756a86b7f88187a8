package middleware

import (
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

func CORS() gin.HandlerFunc {
	return cors.New(cors.Config{
		AllowAllOrigins: true,
		AllowMethods:    []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:    []string{"Origin", "Content-Type", "Authorization", "X-Internal-Secret"},
		ExposeHeaders:   []string{"X-RateLimit-Limit", "X-RateLimit-Remaining"},
		MaxAge:          12 * time.Hour,
	})
}
