package middleware

import (
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"novytek/api/utils"
)

// CORSMiddleware lets the site's pages call the API with credentials and
// read the echoed session headers.
func CORSMiddleware(origins []string) gin.HandlerFunc {
	return cors.New(cors.Config{
		AllowOrigins:     origins,
		AllowMethods:     []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization", "X-API-KEY", utils.SessionHeader, utils.FirstSourceHeader},
		ExposeHeaders:    []string{utils.SessionHeader, utils.FirstSourceHeader},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	})
}
