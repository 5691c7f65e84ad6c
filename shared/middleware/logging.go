package middleware

import (
	"log"
	"time"

	"github.com/gin-gonic/gin"
)

// LoggingMiddleware logs one line per request once the handler chain returns.
func LoggingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path

		c.Next()

		userID, _ := GetUserID(c)
		if userID == "" {
			userID = "-"
		}
		log.Printf("%s %s %d %s user=%s", c.Request.Method, path, c.Writer.Status(), time.Since(start), userID)
	}
}
