// Package middleware — logger.go логирует входящие HTTP-запросы.
package middleware

import (
	"time"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
)

// LogRequests логирует каждый запрос: метод, путь, статус, длительность.
func LogRequests() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		log.WithFields(log.Fields{
			"method":   c.Request.Method,
			"path":     c.FullPath(),
			"status":   c.Writer.Status(),
			"duration": time.Since(start).Round(time.Millisecond).String(),
			"ip":       c.ClientIP(),
		}).Debug("HTTP-запрос")
	}
}
