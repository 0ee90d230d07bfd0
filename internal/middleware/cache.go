package middleware

import (
	"fmt"

	"github.com/gin-gonic/gin"
)

// CacheControl lets the page cache a response for maxAgeSeconds. Responses are
// per-user, so shared caches are excluded.
func CacheControl(maxAgeSeconds int) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Cache-Control", fmt.Sprintf("private, max-age=%d", maxAgeSeconds))
		c.Next()
	}
}

// NoStore marks live run state as uncacheable.
func NoStore() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Cache-Control", "no-store")
		c.Next()
	}
}
