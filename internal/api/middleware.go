package api

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"log/slog"
	"time"

	"github.com/gin-gonic/gin"
)

// bearerAuth compares the Authorization header's bearer token against
// masterKey in constant time, never via ==, so response-time doesn't
// leak how many leading bytes matched.
func bearerAuth(masterKey string) gin.HandlerFunc {
	return func(c *gin.Context) {
		const prefix = "Bearer "
		header := c.GetHeader("Authorization")
		if len(header) <= len(prefix) || header[:len(prefix)] != prefix {
			c.AbortWithStatusJSON(401, errorBody("unauthorized", "missing or malformed Authorization header"))
			return
		}
		token := header[len(prefix):]
		if subtle.ConstantTimeCompare([]byte(token), []byte(masterKey)) != 1 {
			c.AbortWithStatusJSON(401, errorBody("unauthorized", "invalid bearer token"))
			return
		}
		c.Next()
	}
}

// requestLogger is a minimal structured access log, grounded on the
// teacher's gin middleware in cmd/tarsy/main.go.
func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		slog.Info("http request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"duration", time.Since(start),
		)
	}
}

func securityHeaders() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("X-Content-Type-Options", "nosniff")
		c.Next()
	}
}

// verifyWebhookSignature checks the X-Webhook-Signature header against
// an HMAC-SHA256 of body keyed by secret, using a constant-time
// comparison of the hex digests.
func verifyWebhookSignature(secret string, body []byte, signature string) bool {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	expected := hex.EncodeToString(mac.Sum(nil))
	return subtle.ConstantTimeCompare([]byte(expected), []byte(signature)) == 1
}
