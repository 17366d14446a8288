package api

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func TestBearerAuthRejectsMissingHeader(t *testing.T) {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, r := gin.CreateTestContext(w)
	r.Use(bearerAuth("secret"))
	r.GET("/", func(c *gin.Context) { c.Status(http.StatusOK) })

	c.Request = httptest.NewRequest(http.MethodGet, "/", nil)
	r.ServeHTTP(w, c.Request)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestBearerAuthRejectsWrongToken(t *testing.T) {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	_, r := gin.CreateTestContext(w)
	r.Use(bearerAuth("secret"))
	r.GET("/", func(c *gin.Context) { c.Status(http.StatusOK) })

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer wrong")
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestBearerAuthAcceptsCorrectToken(t *testing.T) {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	_, r := gin.CreateTestContext(w)
	r.Use(bearerAuth("secret"))
	r.GET("/", func(c *gin.Context) { c.Status(http.StatusOK) })

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer secret")
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
}

func TestBearerAuthRejectsMalformedPrefix(t *testing.T) {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	_, r := gin.CreateTestContext(w)
	r.Use(bearerAuth("secret"))
	r.GET("/", func(c *gin.Context) { c.Status(http.StatusOK) })

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Basic secret")
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestVerifyWebhookSignatureAcceptsMatchingDigest(t *testing.T) {
	body := []byte(`{"siteId":"abc","nonce":"123"}`)
	sig := hmacHex(t, "shared-secret", body)

	assert.True(t, verifyWebhookSignature("shared-secret", body, sig))
}

func TestVerifyWebhookSignatureRejectsWrongSecret(t *testing.T) {
	body := []byte(`{"siteId":"abc","nonce":"123"}`)
	sig := hmacHex(t, "shared-secret", body)

	assert.False(t, verifyWebhookSignature("other-secret", body, sig))
}

func TestVerifyWebhookSignatureRejectsTamperedBody(t *testing.T) {
	sig := hmacHex(t, "shared-secret", []byte(`{"siteId":"abc","nonce":"123"}`))

	assert.False(t, verifyWebhookSignature("shared-secret", []byte(`{"siteId":"abc","nonce":"999"}`), sig))
}

func hmacHex(t *testing.T, secret string, body []byte) string {
	t.Helper()
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}
