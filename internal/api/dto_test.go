package api

import (
	"strings"
	"testing"

	"github.com/gin-gonic/gin/binding"
	"github.com/stretchr/testify/assert"
)

func TestCreateSiteRequestValidation(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		wantErr bool
	}{
		{"valid", `{"name":"my-blog","sourceUrl":"https://example.com"}`, false},
		{"missing name", `{"sourceUrl":"https://example.com"}`, true},
		{"missing sourceUrl", `{"name":"my-blog"}`, true},
		{"malformed sourceUrl", `{"name":"my-blog","sourceUrl":"not-a-url"}`, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var req createSiteRequest
			err := binding.JSON.BindBody([]byte(tt.body), &req)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestEnqueueBuildRequestScopeOneOf(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		wantErr bool
	}{
		{"empty scope is allowed", `{}`, false},
		{"full is allowed", `{"scope":"full"}`, false},
		{"partial is allowed", `{"scope":"partial"}`, false},
		{"invalid scope rejected", `{"scope":"bogus"}`, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var req enqueueBuildRequest
			err := binding.JSON.BindBody([]byte(tt.body), &req)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestLiveEditChatRequestActionOneOf(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		wantErr bool
	}{
		{"plan", `{"action":"plan","instruction":"make it faster"}`, false},
		{"execute", `{"action":"execute","planId":"plan-1"}`, false},
		{"missing action", `{"instruction":"make it faster"}`, true},
		{"invalid action", `{"action":"delete"}`, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var req liveEditChatRequest
			err := binding.JSON.BindBody([]byte(tt.body), &req)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestLiveEditAuditRequestTypeOneOf(t *testing.T) {
	for _, valid := range []string{"speed", "bugs", "visual"} {
		var req liveEditAuditRequest
		err := binding.JSON.BindBody([]byte(`{"type":"`+valid+`"}`), &req)
		assert.NoError(t, err, valid)
	}

	var req liveEditAuditRequest
	err := binding.JSON.BindBody([]byte(`{"type":"layout"}`), &req)
	assert.Error(t, err)
}

func TestWebhookRequestRequiresSiteIDAndNonce(t *testing.T) {
	var req webhookRequest
	assert.Error(t, binding.JSON.BindBody([]byte(`{}`), &req))
	assert.Error(t, binding.JSON.BindBody([]byte(`{"siteId":"abc"}`), &req))
	assert.NoError(t, binding.JSON.BindBody([]byte(`{"siteId":"abc","nonce":"n1"}`), &req))
}

func TestCreateOverrideRequestRequiresPatternAndSettings(t *testing.T) {
	var req createOverrideRequest
	body := `{"pattern":"*.png","settings":{"images":{"quality":80}}}`
	assert.NoError(t, binding.JSON.BindBody([]byte(body), &req))
	assert.True(t, strings.Contains(req.Pattern, "png"))

	var missing createOverrideRequest
	assert.Error(t, binding.JSON.BindBody([]byte(`{"pattern":"*.png"}`), &missing))
}
