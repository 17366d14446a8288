package api

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"

	"github.com/staticforge/staticforge/internal/xerrors"
)

func TestIsNotFound(t *testing.T) {
	assert.True(t, isNotFound(xerrors.ErrNotFound))
	assert.False(t, isNotFound(errors.New("something else")))
}

func TestMapErrStatusCodes(t *testing.T) {
	gin.SetMode(gin.TestMode)

	tests := []struct {
		name string
		err  error
		want int
	}{
		{"not found", xerrors.ErrNotFound, http.StatusNotFound},
		{"concurrency conflict", xerrors.New(xerrors.ConcurrencyConflict, "", "", "slot held", nil), http.StatusConflict},
		{"config error", xerrors.New(xerrors.ConfigError, "", "", "bad config", nil), http.StatusBadRequest},
		{"corrupt artifact", xerrors.New(xerrors.CorruptArtifact, "", "", "bad manifest", nil), http.StatusUnprocessableEntity},
		{"deterministic phase failure", xerrors.New(xerrors.DeterministicPhaseFailure, "", "", "skipped", nil), http.StatusUnprocessableEntity},
		{"transient upstream", xerrors.New(xerrors.TransientUpstream, "", "", "timed out", nil), http.StatusServiceUnavailable},
		{"unclassified", errors.New("boom"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			c, _ := gin.CreateTestContext(w)

			got := mapErr(c, tt.err)

			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.want, w.Code)
		})
	}
}
