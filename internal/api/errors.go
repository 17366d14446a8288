package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/staticforge/staticforge/internal/xerrors"
)

type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

func errorBody(code, message string) errorResponse {
	return errorResponse{Error: code, Message: message}
}

// isNotFound reports whether err is the store's not-found sentinel,
// for call sites that treat "missing" as a non-fatal empty result.
func isNotFound(err error) bool {
	return errors.Is(err, xerrors.ErrNotFound)
}

// mapErr writes the JSON error response matching err's classification
// (xerrors.Kind, xerrors.ErrNotFound, or an unclassified 500) and
// returns the status code written, for callers that need to branch on it.
func mapErr(c *gin.Context, err error) int {
	switch {
	case errors.Is(err, xerrors.ErrNotFound):
		c.JSON(http.StatusNotFound, errorBody("not_found", err.Error()))
		return http.StatusNotFound
	}

	switch xerrors.KindOf(err) {
	case xerrors.ConcurrencyConflict:
		c.JSON(http.StatusConflict, errorBody("conflict", err.Error()))
		return http.StatusConflict
	case xerrors.ConfigError:
		c.JSON(http.StatusBadRequest, errorBody("invalid_request", err.Error()))
		return http.StatusBadRequest
	case xerrors.CorruptArtifact, xerrors.DeterministicPhaseFailure:
		c.JSON(http.StatusUnprocessableEntity, errorBody("processing_failed", err.Error()))
		return http.StatusUnprocessableEntity
	case xerrors.TransientUpstream:
		c.JSON(http.StatusServiceUnavailable, errorBody("upstream_unavailable", err.Error()))
		return http.StatusServiceUnavailable
	default:
		c.JSON(http.StatusInternalServerError, errorBody("internal_error", err.Error()))
		return http.StatusInternalServerError
	}
}
