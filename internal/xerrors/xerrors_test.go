package xerrors

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPhaseErrorError(t *testing.T) {
	tests := []struct {
		name     string
		err      *PhaseError
		contains []string
	}{
		{
			name: "with step",
			err:  New(TransientUpstream, "crawl", "fetch", "timed out", nil),
			contains: []string{
				"crawl",
				"fetch",
				"timed out",
			},
		},
		{
			name: "without step",
			err:  New(CorruptArtifact, "deploy", "", "manifest unreadable", nil),
			contains: []string{
				"deploy",
				"manifest unreadable",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			errStr := tt.err.Error()
			for _, substr := range tt.contains {
				assert.Contains(t, errStr, substr)
			}
		})
	}
}

func TestPhaseErrorUnwrap(t *testing.T) {
	cause := errors.New("root cause")
	pe := New(TransientUpstream, "images", "transcode", "upstream failure", cause)

	assert.Equal(t, cause, pe.Unwrap())
	assert.True(t, errors.Is(pe, cause))
}

func TestNewDefaultsRetryableFromKind(t *testing.T) {
	retryable := New(TransientUpstream, "css", "", "rate limited", nil)
	assert.True(t, retryable.Retryable)

	terminal := New(ConfigError, "css", "", "missing config", nil)
	assert.False(t, terminal.Retryable)
}

func TestKindOf(t *testing.T) {
	pe := New(ConcurrencyConflict, "", "", "slot held", nil)
	assert.Equal(t, ConcurrencyConflict, KindOf(pe))

	wrapped := errors.Join(errors.New("context"), pe)
	assert.Equal(t, ConcurrencyConflict, KindOf(wrapped))

	assert.Equal(t, Kind(""), KindOf(errors.New("plain error")))
}

func TestIsRetryable(t *testing.T) {
	assert.True(t, IsRetryable(New(TransientUpstream, "measure", "", "503", nil)))
	assert.False(t, IsRetryable(New(DeterministicPhaseFailure, "fonts", "", "unsupported glyph", nil)))
	assert.False(t, IsRetryable(errors.New("plain error")))
}

func TestErrAlreadyInProgressIsConcurrencyConflict(t *testing.T) {
	assert.Equal(t, ConcurrencyConflict, KindOf(ErrAlreadyInProgress))
}

func TestErrNotFoundIsPlainSentinel(t *testing.T) {
	assert.True(t, errors.Is(ErrNotFound, ErrNotFound))
	assert.Equal(t, Kind(""), KindOf(ErrNotFound))
}
