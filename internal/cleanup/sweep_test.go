package cleanup

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewDefaultsNonPositiveRetainToTen(t *testing.T) {
	tests := []struct {
		name   string
		retain int
		want   int
	}{
		{"zero falls back to default", 0, defaultRetainBuilds},
		{"negative falls back to default", -5, defaultRetainBuilds},
		{"positive value is kept", 3, 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := New(nil, "/data", tt.retain)
			assert.Equal(t, tt.want, s.Retain)
		})
	}
}

func TestStopWithoutStartIsANoop(t *testing.T) {
	s := New(nil, "/data", 10)
	assert.NotPanics(t, func() { s.Stop() })
}
