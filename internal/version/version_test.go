package version

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFullHasAppNamePrefix(t *testing.T) {
	assert.True(t, strings.HasPrefix(Full(), AppName+"/"))
}

func TestGitCommitIsNeverEmpty(t *testing.T) {
	assert.NotEmpty(t, GitCommit)
}
