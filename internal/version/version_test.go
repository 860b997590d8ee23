package version

import (
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGetShortVersion(t *testing.T) {
	originalVersion, originalCommit := Version, GitCommit
	t.Cleanup(func() {
		Version, GitCommit = originalVersion, originalCommit
	})

	Version = "v1.2.3"
	GitCommit = "0123456789abcdef"

	assert.Equal(t, "v1.2.3", GetVersion())
	assert.Equal(t, "v1.2.3-0123456", GetShortVersion())

	info := Get()
	assert.Equal(t, "0123456789abcdef", info.GitCommit)
	assert.Equal(t, runtime.Version(), info.GoVersion)
}
