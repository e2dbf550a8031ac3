package buildinfo

import (
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGet(t *testing.T) {
	p := Get()
	assert.Equal(t, "dev", p.Version)
	assert.Equal(t, "unknown", p.GitCommit)
	assert.Equal(t, runtime.Version(), p.GoVersion)
	assert.Equal(t, "phaserun dev (commit unknown, built unknown, "+runtime.Version()+")", p.String())
}
