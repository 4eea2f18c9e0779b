package cmd

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPIDAndPortFiles(t *testing.T) {
	t.Setenv("HANASH_HOME", t.TempDir())

	assert.Zero(t, readPID())
	savePID()
	assert.NotZero(t, readPID())
	removePID()
	assert.Zero(t, readPID())

	assert.Zero(t, readActivePort())
	savePort(4567)
	assert.Equal(t, 4567, readActivePort())
}

func TestEnsureAuthToken_Stable(t *testing.T) {
	t.Setenv("HANASH_HOME", t.TempDir())

	first := ensureAuthToken()
	require.NotEmpty(t, first)
	assert.Equal(t, first, ensureAuthToken(), "token must persist across calls")
}
