package version

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetParsesVersion(t *testing.T) {
	v := Get()
	assert.Equal(t, Version, v.String())
}

func TestIsCompatible(t *testing.T) {
	ok, err := IsCompatible(Version)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = IsCompatible("0.9.0")
	require.NoError(t, err)
	assert.False(t, ok, "older major version is not compatible")

	ok, err = IsCompatible("2.0.0")
	require.NoError(t, err)
	assert.False(t, ok, "artifacts from a newer major version are not readable")

	_, err = IsCompatible("not-a-version")
	assert.Error(t, err)
}
