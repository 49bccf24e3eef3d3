package semver

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	v, err := Parse("v1.2.3-beta.1+build5")
	require.NoError(t, err)
	assert.Equal(t, &Version{Major: 1, Minor: 2, Patch: 3, Prerelease: "beta.1", Build: "build5"}, v)
	assert.Equal(t, "1.2.3-beta.1+build5", v.String())

	_, err = Parse("1.2")
	assert.Error(t, err)
	_, err = Parse("")
	assert.Error(t, err)
}

func TestCompare(t *testing.T) {
	assert.True(t, MustParse("1.0.0").LessThan(MustParse("1.0.1")))
	assert.True(t, MustParse("1.0.0-rc1").LessThan(MustParse("1.0.0")))
	assert.Equal(t, 0, MustParse("2.1.0").Compare(MustParse("v2.1.0")))
	assert.Equal(t, 1, MustParse("2.0.0").Compare(MustParse("1.9.9")))
}

func TestCompatible(t *testing.T) {
	assert.True(t, MustParse("1.0.0").Compatible(MustParse("1.4.2")))
	assert.False(t, MustParse("1.0.0").Compatible(MustParse("2.0.0")))
}

func TestMustParsePanics(t *testing.T) {
	assert.Panics(t, func() { MustParse("bogus") })
}
