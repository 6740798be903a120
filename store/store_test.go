package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDriver(t *testing.T) {
	d, err := ParseDriver("zarr")
	require.NoError(t, err)
	assert.Equal(t, DriverZarr, d)

	d, err = ParseDriver("n5")
	require.NoError(t, err)
	assert.Equal(t, DriverN5, d)

	_, err = ParseDriver("hdf5")
	require.Error(t, err)
	var want *UnknownDriverError
	assert.ErrorAs(t, err, &want)
}

func TestParseDimSep(t *testing.T) {
	sep, err := ParseDimSep("/")
	require.NoError(t, err)
	assert.Equal(t, byte('/'), sep)

	sep, err = ParseDimSep(".")
	require.NoError(t, err)
	assert.Equal(t, byte('.'), sep)

	for _, bad := range []string{"", ",", "a.b", "//"} {
		_, err = ParseDimSep(bad)
		require.Error(t, err)
		var want *InvalidDimensionSeparatorError
		assert.ErrorAs(t, err, &want)
	}
}

func TestDescriptor_Rank(t *testing.T) {
	d := &Descriptor{Shape: []int64{2, 3, 4}}
	assert.Equal(t, 3, d.Rank())
}

func TestIsIncompatibleInputs(t *testing.T) {
	assert.True(t, IsIncompatibleInputs(&IncompatibleInputsError{Reason: "x"}))
	assert.False(t, IsIncompatibleInputs(&NotEnoughInputsError{Count: 1}))
}

func TestIsMalformedMetadata(t *testing.T) {
	assert.True(t, IsMalformedMetadata(&MalformedMetadataError{Path: "p"}))
	assert.False(t, IsMalformedMetadata(&IoError{Op: "read"}))
}
