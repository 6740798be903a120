package n5

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncode(t *testing.T) {
	assert.Equal(t, "1/4", Encode([]int{1, 4}))
	assert.Equal(t, "0/0/0", Encode([]int{0, 0, 0}))
	assert.Equal(t, "10", Encode([]int{10}))
	assert.Equal(t, "0", Encode([]int{}))
}

func TestDecode_InvertsEncode(t *testing.T) {
	for _, coord := range [][]int{{1, 4}, {0, 0, 0}, {10}, {3, 2, 1}} {
		key := Encode(coord)
		got, err := Decode(key, len(coord))
		require.NoError(t, err)
		assert.Equal(t, coord, got)
	}
}

func TestDecode_RejectsNonNumeric(t *testing.T) {
	_, err := Decode("1/x", 2)
	assert.Error(t, err)
}
