package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestItemSize(t *testing.T) {
	cases := map[string]int{
		"bool": 1, "int8": 1, "uint8": 1,
		"int16": 2, "uint16": 2,
		"int32": 4, "uint32": 4, "float32": 4,
		"int64": 8, "uint64": 8, "float64": 8, "complex64": 8,
		"complex128": 16,
	}
	for dtype, want := range cases {
		got, err := ItemSize(dtype)
		assert.NoError(t, err)
		assert.Equal(t, want, got)
	}
}

func TestItemSize_Unknown(t *testing.T) {
	_, err := ItemSize("nonsense")
	assert.Error(t, err)
}
