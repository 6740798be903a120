package concat

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLinkCount(t *testing.T) {
	cases := []struct {
		name       string
		dims       []int64
		chunkShape []int64
		want       int64
	}{
		{"exact multiple", []int64{4, 4}, []int64{2, 2}, 4},
		{"ragged tail", []int64{5, 4}, []int64{2, 2}, 6},
		{"single chunk", []int64{3}, []int64{8}, 1},
		{"3d", []int64{4, 6, 3}, []int64{2, 2, 2}, 2 * 3 * 2},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			got := LinkCount(c.dims, c.chunkShape, 0, '.', '.')
			assert.Equal(t, c.want, got)
		})
	}
}

func TestCeilDiv(t *testing.T) {
	assert.Equal(t, int64(2), ceilDiv(4, 2))
	assert.Equal(t, int64(3), ceilDiv(5, 2))
	assert.Equal(t, int64(0), ceilDiv(5, 0))
}
