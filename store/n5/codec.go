package n5

import (
	"strconv"
	"strings"
)

// Encode joins chunk-grid coordinates with "/", N5's only dimension
// separator, in the store's natural (dimension-major) order.
func Encode(coord []int) string {
	if len(coord) == 0 {
		return "0"
	}
	parts := make([]string, len(coord))
	for i, c := range coord {
		parts[i] = strconv.Itoa(c)
	}
	return strings.Join(parts, "/")
}

// Decode is the inverse of Encode.
func Decode(key string, rank int) ([]int, error) {
	if rank == 0 {
		return []int{}, nil
	}
	parts := strings.Split(key, "/")
	coord := make([]int, len(parts))
	for i, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil {
			return nil, err
		}
		coord[i] = n
	}
	return coord, nil
}
