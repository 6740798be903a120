package zarr

import (
	"strconv"
	"strings"
)

// Encode joins chunk-grid coordinates into a Zarr v2 chunk key. With
// separator "." the result is a single filename at the store root; with
// "/" each coordinate becomes a nested directory component. 0-d arrays
// (empty coord) encode to "0".
func Encode(coord []int, sep byte) string {
	if len(coord) == 0 {
		return "0"
	}
	if len(coord) == 1 {
		return strconv.Itoa(coord[0])
	}
	var sb strings.Builder
	for i, c := range coord {
		if i > 0 {
			sb.WriteByte(sep)
		}
		sb.WriteString(strconv.Itoa(c))
	}
	return sb.String()
}

// Decode is the inverse of Encode: given a chunk key and the expected
// rank, it recovers the chunk-grid coordinate. Coordinates are base-10
// with no padding, so this is a plain split-and-parse.
func Decode(key string, sep byte, rank int) ([]int, error) {
	if rank == 0 {
		return []int{}, nil
	}
	parts := strings.Split(key, string(sep))
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
