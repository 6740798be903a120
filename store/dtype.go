package store

import "fmt"

// ItemSize returns the byte size of one element of a canonical dtype
// name (e.g. "float32", "int64", "bool"), the common currency both the
// N5 and Zarr metadata adapters normalize their native dtype tokens
// into.
func ItemSize(canonical string) (int, error) {
	switch canonical {
	case "bool", "int8", "uint8":
		return 1, nil
	case "int16", "uint16":
		return 2, nil
	case "int32", "uint32", "float32":
		return 4, nil
	case "int64", "uint64", "float64", "complex64":
		return 8, nil
	case "complex128":
		return 16, nil
	default:
		return 0, fmt.Errorf("tsconcat: unsupported dtype %q", canonical)
	}
}
