package concat

import (
	"fmt"
	"reflect"

	"github.com/chunklink/tsconcat/store"
)

// CheckCompatible enforces the cross-input invariants required for
// linkable concatenation: rank, chunk shape, dtype, compression and
// off-axis shape must match across all inputs. It is run before any
// file is written; every violation is reported as
// IncompatibleInputsError (or the more specific NotEnoughInputsError /
// InvalidDimensionSeparatorError). A catdim extent that is not
// chunk-aligned is not a violation — BuildPlan pad-rounds interior
// inputs to the next chunk boundary and masks the padding in the view.
func CheckCompatible(inputs []*store.Descriptor, catdim int, outDriver store.Driver, outDimSep byte) error {
	if len(inputs) < 2 {
		return &store.NotEnoughInputsError{Count: len(inputs)}
	}
	switch outDriver {
	case store.DriverZarr:
		if outDimSep != '/' && outDimSep != '.' {
			return &store.InvalidDimensionSeparatorError{Separator: string(outDimSep)}
		}
	case store.DriverN5:
		if outDimSep != '/' {
			return &store.InvalidDimensionSeparatorError{Separator: string(outDimSep)}
		}
	}

	first := inputs[0]
	rank := first.Rank()
	if catdim < 0 || catdim >= rank {
		return &store.IncompatibleInputsError{
			Reason: fmt.Sprintf("catdim %d out of bounds for rank %d", catdim, rank),
		}
	}

	for i, in := range inputs[1:] {
		idx := i + 1
		if in.Rank() != rank {
			return &store.IncompatibleInputsError{
				Reason: fmt.Sprintf("input %d has rank %d, want %d", idx, in.Rank(), rank),
			}
		}
		if !reflect.DeepEqual(in.ChunkShape, first.ChunkShape) {
			return &store.IncompatibleInputsError{
				Reason: fmt.Sprintf("input %d chunk shape %v does not match input 0's %v", idx, in.ChunkShape, first.ChunkShape),
			}
		}
		if in.DType != first.DType {
			return &store.IncompatibleInputsError{
				Reason: fmt.Sprintf("input %d dtype %q does not match input 0's %q", idx, in.DType, first.DType),
			}
		}
		if !reflect.DeepEqual(in.Compression, first.Compression) {
			return &store.IncompatibleInputsError{
				Reason: fmt.Sprintf("input %d compression %+v does not match input 0's %+v", idx, in.Compression, first.Compression),
			}
		}
		for d := 0; d < rank; d++ {
			if d == catdim {
				continue
			}
			if in.Shape[d] != first.Shape[d] {
				return &store.IncompatibleInputsError{
					Reason: fmt.Sprintf("input %d shape %v disagrees with input 0's %v on axis %d", idx, in.Shape, first.Shape, d),
				}
			}
		}
	}

	return nil
}
