package concat

import (
	"github.com/chunklink/tsconcat/store"
)

// Plan captures a concatenation: the two per-input length vectors along
// the concatenation axis, plus the derived (not persisted) per-input
// element offsets.
//
// PhysicalShape is what gets written into the output metadata's
// "dimensions"/"shape" field and is the extent the fabricated chunk
// grid actually covers (sum of PaddedCatlens on Catdim), so a reader
// that ignores the "custom" block still sees a shape matching the
// chunks on disk. VirtualShape is the logical shape ConcatDataset
// exposes to readers/writers (sum of VirtualCatlens on Catdim), never
// larger than PhysicalShape.
type Plan struct {
	Catdim         int
	VirtualCatlens []int64
	PaddedCatlens  []int64
	Offsets        []int64
	PhysicalShape  []int64
	VirtualShape   []int64
}

// BuildPlan validates inputs via CheckCompatible and computes the Plan.
// PaddedCatlens[i] rounds VirtualCatlens[i] up to a whole number of
// chunks on catdim for every interior input, which keeps each input's
// chunk region from spilling into its successor's. The last input has no
// successor, so its padded length stays equal to its virtual length and
// its trailing partial chunk becomes the output's trailing partial chunk.
func BuildPlan(inputs []*store.Descriptor, catdim int, outDriver store.Driver, outDimSep byte) (*Plan, error) {
	if err := CheckCompatible(inputs, catdim, outDriver, outDimSep); err != nil {
		return nil, err
	}

	n := len(inputs)
	virtual := make([]int64, n)
	padded := make([]int64, n)
	offsets := make([]int64, n)

	chunkExtent := inputs[0].ChunkShape[catdim]
	var runningOffset int64
	var totalVirtual int64
	for i, in := range inputs {
		virtual[i] = in.Shape[catdim]
		if i < n-1 {
			padded[i] = ceilToMultiple(virtual[i], chunkExtent)
		} else {
			padded[i] = virtual[i]
		}
		offsets[i] = runningOffset
		runningOffset += padded[i]
		totalVirtual += virtual[i]
	}

	virtualShape := append([]int64(nil), inputs[0].Shape...)
	virtualShape[catdim] = totalVirtual

	physicalShape := append([]int64(nil), inputs[0].Shape...)
	physicalShape[catdim] = runningOffset

	return &Plan{
		Catdim:         catdim,
		VirtualCatlens: virtual,
		PaddedCatlens:  padded,
		Offsets:        offsets,
		PhysicalShape:  physicalShape,
		VirtualShape:   virtualShape,
	}, nil
}

func ceilToMultiple(n, m int64) int64 {
	if m <= 0 {
		return n
	}
	return ((n + m - 1) / m) * m
}

// Custom is the JSON shape of the "custom" metadata block: everything
// concat-specific nests under this single key, so readers that don't
// understand it can still open the store.
type Custom struct {
	Catdim         int     `json:"catdim"`
	PaddedCatlens  []int64 `json:"padded_catlens"`
	VirtualCatlens []int64 `json:"virtual_catlens"`
}

func (p *Plan) ToCustom() Custom {
	return Custom{
		Catdim:         p.Catdim,
		PaddedCatlens:  p.PaddedCatlens,
		VirtualCatlens: p.VirtualCatlens,
	}
}
