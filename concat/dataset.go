package concat

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math"

	"github.com/gomlx/gomlx/pkg/core/tensors"
	"gocloud.dev/blob"
	"gocloud.dev/blob/fileblob"

	"github.com/chunklink/tsconcat/store"
	n5pkg "github.com/chunklink/tsconcat/store/n5"
	zarrpkg "github.com/chunklink/tsconcat/store/zarr"
)

// ConcatDataset opens a fabricated output store and hides the
// chunk-alignment padding behind a boolean mask, so a reader sees
// exactly VirtualShape elements along catdim without ever touching a
// padded cell.
type ConcatDataset struct {
	bucket   *blob.Bucket
	accessor store.ChunkAccessor
	desc     *store.Descriptor
	custom   Custom
	// paddedMask has one entry per physical index along catdim; true
	// means the cell belongs to a real input element, false means it is
	// chunk-alignment padding invisible to the virtual view.
	paddedMask []bool
}

// Open loads a fabricated store's metadata and its "custom" concat
// block, and readies it for masked reads and writes.
func Open(ctx context.Context, root string, driver store.Driver) (*ConcatDataset, error) {
	var desc *store.Descriptor
	var accessor store.ChunkAccessor
	var custom Custom

	switch driver {
	case store.DriverZarr:
		meta, err := zarrpkg.LoadPath(root)
		if err != nil {
			return nil, err
		}
		d, err := meta.ToDescriptor(root)
		if err != nil {
			return nil, err
		}
		a, err := zarrpkg.NewAccessor(meta)
		if err != nil {
			return nil, err
		}
		if err := unmarshalCustom(meta.Extra, root, &custom); err != nil {
			return nil, err
		}
		desc, accessor = d, a
	case store.DriverN5:
		meta, err := n5pkg.LoadPath(root)
		if err != nil {
			return nil, err
		}
		d, err := meta.ToDescriptor(root)
		if err != nil {
			return nil, err
		}
		a, err := n5pkg.NewAccessor(meta)
		if err != nil {
			return nil, err
		}
		if err := unmarshalCustom(meta.Extra, root, &custom); err != nil {
			return nil, err
		}
		desc, accessor = d, a
	default:
		return nil, &store.UnknownDriverError{Token: string(driver)}
	}

	// NoTempDir is required here: the output tree's chunk "files" are
	// symlinks into the input stores, and a write must land on the
	// linked input chunk itself. fileblob's default write path stages
	// to a temp file and renames it over the target, which would
	// replace the symlink with a plain file instead of writing through
	// it; NoTempDir opens the target path directly (following the
	// link) so writes propagate to the real input chunk.
	bucket, err := fileblob.OpenBucket(root, &fileblob.Options{NoTempDir: true})
	if err != nil {
		return nil, &store.IoError{Op: "open bucket", Path: root, Err: err}
	}

	mask := make([]bool, 0, desc.Shape[custom.Catdim])
	for i, padded := range custom.PaddedCatlens {
		virtual := custom.VirtualCatlens[i]
		for k := int64(0); k < padded; k++ {
			mask = append(mask, k < virtual)
		}
	}

	return &ConcatDataset{bucket: bucket, accessor: accessor, desc: desc, custom: custom, paddedMask: mask}, nil
}

func unmarshalCustom(extra map[string]json.RawMessage, root string, custom *Custom) error {
	raw, ok := extra["custom"]
	if !ok {
		return &store.MalformedMetadataError{Path: root, Err: fmt.Errorf("missing custom block")}
	}
	if err := json.Unmarshal(raw, custom); err != nil {
		return &store.MalformedMetadataError{Path: root, Err: fmt.Errorf("parsing custom block: %w", err)}
	}
	if len(custom.PaddedCatlens) == 0 || len(custom.PaddedCatlens) != len(custom.VirtualCatlens) {
		return &store.MalformedMetadataError{
			Path: root,
			Err:  fmt.Errorf("custom block catlens mismatch: %d padded vs %d virtual", len(custom.PaddedCatlens), len(custom.VirtualCatlens)),
		}
	}
	return nil
}

// Close releases the underlying bucket.
func (cd *ConcatDataset) Close() error { return cd.bucket.Close() }

// PhysicalShape is the on-disk extent, including catdim padding.
func (cd *ConcatDataset) PhysicalShape() []int64 { return append([]int64(nil), cd.desc.Shape...) }

// VirtualShape is the logical extent a caller should treat as the
// dataset's real size; it differs from PhysicalShape only on catdim.
func (cd *ConcatDataset) VirtualShape() []int64 {
	out := append([]int64(nil), cd.desc.Shape...)
	out[cd.custom.Catdim] = int64(countTrue(cd.paddedMask))
	return out
}

// Catdim is the concatenation axis recorded in the custom block.
func (cd *ConcatDataset) Catdim() int { return cd.custom.Catdim }

// Read fetches the elements selected by index, one Selector per axis
// (missing trailing axes default to Full()). Every axis except catdim
// must select Full; masked or fancy indexing off-axis is the store
// driver's job, not this view's.
func (cd *ConcatDataset) Read(ctx context.Context, index ...Selector) ([]byte, error) {
	mask, err := cd.catMask(index)
	if err != nil {
		return nil, err
	}
	return cd.readMasked(ctx, mask)
}

// ReadAll reads every virtual element, in order, along catdim.
func (cd *ConcatDataset) ReadAll(ctx context.Context) ([]byte, error) {
	return cd.readMasked(ctx, cd.paddedMask)
}

// Write stores data into the elements selected by index, leaving every
// other physical cell (including catdim padding) untouched. Same
// off-axis restriction as Read.
func (cd *ConcatDataset) Write(ctx context.Context, data []byte, index ...Selector) error {
	mask, err := cd.catMask(index)
	if err != nil {
		return err
	}
	return cd.writeMasked(ctx, mask, data)
}

// WriteAll stores data as the full virtual-shaped array.
func (cd *ConcatDataset) WriteAll(ctx context.Context, data []byte) error {
	return cd.writeMasked(ctx, cd.paddedMask, data)
}

func (cd *ConcatDataset) catMask(index []Selector) ([]bool, error) {
	remapped := remapSelector(index, cd.paddedMask, cd.custom.Catdim)
	for d, sel := range remapped {
		if d == cd.custom.Catdim {
			continue
		}
		if sel.Kind != SelFull {
			return nil, fmt.Errorf("tsconcat: indexing axis %d with anything but a full slice is not supported", d)
		}
	}
	return remapped[cd.custom.Catdim].Bools, nil
}

// outIndexForCat maps each physical catdim index to its position in the
// mask-selected output, or -1 if the mask excludes it.
func outIndexForCat(mask []bool) []int {
	out := make([]int, len(mask))
	cursor := 0
	for i, b := range mask {
		if b {
			out[i] = cursor
			cursor++
		} else {
			out[i] = -1
		}
	}
	return out
}

func (cd *ConcatDataset) readMasked(ctx context.Context, mask []bool) ([]byte, error) {
	itemSize := cd.accessor.ItemSize()
	physShape := cd.desc.Shape
	outShape := append([]int64(nil), physShape...)
	outShape[cd.custom.Catdim] = int64(countTrue(mask))

	out := make([]byte, product(outShape)*int64(itemSize))
	outStrides := stridesOf(outShape)

	err := cd.eachMaskedChunk(ctx, mask, func(chunkBytes []byte, axisPairs [][]pair) {
		copyMaskedND(out, outStrides, chunkBytes, stridesOf(cd.accessor.ChunkShape()), axisPairs, itemSize)
	})
	return out, err
}

func (cd *ConcatDataset) writeMasked(ctx context.Context, mask []bool, data []byte) error {
	itemSize := cd.accessor.ItemSize()
	physShape := cd.desc.Shape
	inShape := append([]int64(nil), physShape...)
	inShape[cd.custom.Catdim] = int64(countTrue(mask))
	inStrides := stridesOf(inShape)

	grid := gridShapeOf(physShape, cd.accessor.ChunkShape())
	outIdx := outIndexForCat(mask)

	return gridIterate(grid, func(coord []int) error {
		axisPairs, hasAny := cd.chunkAxisPairs(coord, mask, outIdx)
		if !hasAny {
			return nil
		}
		chunkBytes, err := cd.accessor.ReadChunk(ctx, cd.bucket, coord)
		if err != nil {
			return err
		}
		copyMaskedND(chunkBytes, stridesOf(cd.accessor.ChunkShape()), data, inStrides, axisPairs, itemSize)
		return cd.accessor.WriteChunk(ctx, cd.bucket, coord, chunkBytes)
	})
}

// pair is one (relative-offset-within-chunk, position-in-output) match
// for a single axis.
type pair struct {
	rel int
	out int
}

// chunkAxisPairs computes, for chunk coordinate coord, the per-axis list
// of (chunk-local offset, output index) pairs that are actually
// selected: every position for non-catdim axes, clipped to the physical
// shape's bounds at a trailing partial chunk, and only the mask-true
// positions for catdim.
func (cd *ConcatDataset) chunkAxisPairs(coord []int, mask []bool, outIdxForCat []int) ([][]pair, bool) {
	rank := len(cd.desc.Shape)
	chunkShape := cd.accessor.ChunkShape()
	axisPairs := make([][]pair, rank)
	hasAny := true

	for d := 0; d < rank; d++ {
		start := int64(coord[d]) * chunkShape[d]
		end := start + chunkShape[d]
		if end > cd.desc.Shape[d] {
			end = cd.desc.Shape[d]
		}

		if d == cd.custom.Catdim {
			var ps []pair
			for g := start; g < end; g++ {
				if mask[g] {
					ps = append(ps, pair{rel: int(g - start), out: outIdxForCat[g]})
				}
			}
			axisPairs[d] = ps
		} else {
			ps := make([]pair, 0, end-start)
			for g := start; g < end; g++ {
				ps = append(ps, pair{rel: int(g - start), out: int(g)})
			}
			axisPairs[d] = ps
		}
		if len(axisPairs[d]) == 0 {
			hasAny = false
		}
	}
	return axisPairs, hasAny
}

// eachMaskedChunk walks every chunk that intersects mask and invokes fn
// with that chunk's decoded bytes and per-axis selected-position pairs.
// Chunks with no selected catdim position are skipped without reading.
func (cd *ConcatDataset) eachMaskedChunk(ctx context.Context, mask []bool, fn func(chunkBytes []byte, axisPairs [][]pair)) error {
	grid := gridShapeOf(cd.desc.Shape, cd.accessor.ChunkShape())
	outIdx := outIndexForCat(mask)

	return gridIterate(grid, func(coord []int) error {
		axisPairs, hasAny := cd.chunkAxisPairs(coord, mask, outIdx)
		if !hasAny {
			return nil
		}
		chunkBytes, err := cd.accessor.ReadChunk(ctx, cd.bucket, coord)
		if err != nil {
			return err
		}
		fn(chunkBytes, axisPairs)
		return nil
	})
}

// copyMaskedND copies every combination of axisPairs' selected positions
// between dst and src, addressed via their respective strides.
func copyMaskedND(dst []byte, dstStrides []int64, src []byte, srcStrides []int64, axisPairs [][]pair, itemSize int) {
	rank := len(axisPairs)
	if rank == 0 {
		copy(dst[:itemSize], src[:itemSize])
		return
	}

	var iterate func(dim int, srcIdx, dstIdx int64)
	iterate = func(dim int, srcIdx, dstIdx int64) {
		if dim == rank {
			s := srcIdx * int64(itemSize)
			d := dstIdx * int64(itemSize)
			copy(dst[d:d+int64(itemSize)], src[s:s+int64(itemSize)])
			return
		}
		for _, p := range axisPairs[dim] {
			iterate(dim+1, srcIdx+int64(p.rel)*srcStrides[dim], dstIdx+int64(p.out)*dstStrides[dim])
		}
	}
	iterate(0, 0, 0)
}

func stridesOf(shape []int64) []int64 {
	s := make([]int64, len(shape))
	stride := int64(1)
	for i := len(shape) - 1; i >= 0; i-- {
		s[i] = stride
		stride *= shape[i]
	}
	return s
}

func gridShapeOf(shape, chunkShape []int64) []int64 {
	grid := make([]int64, len(shape))
	for i := range shape {
		grid[i] = ceilDiv(shape[i], chunkShape[i])
	}
	return grid
}

func product(shape []int64) int64 {
	n := int64(1)
	for _, s := range shape {
		n *= s
	}
	return n
}

func countTrue(mask []bool) int {
	n := 0
	for _, b := range mask {
		if b {
			n++
		}
	}
	return n
}

// ReadTensor reads the full virtual array into a gomlx tensor, for
// feeding a concatenated store straight into a training pipeline.
func (cd *ConcatDataset) ReadTensor(ctx context.Context) (*tensors.Tensor, error) {
	raw, err := cd.ReadAll(ctx)
	if err != nil {
		return nil, err
	}
	shape := cd.VirtualShape()
	dims := make([]int, len(shape))
	for i, s := range shape {
		dims[i] = int(s)
	}

	switch cd.desc.DType {
	case "float32":
		return tensors.FromFlatDataAndDimensions(decodeFloat32(raw), dims...), nil
	case "float64":
		return tensors.FromFlatDataAndDimensions(decodeFloat64(raw), dims...), nil
	case "int32":
		return tensors.FromFlatDataAndDimensions(decodeInt32(raw), dims...), nil
	case "int64":
		return tensors.FromFlatDataAndDimensions(decodeInt64(raw), dims...), nil
	default:
		return nil, fmt.Errorf("tsconcat: ReadTensor does not support dtype %q", cd.desc.DType)
	}
}

func decodeFloat32(raw []byte) []float32 {
	out := make([]float32, len(raw)/4)
	for i := range out {
		out[i] = math.Float32frombits(binary.LittleEndian.Uint32(raw[i*4:]))
	}
	return out
}

func decodeFloat64(raw []byte) []float64 {
	out := make([]float64, len(raw)/8)
	for i := range out {
		out[i] = math.Float64frombits(binary.LittleEndian.Uint64(raw[i*8:]))
	}
	return out
}

func decodeInt32(raw []byte) []int32 {
	out := make([]int32, len(raw)/4)
	for i := range out {
		out[i] = int32(binary.LittleEndian.Uint32(raw[i*4:]))
	}
	return out
}

func decodeInt64(raw []byte) []int64 {
	out := make([]int64, len(raw)/8)
	for i := range out {
		out[i] = int64(binary.LittleEndian.Uint64(raw[i*8:]))
	}
	return out
}
