package concat

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/chunklink/tsconcat/store"
)

func writeZarrInput(t *testing.T, root string, shape, chunks []int64, chunkData map[string][]float32) {
	t.Helper()
	writeZarrInputSep(t, root, shape, chunks, ".", chunkData)
}

// writeZarrInputSep lays out a minimal Zarr v2 store with float32 data
// and the given dimension separator; "/"-separated keys become nested
// directories.
func writeZarrInputSep(t *testing.T, root string, shape, chunks []int64, sep string, chunkData map[string][]float32) {
	t.Helper()
	require.NoError(t, os.MkdirAll(root, 0o755))

	doc := map[string]any{
		"zarr_format":         2,
		"shape":               shape,
		"chunks":              chunks,
		"dtype":               "<f4",
		"compressor":          nil,
		"fill_value":          0,
		"order":               "C",
		"dimension_separator": sep,
	}
	raw, err := json.Marshal(doc)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(root, ".zarray"), raw, 0o644))

	for key, floats := range chunkData {
		buf := make([]byte, len(floats)*4)
		for i, f := range floats {
			binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
		}
		path := filepath.Join(root, filepath.FromSlash(key))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, buf, 0o644))
	}
}

func readFloats(t *testing.T, raw []byte) []float32 {
	t.Helper()
	out := make([]float32, len(raw)/4)
	for i := range out {
		out[i] = math.Float32frombits(binary.LittleEndian.Uint32(raw[i*4:]))
	}
	return out
}

// TestConcatDataset_ReadThroughAndRoundTrip fabricates a concatenated
// view over two 1-D inputs whose catdim extents are both ragged: the
// interior input is pad-rounded (its padding cell is hidden by the
// mask), the last input keeps its trailing partial chunk. Exercises the
// read-through and round-trip laws.
func TestConcatDataset_ReadThroughAndRoundTrip(t *testing.T) {
	dir := t.TempDir()
	rootA := filepath.Join(dir, "a")
	rootB := filepath.Join(dir, "b")
	outRoot := filepath.Join(dir, "out")

	// input A: shape [3], chunks [2], pad-rounded to 4 (interior input);
	// the fourth physical cell is masked padding.
	writeZarrInput(t, rootA, []int64{3}, []int64{2}, map[string][]float32{
		"0": {1, 2},
		"1": {3, 0},
	})
	// input B: shape [3], chunks [2], ragged trailing chunk (last input).
	writeZarrInput(t, rootB, []int64{3}, []int64{2}, map[string][]float32{
		"0": {10, 20},
		"1": {30, 0},
	})

	ctx := context.Background()
	inputs, err := LoadInputs([]string{rootA, rootB}, store.DriverZarr)
	require.NoError(t, err)

	plan, err := Fabricate(ctx, outRoot, inputs, 0, store.DriverZarr, '.', FabricateOptions{})
	require.NoError(t, err)
	require.Equal(t, []int64{4, 3}, plan.PaddedCatlens)
	require.Equal(t, []int64{7}, plan.PhysicalShape)
	require.Equal(t, []int64{6}, plan.VirtualShape)

	ds, err := Open(ctx, outRoot, store.DriverZarr)
	require.NoError(t, err)
	defer ds.Close()

	require.Equal(t, []int64{6}, ds.VirtualShape())
	require.Equal(t, []int64{7}, ds.PhysicalShape())

	raw, err := ds.ReadAll(ctx)
	require.NoError(t, err)
	require.Equal(t, []float32{1, 2, 3, 10, 20, 30}, readFloats(t, raw))

	// round-trip law: writing back what was just read reproduces it.
	require.NoError(t, ds.WriteAll(ctx, raw))
	raw2, err := ds.ReadAll(ctx)
	require.NoError(t, err)
	require.Equal(t, readFloats(t, raw), readFloats(t, raw2))

	// writes propagate to the real input chunk files, not just the
	// symlinked output view, and the masked padding cell in A's second
	// chunk stays untouched.
	updated := []float32{100, 200, 300, 400, 500, 600}
	buf := make([]byte, len(updated)*4)
	for i, f := range updated {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	require.NoError(t, ds.WriteAll(ctx, buf))

	aChunk1, err := os.ReadFile(filepath.Join(rootA, "1"))
	require.NoError(t, err)
	require.Equal(t, []float32{300, 0}, readFloats(t, aChunk1))

	bChunk0, err := os.ReadFile(filepath.Join(rootB, "0"))
	require.NoError(t, err)
	require.Equal(t, []float32{400, 500}, readFloats(t, bChunk0))
}

func TestConcatDataset_ReadTensor(t *testing.T) {
	dir := t.TempDir()
	rootA := filepath.Join(dir, "a")
	rootB := filepath.Join(dir, "b")
	outRoot := filepath.Join(dir, "out")

	writeZarrInput(t, rootA, []int64{2}, []int64{2}, map[string][]float32{"0": {1, 2}})
	writeZarrInput(t, rootB, []int64{2}, []int64{2}, map[string][]float32{"0": {3, 4}})

	ctx := context.Background()
	inputs, err := LoadInputs([]string{rootA, rootB}, store.DriverZarr)
	require.NoError(t, err)
	_, err = Fabricate(ctx, outRoot, inputs, 0, store.DriverZarr, '.', FabricateOptions{})
	require.NoError(t, err)

	ds, err := Open(ctx, outRoot, store.DriverZarr)
	require.NoError(t, err)
	defer ds.Close()

	tensor, err := ds.ReadTensor(ctx)
	require.NoError(t, err)
	require.Equal(t, []int{4}, tensor.Shape().Dimensions)
}
