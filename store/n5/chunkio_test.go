package n5

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"gocloud.dev/blob"
	_ "gocloud.dev/blob/fileblob"
)

func openTestBucket(t *testing.T, dir string) *blob.Bucket {
	t.Helper()
	bucket, err := blob.OpenBucket(context.Background(), "file://"+dir)
	require.NoError(t, err)
	t.Cleanup(func() { bucket.Close() })
	return bucket
}

func TestBlockHeader_RoundTrips(t *testing.T) {
	header := buildBlockHeader([]int64{3, 4})
	payload, dims, err := stripBlockHeader(append(header, []byte{1, 2, 3, 4}...), 2)
	require.NoError(t, err)
	require.Equal(t, []byte{1, 2, 3, 4}, payload)
	require.Equal(t, []int64{3, 4}, dims)
}

func TestStripBlockHeader_RejectsNonDefaultMode(t *testing.T) {
	header := buildBlockHeader([]int64{3, 4})
	header[1] = 1 // mode field, big-endian uint16 low byte
	_, _, err := stripBlockHeader(append(header, 0, 0), 2)
	require.Error(t, err)
}

// TestAccessor_ReadChunk_PadsCroppedEdgeBlock writes a block whose header
// declares a 1x2 extent inside a 2x2 blockSize store and checks the read
// comes back re-strided into the full block shape with zero padding.
func TestAccessor_ReadChunk_PadsCroppedEdgeBlock(t *testing.T) {
	dir := t.TempDir()
	meta := &Metadata{DataType: "uint8", BlockSize: []int64{2, 2}}
	a, err := NewAccessor(meta)
	require.NoError(t, err)

	block := append(buildBlockHeader([]int64{1, 2}), 7, 8)
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "0"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "0", "0"), block, 0o644))

	got, err := a.ReadChunk(context.Background(), openTestBucket(t, dir), []int{0, 0})
	require.NoError(t, err)
	require.Equal(t, []byte{7, 8, 0, 0}, got)
}

func TestAccessor_ReadChunk_MissingIsZeroFilled(t *testing.T) {
	dir := t.TempDir()
	meta := &Metadata{DataType: "uint8", BlockSize: []int64{2, 2}}
	a, err := NewAccessor(meta)
	require.NoError(t, err)

	got, err := a.ReadChunk(context.Background(), openTestBucket(t, dir), []int{0, 0})
	require.NoError(t, err)
	require.Equal(t, make([]byte, 4), got)
}

func TestAccessor_WriteThenReadChunk_Raw(t *testing.T) {
	dir := t.TempDir()
	meta := &Metadata{DataType: "uint8", BlockSize: []int64{4}}
	a, err := NewAccessor(meta)
	require.NoError(t, err)

	bucket := openTestBucket(t, dir)
	payload := []byte{1, 2, 3, 4}
	require.NoError(t, a.WriteChunk(context.Background(), bucket, []int{0}, payload))

	got, err := a.ReadChunk(context.Background(), bucket, []int{0})
	require.NoError(t, err)
	require.Equal(t, payload, got)
}

func TestAccessor_WriteThenReadChunk_Gzip(t *testing.T) {
	dir := t.TempDir()
	meta := &Metadata{DataType: "uint8", BlockSize: []int64{4}, Compression: &CompressionConfig{Type: "gzip"}}
	a, err := NewAccessor(meta)
	require.NoError(t, err)

	bucket := openTestBucket(t, dir)
	payload := []byte{10, 20, 30, 40}
	require.NoError(t, a.WriteChunk(context.Background(), bucket, []int{0}, payload))

	got, err := a.ReadChunk(context.Background(), bucket, []int{0})
	require.NoError(t, err)
	require.Equal(t, payload, got)
}
