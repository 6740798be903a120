package store

import (
	"context"

	"gocloud.dev/blob"
)

// ChunkAccessor is the per-driver collaborator the concat view forwards
// byte-level reads and writes to; store/zarr and store/n5 each provide
// a concrete implementation.
type ChunkAccessor interface {
	ItemSize() int
	ChunkShape() []int64
	EncodeKey(coord []int) string
	DecodeKey(key string) ([]int, error)
	// ReadChunk returns the decompressed bytes of one chunk, or a
	// zero-filled buffer of the expected size if the chunk file does
	// not exist (writer-elided chunks read as fill).
	ReadChunk(ctx context.Context, bucket *blob.Bucket, coord []int) ([]byte, error)
	// WriteChunk compresses (if applicable) and writes one chunk's
	// bytes back through the accessor's bucket — which, for a
	// fabricated concatenated store, is a symlink to an input chunk,
	// so the write is visible to the input store as well.
	WriteChunk(ctx context.Context, bucket *blob.Bucket, coord []int, data []byte) error
}
