package n5

import (
	"bytes"
	"compress/gzip"
	"context"
	"encoding/binary"
	"fmt"
	"io"

	"gocloud.dev/blob"
	"gocloud.dev/gcerrors"

	"github.com/chunklink/tsconcat/store"
)

// Accessor implements store.ChunkAccessor for an N5 store. It reads and
// writes N5's "default" (mode 0) binary block header: two big-endian
// uint16s (mode, rank) followed by one big-endian uint32 per dimension
// giving the block's element extent, then the (possibly compressed)
// payload. Only "raw" (uncompressed) and "gzip" payloads are supported;
// anything else is a read/write error rather than an attempt at full N5
// compression negotiation.
type Accessor struct {
	meta     *Metadata
	itemSize int
}

func NewAccessor(meta *Metadata) (*Accessor, error) {
	size, err := itemSize(meta.DataType)
	if err != nil {
		return nil, err
	}
	return &Accessor{meta: meta, itemSize: size}, nil
}

func itemSize(dtype string) (int, error) {
	canonical, err := canonicalDType(dtype)
	if err != nil {
		return 0, err
	}
	return store.ItemSize(canonical)
}

func (a *Accessor) ItemSize() int            { return a.itemSize }
func (a *Accessor) ChunkShape() []int64      { return a.meta.BlockSize }
func (a *Accessor) EncodeKey(c []int) string { return Encode(c) }
func (a *Accessor) DecodeKey(k string) ([]int, error) {
	return Decode(k, len(a.meta.BlockSize))
}

func (a *Accessor) expectedElements() int {
	n := 1
	for _, c := range a.meta.BlockSize {
		n *= int(c)
	}
	return n
}

// ReadChunk reads one N5 block file, strips its header, and returns the
// decompressed element bytes in C order. Missing files read as all-zero
// (fill value).
func (a *Accessor) ReadChunk(ctx context.Context, bucket *blob.Bucket, coord []int) ([]byte, error) {
	key := a.EncodeKey(coord)

	r, err := bucket.NewReader(ctx, key, nil)
	if err != nil {
		if gcerrors.Code(err) == gcerrors.NotFound {
			return make([]byte, a.expectedElements()*a.itemSize), nil
		}
		return nil, &store.IoError{Op: "read chunk", Path: key, Err: err}
	}
	defer r.Close()

	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, &store.IoError{Op: "read chunk", Path: key, Err: err}
	}

	payload, blockDims, err := stripBlockHeader(raw, len(a.meta.BlockSize))
	if err != nil {
		return nil, fmt.Errorf("tsconcat: block %s: %w", key, err)
	}

	if a.meta.Compression != nil {
		switch a.meta.Compression.Type {
		case "raw":
		case "gzip":
			zr, err := gzip.NewReader(bytes.NewReader(payload))
			if err != nil {
				return nil, fmt.Errorf("tsconcat: init gzip reader for block %s: %w", key, err)
			}
			defer zr.Close()
			payload, err = io.ReadAll(zr)
			if err != nil {
				return nil, fmt.Errorf("tsconcat: gunzip block %s: %w", key, err)
			}
		default:
			return nil, fmt.Errorf("tsconcat: unsupported N5 compression: %s", a.meta.Compression.Type)
		}
	}

	return a.padToBlockSize(payload, blockDims), nil
}

// padToBlockSize re-strides a cropped edge block (N5 writers shrink the
// header dims at array boundaries) into a full blockSize-shaped,
// zero-padded buffer, so callers can address every chunk with one set of
// strides.
func (a *Accessor) padToBlockSize(payload []byte, blockDims []int64) []byte {
	full := true
	for i, d := range blockDims {
		if d != a.meta.BlockSize[i] {
			full = false
			break
		}
	}
	if full {
		return payload
	}

	out := make([]byte, a.expectedElements()*a.itemSize)
	rank := len(blockDims)
	srcStrides := make([]int64, rank)
	dstStrides := make([]int64, rank)
	s, d := int64(1), int64(1)
	for i := rank - 1; i >= 0; i-- {
		srcStrides[i] = s
		dstStrides[i] = d
		s *= blockDims[i]
		d *= a.meta.BlockSize[i]
	}

	var walk func(dim int, srcIdx, dstIdx int64)
	walk = func(dim int, srcIdx, dstIdx int64) {
		if dim == rank {
			so := srcIdx * int64(a.itemSize)
			do := dstIdx * int64(a.itemSize)
			copy(out[do:do+int64(a.itemSize)], payload[so:so+int64(a.itemSize)])
			return
		}
		for k := int64(0); k < blockDims[dim]; k++ {
			walk(dim+1, srcIdx+k*srcStrides[dim], dstIdx+k*dstStrides[dim])
		}
	}
	walk(0, 0, 0)
	return out
}

// WriteChunk compresses (if configured) and writes one N5 block,
// prefixing the mode-0 block header.
func (a *Accessor) WriteChunk(ctx context.Context, bucket *blob.Bucket, coord []int, data []byte) error {
	key := a.EncodeKey(coord)

	payload := data
	if a.meta.Compression != nil {
		switch a.meta.Compression.Type {
		case "raw":
		case "gzip":
			var buf bytes.Buffer
			zw := gzip.NewWriter(&buf)
			if _, err := zw.Write(data); err != nil {
				return fmt.Errorf("tsconcat: gzip block %s: %w", key, err)
			}
			if err := zw.Close(); err != nil {
				return fmt.Errorf("tsconcat: gzip block %s: %w", key, err)
			}
			payload = buf.Bytes()
		default:
			return fmt.Errorf("tsconcat: writing through a %q-compressed block is not supported", a.meta.Compression.Type)
		}
	}

	header := buildBlockHeader(a.meta.BlockSize)

	w, err := bucket.NewWriter(ctx, key, nil)
	if err != nil {
		return &store.IoError{Op: "write chunk", Path: key, Err: err}
	}
	if _, err := w.Write(header); err != nil {
		w.Close()
		return &store.IoError{Op: "write chunk", Path: key, Err: err}
	}
	if _, err := w.Write(payload); err != nil {
		w.Close()
		return &store.IoError{Op: "write chunk", Path: key, Err: err}
	}
	return w.Close()
}

func buildBlockHeader(blockSize []int64) []byte {
	buf := make([]byte, 4+4*len(blockSize))
	binary.BigEndian.PutUint16(buf[0:2], 0) // mode 0: default
	binary.BigEndian.PutUint16(buf[2:4], uint16(len(blockSize)))
	for i, d := range blockSize {
		binary.BigEndian.PutUint32(buf[4+4*i:8+4*i], uint32(d))
	}
	return buf
}

func stripBlockHeader(raw []byte, rank int) ([]byte, []int64, error) {
	headerLen := 4 + 4*rank
	if len(raw) < headerLen {
		return nil, nil, fmt.Errorf("block shorter than header (%d bytes, want at least %d)", len(raw), headerLen)
	}
	mode := binary.BigEndian.Uint16(raw[0:2])
	if mode != 0 {
		return nil, nil, fmt.Errorf("unsupported N5 block mode %d (only default mode 0 is supported)", mode)
	}
	gotRank := int(binary.BigEndian.Uint16(raw[2:4]))
	if gotRank != rank {
		return nil, nil, fmt.Errorf("block rank %d does not match store rank %d", gotRank, rank)
	}
	dims := make([]int64, rank)
	for i := range dims {
		dims[i] = int64(binary.BigEndian.Uint32(raw[4+4*i : 8+4*i]))
	}
	return raw[headerLen:], dims, nil
}
