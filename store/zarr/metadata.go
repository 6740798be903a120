// Package zarr adapts the Zarr v2 on-disk layout (.zarray metadata,
// "."/"/" separated chunk keys) to the store.Descriptor uniform view
// and provides the chunk-byte accessor for it.
package zarr

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"

	"github.com/google/renameio"

	"github.com/chunklink/tsconcat/store"
)

const MetadataFile = ".zarray"

// CompressorConfig mirrors the Zarr "compressor" JSON object.
type CompressorConfig struct {
	ID      string `json:"id"`
	Cname   string `json:"cname,omitempty"`
	Clevel  int    `json:"clevel,omitempty"`
	Shuffle int    `json:"shuffle,omitempty"`
}

// Metadata represents a Zarr v2 .zarray document. Unknown keys are
// preserved verbatim in Extra so Emit can round-trip them.
type Metadata struct {
	ZarrFormat   int                        `json:"zarr_format"`
	Shape        []int64                    `json:"shape"`
	Chunks       []int64                    `json:"chunks"`
	DType        string                     `json:"dtype"`
	Compressor   *CompressorConfig          `json:"compressor"`
	FillValue    any                        `json:"fill_value"`
	Order        string                     `json:"order"`
	DimensionSep string                     `json:"dimension_separator,omitempty"`
	Extra        map[string]json.RawMessage `json:"-"`
}

// Load reads and parses a .zarray document from r.
func Load(r io.Reader) (*Metadata, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, &store.IoError{Op: "read", Path: MetadataFile, Err: err}
	}

	var meta Metadata
	if err := json.Unmarshal(raw, &meta); err != nil {
		return nil, &store.MalformedMetadataError{Path: MetadataFile, Err: err}
	}
	if meta.ZarrFormat != 2 {
		return nil, &store.MalformedMetadataError{
			Path: MetadataFile,
			Err:  fmt.Errorf("unsupported zarr_format: %d, expected 2", meta.ZarrFormat),
		}
	}

	var extra map[string]json.RawMessage
	if err := json.Unmarshal(raw, &extra); err != nil {
		return nil, &store.MalformedMetadataError{Path: MetadataFile, Err: err}
	}
	for _, known := range []string{"zarr_format", "shape", "chunks", "dtype", "compressor", "fill_value", "order", "dimension_separator"} {
		delete(extra, known)
	}
	meta.Extra = extra

	if meta.DimensionSep == "" {
		meta.DimensionSep = "."
	}
	return &meta, nil
}

// LoadPath opens <root>/.zarray and loads it.
func LoadPath(root string) (*Metadata, error) {
	f, err := os.Open(filepath.Join(root, MetadataFile))
	if err != nil {
		return nil, &store.IoError{Op: "open", Path: filepath.Join(root, MetadataFile), Err: err}
	}
	defer f.Close()
	return Load(f)
}

// ToDescriptor normalizes Metadata into the uniform store.Descriptor.
func (m *Metadata) ToDescriptor(root string) (*store.Descriptor, error) {
	canonical, _, err := ParseDType(m.DType)
	if err != nil {
		return nil, &store.MalformedMetadataError{Path: root, Err: err}
	}
	var comp *store.Compression
	if m.Compressor != nil {
		comp = &store.Compression{
			ID:      m.Compressor.ID,
			Cname:   m.Compressor.Cname,
			Clevel:  m.Compressor.Clevel,
			Shuffle: m.Compressor.Shuffle,
		}
	}
	sep := byte('.')
	if len(m.DimensionSep) == 1 {
		sep = m.DimensionSep[0]
	}
	return &store.Descriptor{
		Root:        root,
		Driver:      store.DriverZarr,
		Shape:       append([]int64(nil), m.Shape...),
		ChunkShape:  append([]int64(nil), m.Chunks...),
		DType:       canonical,
		Compression: comp,
		DimSep:      sep,
	}, nil
}

// Emit writes the output .zarray document, overwriting shape and
// dimension_separator with the concatenated values, preserving every
// other key verbatim.
func Emit(root string, base *Metadata, outputShape []int64, outSep byte, custom any) error {
	doc := map[string]json.RawMessage{}
	for k, v := range base.Extra {
		doc[k] = v
	}

	marshal := func(v any) json.RawMessage {
		b, _ := json.Marshal(v)
		return b
	}

	doc["zarr_format"] = marshal(base.ZarrFormat)
	doc["shape"] = marshal(outputShape)
	doc["chunks"] = marshal(base.Chunks)
	doc["dtype"] = marshal(base.DType)
	doc["compressor"] = marshal(base.Compressor)
	doc["fill_value"] = marshal(base.FillValue)
	doc["order"] = marshal(base.Order)
	doc["dimension_separator"] = marshal(string(outSep))
	doc["custom"] = marshal(custom)

	out, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("tsconcat: marshal output metadata: %w", err)
	}

	path := filepath.Join(root, MetadataFile)
	if err := renameio.WriteFile(path, out, 0o644); err != nil {
		return &store.IoError{Op: "write", Path: path, Err: err}
	}
	return nil
}

// ParseDType takes a numpy-style dtype string ("<f4", "|b1", "<i8") and
// returns a canonical name ("float32", "bool", "int64") and its byte
// size. Big-endian types are rejected.
func ParseDType(s string) (string, int, error) {
	if len(s) < 3 {
		return "", 0, fmt.Errorf("invalid dtype: %s", s)
	}

	endian := s[0]
	if endian == '>' {
		return "", 0, fmt.Errorf("big-endian types are unsupported: %s", s)
	}

	kind := s[1]
	size, err := strconv.Atoi(s[2:])
	if err != nil {
		return "", 0, fmt.Errorf("invalid size in dtype: %s", s)
	}

	switch kind {
	case 'b':
		return "bool", size, nil
	case 'i':
		return fmt.Sprintf("int%d", size*8), size, nil
	case 'u':
		return fmt.Sprintf("uint%d", size*8), size, nil
	case 'f':
		return fmt.Sprintf("float%d", size*8), size, nil
	case 'c':
		return fmt.Sprintf("complex%d", size*8), size, nil
	default:
		return "", 0, fmt.Errorf("unsupported dtype kind: %c in %s", kind, s)
	}
}
