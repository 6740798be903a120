// Package n5 adapts the N5 on-disk layout (attributes.json metadata,
// "/"-joined chunk keys, binary block-header chunk files) to the
// store.Descriptor uniform view and provides the chunk-byte accessor
// for it.
package n5

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/google/renameio"

	"github.com/chunklink/tsconcat/store"
)

const MetadataFile = "attributes.json"

// CompressionConfig mirrors N5's "compression" JSON object, e.g.
// {"type": "blosc", "cname": "lz4", "clevel": 9, "shuffle": 0}.
type CompressionConfig struct {
	Type    string `json:"type"`
	Cname   string `json:"cname,omitempty"`
	Clevel  int    `json:"clevel,omitempty"`
	Shuffle int    `json:"shuffle,omitempty"`
}

// Metadata represents an N5 attributes.json document.
type Metadata struct {
	Dimensions  []int64                    `json:"dimensions"`
	BlockSize   []int64                    `json:"blockSize"`
	DataType    string                     `json:"dataType"`
	Compression *CompressionConfig         `json:"compression"`
	Extra       map[string]json.RawMessage `json:"-"`
}

// Load reads and parses an attributes.json document from r.
func Load(r io.Reader) (*Metadata, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, &store.IoError{Op: "read", Path: MetadataFile, Err: err}
	}

	var meta Metadata
	if err := json.Unmarshal(raw, &meta); err != nil {
		return nil, &store.MalformedMetadataError{Path: MetadataFile, Err: err}
	}
	if len(meta.Dimensions) == 0 || len(meta.BlockSize) != len(meta.Dimensions) {
		return nil, &store.MalformedMetadataError{
			Path: MetadataFile,
			Err:  fmt.Errorf("dimensions/blockSize missing or rank mismatch"),
		}
	}

	var extra map[string]json.RawMessage
	if err := json.Unmarshal(raw, &extra); err != nil {
		return nil, &store.MalformedMetadataError{Path: MetadataFile, Err: err}
	}
	for _, known := range []string{"dimensions", "blockSize", "dataType", "compression"} {
		delete(extra, known)
	}
	meta.Extra = extra

	return &meta, nil
}

// LoadPath opens <root>/attributes.json and loads it.
func LoadPath(root string) (*Metadata, error) {
	f, err := os.Open(filepath.Join(root, MetadataFile))
	if err != nil {
		return nil, &store.IoError{Op: "open", Path: filepath.Join(root, MetadataFile), Err: err}
	}
	defer f.Close()
	return Load(f)
}

// canonicalDType maps N5's plain dataType tokens to the canonical names
// store.ItemSize understands.
func canonicalDType(s string) (string, error) {
	switch s {
	case "uint8", "uint16", "uint32", "uint64",
		"int8", "int16", "int32", "int64",
		"float32", "float64":
		return s, nil
	default:
		return "", fmt.Errorf("unsupported N5 dataType: %s", s)
	}
}

// ToDescriptor normalizes Metadata into the uniform store.Descriptor.
func (m *Metadata) ToDescriptor(root string) (*store.Descriptor, error) {
	canonical, err := canonicalDType(m.DataType)
	if err != nil {
		return nil, &store.MalformedMetadataError{Path: root, Err: err}
	}
	var comp *store.Compression
	if m.Compression != nil {
		comp = &store.Compression{
			ID:      m.Compression.Type,
			Cname:   m.Compression.Cname,
			Clevel:  m.Compression.Clevel,
			Shuffle: m.Compression.Shuffle,
		}
	}
	return &store.Descriptor{
		Root:        root,
		Driver:      store.DriverN5,
		Shape:       append([]int64(nil), m.Dimensions...),
		ChunkShape:  append([]int64(nil), m.BlockSize...),
		DType:       canonical,
		Compression: comp,
		DimSep:      '/',
	}, nil
}

// Emit writes the output attributes.json document, overwriting
// "dimensions" with the concatenated shape and preserving every other
// key verbatim.
func Emit(root string, base *Metadata, outputShape []int64, custom any) error {
	doc := map[string]json.RawMessage{}
	for k, v := range base.Extra {
		doc[k] = v
	}

	marshal := func(v any) json.RawMessage {
		b, _ := json.Marshal(v)
		return b
	}

	doc["dimensions"] = marshal(outputShape)
	doc["blockSize"] = marshal(base.BlockSize)
	doc["dataType"] = marshal(base.DataType)
	doc["compression"] = marshal(base.Compression)
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
