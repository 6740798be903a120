package concat

import (
	"github.com/chunklink/tsconcat/store"
	n5pkg "github.com/chunklink/tsconcat/store/n5"
	zarrpkg "github.com/chunklink/tsconcat/store/zarr"
)

// Input bundles a store.Descriptor with the raw per-driver metadata
// document it was derived from, so the Fabricator can both validate
// against the uniform view and emit an output document that preserves
// the source's unknown keys verbatim.
type Input struct {
	Descriptor *store.Descriptor
	ZarrMeta   *zarrpkg.Metadata
	N5Meta     *n5pkg.Metadata
}

// LoadInput loads and normalizes one input store's metadata.
func LoadInput(root string, driver store.Driver) (*Input, error) {
	switch driver {
	case store.DriverZarr:
		meta, err := zarrpkg.LoadPath(root)
		if err != nil {
			return nil, err
		}
		desc, err := meta.ToDescriptor(root)
		if err != nil {
			return nil, err
		}
		return &Input{Descriptor: desc, ZarrMeta: meta}, nil
	case store.DriverN5:
		meta, err := n5pkg.LoadPath(root)
		if err != nil {
			return nil, err
		}
		desc, err := meta.ToDescriptor(root)
		if err != nil {
			return nil, err
		}
		return &Input{Descriptor: desc, N5Meta: meta}, nil
	default:
		return nil, &store.UnknownDriverError{Token: string(driver)}
	}
}

// encodeKey encodes a chunk-grid coordinate using this input's own key
// codec and dimension separator.
func (in *Input) encodeKey(coord []int) string {
	if in.Descriptor.Driver == store.DriverN5 {
		return n5pkg.Encode(coord)
	}
	return zarrpkg.Encode(coord, in.Descriptor.DimSep)
}

// LoadInputs loads every store at roots with the given driver.
func LoadInputs(roots []string, driver store.Driver) ([]*Input, error) {
	inputs := make([]*Input, len(roots))
	for i, root := range roots {
		in, err := LoadInput(root, driver)
		if err != nil {
			return nil, err
		}
		inputs[i] = in
	}
	return inputs, nil
}
