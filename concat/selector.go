package concat

// SelectorKind tags the variant held by a Selector. Multi-dimensional
// boolean masks are not supported; a mask selector always addresses a
// single axis.
type SelectorKind int

const (
	// SelFull selects every element along the axis (numpy's slice(None)).
	SelFull SelectorKind = iota
	// SelEmpty selects no elements.
	SelEmpty
	// SelInts selects by integer position, in the given order.
	SelInts
	// SelBools selects by a boolean mask the length of the axis.
	SelBools
)

// Selector is one axis' index expression.
type Selector struct {
	Kind  SelectorKind
	Ints  []int
	Bools []bool
}

func Full() Selector           { return Selector{Kind: SelFull} }
func Empty() Selector          { return Selector{Kind: SelEmpty} }
func Ints(v ...int) Selector   { return Selector{Kind: SelInts, Ints: v} }
func Bools(v ...bool) Selector { return Selector{Kind: SelBools, Bools: v} }

// remapSelector converts a caller-supplied index over the virtual shape
// into an index over the physical shape. Selectors before and after
// catdim pass through unchanged; the catdim selector is rewritten into
// a boolean mask over paddedMask's full length. A short index is
// right-padded with Full() selectors up to length catdim+1 first.
func remapSelector(index []Selector, paddedMask []bool, catdim int) []Selector {
	out := make([]Selector, len(index))
	copy(out, index)
	for len(out) <= catdim {
		out = append(out, Full())
	}
	out[catdim] = remapCatSelector(out[catdim], paddedMask)
	return out
}

// remapCatSelector rewrites a single axis selector into the physical
// boolean mask.
func remapCatSelector(sel Selector, paddedMask []bool) Selector {
	switch sel.Kind {
	case SelEmpty:
		return Bools(make([]bool, len(paddedMask))...)
	case SelFull:
		out := make([]bool, len(paddedMask))
		copy(out, paddedMask)
		return Selector{Kind: SelBools, Bools: out}
	case SelInts:
		truePos := truePositions(paddedMask)
		out := make([]bool, len(paddedMask))
		for _, k := range sel.Ints {
			out[truePos[k]] = true
		}
		return Selector{Kind: SelBools, Bools: out}
	case SelBools:
		truePos := truePositions(paddedMask)
		out := make([]bool, len(paddedMask))
		for k, b := range sel.Bools {
			if b {
				out[truePos[k]] = true
			}
		}
		return Selector{Kind: SelBools, Bools: out}
	default:
		panic("tsconcat: unknown selector kind")
	}
}

// truePositions returns, in order, the indices of every true entry of
// mask.
func truePositions(mask []bool) []int {
	pos := make([]int, 0, len(mask))
	for i, b := range mask {
		if b {
			pos = append(pos, i)
		}
	}
	return pos
}
