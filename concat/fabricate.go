package concat

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/dolthub/fslock"

	"github.com/chunklink/tsconcat/progress"
	"github.com/chunklink/tsconcat/store"
	n5pkg "github.com/chunklink/tsconcat/store/n5"
	zarrpkg "github.com/chunklink/tsconcat/store/zarr"
)

const lockFileName = ".tsconcat.lock"

// FabricateOptions configures a single Fabricate call.
type FabricateOptions struct {
	// Progress receives fabrication progress events. Defaults to
	// progress.NoOp{} if nil.
	Progress progress.Reporter
}

// Fabricate validates inputs, builds the Plan, writes the output
// metadata document, and materializes one symlink per output chunk
// cell, iterating inputs in order and each input's chunk grid in
// row-major order. It owns outputRoot for the duration of the call,
// guarded by an advisory fslock so a second, concurrent Fabricate on
// the same root fails fast with IoError instead of racing.
func Fabricate(ctx context.Context, outputRoot string, inputs []*Input, catdim int, outDriver store.Driver, outDimSep byte, opts FabricateOptions) (*Plan, error) {
	reporter := opts.Progress
	if reporter == nil {
		reporter = progress.NoOp{}
	}

	descs := make([]*store.Descriptor, len(inputs))
	for i, in := range inputs {
		descs[i] = in.Descriptor
	}
	plan, err := BuildPlan(descs, catdim, outDriver, outDimSep)
	if err != nil {
		return nil, err
	}

	if err := os.MkdirAll(outputRoot, 0o755); err != nil {
		return nil, &store.IoError{Op: "mkdir", Path: outputRoot, Err: err}
	}

	lock := fslock.New(filepath.Join(outputRoot, lockFileName))
	if err := lock.TryLock(); err != nil {
		return nil, &store.IoError{Op: "lock", Path: outputRoot, Err: fmt.Errorf("output root already owned by another fabricator: %w", err)}
	}
	defer lock.Unlock()

	if err := emitMetadata(outputRoot, inputs[0], outDriver, outDimSep, plan); err != nil {
		return nil, err
	}

	var total int64
	for _, in := range inputs {
		total += LinkCount(in.Descriptor.Shape, in.Descriptor.ChunkShape, catdim, in.Descriptor.DimSep, outDimSep)
	}
	reporter.Start(total)
	defer reporter.Done()

	for i, in := range inputs {
		if err := fabricateInput(outputRoot, in, i, plan, outDriver, outDimSep, reporter); err != nil {
			return nil, err
		}
	}

	return plan, nil
}

func emitMetadata(outputRoot string, first *Input, outDriver store.Driver, outDimSep byte, plan *Plan) error {
	switch outDriver {
	case store.DriverZarr:
		return zarrpkg.Emit(outputRoot, first.ZarrMeta, plan.PhysicalShape, outDimSep, plan.ToCustom())
	case store.DriverN5:
		return n5pkg.Emit(outputRoot, first.N5Meta, plan.PhysicalShape, plan.ToCustom())
	default:
		return &store.UnknownDriverError{Token: string(outDriver)}
	}
}

// fabricateInput emits every symlink for input i's chunk grid.
func fabricateInput(outputRoot string, in *Input, i int, plan *Plan, outDriver store.Driver, outDimSep byte, reporter progress.Reporter) error {
	desc := in.Descriptor
	rank := desc.Rank()
	grid := make([]int64, rank)
	for d := 0; d < rank; d++ {
		grid[d] = ceilDiv(desc.Shape[d], desc.ChunkShape[d])
	}

	catOffsetChunks := plan.Offsets[i] / desc.ChunkShape[plan.Catdim]

	return gridIterate(grid, func(coord []int) error {
		outCoord := append([]int(nil), coord...)
		outCoord[plan.Catdim] = coord[plan.Catdim] + int(catOffsetChunks)

		srcKey := in.encodeKey(coord)
		srcPath := filepath.Join(desc.Root, filepath.FromSlash(srcKey))

		if _, err := os.Lstat(srcPath); err != nil {
			if os.IsNotExist(err) {
				return nil // chunk elided by the writer (all-fill)
			}
			return &store.IoError{Op: "stat input chunk", Path: srcPath, Err: err}
		}

		absSrc, err := filepath.Abs(srcPath)
		if err != nil {
			return &store.IoError{Op: "resolve input chunk", Path: srcPath, Err: err}
		}

		tgtKey := encodeOutputKey(outDriver, outCoord, outDimSep)
		tgtPath := filepath.Join(outputRoot, filepath.FromSlash(tgtKey))

		if err := os.MkdirAll(filepath.Dir(tgtPath), 0o755); err != nil {
			return &store.IoError{Op: "mkdir", Path: filepath.Dir(tgtPath), Err: err}
		}
		if err := os.Symlink(absSrc, tgtPath); err != nil {
			return &store.IoError{Op: "symlink", Path: tgtPath, Err: err}
		}

		reporter.Increment(1)
		return nil
	})
}

func encodeOutputKey(driver store.Driver, coord []int, dimSep byte) string {
	if driver == store.DriverN5 {
		return n5pkg.Encode(coord)
	}
	return zarrpkg.Encode(coord, dimSep)
}

// gridIterate walks every coordinate of a chunk grid in row-major order
// (last axis fastest).
func gridIterate(grid []int64, fn func(coord []int) error) error {
	rank := len(grid)
	if rank == 0 {
		return fn([]int{})
	}
	for _, g := range grid {
		if g == 0 {
			return nil
		}
	}

	coord := make([]int, rank)
	for {
		if err := fn(coord); err != nil {
			return err
		}
		d := rank - 1
		for ; d >= 0; d-- {
			coord[d]++
			if int64(coord[d]) < grid[d] {
				break
			}
			coord[d] = 0
		}
		if d < 0 {
			return nil
		}
	}
}
