// Command tsconcat fabricates a symlink-based concatenated view over
// two or more N5 or Zarr v2 stores that share everything but one axis.
package main

import (
	"context"
	"errors"
	"os"

	"github.com/attic-labs/kingpin"
	"github.com/sirupsen/logrus"

	"github.com/chunklink/tsconcat/concat"
	"github.com/chunklink/tsconcat/progress"
	"github.com/chunklink/tsconcat/store"
)

// Exit codes. 0 is success; every error kind gets its own code so
// calling scripts can branch without parsing stderr.
const (
	exitOK = iota
	exitNotEnoughInputs
	exitUnknownDriver
	exitInvalidDimSep
	exitIncompatibleInputs
	exitMalformedMetadata
	exitIoError
	exitOther
)

var (
	app = kingpin.New("tsconcat", "Fabricate a concatenated view over N5/Zarr stores sharing a catdim.")

	outputRoot = app.Arg("output_root", "directory to fabricate the concatenated store into").Required().String()
	inputRoots = app.Arg("input_root", "input store root (repeat, at least two)").Required().Strings()

	catdim   = app.Flag("catdim", "axis to concatenate along").Required().Int()
	driver   = app.Flag("driver", "store driver: n5 or zarr").Required().String()
	dimsep   = app.Flag("dimsep", "zarr output dimension separator (\".\" or \"/\")").Default("").String()
	showProg = app.Flag("progress", "print a progress bar to stderr").Bool()
)

func main() {
	kingpin.MustParse(app.Parse(os.Args[1:]))

	log := logrus.New()

	drv, err := store.ParseDriver(*driver)
	if err != nil {
		fail(log, err)
	}

	// N5 chunk keys are always "/"-joined; --dimsep only applies to a
	// Zarr output (default ".").
	var dimSepByte byte = '/'
	if drv == store.DriverZarr {
		if *dimsep == "" {
			*dimsep = "."
		}
		dimSepByte, err = store.ParseDimSep(*dimsep)
		if err != nil {
			fail(log, err)
		}
	} else if *dimsep != "" && *dimsep != "/" {
		fail(log, &store.InvalidDimensionSeparatorError{Separator: *dimsep})
	}

	if len(*inputRoots) < 2 {
		fail(log, &store.NotEnoughInputsError{Count: len(*inputRoots)})
	}

	ctx := context.Background()

	inputs, err := concat.LoadInputs(*inputRoots, drv)
	if err != nil {
		fail(log, err)
	}

	var reporter progress.Reporter = progress.NoOp{}
	if *showProg {
		reporter = progress.NewBar(log)
	}

	plan, err := concat.Fabricate(ctx, *outputRoot, inputs, *catdim, drv, dimSepByte, concat.FabricateOptions{Progress: reporter})
	if err != nil {
		fail(log, err)
	}

	log.WithFields(logrus.Fields{
		"output":         *outputRoot,
		"catdim":         plan.Catdim,
		"virtual_shape":  plan.VirtualShape,
		"physical_shape": plan.PhysicalShape,
	}).Info("concatenation fabricated")
}

func fail(log *logrus.Logger, err error) {
	log.Error(err)

	var notEnough *store.NotEnoughInputsError
	var unknownDriver *store.UnknownDriverError
	var invalidSep *store.InvalidDimensionSeparatorError
	var incompatible *store.IncompatibleInputsError
	var malformed *store.MalformedMetadataError
	var ioErr *store.IoError

	switch {
	case errors.As(err, &notEnough):
		os.Exit(exitNotEnoughInputs)
	case errors.As(err, &unknownDriver):
		os.Exit(exitUnknownDriver)
	case errors.As(err, &invalidSep):
		os.Exit(exitInvalidDimSep)
	case errors.As(err, &incompatible):
		os.Exit(exitIncompatibleInputs)
	case errors.As(err, &malformed):
		os.Exit(exitMalformedMetadata)
	case errors.As(err, &ioErr):
		os.Exit(exitIoError)
	default:
		os.Exit(exitOther)
	}
}
