// Package progress defines the progress-reporting callback the link
// fabricator threads through its options, plus a terminal progress-bar
// backend for the CLI.
package progress

import (
	"fmt"
	"os"

	"github.com/dustin/go-humanize"
	"github.com/sirupsen/logrus"
	"github.com/vbauerster/mpb/v8"
	"github.com/vbauerster/mpb/v8/decor"
)

// Reporter receives fabrication progress. Start is called once with the
// predicted total link count (from concat.LinkCount summed over inputs);
// Increment is called once per symlink actually created; Done is called
// once fabrication finishes (successfully or not).
type Reporter interface {
	Start(total int64)
	Increment(n int64)
	Done()
}

// NoOp discards all progress events; it's the default when the caller
// (or CLI flag) doesn't request a progress bar.
type NoOp struct{}

func (NoOp) Start(int64)     {}
func (NoOp) Increment(int64) {}
func (NoOp) Done()           {}

// Bar is a terminal progress bar backed by mpb, with a logrus summary
// line on completion.
type Bar struct {
	log     *logrus.Logger
	prog    *mpb.Progress
	bar     *mpb.Bar
	total   int64
	created int64
}

// NewBar creates a Reporter that renders a live progress bar to
// os.Stderr and logs a human-readable summary via log.
func NewBar(log *logrus.Logger) *Bar {
	if log == nil {
		log = logrus.New()
	}
	return &Bar{log: log, prog: mpb.New(mpb.WithOutput(os.Stderr))}
}

func (b *Bar) Start(total int64) {
	b.total = total
	b.bar = b.prog.AddBar(total,
		mpb.PrependDecorators(decor.Name("linking chunks")),
		mpb.AppendDecorators(decor.CountersNoUnit("%d / %d")),
	)
	b.log.WithField("predicted_links", total).Info("fabrication starting")
}

func (b *Bar) Increment(n int64) {
	b.created += n
	if b.bar != nil {
		b.bar.IncrBy(int(n))
	}
}

func (b *Bar) Done() {
	if b.prog != nil {
		b.prog.Wait()
	}
	b.log.WithFields(logrus.Fields{
		"links_created":   b.created,
		"links_predicted": b.total,
	}).Info(fmt.Sprintf("fabrication done (%s links)", humanize.Comma(b.created)))
}
