// Package batch runs the median filter over a directory of images with the
// file list split across a worker group.
package batch

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"medfilt/internal/logging"
	"medfilt/pkg/group"
	"medfilt/pkg/imageio"
	"medfilt/pkg/median"
	"medfilt/pkg/partition"
)

// Params holds the job parameters every worker of a group shares.
type Params struct {
	// InputDir is the directory whose images are filtered
	InputDir string

	// OutputDir receives one filtered PNG per input, under the same name
	OutputDir string

	// Size is the odd width of the square median window
	Size int

	// Count is the number of images to process, zero included. With
	// CountFromListing rank 0 lists InputDir and broadcasts the count to
	// the group.
	Count int
}

// CountFromListing leaves the image count to rank 0's directory listing.
const CountFromListing = -1

// Result describes what one worker did.
type Result struct {
	// Rank is the worker's rank in its group
	Rank int

	// Total is the image count the group partitioned
	Total int

	// Span is the index range the worker owned
	Span partition.Span

	// Outputs lists the files written, in processing order
	Outputs []string

	// Durations holds the decode+filter+encode time of each output
	Durations []time.Duration

	// Skipped lists the owned files left unprocessed after a failure
	Skipped []string

	// Elapsed is the wall-clock time between the two group barriers
	Elapsed time.Duration

	// Err is the error that stopped the worker, if any
	Err error

	started bool
}

// Worker filters the files of one rank.
type Worker struct {
	params *Params
	group  group.Group
	log    *zap.SugaredLogger
	out    io.Writer
}

// NewWorker creates a worker for the member g of a group.
func NewWorker(params *Params, g group.Group, log *zap.SugaredLogger) *Worker {
	return &Worker{
		params: params,
		group:  g,
		log:    logging.OrNop(log).With("rank", g.Rank()),
		out:    os.Stdout,
	}
}

// SetOutput redirects the elapsed-time line rank 0 prints.
func (w *Worker) SetOutput(out io.Writer) {
	w.out = out
}

// Run executes the worker protocol:
//  1. list the input directory and check the output directory
//  2. enter the opening barrier and start the clock
//  3. take the image count from Params.Count or from rank 0's broadcast
//  4. filter the owned span sequentially, stopping at the first failure
//  5. enter the closing barrier; rank 0 prints the elapsed seconds
//
// A worker whose processing fails still enters the closing barrier so its
// peers are not left waiting; the failure is returned afterwards.
func (w *Worker) Run(ctx context.Context) (Result, error) {
	res := Result{Rank: w.group.Rank()}

	fail := func(err error) (Result, error) {
		res.Err = err
		return res, err
	}

	names, err := imageio.List(w.params.InputDir)
	if err != nil {
		return fail(fmt.Errorf("input directory: %w", err))
	}
	if err := imageio.CheckDir(w.params.OutputDir); err != nil {
		return fail(fmt.Errorf("output directory: %w", err))
	}
	filter, err := median.NewFilter(w.params.Size)
	if err != nil {
		return fail(err)
	}

	if err := w.group.Barrier(ctx); err != nil {
		return fail(fmt.Errorf("opening barrier: %w", err))
	}
	res.started = true
	start := time.Now()

	n := w.params.Count
	if n < 0 {
		n, err = w.group.Broadcast(ctx, len(names), 0)
		if err != nil {
			return fail(fmt.Errorf("image count broadcast: %w", err))
		}
	}
	res.Total = n

	span, err := partition.For(n, w.group.Size(), w.group.Rank())
	if err != nil {
		return fail(err)
	}
	res.Span = span
	w.log.Debugw("assigned work range", "start", span.Start, "end", span.End, "total", n)

	procErr := w.processSpan(names, span, filter, &res)

	if err := w.group.Barrier(ctx); err != nil && procErr == nil {
		procErr = fmt.Errorf("closing barrier: %w", err)
	}
	res.Elapsed = time.Since(start)

	if w.group.Rank() == 0 {
		fmt.Fprintf(w.out, "%f\n", res.Elapsed.Seconds())
	}

	if procErr != nil {
		return fail(procErr)
	}
	w.log.Infow("worker finished", "images", len(res.Outputs), "elapsed", res.Elapsed)
	return res, nil
}

// processSpan filters names[span.Start:span.End] in order. The first error
// aborts the rest of the span; the remaining names are recorded as skipped.
func (w *Worker) processSpan(names []string, span partition.Span, filter *median.Filter, res *Result) error {
	for i := span.Start; i < span.End; i++ {
		if i >= len(names) {
			w.log.Warnw("image count exceeds directory listing", "index", i, "listed", len(names))
			break
		}

		name := names[i]
		t0 := time.Now()
		out, err := w.processFile(name, filter)
		if err != nil {
			w.log.Errorw("aborting worker", "file", name, "error", err)
			for j := i; j < span.End && j < len(names); j++ {
				res.Skipped = append(res.Skipped, names[j])
			}
			return fmt.Errorf("%s: %w", name, err)
		}

		res.Outputs = append(res.Outputs, out)
		res.Durations = append(res.Durations, time.Since(t0))
		w.log.Debugw("filtered image", "file", name, "index", i, "duration", time.Since(t0))
	}
	return nil
}

// processFile decodes, filters and encodes a single image.
func (w *Worker) processFile(name string, filter *median.Filter) (string, error) {
	img, err := imageio.Decode(filepath.Join(w.params.InputDir, name))
	if err != nil {
		return "", err
	}

	filtered, err := filter.Apply(img)
	if err != nil {
		return "", err
	}

	outPath := filepath.Join(w.params.OutputDir, name)
	if err := imageio.Encode(outPath, filtered); err != nil {
		return "", err
	}
	return outPath, nil
}
