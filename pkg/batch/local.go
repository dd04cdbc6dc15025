package batch

import (
	"context"
	"fmt"
	"io"
	"sync"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"medfilt/internal/logging"
	"medfilt/pkg/group"
)

// RunLocal runs workers goroutines as one in-process group and waits for
// all of them. Results are indexed by rank. Every worker failure is
// combined into the returned error; a failing worker never stops the
// others from finishing their own spans.
func RunLocal(ctx context.Context, params *Params, workers int, log *zap.SugaredLogger, out io.Writer) ([]Result, error) {
	members, err := group.NewLocal(workers)
	if err != nil {
		return nil, err
	}
	log = logging.OrNop(log)

	// a worker that fails before the opening barrier would leave the rest
	// waiting there forever, so that case cancels the group
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	results := make([]Result, workers)
	var wg sync.WaitGroup
	for _, m := range members {
		wg.Add(1)
		go func(g group.Group) {
			defer wg.Done()
			w := NewWorker(params, g, log)
			if out != nil {
				w.SetOutput(out)
			}
			res, err := w.Run(ctx)
			if err != nil && !res.started {
				cancel()
			}
			results[g.Rank()] = res
		}(m)
	}
	wg.Wait()

	var errs error
	for _, r := range results {
		if r.Err != nil {
			errs = multierr.Append(errs, fmt.Errorf("worker %d: %w", r.Rank, r.Err))
		}
	}
	return results, errs
}
