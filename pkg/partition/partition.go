// Package partition splits an ordered file list across a fixed worker group.
package partition

import (
	"fmt"

	"medfilt/internal/models"
)

// Span is a half-open index range [Start, End) into the file list.
type Span struct {
	Start int
	End   int
}

// Len returns the number of indices in the span.
func (s Span) Len() int {
	return s.End - s.Start
}

// Empty reports whether the span holds no indices.
func (s Span) Empty() bool {
	return s.End <= s.Start
}

// For returns the span owned by rank when n items are shared by workers.
//
// With q = n/workers and r = n%workers, ranks below r receive q+1 items and
// the rest receive q. Spans are contiguous and ordered by rank, so together
// they cover [0, n) exactly once. When n < workers the trailing ranks get an
// empty span.
func For(n, workers, rank int) (Span, error) {
	if n < 0 {
		return Span{}, fmt.Errorf("%w: negative item count %d", models.ErrInvalidArguments, n)
	}
	if workers < 1 {
		return Span{}, fmt.Errorf("%w: worker count must be positive, got %d", models.ErrInvalidArguments, workers)
	}
	if rank < 0 || rank >= workers {
		return Span{}, fmt.Errorf("%w: rank %d outside [0,%d)", models.ErrInvalidArguments, rank, workers)
	}

	q, r := n/workers, n%workers
	start := rank*q + min(rank, r)
	end := start + q
	if rank < r {
		end++
	}
	return Span{Start: start, End: end}, nil
}

// All returns every rank's span in rank order.
func All(n, workers int) ([]Span, error) {
	if workers < 1 {
		return nil, fmt.Errorf("%w: worker count must be positive, got %d", models.ErrInvalidArguments, workers)
	}
	spans := make([]Span, workers)
	for rank := range spans {
		s, err := For(n, workers, rank)
		if err != nil {
			return nil, err
		}
		spans[rank] = s
	}
	return spans, nil
}
