package strategy

import (
	"context"
	"fmt"
	"sync/atomic"

	"go-docbench/internal/workload"
	"go-docbench/pkg/docstore"

	"golang.org/x/sync/errgroup"
)

// Pooled issues calls from a fixed number of workers and joins them with a barrier.
type Pooled struct {
	width int
}

// NewPooled returns a pooled strategy with width workers.
func NewPooled(width int) (Pooled, error) {
	if width <= 0 {
		return Pooled{}, fmt.Errorf("pool width must be positive, got %d", width)
	}
	return Pooled{width: width}, nil
}

func (Pooled) Name() string { return NamePooled }

// Width is the number of workers.
func (p Pooled) Width() int { return p.width }

// Run submits every write to the pool, waits for all of them, observes the receipts,
// then does the same for deletes. Each task fills only its own receipt slot.
func (p Pooled) Run(ctx context.Context, store docstore.Store, collection string, w workload.Workload) error {
	writes := make([]docstore.WriteReceipt, len(w))
	err := p.phase(ctx, PhaseWrite, len(w), func(ctx context.Context, i int) error {
		r, err := store.Write(ctx, collection, w[i].ID, w[i].Doc)
		if err != nil {
			return err
		}
		writes[i] = r
		return nil
	})
	if err != nil {
		return err
	}
	if n := observe(writes); n != len(w) {
		return &MeasurementError{Strategy: NamePooled, Phase: PhaseWrite, Submitted: len(w), Observed: n}
	}

	deletes := make([]docstore.DeleteReceipt, len(w))
	err = p.phase(ctx, PhaseDelete, len(w), func(ctx context.Context, i int) error {
		r, err := store.Delete(ctx, collection, w[i].ID)
		if err != nil {
			return err
		}
		deletes[i] = r
		return nil
	})
	if err != nil {
		return err
	}
	if n := observe(deletes); n != len(w) {
		return &MeasurementError{Strategy: NamePooled, Phase: PhaseDelete, Submitted: len(w), Observed: n}
	}
	return nil
}

// phase runs call for every index on the pool and blocks until all have returned.
// After the first failure the remaining tasks return without calling the store.
func (p Pooled) phase(ctx context.Context, phase string, n int, call func(context.Context, int) error) error {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.width)

	var completed atomic.Int64
	for i := 0; i < n; i++ {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			if err := call(gctx, i); err != nil {
				return err
			}
			completed.Add(1)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return &TrialError{Strategy: NamePooled, Phase: phase, Completed: int(completed.Load()), Err: err}
	}
	return nil
}
