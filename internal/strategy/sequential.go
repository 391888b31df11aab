package strategy

import (
	"context"

	"go-docbench/internal/workload"
	"go-docbench/pkg/docstore"
)

// Sequential issues one blocking call at a time in workload order.
type Sequential struct{}

func (Sequential) Name() string { return NameSequential }

// Run writes every item, observes the write receipts in submission order, then does the
// same for deletes. The first failure aborts the run; documents written before it stay.
func (Sequential) Run(ctx context.Context, store docstore.Store, collection string, w workload.Workload) error {
	writes := make([]docstore.WriteReceipt, 0, len(w))
	for _, item := range w {
		r, err := store.Write(ctx, collection, item.ID, item.Doc)
		if err != nil {
			return &TrialError{Strategy: NameSequential, Phase: PhaseWrite, Completed: len(writes), Err: err}
		}
		writes = append(writes, r)
	}
	if n := observe(writes); n != len(w) {
		return &MeasurementError{Strategy: NameSequential, Phase: PhaseWrite, Submitted: len(w), Observed: n}
	}

	deletes := make([]docstore.DeleteReceipt, 0, len(w))
	for _, item := range w {
		r, err := store.Delete(ctx, collection, item.ID)
		if err != nil {
			return &TrialError{Strategy: NameSequential, Phase: PhaseDelete, Completed: len(deletes), Err: err}
		}
		deletes = append(deletes, r)
	}
	if n := observe(deletes); n != len(w) {
		return &MeasurementError{Strategy: NameSequential, Phase: PhaseDelete, Submitted: len(w), Observed: n}
	}
	return nil
}
