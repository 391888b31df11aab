package strategy

import (
	"context"

	"go-docbench/internal/workload"
	"go-docbench/pkg/docstore"
	"go-docbench/pkg/future"
)

// Cooperative issues every call of a phase before awaiting any, then consumes the
// results in the order they complete.
type Cooperative struct{}

func (Cooperative) Name() string { return NameCooperative }

// Run has no cancellation path: after a failure the rest of the batch is still awaited,
// and only then is the first failure returned.
func (Cooperative) Run(ctx context.Context, store docstore.Store, collection string, w workload.Workload) error {
	async := docstore.Async(store)

	writes := make([]*future.Future[docstore.WriteReceipt], len(w))
	for i, item := range w {
		writes[i] = async.WriteAsync(ctx, collection, item.ID, item.Doc)
	}
	if err := drain(PhaseWrite, writes); err != nil {
		return err
	}

	deletes := make([]*future.Future[docstore.DeleteReceipt], len(w))
	for i, item := range w {
		deletes[i] = async.DeleteAsync(ctx, collection, item.ID)
	}
	return drain(PhaseDelete, deletes)
}

func drain[R docstore.Receipt](phase string, fs []*future.Future[R]) error {
	var (
		firstErr  error
		completed int
		observed  int
	)
	for c := range future.AsCompleted(fs) {
		if c.Err != nil {
			if firstErr == nil {
				firstErr = c.Err
			}
			continue
		}
		completed++
		if docstore.Acknowledged(c.Value) {
			observed++
		}
	}

	if firstErr != nil {
		return &TrialError{Strategy: NameCooperative, Phase: phase, Completed: completed, Err: firstErr}
	}
	if observed != len(fs) {
		return &MeasurementError{Strategy: NameCooperative, Phase: phase, Submitted: len(fs), Observed: observed}
	}
	return nil
}
