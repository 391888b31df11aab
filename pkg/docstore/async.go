package docstore

import (
	"context"

	"go-docbench/pkg/future"
)

// asyncStore runs each blocking call of the wrapped Store on its own goroutine.
type asyncStore struct {
	store Store
}

// Async adapts a blocking Store into an AsyncStore. If store already implements
// AsyncStore it is returned as is.
func Async(store Store) AsyncStore {
	if as, ok := store.(AsyncStore); ok {
		return as
	}
	return &asyncStore{store: store}
}

func (a *asyncStore) WriteAsync(ctx context.Context, collection, id string, doc Document) *future.Future[WriteReceipt] {
	return future.Go(ctx, func(ctx context.Context) (WriteReceipt, error) {
		return a.store.Write(ctx, collection, id, doc)
	})
}

func (a *asyncStore) DeleteAsync(ctx context.Context, collection, id string) *future.Future[DeleteReceipt] {
	return future.Go(ctx, func(ctx context.Context) (DeleteReceipt, error) {
		return a.store.Delete(ctx, collection, id)
	})
}
