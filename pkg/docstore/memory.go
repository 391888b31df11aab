package docstore

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"
)

// ErrInjected is the failure returned by a MemoryStore configured to fail a call.
var ErrInjected = errors.New("injected failure")

// MemoryOptions tunes a MemoryStore.
type MemoryOptions struct {
	Latency      time.Duration // Simulated per-call latency
	FailOnWrite  int           // Fail the Nth write (1-based) over the store's lifetime; 0 disables
	FailOnDelete int           // Fail the Nth delete (1-based) over the store's lifetime; 0 disables
}

// MemoryStore is an in-process Store. It counts calls and tracks peak concurrency,
// which makes it the backend used by tests and dry runs.
type MemoryStore struct {
	opts MemoryOptions

	mu          sync.Mutex
	collections map[string]map[string]Document
	closed      bool

	writes      atomic.Int64
	deletes     atomic.Int64
	inFlight    atomic.Int64
	maxInFlight atomic.Int64
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore(opts MemoryOptions) *MemoryStore {
	return &MemoryStore{
		opts:        opts,
		collections: make(map[string]map[string]Document),
	}
}

func (m *MemoryStore) enter() func() {
	n := m.inFlight.Add(1)
	for {
		peak := m.maxInFlight.Load()
		if n <= peak || m.maxInFlight.CompareAndSwap(peak, n) {
			break
		}
	}
	return func() { m.inFlight.Add(-1) }
}

func (m *MemoryStore) sleep(ctx context.Context) error {
	if m.opts.Latency <= 0 {
		return nil
	}
	t := time.NewTimer(m.opts.Latency)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Write stores doc under collection/id, replacing any previous document.
func (m *MemoryStore) Write(ctx context.Context, collection, id string, doc Document) (WriteReceipt, error) {
	if err := ValidateKey("write", collection, id); err != nil {
		return WriteReceipt{}, err
	}
	defer m.enter()()

	n := m.writes.Add(1)
	if err := m.sleep(ctx); err != nil {
		return WriteReceipt{}, &StoreError{Op: "write", Err: err}
	}
	if m.opts.FailOnWrite > 0 && n == int64(m.opts.FailOnWrite) {
		return WriteReceipt{}, &StoreError{Op: "write", Err: fmt.Errorf("%s/%s: %w", collection, id, ErrInjected)}
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return WriteReceipt{}, &ResourceError{StoreError: StoreError{Op: "write", Err: errors.New("store is closed")}, Resource: "memory"}
	}
	coll, ok := m.collections[collection]
	if !ok {
		coll = make(map[string]Document)
		m.collections[collection] = coll
	}
	coll[id] = doc
	return WriteReceipt{Collection: collection, ID: id, UpdateTime: time.Now().UTC()}, nil
}

// Delete removes collection/id. Deleting a missing document succeeds.
func (m *MemoryStore) Delete(ctx context.Context, collection, id string) (DeleteReceipt, error) {
	if err := ValidateKey("delete", collection, id); err != nil {
		return DeleteReceipt{}, err
	}
	defer m.enter()()

	n := m.deletes.Add(1)
	if err := m.sleep(ctx); err != nil {
		return DeleteReceipt{}, &StoreError{Op: "delete", Err: err}
	}
	if m.opts.FailOnDelete > 0 && n == int64(m.opts.FailOnDelete) {
		return DeleteReceipt{}, &StoreError{Op: "delete", Err: fmt.Errorf("%s/%s: %w", collection, id, ErrInjected)}
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return DeleteReceipt{}, &ResourceError{StoreError: StoreError{Op: "delete", Err: errors.New("store is closed")}, Resource: "memory"}
	}
	delete(m.collections[collection], id)
	return DeleteReceipt{Collection: collection, ID: id, UpdateTime: time.Now().UTC()}, nil
}

// Count returns the number of documents in collection.
func (m *MemoryStore) Count(_ context.Context, collection string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return int64(len(m.collections[collection])), nil
}

// Get returns a stored document.
func (m *MemoryStore) Get(collection, id string) (Document, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	doc, ok := m.collections[collection][id]
	return doc, ok
}

// Writes is the number of write calls made, including failed ones.
func (m *MemoryStore) Writes() int64 { return m.writes.Load() }

// Deletes is the number of delete calls made, including failed ones.
func (m *MemoryStore) Deletes() int64 { return m.deletes.Load() }

// MaxInFlight is the highest number of calls observed running at once.
func (m *MemoryStore) MaxInFlight() int64 { return m.maxInFlight.Load() }

// Close marks the store closed. It is safe to call Close multiple times.
func (m *MemoryStore) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}
