// Package metrics records per-call latency of store operations in HDR histograms.
package metrics

import (
	"context"
	"sort"
	"sync"
	"time"

	"go-docbench/pkg/docstore"

	"github.com/HdrHistogram/hdrhistogram-go"
)

const (
	OpWrite  = "write"
	OpDelete = "delete"

	// Latencies are recorded in microseconds between 1µs and 1 minute.
	minLatency = 1
	maxLatency = int64(time.Minute / time.Microsecond)
	sigFigs    = 3
)

// Summary is a snapshot of one operation's latency distribution.
type Summary struct {
	Op     string        `json:"op"`
	Count  int64         `json:"count"`
	Errors int64         `json:"errors"`
	Mean   time.Duration `json:"mean_ns"`
	P50    time.Duration `json:"p50_ns"`
	P95    time.Duration `json:"p95_ns"`
	P99    time.Duration `json:"p99_ns"`
	Max    time.Duration `json:"max_ns"`
}

// Recorder collects latencies per operation. It is safe for concurrent use.
type Recorder struct {
	mu     sync.Mutex
	hists  map[string]*hdrhistogram.Histogram
	errors map[string]int64
}

// NewRecorder creates an empty Recorder.
func NewRecorder() *Recorder {
	return &Recorder{
		hists:  make(map[string]*hdrhistogram.Histogram),
		errors: make(map[string]int64),
	}
}

// Record adds one successful call of op that took d.
func (r *Recorder) Record(op string, d time.Duration) {
	us := d.Microseconds()
	if us < minLatency {
		us = minLatency
	}
	if us > maxLatency {
		us = maxLatency
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	h, ok := r.hists[op]
	if !ok {
		h = hdrhistogram.New(minLatency, maxLatency, sigFigs)
		r.hists[op] = h
	}
	// Values are clamped to the trackable range so RecordValue cannot fail
	_ = h.RecordValue(us)
}

// RecordError counts one failed call of op.
func (r *Recorder) RecordError(op string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.errors[op]++
}

// Summaries returns one Summary per recorded operation, sorted by op name.
func (r *Recorder) Summaries() []Summary {
	r.mu.Lock()
	defer r.mu.Unlock()

	ops := make(map[string]struct{}, len(r.hists))
	for op := range r.hists {
		ops[op] = struct{}{}
	}
	for op := range r.errors {
		ops[op] = struct{}{}
	}

	out := make([]Summary, 0, len(ops))
	for op := range ops {
		s := Summary{Op: op, Errors: r.errors[op]}
		if h, ok := r.hists[op]; ok && h.TotalCount() > 0 {
			s.Count = h.TotalCount()
			s.Mean = time.Duration(h.Mean() * float64(time.Microsecond))
			s.P50 = micros(h.ValueAtQuantile(50))
			s.P95 = micros(h.ValueAtQuantile(95))
			s.P99 = micros(h.ValueAtQuantile(99))
			s.Max = micros(h.Max())
		}
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Op < out[j].Op })
	return out
}

// Reset drops everything recorded so far.
func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.hists = make(map[string]*hdrhistogram.Histogram)
	r.errors = make(map[string]int64)
}

func micros(v int64) time.Duration {
	return time.Duration(v) * time.Microsecond
}

// instrumented wraps a Store and records the latency of every call.
type instrumented struct {
	store docstore.Store
	rec   *Recorder
}

// instrumentedCounter keeps the Counter capability of the wrapped store visible.
type instrumentedCounter struct {
	*instrumented
	counter docstore.Counter
}

// Instrument returns a Store that records every call's latency in rec. The result
// implements docstore.Counter exactly when store does.
func Instrument(store docstore.Store, rec *Recorder) docstore.Store {
	in := &instrumented{store: store, rec: rec}
	if c, ok := store.(docstore.Counter); ok {
		return &instrumentedCounter{instrumented: in, counter: c}
	}
	return in
}

func (s *instrumented) Write(ctx context.Context, collection, id string, doc docstore.Document) (docstore.WriteReceipt, error) {
	start := time.Now()
	r, err := s.store.Write(ctx, collection, id, doc)
	s.observe(OpWrite, start, err)
	return r, err
}

func (s *instrumented) Delete(ctx context.Context, collection, id string) (docstore.DeleteReceipt, error) {
	start := time.Now()
	r, err := s.store.Delete(ctx, collection, id)
	s.observe(OpDelete, start, err)
	return r, err
}

func (s *instrumented) Close() error {
	return s.store.Close()
}

func (s *instrumented) observe(op string, start time.Time, err error) {
	if err != nil {
		s.rec.RecordError(op)
		return
	}
	s.rec.Record(op, time.Since(start))
}

func (s *instrumentedCounter) Count(ctx context.Context, collection string) (int64, error) {
	return s.counter.Count(ctx, collection)
}
