// Package harness times repeated runs of a strategy over one workload.
package harness

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go-docbench/internal/strategy"
	"go-docbench/internal/workload"
	"go-docbench/pkg/docstore"
)

type (

	// Config controls one measurement.
	Config struct {
		Collection      string
		Trials          int
		VerifyIsolation bool // Count the collection after every trial when the store supports it
	}

	// Measurement is the timing of all trials of one strategy over one workload.
	Measurement struct {
		Strategy string
		Trials   []time.Duration
		Total    time.Duration
	}

	// IsolationError reports a trial that claimed success but changed the number of
	// documents in the collection
	IsolationError struct {
		Collection string
		Trial      int
		Remaining  int64
	}
)

func (e *IsolationError) Error() string {
	return fmt.Sprintf("trial %d left %d documents in %s", e.Trial, e.Remaining, e.Collection)
}

// IsIsolationError checks if the error is an IsolationError
func IsIsolationError(err error) bool {
	var ie *IsolationError
	return errors.As(err, &ie)
}

// Measure runs s against w cfg.Trials times and returns the summed wall-clock time of
// the runs. There is no warm-up exclusion. Any failure aborts the measurement and no
// partial timing is returned. Isolation checks happen outside the timed region.
func Measure(ctx context.Context, s strategy.Strategy, store docstore.Store, w workload.Workload, cfg Config) (Measurement, error) {
	if cfg.Trials <= 0 {
		return Measurement{}, fmt.Errorf("trials must be positive, got %d", cfg.Trials)
	}
	if len(w) == 0 {
		return Measurement{}, errors.New("workload is empty")
	}
	if cfg.Collection == "" {
		return Measurement{}, errors.New("collection cannot be empty")
	}

	counter, canCount := store.(docstore.Counter)
	verify := cfg.VerifyIsolation && canCount

	// Leftovers of an earlier failed run are not this measurement's concern
	var baseline int64
	if verify {
		n, err := counter.Count(ctx, cfg.Collection)
		if err != nil {
			return Measurement{}, fmt.Errorf("verify isolation: %w", err)
		}
		baseline = n
	}

	m := Measurement{Strategy: s.Name(), Trials: make([]time.Duration, 0, cfg.Trials)}
	for trial := 1; trial <= cfg.Trials; trial++ {
		start := time.Now()
		err := s.Run(ctx, store, cfg.Collection, w)
		elapsed := time.Since(start)
		if err != nil {
			return Measurement{}, fmt.Errorf("trial %d: %w", trial, err)
		}

		m.Trials = append(m.Trials, elapsed)
		m.Total += elapsed

		if verify {
			n, err := counter.Count(ctx, cfg.Collection)
			if err != nil {
				return Measurement{}, fmt.Errorf("trial %d: verify isolation: %w", trial, err)
			}
			if n != baseline {
				return Measurement{}, &IsolationError{Collection: cfg.Collection, Trial: trial, Remaining: n - baseline}
			}
		}
	}
	return m, nil
}
