// Package bench sweeps every configured parameter set through every strategy.
package bench

import (
	"context"
	"fmt"

	"go-docbench/internal/config"
	"go-docbench/internal/harness"
	"go-docbench/internal/metrics"
	"go-docbench/internal/report"
	"go-docbench/internal/strategy"
	"go-docbench/internal/workload"
	"go-docbench/pkg/docstore"

	"go.uber.org/zap"
)

// Runner owns one sweep. It is not safe for concurrent use.
type Runner struct {
	cfg        config.Config
	store      docstore.Store // instrumented
	rec        *metrics.Recorder
	sink       report.Sink
	logger     *zap.Logger
	strategies []strategy.Strategy
	genOpts    []workload.Option
}

// NewRunner prepares a sweep over store. A configured fixture is read here so a missing
// file fails before any timing starts.
func NewRunner(cfg config.Config, store docstore.Store, sink report.Sink, logger *zap.Logger) (*Runner, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	strategies := make([]strategy.Strategy, 0, len(cfg.Strategies))
	for _, name := range cfg.Strategies {
		s, err := strategy.New(name, cfg.PoolWidth)
		if err != nil {
			return nil, err
		}
		strategies = append(strategies, s)
	}

	genOpts := []workload.Option{
		workload.WithIDScheme(workload.IDScheme(cfg.IDScheme)),
		workload.WithSeed(cfg.Seed),
	}
	if cfg.Fixture != "" {
		fixture, err := workload.LoadFixture(cfg.Fixture)
		if err != nil {
			return nil, err
		}
		genOpts = append(genOpts, workload.WithFixture(fixture))
		logger.Debug("fixture loaded", zap.String("path", cfg.Fixture), zap.Int("bytes", len(fixture)))
	}

	rec := metrics.NewRecorder()
	return &Runner{
		cfg:        cfg,
		store:      metrics.Instrument(store, rec),
		rec:        rec,
		sink:       sink,
		logger:     logger,
		strategies: strategies,
		genOpts:    genOpts,
	}, nil
}

// Run measures every (size, count, strategy) combination and emits one result for each
// success. With continue_on_error unset the first failure stops the sweep.
// It returns the number of failed parameter sets.
func (r *Runner) Run(ctx context.Context) (int, error) {
	failed := 0
	for _, size := range r.cfg.Sizes {
		for _, count := range r.cfg.Counts {
			w, err := workload.Generate(count, size, r.genOpts...)
			if err != nil {
				return failed, fmt.Errorf("generate workload docs=%d size=%d: %w", count, size, err)
			}

			for _, s := range r.strategies {
				if err := ctx.Err(); err != nil {
					return failed, err
				}
				if err := r.measure(ctx, s, w, size); err != nil {
					if !r.cfg.ContinueOnError {
						return failed + 1, err
					}
					failed++
					r.logger.Warn("parameter set failed",
						zap.String("strategy", s.Name()),
						zap.Int("docs", count),
						zap.Int("size", size),
						zap.Error(err))
				}
			}
		}
	}

	r.logger.Info("sweep complete", zap.Int("failed", failed))
	return failed, nil
}

func (r *Runner) measure(ctx context.Context, s strategy.Strategy, w workload.Workload, size int) error {
	r.rec.Reset()

	m, err := harness.Measure(ctx, s, r.store, w, harness.Config{
		Collection:      r.collection(s),
		Trials:          r.cfg.Trials,
		VerifyIsolation: r.cfg.VerifyIsolation,
	})
	if err != nil {
		return fmt.Errorf("%s docs=%d size=%d: %w", s.Name(), len(w), size, err)
	}

	latency := r.rec.Summaries()
	fields := []zap.Field{
		zap.String("strategy", m.Strategy),
		zap.Int("docs", len(w)),
		zap.Int("size", size),
		zap.Duration("total", m.Total),
	}
	for _, l := range latency {
		fields = append(fields,
			zap.Duration(l.Op+"_p50", l.P50),
			zap.Duration(l.Op+"_p99", l.P99))
	}
	r.logger.Debug("measured", fields...)

	return r.sink.Emit(report.Result{
		Strategy: m.Strategy,
		Backend:  r.cfg.Backend,
		Docs:     len(w),
		Size:     size,
		Trials:   r.cfg.Trials,
		Elapsed:  m.Total,
		Latency:  latency,
	})
}

// collection keeps the cooperative strategy's documents apart from the blocking ones.
func (r *Runner) collection(s strategy.Strategy) string {
	if s.Name() == strategy.NameCooperative {
		return r.cfg.Collections.Async
	}
	return r.cfg.Collections.Sync
}
