package main

import (
	"context"
	"fmt"
	"io"

	"go-docbench/internal/bench"
	"go-docbench/internal/config"
	"go-docbench/internal/report"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func newRunCmd(opts *rootOptions) *cobra.Command {
	var (
		backend         string
		dsn             string
		counts          []int
		sizes           []int
		trials          int
		strategies      []string
		output          string
		continueOnError bool
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the benchmark sweep",
		Long: `Generate one workload per document count and payload size, run it through
every configured strategy and print one line per result.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, log, err := opts.load()
			if err != nil {
				return err
			}
			defer log.Sync()

			flags := cmd.Flags()
			if flags.Changed("backend") {
				cfg.Backend = backend
			}
			if flags.Changed("dsn") {
				cfg.DSN = dsn
			}
			if flags.Changed("counts") {
				cfg.Counts = counts
			}
			if flags.Changed("sizes") {
				cfg.Sizes = sizes
			}
			if flags.Changed("trials") {
				cfg.Trials = trials
			}
			if flags.Changed("strategies") {
				cfg.Strategies = strategies
			}
			if flags.Changed("output") {
				cfg.Output = output
			}
			if flags.Changed("continue-on-error") {
				cfg.ContinueOnError = continueOnError
			}

			return runBenchmark(cmd.Context(), log, cfg, cmd.OutOrStdout())
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&backend, "backend", "",
		"Store backend: memory, postgres, mongo, firestore, grpc")
	flags.StringVar(&dsn, "dsn", "",
		"Connection string or gRPC target of the backend")
	flags.IntSliceVar(&counts, "counts", nil,
		"Document counts to sweep")
	flags.IntSliceVar(&sizes, "sizes", nil,
		"Payload sizes in bytes to sweep (0 = structured record)")
	flags.IntVar(&trials, "trials", 0,
		"Trials per measurement")
	flags.StringSliceVar(&strategies, "strategies", nil,
		"Strategies to run: sequential, pooled, cooperative")
	flags.StringVar(&output, "output", "",
		"Report format: text or json")
	flags.BoolVar(&continueOnError, "continue-on-error", false,
		"Log a failed parameter set and move on")

	return cmd
}

func runBenchmark(ctx context.Context, log *zap.Logger, cfg config.Config, out io.Writer) error {
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	sink, err := report.NewSink(cfg.Output, out)
	if err != nil {
		return err
	}

	log.Info("starting benchmark",
		zap.String("backend", cfg.Backend),
		zap.Ints("counts", cfg.Counts),
		zap.Ints("sizes", cfg.Sizes),
		zap.Int("trials", cfg.Trials),
		zap.Strings("strategies", cfg.Strategies))

	store, err := bench.OpenStore(ctx, cfg, log)
	if err != nil {
		return fmt.Errorf("open %s store: %w", cfg.Backend, err)
	}
	defer store.Close()

	runner, err := bench.NewRunner(cfg, store, sink, log)
	if err != nil {
		return err
	}

	failed, err := runner.Run(ctx)
	if err != nil {
		return err
	}
	if failed > 0 {
		return fmt.Errorf("%d parameter sets failed", failed)
	}
	return nil
}
