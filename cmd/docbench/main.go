// Package main provides the CLI entry point for docbench, a benchmark of document
// writes and deletes under sequential and concurrent client strategies.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go-docbench/internal/config"
	"go-docbench/internal/logger"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "docbench:", err)
		stop()
		os.Exit(1)
	}
}

type rootOptions struct {
	configPath string
	debug      bool
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	root := &cobra.Command{
		Use:   "docbench",
		Short: "Document store write/delete benchmark",
		Long: `Docbench writes and deletes generated documents against a document store
using sequential, pooled and cooperative strategies, and reports the elapsed time
of each strategy for every document count and payload size.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	flags := root.PersistentFlags()
	flags.StringVar(&opts.configPath, "config", "",
		"Path to a YAML config file")
	flags.BoolVar(&opts.debug, "debug", false,
		"Log at debug level")

	root.AddCommand(newRunCmd(opts))
	root.AddCommand(newServeCmd(opts))

	return root
}

// load reads the config file and builds the logger it describes.
func (o *rootOptions) load() (config.Config, *zap.Logger, error) {
	cfg, err := config.Load(o.configPath)
	if err != nil {
		return config.Config{}, nil, err
	}
	if o.debug {
		cfg.Log.Level = "debug"
	}

	log := logger.New(&logger.Config{
		Level:      cfg.Log.Level,
		Format:     cfg.Log.Format,
		Output:     cfg.Log.Output,
		FilePath:   cfg.Log.FilePath,
		MaxSize:    cfg.Log.MaxSize,
		MaxBackups: cfg.Log.MaxBackups,
		MaxAge:     cfg.Log.MaxAge,
	})
	return cfg, log, nil
}
