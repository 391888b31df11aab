package main

import (
	"context"
	"errors"
	"fmt"
	"net"

	"go-docbench/internal/bench"
	"go-docbench/internal/config"
	"go-docbench/pkg/docstore/rpc"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"google.golang.org/grpc"
)

func newServeCmd(opts *rootOptions) *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve a backend over the gRPC document service",
		Long: `Expose the configured backend as a DocumentService so that "run" can benchmark
it through the grpc backend.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, log, err := opts.load()
			if err != nil {
				return err
			}
			defer log.Sync()

			if cmd.Flags().Changed("addr") {
				cfg.Serve.Addr = addr
			}
			return serve(cmd.Context(), log, cfg, nil)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "",
		"Listen address (default from serve.addr)")

	return cmd
}

// serve blocks until ctx is done. ready, when non-nil, receives the bound address.
func serve(ctx context.Context, log *zap.Logger, cfg config.Config, ready chan<- net.Addr) error {
	if cfg.Backend == config.BackendGRPC {
		return errors.New("serve needs a storage backend, not grpc")
	}

	store, err := bench.OpenStore(ctx, cfg, log)
	if err != nil {
		return fmt.Errorf("open %s store: %w", cfg.Backend, err)
	}
	defer store.Close()

	lis, err := net.Listen("tcp", cfg.Serve.Addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", cfg.Serve.Addr, err)
	}

	srv := rpc.NewGRPCServer(rpc.NewServer(store, log))
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Serve(lis)
	}()

	log.Info("serving document service",
		zap.String("addr", lis.Addr().String()),
		zap.String("backend", cfg.Backend))
	if ready != nil {
		ready <- lis.Addr()
	}

	select {
	case <-ctx.Done():
		srv.GracefulStop()
		<-errCh
		return nil
	case err := <-errCh:
		if errors.Is(err, grpc.ErrServerStopped) {
			return nil
		}
		return fmt.Errorf("serve: %w", err)
	}
}
