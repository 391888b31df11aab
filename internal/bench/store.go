package bench

import (
	"context"
	"fmt"
	"os"

	"go-docbench/internal/config"
	"go-docbench/pkg/docstore"
	"go-docbench/pkg/docstore/firestore"
	"go-docbench/pkg/docstore/mongo"
	"go-docbench/pkg/docstore/postgres"
	"go-docbench/pkg/docstore/rpc"

	"go.uber.org/zap"
)

// OpenStore connects to the backend named in cfg. The caller closes the store.
func OpenStore(ctx context.Context, cfg config.Config, logger *zap.Logger) (docstore.Store, error) {
	logger.Debug("opening store", zap.String("backend", cfg.Backend))

	switch cfg.Backend {
	case config.BackendMemory:
		return docstore.NewMemoryStore(docstore.MemoryOptions{
			Latency:      cfg.Memory.Latency,
			FailOnWrite:  cfg.Memory.FailOnWrite,
			FailOnDelete: cfg.Memory.FailOnDelete,
		}), nil

	case config.BackendPostgres:
		store, err := postgres.Connect(ctx, cfg.DSN, int32(cfg.ConnPoolSize()))
		if err != nil {
			return nil, err
		}
		if cfg.Schema != "" {
			schema, err := os.ReadFile(cfg.Schema)
			if err != nil {
				store.Close()
				return nil, fmt.Errorf("read schema: %w", err)
			}
			if err := store.EnsureSchema(ctx, string(schema)); err != nil {
				store.Close()
				return nil, err
			}
		}
		return store, nil

	case config.BackendMongo:
		return mongo.Connect(ctx, cfg.DSN, cfg.Database)

	case config.BackendFirestore:
		return firestore.Connect(ctx, cfg.ProjectID)

	case config.BackendGRPC:
		return rpc.Dial(ctx, cfg.DSN)

	default:
		return nil, fmt.Errorf("unknown backend %q", cfg.Backend)
	}
}
