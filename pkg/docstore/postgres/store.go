// Package postgres stores benchmark documents as JSONB rows in PostgreSQL.
package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"go-docbench/pkg/docstore"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const (
	writeSQL = `INSERT INTO documents (collection, id, data, updated_at)
		VALUES ($1, $2, $3::jsonb, clock_timestamp())
		ON CONFLICT (collection, id) DO UPDATE
		SET data = EXCLUDED.data, updated_at = EXCLUDED.updated_at
		RETURNING updated_at`

	deleteSQL = `WITH deleted AS (
			DELETE FROM documents WHERE collection = $1 AND id = $2 RETURNING 1
		)
		SELECT clock_timestamp(), count(*) FROM deleted`

	countSQL = `SELECT count(*) FROM documents WHERE collection = $1`
)

var (
	_ docstore.Store   = (*Store)(nil)
	_ docstore.Counter = (*Store)(nil)
)

// Store implements docstore.Store and docstore.Counter
type Store struct {
	pool      *pgxpool.Pool // Database connection pool
	ownsPool  bool          // Close the pool on Close when the store created it
	closeOnce sync.Once
}

// NewStore creates a document store on an existing pool. The pool stays owned by the caller.
func NewStore(ctx context.Context, pool *pgxpool.Pool) (*Store, error) {
	if pool == nil {
		return nil, &docstore.ValidationError{
			StoreError: docstore.StoreError{
				Op:  "NewStore",
				Err: fmt.Errorf("pool cannot be nil"),
			},
			Field: "pool",
			Value: "nil",
		}
	}

	// Test the connection with context timeout
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := pool.Ping(pingCtx); err != nil {
		return nil, &docstore.ResourceError{
			StoreError: docstore.StoreError{
				Op:  "NewStore",
				Err: fmt.Errorf("unable to connect to database: %w", err),
			},
			Resource: "postgres",
		}
	}

	return &Store{pool: pool}, nil
}

// Connect parses dsn, opens a pool and returns a store that closes the pool on Close.
func Connect(ctx context.Context, dsn string, maxConns int32) (*Store, error) {
	poolConfig, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, &docstore.ValidationError{
			StoreError: docstore.StoreError{Op: "Connect", Err: err},
			Field:      "dsn",
		}
	}

	// Statements are the same three for the whole run
	poolConfig.ConnConfig.DefaultQueryExecMode = pgx.QueryExecModeCacheDescribe
	poolConfig.ConnConfig.StatementCacheCapacity = 100
	if maxConns > 0 {
		poolConfig.MaxConns = maxConns
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, &docstore.ResourceError{
			StoreError: docstore.StoreError{Op: "Connect", Err: err},
			Resource:   "postgres",
		}
	}

	s, err := NewStore(ctx, pool)
	if err != nil {
		pool.Close()
		return nil, err
	}
	s.ownsPool = true
	return s, nil
}

// EnsureSchema creates the documents table if it does not exist.
func EnsureSchema(ctx context.Context, pool *pgxpool.Pool, schemaSQL string) error {
	if _, err := pool.Exec(ctx, schemaSQL); err != nil {
		return &docstore.StoreError{Op: "EnsureSchema", Err: err}
	}
	return nil
}

// EnsureSchema applies schemaSQL on the store's pool.
func (s *Store) EnsureSchema(ctx context.Context, schemaSQL string) error {
	return EnsureSchema(ctx, s.pool, schemaSQL)
}

// Write upserts the document and returns the server-side update time.
func (s *Store) Write(ctx context.Context, collection, id string, doc docstore.Document) (docstore.WriteReceipt, error) {
	if err := docstore.ValidateKey("write", collection, id); err != nil {
		return docstore.WriteReceipt{}, err
	}

	data, err := json.Marshal(doc)
	if err != nil {
		return docstore.WriteReceipt{}, &docstore.ValidationError{
			StoreError: docstore.StoreError{Op: "write", Err: fmt.Errorf("failed to encode document: %w", err)},
			Field:      "document",
			Value:      id,
		}
	}

	var updated time.Time
	if err := s.pool.QueryRow(ctx, writeSQL, collection, id, string(data)).Scan(&updated); err != nil {
		return docstore.WriteReceipt{}, &docstore.StoreError{
			Op:  "write",
			Err: fmt.Errorf("failed to upsert %s/%s: %w", collection, id, err),
		}
	}

	return docstore.WriteReceipt{Collection: collection, ID: id, UpdateTime: updated}, nil
}

// Delete removes the document. Deleting a missing document succeeds.
func (s *Store) Delete(ctx context.Context, collection, id string) (docstore.DeleteReceipt, error) {
	if err := docstore.ValidateKey("delete", collection, id); err != nil {
		return docstore.DeleteReceipt{}, err
	}

	var (
		at      time.Time
		deleted int64
	)
	if err := s.pool.QueryRow(ctx, deleteSQL, collection, id).Scan(&at, &deleted); err != nil {
		return docstore.DeleteReceipt{}, &docstore.StoreError{
			Op:  "delete",
			Err: fmt.Errorf("failed to delete %s/%s: %w", collection, id, err),
		}
	}

	return docstore.DeleteReceipt{Collection: collection, ID: id, UpdateTime: at}, nil
}

// Count returns the number of documents in collection.
func (s *Store) Count(ctx context.Context, collection string) (int64, error) {
	var n int64
	if err := s.pool.QueryRow(ctx, countSQL, collection).Scan(&n); err != nil {
		return 0, &docstore.StoreError{Op: "count", Err: err}
	}
	return n, nil
}

// Close closes the pool if the store opened it. It is safe to call Close multiple times.
func (s *Store) Close() error {
	s.closeOnce.Do(func() {
		if s.ownsPool {
			s.pool.Close()
		}
	})
	return nil
}
