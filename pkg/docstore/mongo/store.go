// Package mongo stores benchmark documents in MongoDB, one document per id keyed by _id.
package mongo

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go-docbench/pkg/docstore"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

var (
	_ docstore.Store   = (*Store)(nil)
	_ docstore.Counter = (*Store)(nil)
)

// Store implements docstore.Store and docstore.Counter on a MongoDB database.
// MongoDB does not return a server timestamp for writes, so receipts carry the
// client time at which the server acknowledged the call.
type Store struct {
	client    *mongo.Client
	db        *mongo.Database
	closeOnce sync.Once
	closeErr  error
}

// Connect opens a client for uri, pings the primary and returns a store on database.
func Connect(ctx context.Context, uri, database string) (*Store, error) {
	if database == "" {
		return nil, &docstore.ValidationError{
			StoreError: docstore.StoreError{Op: "Connect", Err: fmt.Errorf("database cannot be empty")},
			Field:      "database",
		}
	}

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, &docstore.ResourceError{
			StoreError: docstore.StoreError{Op: "Connect", Err: err},
			Resource:   "mongo",
		}
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return nil, &docstore.ResourceError{
			StoreError: docstore.StoreError{
				Op:  "Connect",
				Err: fmt.Errorf("unable to reach mongo: %w", err),
			},
			Resource: "mongo",
		}
	}

	return &Store{client: client, db: client.Database(database)}, nil
}

// Write replaces or inserts the document with _id = id.
func (s *Store) Write(ctx context.Context, collection, id string, doc docstore.Document) (docstore.WriteReceipt, error) {
	if err := docstore.ValidateKey("write", collection, id); err != nil {
		return docstore.WriteReceipt{}, err
	}

	body := make(bson.M, len(doc))
	for k, v := range doc {
		body[k] = v
	}

	_, err := s.db.Collection(collection).ReplaceOne(ctx, bson.M{"_id": id}, body, options.Replace().SetUpsert(true))
	if err != nil {
		return docstore.WriteReceipt{}, &docstore.StoreError{
			Op:  "write",
			Err: fmt.Errorf("failed to upsert %s/%s: %w", collection, id, err),
		}
	}
	return docstore.WriteReceipt{Collection: collection, ID: id, UpdateTime: time.Now().UTC()}, nil
}

// Delete removes the document with _id = id. Deleting a missing document succeeds.
func (s *Store) Delete(ctx context.Context, collection, id string) (docstore.DeleteReceipt, error) {
	if err := docstore.ValidateKey("delete", collection, id); err != nil {
		return docstore.DeleteReceipt{}, err
	}

	if _, err := s.db.Collection(collection).DeleteOne(ctx, bson.M{"_id": id}); err != nil {
		return docstore.DeleteReceipt{}, &docstore.StoreError{
			Op:  "delete",
			Err: fmt.Errorf("failed to delete %s/%s: %w", collection, id, err),
		}
	}
	return docstore.DeleteReceipt{Collection: collection, ID: id, UpdateTime: time.Now().UTC()}, nil
}

// Count returns the number of documents in collection.
func (s *Store) Count(ctx context.Context, collection string) (int64, error) {
	n, err := s.db.Collection(collection).CountDocuments(ctx, bson.D{})
	if err != nil {
		return 0, &docstore.StoreError{Op: "count", Err: err}
	}
	return n, nil
}

// Drop removes collection entirely.
func (s *Store) Drop(ctx context.Context, collection string) error {
	if err := s.db.Collection(collection).Drop(ctx); err != nil {
		return &docstore.StoreError{Op: "drop", Err: err}
	}
	return nil
}

// Close disconnects the client. It is safe to call Close multiple times.
func (s *Store) Close() error {
	s.closeOnce.Do(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		s.closeErr = s.client.Disconnect(ctx)
	})
	return s.closeErr
}
