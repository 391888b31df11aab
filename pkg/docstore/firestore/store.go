// Package firestore stores benchmark documents in Google Cloud Firestore.
//
// Credentials and project selection follow the Google client defaults
// (GOOGLE_APPLICATION_CREDENTIALS, FIRESTORE_EMULATOR_HOST).
package firestore

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go-docbench/pkg/docstore"

	"cloud.google.com/go/firestore"
)

var (
	_ docstore.Store   = (*Store)(nil)
	_ docstore.Counter = (*Store)(nil)
)

// Store implements docstore.Store and docstore.Counter on a Firestore client.
// Write receipts carry the server UpdateTime of the write result. Delete results have
// none, so delete receipts carry client time at acknowledgment.
type Store struct {
	client    *firestore.Client
	closeOnce sync.Once
	closeErr  error
}

// Connect creates a Firestore client for projectID.
func Connect(ctx context.Context, projectID string) (*Store, error) {
	if projectID == "" {
		projectID = firestore.DetectProjectID
	}
	client, err := firestore.NewClient(ctx, projectID)
	if err != nil {
		return nil, &docstore.ResourceError{
			StoreError: docstore.StoreError{Op: "Connect", Err: err},
			Resource:   "firestore",
		}
	}
	return &Store{client: client}, nil
}

// Write sets the document, replacing any previous content.
func (s *Store) Write(ctx context.Context, collection, id string, doc docstore.Document) (docstore.WriteReceipt, error) {
	if err := docstore.ValidateKey("write", collection, id); err != nil {
		return docstore.WriteReceipt{}, err
	}

	res, err := s.client.Collection(collection).Doc(id).Set(ctx, map[string]any(doc))
	if err != nil {
		return docstore.WriteReceipt{}, &docstore.StoreError{
			Op:  "write",
			Err: fmt.Errorf("failed to set %s/%s: %w", collection, id, err),
		}
	}
	return docstore.WriteReceipt{Collection: collection, ID: id, UpdateTime: res.UpdateTime}, nil
}

// Delete removes the document. Firestore treats deleting a missing document as success.
func (s *Store) Delete(ctx context.Context, collection, id string) (docstore.DeleteReceipt, error) {
	if err := docstore.ValidateKey("delete", collection, id); err != nil {
		return docstore.DeleteReceipt{}, err
	}

	res, err := s.client.Collection(collection).Doc(id).Delete(ctx)
	if err != nil {
		return docstore.DeleteReceipt{}, &docstore.StoreError{
			Op:  "delete",
			Err: fmt.Errorf("failed to delete %s/%s: %w", collection, id, err),
		}
	}
	// Firestore sets no update time on a delete result
	ack := res.UpdateTime
	if ack.IsZero() {
		ack = time.Now().UTC()
	}
	return docstore.DeleteReceipt{Collection: collection, ID: id, UpdateTime: ack}, nil
}

// Count reads every document reference in collection. Only meant for the small
// collections a benchmark leaves behind.
func (s *Store) Count(ctx context.Context, collection string) (int64, error) {
	refs, err := s.client.Collection(collection).DocumentRefs(ctx).GetAll()
	if err != nil {
		return 0, &docstore.StoreError{Op: "count", Err: err}
	}
	return int64(len(refs)), nil
}

// Close closes the client. It is safe to call Close multiple times.
func (s *Store) Close() error {
	s.closeOnce.Do(func() {
		s.closeErr = s.client.Close()
	})
	return s.closeErr
}
