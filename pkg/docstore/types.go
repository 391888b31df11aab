package docstore

import (
	"context"
	"time"

	"go-docbench/pkg/future"
)

type (

	// Document is the body of a stored document.
	Document map[string]any

	// WriteReceipt acknowledges a single write.
	WriteReceipt struct {
		Collection string
		ID         string
		UpdateTime time.Time // Zero means the write was never acknowledged
	}

	// DeleteReceipt acknowledges a single delete.
	DeleteReceipt struct {
		Collection string
		ID         string
		UpdateTime time.Time // Zero means the delete was never acknowledged
	}

	// Receipt is what WriteReceipt and DeleteReceipt have in common.
	Receipt interface {
		Ack() time.Time
	}

	// Store is the blocking document store capability.
	// Implementations must be safe for concurrent use.
	Store interface {
		Write(ctx context.Context, collection, id string, doc Document) (WriteReceipt, error)
		Delete(ctx context.Context, collection, id string) (DeleteReceipt, error)
		Close() error
	}

	// AsyncStore is the suspending form of Store: calls return immediately with a future.
	AsyncStore interface {
		WriteAsync(ctx context.Context, collection, id string, doc Document) *future.Future[WriteReceipt]
		DeleteAsync(ctx context.Context, collection, id string) *future.Future[DeleteReceipt]
	}

	// Counter is implemented by stores that can report how many documents a collection holds.
	Counter interface {
		Count(ctx context.Context, collection string) (int64, error)
	}
)

// Ack returns the acknowledgment timestamp.
func (r WriteReceipt) Ack() time.Time { return r.UpdateTime }

// Ack returns the acknowledgment timestamp.
func (r DeleteReceipt) Ack() time.Time { return r.UpdateTime }

// Acknowledged reports whether r carries an acknowledgment.
func Acknowledged(r Receipt) bool {
	return !r.Ack().IsZero()
}
