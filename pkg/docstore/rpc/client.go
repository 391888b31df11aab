package rpc

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go-docbench/pkg/docstore"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/timestamppb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

var (
	_ docstore.Store   = (*Client)(nil)
	_ docstore.Counter = (*Client)(nil)
)

// Client is a docstore.Store that talks to a DocumentService. A single Client
// multiplexes concurrent calls over one connection.
type Client struct {
	conn      *grpc.ClientConn
	closeOnce sync.Once
	closeErr  error
}

// Dial connects to target and waits until the server reports SERVING.
// Without extra options the connection is plaintext.
func Dial(ctx context.Context, target string, opts ...grpc.DialOption) (*Client, error) {
	if len(opts) == 0 {
		opts = []grpc.DialOption{grpc.WithTransportCredentials(insecure.NewCredentials())}
	}

	conn, err := grpc.NewClient(target, opts...)
	if err != nil {
		return nil, &docstore.ResourceError{
			StoreError: docstore.StoreError{Op: "Dial", Err: err},
			Resource:   "grpc",
		}
	}

	checkCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	resp, err := healthpb.NewHealthClient(conn).Check(checkCtx, &healthpb.HealthCheckRequest{Service: serviceName})
	if err == nil && resp.GetStatus() != healthpb.HealthCheckResponse_SERVING {
		err = fmt.Errorf("service status %s", resp.GetStatus())
	}
	if err != nil {
		conn.Close()
		return nil, &docstore.ResourceError{
			StoreError: docstore.StoreError{
				Op:  "Dial",
				Err: fmt.Errorf("document service at %s is not serving: %w", target, err),
			},
			Resource: "grpc",
		}
	}

	return &Client{conn: conn}, nil
}

func (c *Client) Write(ctx context.Context, collection, id string, doc docstore.Document) (docstore.WriteReceipt, error) {
	if err := docstore.ValidateKey("write", collection, id); err != nil {
		return docstore.WriteReceipt{}, err
	}
	if doc == nil {
		doc = docstore.Document{}
	}

	req, err := newRequest(collection, id, doc)
	if err != nil {
		return docstore.WriteReceipt{}, &docstore.ValidationError{
			StoreError: docstore.StoreError{Op: "write", Err: err},
			Field:      "document",
			Value:      id,
		}
	}

	out := new(timestamppb.Timestamp)
	if err := c.conn.Invoke(ctx, writeMethod, req, out); err != nil {
		return docstore.WriteReceipt{}, fromStatus("write", err)
	}
	return docstore.WriteReceipt{Collection: collection, ID: id, UpdateTime: out.AsTime()}, nil
}

func (c *Client) Delete(ctx context.Context, collection, id string) (docstore.DeleteReceipt, error) {
	if err := docstore.ValidateKey("delete", collection, id); err != nil {
		return docstore.DeleteReceipt{}, err
	}

	req, err := newRequest(collection, id, nil)
	if err != nil {
		return docstore.DeleteReceipt{}, &docstore.StoreError{Op: "delete", Err: err}
	}

	out := new(timestamppb.Timestamp)
	if err := c.conn.Invoke(ctx, deleteMethod, req, out); err != nil {
		return docstore.DeleteReceipt{}, fromStatus("delete", err)
	}
	return docstore.DeleteReceipt{Collection: collection, ID: id, UpdateTime: out.AsTime()}, nil
}

// Count asks the server to count collection.
func (c *Client) Count(ctx context.Context, collection string) (int64, error) {
	req, err := newRequest(collection, "", nil)
	if err != nil {
		return 0, &docstore.StoreError{Op: "count", Err: err}
	}

	out := new(wrapperspb.Int64Value)
	if err := c.conn.Invoke(ctx, countMethod, req, out); err != nil {
		return 0, fromStatus("count", err)
	}
	return out.GetValue(), nil
}

// Close closes the connection. It is safe to call Close multiple times.
func (c *Client) Close() error {
	c.closeOnce.Do(func() {
		c.closeErr = c.conn.Close()
	})
	return c.closeErr
}

// fromStatus maps gRPC status codes back onto store errors.
func fromStatus(op string, err error) error {
	st, _ := status.FromError(err)
	switch st.Code() {
	case codes.InvalidArgument:
		return &docstore.ValidationError{
			StoreError: docstore.StoreError{Op: op, Err: err},
			Field:      "request",
		}
	case codes.NotFound:
		return &docstore.StoreError{Op: op, Err: fmt.Errorf("%w: %s", docstore.ErrNotFound, st.Message())}
	case codes.Unavailable:
		return &docstore.ResourceError{
			StoreError: docstore.StoreError{Op: op, Err: err},
			Resource:   "grpc",
		}
	default:
		return &docstore.StoreError{Op: op, Err: err}
	}
}
