package firestore

import (
	"context"
	"net"
	"strings"
	"sync"
	"testing"

	"cloud.google.com/go/firestore/apiv1/firestorepb"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/timestamppb"
)

// fakeFirestore keeps documents in memory. Commit results follow the service contract:
// update_time is set for updates and left unset for deletes.
type fakeFirestore struct {
	firestorepb.UnimplementedFirestoreServer

	mu   sync.Mutex
	docs map[string]*firestorepb.Document
}

func (f *fakeFirestore) Commit(_ context.Context, req *firestorepb.CommitRequest) (*firestorepb.CommitResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	now := timestamppb.Now()
	resp := &firestorepb.CommitResponse{CommitTime: now}
	for _, w := range req.GetWrites() {
		result := &firestorepb.WriteResult{}
		switch op := w.GetOperation().(type) {
		case *firestorepb.Write_Update:
			f.docs[op.Update.GetName()] = op.Update
			result.UpdateTime = now
		case *firestorepb.Write_Delete:
			delete(f.docs, op.Delete)
		}
		resp.WriteResults = append(resp.WriteResults, result)
	}
	return resp, nil
}

func (f *fakeFirestore) ListDocuments(_ context.Context, req *firestorepb.ListDocumentsRequest) (*firestorepb.ListDocumentsResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	prefix := req.GetParent() + "/" + req.GetCollectionId() + "/"
	resp := &firestorepb.ListDocumentsResponse{}
	for name := range f.docs {
		if rest, ok := strings.CutPrefix(name, prefix); ok && !strings.Contains(rest, "/") {
			resp.Documents = append(resp.Documents, &firestorepb.Document{Name: name})
		}
	}
	return resp, nil
}

// startFakeFirestore serves a fakeFirestore on loopback and points the client library at it.
func startFakeFirestore(t *testing.T) *fakeFirestore {
	t.Helper()

	lis, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	fake := &fakeFirestore{docs: make(map[string]*firestorepb.Document)}
	srv := grpc.NewServer()
	firestorepb.RegisterFirestoreServer(srv, fake)
	go srv.Serve(lis)
	t.Cleanup(srv.Stop)

	t.Setenv("FIRESTORE_EMULATOR_HOST", lis.Addr().String())
	return fake
}
