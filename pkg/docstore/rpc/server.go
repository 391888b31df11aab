package rpc

import (
	"context"
	"errors"
	"time"

	"go-docbench/pkg/docstore"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/timestamppb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

// Server serves DocumentService from any docstore.Store.
type Server struct {
	store  docstore.Store
	logger *zap.Logger
}

var _ DocumentServiceServer = (*Server)(nil)

// NewServer creates a Server backed by store.
func NewServer(store docstore.Store, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{store: store, logger: logger}
}

// NewGRPCServer builds a grpc.Server with DocumentService and the standard health
// service registered, plus a logging interceptor.
func NewGRPCServer(srv *Server, opts ...grpc.ServerOption) *grpc.Server {
	opts = append(opts, grpc.ChainUnaryInterceptor(srv.logInterceptor))
	gs := grpc.NewServer(opts...)

	RegisterDocumentServiceServer(gs, srv)

	hs := health.NewServer()
	hs.SetServingStatus(serviceName, healthpb.HealthCheckResponse_SERVING)
	healthpb.RegisterHealthServer(gs, hs)
	return gs
}

func (s *Server) logInterceptor(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
	start := time.Now()
	resp, err := handler(ctx, req)
	if err != nil {
		s.logger.Warn("rpc failed",
			zap.String("method", info.FullMethod),
			zap.Duration("duration", time.Since(start)),
			zap.Error(err),
		)
		return resp, err
	}
	s.logger.Debug("rpc",
		zap.String("method", info.FullMethod),
		zap.Duration("duration", time.Since(start)),
	)
	return resp, nil
}

func (s *Server) Write(ctx context.Context, req *structpb.Struct) (*timestamppb.Timestamp, error) {
	collection, id, doc := parseRequest(req)
	if doc == nil {
		doc = docstore.Document{}
	}
	r, err := s.store.Write(ctx, collection, id, doc)
	if err != nil {
		return nil, toStatus(err)
	}
	return timestamppb.New(r.UpdateTime), nil
}

func (s *Server) Delete(ctx context.Context, req *structpb.Struct) (*timestamppb.Timestamp, error) {
	collection, id, _ := parseRequest(req)
	r, err := s.store.Delete(ctx, collection, id)
	if err != nil {
		return nil, toStatus(err)
	}
	return timestamppb.New(r.UpdateTime), nil
}

func (s *Server) Count(ctx context.Context, req *structpb.Struct) (*wrapperspb.Int64Value, error) {
	counter, ok := s.store.(docstore.Counter)
	if !ok {
		return nil, status.Error(codes.Unimplemented, "backend cannot count documents")
	}
	collection, _, _ := parseRequest(req)
	n, err := counter.Count(ctx, collection)
	if err != nil {
		return nil, toStatus(err)
	}
	return wrapperspb.Int64(n), nil
}

// toStatus maps store errors onto gRPC status codes.
func toStatus(err error) error {
	switch {
	case docstore.IsValidationError(err):
		return status.Error(codes.InvalidArgument, err.Error())
	case errors.Is(err, docstore.ErrNotFound):
		return status.Error(codes.NotFound, err.Error())
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return status.FromContextError(err).Err()
	case docstore.IsResourceError(err):
		return status.Error(codes.Unavailable, err.Error())
	default:
		return status.Error(codes.Internal, err.Error())
	}
}
