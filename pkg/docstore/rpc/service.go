// Package rpc exposes a docstore.Store over gRPC and provides the matching client.
//
// The service is described by hand with well-known protobuf types, so no generated
// code is needed:
//
//	service DocumentService {
//	  rpc Write(google.protobuf.Struct)  returns (google.protobuf.Timestamp);
//	  rpc Delete(google.protobuf.Struct) returns (google.protobuf.Timestamp);
//	  rpc Count(google.protobuf.Struct)  returns (google.protobuf.Int64Value);
//	}
//
// Requests carry "collection", "id" and, for Write, "document".
package rpc

import (
	"context"
	"encoding/base64"
	"fmt"

	"go-docbench/pkg/docstore"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/timestamppb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

const (
	serviceName = "docbench.v1.DocumentService"

	writeMethod  = "/" + serviceName + "/Write"
	deleteMethod = "/" + serviceName + "/Delete"
	countMethod  = "/" + serviceName + "/Count"

	fieldCollection = "collection"
	fieldID         = "id"
	fieldDocument   = "document"
)

// DocumentServiceServer is the server side of DocumentService.
type DocumentServiceServer interface {
	Write(context.Context, *structpb.Struct) (*timestamppb.Timestamp, error)
	Delete(context.Context, *structpb.Struct) (*timestamppb.Timestamp, error)
	Count(context.Context, *structpb.Struct) (*wrapperspb.Int64Value, error)
}

var serviceDesc = grpc.ServiceDesc{
	ServiceName: serviceName,
	HandlerType: (*DocumentServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Write", Handler: writeHandler},
		{MethodName: "Delete", Handler: deleteHandler},
		{MethodName: "Count", Handler: countHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "docbench/v1/document.proto",
}

// RegisterDocumentServiceServer registers srv on s.
func RegisterDocumentServiceServer(s grpc.ServiceRegistrar, srv DocumentServiceServer) {
	s.RegisterService(&serviceDesc, srv)
}

func writeHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(DocumentServiceServer).Write(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: writeMethod}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(DocumentServiceServer).Write(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}

func deleteHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(DocumentServiceServer).Delete(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: deleteMethod}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(DocumentServiceServer).Delete(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}

func countHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(DocumentServiceServer).Count(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: countMethod}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(DocumentServiceServer).Count(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}

// Conversion functions

// toStruct converts a document to a protobuf Struct. Byte slices have no Struct
// representation and travel as base64 strings.
func toStruct(doc docstore.Document) (*structpb.Struct, error) {
	fields := make(map[string]any, len(doc))
	for k, v := range doc {
		if b, ok := v.([]byte); ok {
			fields[k] = base64.StdEncoding.EncodeToString(b)
			continue
		}
		fields[k] = v
	}
	s, err := structpb.NewStruct(fields)
	if err != nil {
		return nil, fmt.Errorf("failed to convert document: %w", err)
	}
	return s, nil
}

func newRequest(collection, id string, doc docstore.Document) (*structpb.Struct, error) {
	fields := map[string]*structpb.Value{
		fieldCollection: structpb.NewStringValue(collection),
	}
	if id != "" {
		fields[fieldID] = structpb.NewStringValue(id)
	}
	if doc != nil {
		body, err := toStruct(doc)
		if err != nil {
			return nil, err
		}
		fields[fieldDocument] = structpb.NewStructValue(body)
	}
	return &structpb.Struct{Fields: fields}, nil
}

func parseRequest(req *structpb.Struct) (collection, id string, doc docstore.Document) {
	fields := req.GetFields()
	collection = fields[fieldCollection].GetStringValue()
	id = fields[fieldID].GetStringValue()
	if body := fields[fieldDocument].GetStructValue(); body != nil {
		doc = docstore.Document(body.AsMap())
	}
	return collection, id, doc
}
