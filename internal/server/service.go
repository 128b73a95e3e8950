// gRPC service description and client for the item service. Messages are
// google.protobuf.Struct values, so no generated code is needed.
package server

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
)

// ServiceName is the fully qualified gRPC service name
const ServiceName = "itemstore.v1.ItemService"

// ItemServiceServer is implemented by Server
type ItemServiceServer interface {
	Persist(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Load(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Match(context.Context, *structpb.Struct) (*structpb.Struct, error)
	DataDictionary(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Search(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Report(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

type unaryCall func(ItemServiceServer, context.Context, *structpb.Struct) (*structpb.Struct, error)

func unaryHandler(method string, call unaryCall) grpc.MethodHandler {
	return func(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
		in := new(structpb.Struct)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(ItemServiceServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{
			Server:     srv,
			FullMethod: "/" + ServiceName + "/" + method,
		}
		handler := func(ctx context.Context, req interface{}) (interface{}, error) {
			return call(srv.(ItemServiceServer), ctx, req.(*structpb.Struct))
		}
		return interceptor(ctx, in, info, handler)
	}
}

// ItemServiceDesc describes the item service for grpc.Server.RegisterService
var ItemServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*ItemServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Persist", Handler: unaryHandler("Persist", ItemServiceServer.Persist)},
		{MethodName: "Load", Handler: unaryHandler("Load", ItemServiceServer.Load)},
		{MethodName: "Match", Handler: unaryHandler("Match", ItemServiceServer.Match)},
		{MethodName: "DataDictionary", Handler: unaryHandler("DataDictionary", ItemServiceServer.DataDictionary)},
		{MethodName: "Search", Handler: unaryHandler("Search", ItemServiceServer.Search)},
		{MethodName: "Report", Handler: unaryHandler("Report", ItemServiceServer.Report)},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "itemstore/v1/item_service",
}

// RegisterItemServiceServer registers srv with s
func RegisterItemServiceServer(s grpc.ServiceRegistrar, srv ItemServiceServer) {
	s.RegisterService(&ItemServiceDesc, srv)
}

// ItemServiceClient calls the item service
type ItemServiceClient struct {
	cc grpc.ClientConnInterface
}

// NewItemServiceClient creates a client over cc
func NewItemServiceClient(cc grpc.ClientConnInterface) *ItemServiceClient {
	return &ItemServiceClient{cc: cc}
}

func (c *ItemServiceClient) invoke(ctx context.Context, method string, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, "/"+ServiceName+"/"+method, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

// Persist stores a bag
func (c *ItemServiceClient) Persist(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, "Persist", in, opts...)
}

// Load fetches a stored bag
func (c *ItemServiceClient) Load(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, "Load", in, opts...)
}

// Match finds stored bags equal to a probe
func (c *ItemServiceClient) Match(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, "Match", in, opts...)
}

// DataDictionary lists the field paths in the corpus
func (c *ItemServiceClient) DataDictionary(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, "DataDictionary", in, opts...)
}

// Search queries the index
func (c *ItemServiceClient) Search(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, "Search", in, opts...)
}

// Report summarises the corpus and index
func (c *ItemServiceClient) Report(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, "Report", in, opts...)
}
