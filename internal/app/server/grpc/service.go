package grpc

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

// ServiceName is the fully qualified name of the shortener service.
const ServiceName = "shorturl.v1.ShortURL"

const (
	ShortenFullMethod = "/" + ServiceName + "/Shorten"
	ResolveFullMethod = "/" + ServiceName + "/Resolve"
	StatsFullMethod   = "/" + ServiceName + "/Stats"
)

// ShortURLServer is the server API of the shortener service.
type ShortURLServer interface {
	// Shorten returns {"original_url": ..., "short_url": ...} for a valid URL.
	Shorten(context.Context, *wrapperspb.StringValue) (*structpb.Struct, error)
	// Resolve returns the canonical URL registered under the id.
	Resolve(context.Context, *wrapperspb.Int64Value) (*wrapperspb.StringValue, error)
	// Stats returns the number of registered URLs.
	Stats(context.Context, *emptypb.Empty) (*wrapperspb.Int64Value, error)
}

// RegisterShortURLServer registers srv on s.
func RegisterShortURLServer(s grpc.ServiceRegistrar, srv ShortURLServer) {
	s.RegisterService(&ShortURLServiceDesc, srv)
}

func shortenHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(wrapperspb.StringValue)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(ShortURLServer).Shorten(ctx, in)
	}
	info := &grpc.UnaryServerInfo{
		Server:     srv,
		FullMethod: ShortenFullMethod,
	}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(ShortURLServer).Shorten(ctx, req.(*wrapperspb.StringValue))
	}
	return interceptor(ctx, in, info, handler)
}

func resolveHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(wrapperspb.Int64Value)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(ShortURLServer).Resolve(ctx, in)
	}
	info := &grpc.UnaryServerInfo{
		Server:     srv,
		FullMethod: ResolveFullMethod,
	}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(ShortURLServer).Resolve(ctx, req.(*wrapperspb.Int64Value))
	}
	return interceptor(ctx, in, info, handler)
}

func statsHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(emptypb.Empty)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(ShortURLServer).Stats(ctx, in)
	}
	info := &grpc.UnaryServerInfo{
		Server:     srv,
		FullMethod: StatsFullMethod,
	}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(ShortURLServer).Stats(ctx, req.(*emptypb.Empty))
	}
	return interceptor(ctx, in, info, handler)
}

// ShortURLServiceDesc describes the shortener service. Messages are protobuf
// well-known types, so no generated code is needed.
var ShortURLServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*ShortURLServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Shorten", Handler: shortenHandler},
		{MethodName: "Resolve", Handler: resolveHandler},
		{MethodName: "Stats", Handler: statsHandler},
	},
	Streams: []grpc.StreamDesc{},
}

// ShortURLClient is the client API of the shortener service.
type ShortURLClient struct {
	cc grpc.ClientConnInterface
}

func NewShortURLClient(cc grpc.ClientConnInterface) *ShortURLClient {
	return &ShortURLClient{cc: cc}
}

func (c *ShortURLClient) Shorten(ctx context.Context, in *wrapperspb.StringValue, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, ShortenFullMethod, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *ShortURLClient) Resolve(ctx context.Context, in *wrapperspb.Int64Value, opts ...grpc.CallOption) (*wrapperspb.StringValue, error) {
	out := new(wrapperspb.StringValue)
	if err := c.cc.Invoke(ctx, ResolveFullMethod, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *ShortURLClient) Stats(ctx context.Context, in *emptypb.Empty, opts ...grpc.CallOption) (*wrapperspb.Int64Value, error) {
	out := new(wrapperspb.Int64Value)
	if err := c.cc.Invoke(ctx, StatsFullMethod, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}
