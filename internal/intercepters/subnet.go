package intercepters

import (
	"context"
	"net"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

type contextKey string

const RealIPKey contextKey = "real-ip"

// SubnetIPInterceptor copies the x-real-ip metadata value into the context.
func SubnetIPInterceptor(
	ctx context.Context,
	req interface{},
	info *grpc.UnaryServerInfo,
	handler grpc.UnaryHandler,
) (interface{}, error) {
	md, ok := metadata.FromIncomingContext(ctx)
	if ok {
		if ips := md.Get("x-real-ip"); len(ips) > 0 {
			ctx = context.WithValue(ctx, RealIPKey, ips[0])
		}
	}
	return handler(ctx, req)
}

// TrustedSubnet rejects calls to the listed methods with PermissionDenied
// unless the real IP stored by SubnetIPInterceptor lies within subnet. An
// empty or unparsable subnet denies every listed method.
func TrustedSubnet(subnet string, methods ...string) grpc.UnaryServerInterceptor {
	protected := make(map[string]struct{}, len(methods))
	for _, m := range methods {
		protected[m] = struct{}{}
	}

	var ipNet *net.IPNet
	if subnet != "" {
		_, ipNet, _ = net.ParseCIDR(subnet)
	}

	return func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
		if _, ok := protected[info.FullMethod]; !ok {
			return handler(ctx, req)
		}

		if ipNet == nil {
			return nil, status.Error(codes.PermissionDenied, "trusted subnet is not configured")
		}

		raw, _ := ctx.Value(RealIPKey).(string)
		ip := net.ParseIP(raw)
		if ip == nil || !ipNet.Contains(ip) {
			return nil, status.Error(codes.PermissionDenied, "access denied")
		}

		return handler(ctx, req)
	}
}
