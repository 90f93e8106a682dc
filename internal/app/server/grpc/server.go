// Package grpc exposes the URL shortener over gRPC.
package grpc

import (
	"context"
	"errors"
	"net"
	"strconv"

	"github.com/grpc-ecosystem/go-grpc-middleware/v2/interceptors/logging"
	"github.com/grpc-ecosystem/go-grpc-middleware/v2/interceptors/recovery"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/atinyakov/shorturl-microservice/internal/app/service"
	"github.com/atinyakov/shorturl-microservice/internal/intercepters"
	"github.com/atinyakov/shorturl-microservice/internal/storage"
)

// Server wraps the gRPC server and dependencies.
type Server struct {
	grpcServer *grpc.Server
	addr       string
	logger     *zap.Logger
}

// New creates a gRPC server listening on addr once started. Stats calls are
// only served to peers whose x-real-ip metadata lies within trustedSubnet.
func New(addr string, trustedSubnet string, logger *zap.Logger, svc service.URLServiceIface) *Server {
	s := grpc.NewServer(
		grpc.ChainUnaryInterceptor(
			recovery.UnaryServerInterceptor(intercepters.RecoveryOption(logger)),
			logging.UnaryServerInterceptor(intercepters.InterceptorLogger(logger)),
			intercepters.SubnetIPInterceptor,
			intercepters.TrustedSubnet(trustedSubnet, StatsFullMethod),
		),
	)

	RegisterShortURLServer(s, &ShortenerServer{
		Service: svc,
	})

	return &Server{
		grpcServer: s,
		addr:       addr,
		logger:     logger,
	}
}

// Start listens on the configured address and serves until stopped.
func (s *Server) Start() error {
	lis, err := net.Listen("tcp", s.addr)
	if err != nil {
		s.logger.Error("gRPC server failed to listen", zap.Error(err))
		return err
	}

	return s.Serve(lis)
}

// Serve accepts connections on lis.
func (s *Server) Serve(lis net.Listener) error {
	s.logger.Info("gRPC server listening", zap.String("addr", lis.Addr().String()))
	return s.grpcServer.Serve(lis)
}

// GracefulStop shuts down the server gracefully.
func (s *Server) GracefulStop() {
	s.grpcServer.GracefulStop()
}

// ShortenerServer implements ShortURLServer on top of the URL service.
type ShortenerServer struct {
	Service service.URLServiceIface
}

func (s *ShortenerServer) Shorten(ctx context.Context, req *wrapperspb.StringValue) (*structpb.Struct, error) {
	r, err := s.Service.Shorten(ctx, req.GetValue())
	if err != nil {
		if errors.Is(err, service.ErrInvalidURL) {
			return nil, status.Error(codes.InvalidArgument, "invalid url")
		}
		return nil, status.Error(codes.Internal, err.Error())
	}

	return structpb.NewStruct(map[string]any{
		"original_url": r.Original,
		"short_url":    r.ID,
	})
}

func (s *ShortenerServer) Resolve(ctx context.Context, req *wrapperspb.Int64Value) (*wrapperspb.StringValue, error) {
	r, err := s.Service.Resolve(ctx, strconv.FormatInt(req.GetValue(), 10))
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, status.Error(codes.NotFound, "No short URL found")
		}
		return nil, status.Error(codes.Internal, err.Error())
	}

	return wrapperspb.String(r.Original), nil
}

func (s *ShortenerServer) Stats(ctx context.Context, _ *emptypb.Empty) (*wrapperspb.Int64Value, error) {
	stats, err := s.Service.Stats(ctx)
	if err != nil {
		return nil, status.Error(codes.Internal, err.Error())
	}

	return wrapperspb.Int64(int64(stats.URLs)), nil
}
