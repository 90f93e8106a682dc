package grpc_test

import (
	"context"
	"errors"
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
	"go.uber.org/zap/zaptest"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	shortgrpc "github.com/atinyakov/shorturl-microservice/internal/app/server/grpc"
	"github.com/atinyakov/shorturl-microservice/internal/app/service"
	"github.com/atinyakov/shorturl-microservice/internal/mocks"
	"github.com/atinyakov/shorturl-microservice/internal/models"
	"github.com/atinyakov/shorturl-microservice/internal/storage"
)

type testResolver struct{}

func (testResolver) LookupHost(context.Context, string) ([]string, error) {
	return []string{"127.0.0.1"}, nil
}

// startServer serves svc over an in-memory listener and returns a client.
func startServer(t *testing.T, svc service.URLServiceIface) *shortgrpc.ShortURLClient {
	t.Helper()

	lis := bufconn.Listen(1 << 20)
	srv := shortgrpc.New("", "10.0.0.0/8", zaptest.NewLogger(t), svc)

	go func() {
		_ = srv.Serve(lis)
	}()
	t.Cleanup(srv.GracefulStop)

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	return shortgrpc.NewShortURLClient(conn)
}

func newService(t *testing.T) service.URLServiceIface {
	logger := zaptest.NewLogger(t)
	registry, err := storage.CreateMemoryStorage()
	require.NoError(t, err)
	return service.NewURL(service.NewValidator(testResolver{}, 0, logger), registry, logger)
}

func TestShortenAndResolve(t *testing.T) {
	client := startServer(t, newService(t))
	ctx := context.Background()

	out, err := client.Shorten(ctx, wrapperspb.String("https://www.freecodecamp.org"))
	require.NoError(t, err)
	assert.Equal(t, "https://www.freecodecamp.org/", out.GetFields()["original_url"].GetStringValue())
	assert.EqualValues(t, 1, out.GetFields()["short_url"].GetNumberValue())

	again, err := client.Shorten(ctx, wrapperspb.String("https://WWW.freecodecamp.org:443/"))
	require.NoError(t, err)
	assert.EqualValues(t, 1, again.GetFields()["short_url"].GetNumberValue())

	resolved, err := client.Resolve(ctx, wrapperspb.Int64(1))
	require.NoError(t, err)
	assert.Equal(t, "https://www.freecodecamp.org/", resolved.GetValue())
}

func TestShorten_InvalidURL(t *testing.T) {
	client := startServer(t, newService(t))

	_, err := client.Shorten(context.Background(), wrapperspb.String("ftp:/john-doe.invalid"))
	require.Error(t, err)
	assert.Equal(t, codes.InvalidArgument, status.Code(err))
	assert.Equal(t, "invalid url", status.Convert(err).Message())
}

func TestResolve_NotFound(t *testing.T) {
	client := startServer(t, newService(t))

	for _, id := range []int64{0, -5, 2} {
		_, err := client.Resolve(context.Background(), wrapperspb.Int64(id))
		require.Error(t, err)
		assert.Equal(t, codes.NotFound, status.Code(err))
		assert.Equal(t, "No short URL found", status.Convert(err).Message())
	}
}

func TestStats_Subnet(t *testing.T) {
	ctrl := gomock.NewController(t)
	mockService := mocks.NewMockURLServiceIface(ctrl)
	client := startServer(t, mockService)

	_, err := client.Stats(context.Background(), &emptypb.Empty{})
	assert.Equal(t, codes.PermissionDenied, status.Code(err))

	outside := metadata.AppendToOutgoingContext(context.Background(), "x-real-ip", "192.168.0.10")
	_, err = client.Stats(outside, &emptypb.Empty{})
	assert.Equal(t, codes.PermissionDenied, status.Code(err))

	mockService.EXPECT().Stats(gomock.Any()).Return(&models.Stats{URLs: 3}, nil)

	inside := metadata.AppendToOutgoingContext(context.Background(), "x-real-ip", "10.1.1.1")
	out, err := client.Stats(inside, &emptypb.Empty{})
	require.NoError(t, err)
	assert.EqualValues(t, 3, out.GetValue())
}

func TestShortenerServer_InternalErrors(t *testing.T) {
	ctrl := gomock.NewController(t)
	mockService := mocks.NewMockURLServiceIface(ctrl)
	handler := &shortgrpc.ShortenerServer{Service: mockService}
	ctx := context.Background()

	mockService.EXPECT().Shorten(ctx, "https://example.com").Return(nil, errors.New("db down"))
	_, err := handler.Shorten(ctx, wrapperspb.String("https://example.com"))
	assert.Equal(t, codes.Internal, status.Code(err))

	mockService.EXPECT().Resolve(ctx, "7").Return(nil, errors.New("db down"))
	_, err = handler.Resolve(ctx, wrapperspb.Int64(7))
	assert.Equal(t, codes.Internal, status.Code(err))

	mockService.EXPECT().Stats(ctx).Return(nil, errors.New("db down"))
	_, err = handler.Stats(ctx, &emptypb.Empty{})
	assert.Equal(t, codes.Internal, status.Code(err))
}

func TestShortenerServer_Resolve(t *testing.T) {
	ctrl := gomock.NewController(t)
	mockService := mocks.NewMockURLServiceIface(ctrl)
	handler := &shortgrpc.ShortenerServer{Service: mockService}

	mockService.EXPECT().Resolve(gomock.Any(), "42").
		Return(&storage.URLRecord{ID: 42, Original: "https://example.com/"}, nil)

	out, err := handler.Resolve(context.Background(), wrapperspb.Int64(42))
	require.NoError(t, err)
	assert.Equal(t, "https://example.com/", out.GetValue())
}
