package intercepters

import (
	"github.com/grpc-ecosystem/go-grpc-middleware/v2/interceptors/recovery"
	"go.uber.org/zap"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// RecoveryOption turns a panic in a handler into codes.Internal and logs it.
func RecoveryOption(l *zap.Logger) recovery.Option {
	return recovery.WithRecoveryHandler(func(p any) error {
		l.Error("recovered from panic in grpc handler", zap.Any("panic", p), zap.Stack("stack"))
		return status.Error(codes.Internal, "internal error")
	})
}
