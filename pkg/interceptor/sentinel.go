package interceptor

import (
	"context"

	sentinels "github.com/alibaba/sentinel-golang/api"
	"github.com/alibaba/sentinel-golang/core/base"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"gopherbazaar.com/pkg/logger"
	"gopherbazaar.com/pkg/xerr"
)

// SentinelUnaryServerInterceptor guards each FullMethod as a sentinel
// resource. Only system errors are traced so business answers never feed
// sentinel's breaker statistics.
func SentinelUnaryServerInterceptor() grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		resource := info.FullMethod
		entry, blockErr := sentinels.Entry(resource, sentinels.WithTrafficType(base.Inbound))
		if blockErr != nil {
			logger.Warn(ctx, "request blocked by sentinel",
				zap.String("method", resource),
				zap.String("blockType", blockErr.BlockType().String()),
				zap.String("blockMsg", blockErr.Error()),
			)
			return nil, status.Error(codes.ResourceExhausted, "service is busy, please try again later")
		}
		defer entry.Exit()

		resp, err := handler(ctx, req)
		if isSystemError(err) {
			sentinels.TraceError(entry, err)
		}
		return resp, err
	}
}

func isSystemError(err error) bool {
	if err == nil {
		return false
	}
	if ce, ok := xerr.As(err); ok {
		return ce.Code >= xerr.ServerCommonError
	}
	st, ok := status.FromError(err)
	if !ok {
		return true
	}
	switch st.Code() {
	case codes.Internal, codes.Unavailable, codes.DeadlineExceeded,
		codes.ResourceExhausted, codes.DataLoss, codes.Unknown:
		return true
	default:
		return false
	}
}
