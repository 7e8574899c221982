package interceptor

import (
	"context"

	"google.golang.org/grpc"
	"gopherbazaar.com/pkg/metrics"
	"gopherbazaar.com/pkg/ratelimit"
	"gopherbazaar.com/pkg/xerr"
)

// RateLimitByMethodUnary keys the token bucket on FullMethod only.
func RateLimitByMethodUnary(store *ratelimit.Store, serviceName string) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		if !store.Allow(info.FullMethod) {
			metrics.RateLimitBlockTotal.WithLabelValues(serviceName, info.FullMethod, "token_bucket").Inc()
			return nil, xerr.NewErrCode(xerr.TooManyRequests)
		}
		return handler(ctx, req)
	}
}
