package interceptor

import (
	"context"

	"github.com/sony/gobreaker/v2"
	"google.golang.org/grpc"
	"gopherbazaar.com/pkg/metrics"
	"gopherbazaar.com/pkg/ratelimit"
	"gopherbazaar.com/pkg/xerr"
)

// CircuitBreakUnaryClient guards each method with its own breaker. Open
// breakers fail fast with xerr.Unavailable without touching the wire.
func CircuitBreakUnaryClient(mgr *ratelimit.Manager, serviceName string) grpc.UnaryClientInterceptor {
	mgr.OnStateChange(func(name string, from, to gobreaker.State) {
		metrics.CBState.WithLabelValues(serviceName, name, from.String()).Set(0)
		metrics.CBState.WithLabelValues(serviceName, name, to.String()).Set(1)
	})
	return func(
		ctx context.Context,
		method string,
		req, reply any,
		cc *grpc.ClientConn,
		invoker grpc.UnaryInvoker,
		opts ...grpc.CallOption,
	) error {
		cb := mgr.Get(method)
		_, err := cb.Execute(func() (any, error) {
			return nil, invoker(ctx, method, req, reply, cc, opts...)
		})
		if ratelimit.IsOpen(err) {
			metrics.CBRejectTotal.WithLabelValues(serviceName, method, "open").Inc()
			return xerr.Wrap(err, xerr.Unavailable, "circuit breaker open")
		}
		return err
	}
}

// BreakerSuccess is the IsSuccessful hook for breakers in front of remote
// services: coded client-side errors (not found, rejected...) are answers,
// not outages.
func BreakerSuccess(err error) bool {
	if err == nil {
		return true
	}
	ce, ok := xerr.As(err)
	return ok && ce.Code < xerr.ServerCommonError
}
