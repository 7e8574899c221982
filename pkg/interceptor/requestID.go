package interceptor

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/metadata"
	"gopherbazaar.com/pkg/common"
)

// RequestIDUnary forwards the caller's request id as outgoing metadata.
func RequestIDUnary() grpc.UnaryClientInterceptor {
	return func(ctx context.Context, method string, req, reply any, cc *grpc.ClientConn, invoker grpc.UnaryInvoker, opts ...grpc.CallOption) error {
		rid := common.RequestIDFromCtx(ctx)
		if rid == "" {
			if md, ok := metadata.FromIncomingContext(ctx); ok {
				if vals := md.Get(common.MetaRequestID); len(vals) > 0 {
					rid = vals[0]
				}
			}
		}
		if rid != "" {
			ctx = metadata.AppendToOutgoingContext(ctx, common.MetaRequestID, rid)
		}
		return invoker(ctx, method, req, reply, cc, opts...)
	}
}

// RequestIDServerUnary takes the id from metadata or mints one, and stores
// it where logger picks it up.
func RequestIDServerUnary() grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		rid := ""
		if md, ok := metadata.FromIncomingContext(ctx); ok {
			if vals := md.Get(common.MetaRequestID); len(vals) > 0 {
				rid = vals[0]
			}
		}
		if rid == "" {
			rid = common.New()
		}
		return handler(common.WithRequestID(ctx, rid), req)
	}
}
