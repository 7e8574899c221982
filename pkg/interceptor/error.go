package interceptor

import (
	"context"
	"errors"
	"runtime/debug"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"gopherbazaar.com/pkg/logger"
	"gopherbazaar.com/pkg/xerr"
)

// ErrorUnary turns handler errors into grpc statuses. Coded errors keep
// their message so the client can rebuild them; anything else is Internal.
func ErrorUnary() grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		resp, err := handler(ctx, req)
		if err == nil {
			return resp, nil
		}
		if _, ok := status.FromError(err); ok && !isCoded(err) {
			return nil, err
		}

		if ce, ok := xerr.As(err); ok {
			logger.Warn(ctx, "grpc biz error",
				zap.String("grpc_method", info.FullMethod),
				zap.Int("biz_code", ce.Code),
				zap.String("message", ce.Msg),
				zap.NamedError("cause", ce.Cause),
			)
			return nil, status.Error(ToGrpcCode(ce.Code), ce.Msg)
		}
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, status.Error(codes.DeadlineExceeded, err.Error())
		}

		logger.Error(ctx, "grpc unknown error",
			zap.String("grpc_method", info.FullMethod),
			zap.Error(err),
			zap.ByteString("stack", debug.Stack()),
		)
		return nil, status.Error(codes.Internal, "internal error")
	}
}

// ErrorUnaryClient rebuilds coded errors from statuses so callers can match
// them with errors.Is against their sentinels.
func ErrorUnaryClient() grpc.UnaryClientInterceptor {
	return func(ctx context.Context, method string, req, reply any, cc *grpc.ClientConn, invoker grpc.UnaryInvoker, opts ...grpc.CallOption) error {
		err := invoker(ctx, method, req, reply, cc, opts...)
		if err == nil {
			return nil
		}
		st, ok := status.FromError(err)
		if !ok {
			return err
		}
		return &xerr.CodeError{Code: FromGrpcCode(st.Code()), Msg: st.Message(), Cause: err}
	}
}

// isCoded is true for errors carrying an xerr code; a bare status error
// from a nested call has GRPCStatus but no code.
func isCoded(err error) bool {
	_, ok := xerr.As(err)
	return ok
}

func ToGrpcCode(code int) codes.Code {
	switch code {
	case xerr.OK:
		return codes.OK
	case xerr.RequestParamsError:
		return codes.InvalidArgument
	case xerr.RecordNotFound:
		return codes.NotFound
	case xerr.Conflict:
		return codes.AlreadyExists
	case xerr.Rejected:
		return codes.FailedPrecondition
	case xerr.TooManyRequests:
		return codes.ResourceExhausted
	case xerr.Unavailable:
		return codes.Unavailable
	default:
		return codes.Internal
	}
}

func FromGrpcCode(c codes.Code) int {
	switch c {
	case codes.OK:
		return xerr.OK
	case codes.InvalidArgument:
		return xerr.RequestParamsError
	case codes.NotFound:
		return xerr.RecordNotFound
	case codes.AlreadyExists:
		return xerr.Conflict
	case codes.FailedPrecondition:
		return xerr.Rejected
	case codes.ResourceExhausted:
		return xerr.TooManyRequests
	case codes.Unavailable, codes.DeadlineExceeded:
		return xerr.Unavailable
	default:
		return xerr.ServerCommonError
	}
}
