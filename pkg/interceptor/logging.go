package interceptor

import (
	"context"
	"fmt"

	"github.com/grpc-ecosystem/go-grpc-middleware/v2/interceptors/logging"
	"go.uber.org/zap"
	"gopherbazaar.com/pkg/common"
)

// ZapLogger adapts zap to the go-grpc-middleware logging interceptors and
// adds the request id carried by ctx.
func ZapLogger(l *zap.Logger) logging.Logger {
	return logging.LoggerFunc(func(ctx context.Context, lvl logging.Level, msg string, fields ...any) {
		f := make([]zap.Field, 0, len(fields)/2+1)
		for i := 0; i+1 < len(fields); i += 2 {
			key := fmt.Sprint(fields[i])
			switch v := fields[i+1].(type) {
			case string:
				f = append(f, zap.String(key, v))
			case int:
				f = append(f, zap.Int(key, v))
			case bool:
				f = append(f, zap.Bool(key, v))
			default:
				f = append(f, zap.Any(key, v))
			}
		}
		if rid := common.RequestIDFromCtx(ctx); rid != "" {
			f = append(f, zap.String(common.CtxKeyRequestID, rid))
		}

		lg := l.WithOptions(zap.AddCallerSkip(1))
		switch lvl {
		case logging.LevelDebug:
			lg.Debug(msg, f...)
		case logging.LevelInfo:
			lg.Info(msg, f...)
		case logging.LevelWarn:
			lg.Warn(msg, f...)
		case logging.LevelError:
			lg.Error(msg, f...)
		default:
			lg.Info(msg, append(f, zap.Int("unknown_level", int(lvl)))...)
		}
	})
}
