package logger

import (
	"context"
	"os"
	"path/filepath"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Context keys the helpers look for. The http middleware and the grpc
// interceptors store request ids under RequestIDKey.
const (
	TraceIdKey   = "trace_id"
	RequestIDKey = "request_id"
)

// Log is the process-wide logger. It starts as a no-op so packages can log
// before Init runs (tests mostly).
var Log = zap.NewNop()

// Config describes where and how much to log.
type Config struct {
	Service string `mapstructure:"service" yaml:"service"`
	Level   string `mapstructure:"level" yaml:"level"`
	// File defaults to logs/<service>.log. "-" disables the file sink.
	File string `mapstructure:"file" yaml:"file"`
}

// Init initialises Log for a service at the given level.
func Init(serviceName string, level string) {
	InitWithConfig(Config{Service: serviceName, Level: level})
}

// InitWithConfig builds a JSON logger writing to stdout and, unless disabled,
// to a log file.
func InitWithConfig(c Config) {
	var zapLevel zapcore.Level
	if err := zapLevel.UnmarshalText([]byte(c.Level)); err != nil {
		zapLevel = zap.InfoLevel
	}

	encoderConfig := zap.NewProductionEncoderConfig()
	encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	encoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder
	encoderConfig.MessageKey = "msg"

	writeSyncers := []zapcore.WriteSyncer{zapcore.AddSync(os.Stdout)}

	logFile := c.File
	if logFile == "" {
		logFile = filepath.Join("logs", c.Service+".log")
	}
	if logFile != "-" {
		if err := os.MkdirAll(filepath.Dir(logFile), 0o755); err == nil {
			// a file we cannot open only costs us the file sink
			if f, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644); err == nil {
				writeSyncers = append(writeSyncers, zapcore.AddSync(f))
			}
		}
	}

	core := zapcore.NewCore(
		zapcore.NewJSONEncoder(encoderConfig),
		zapcore.NewMultiWriteSyncer(writeSyncers...),
		zapLevel,
	)

	// skip 1: callers should point at the call site, not this file
	Log = zap.New(core, zap.AddCaller(), zap.AddCallerSkip(1)).
		With(zap.String("service", c.Service))
}

func Debug(ctx context.Context, msg string, fields ...zap.Field) {
	Log.Debug(msg, withCtx(ctx, fields)...)
}

func Info(ctx context.Context, msg string, fields ...zap.Field) {
	Log.Info(msg, withCtx(ctx, fields)...)
}

func Warn(ctx context.Context, msg string, fields ...zap.Field) {
	Log.Warn(msg, withCtx(ctx, fields)...)
}

func Error(ctx context.Context, msg string, fields ...zap.Field) {
	Log.Error(msg, withCtx(ctx, fields)...)
}

// Urgent logs at DPanic level with urgent=true. Reserved for states an
// operator must repair by hand, e.g. money that left one account and never
// arrived anywhere. In production builds DPanic does not panic.
func Urgent(ctx context.Context, msg string, fields ...zap.Field) {
	fields = append(fields, zap.Bool("urgent", true))
	Log.DPanic(msg, withCtx(ctx, fields)...)
}

// Fatal logs and exits the process.
func Fatal(ctx context.Context, msg string, fields ...zap.Field) {
	Log.Fatal(msg, withCtx(ctx, fields)...)
}

func withCtx(ctx context.Context, fields []zap.Field) []zap.Field {
	if ctx == nil {
		return fields
	}
	if traceID, ok := ctx.Value(TraceIdKey).(string); ok && traceID != "" {
		fields = append(fields, zap.String("trace_id", traceID))
	}
	if rid, ok := ctx.Value(RequestIDKey).(string); ok && rid != "" {
		fields = append(fields, zap.String("request_id", rid))
	}
	return fields
}

// Sync flushes buffered entries; call it from main on the way out.
func Sync() {
	if Log != nil {
		_ = Log.Sync()
	}
}
