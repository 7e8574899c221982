package common

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"gopherbazaar.com/pkg/logger"
)

const (
	HeaderRequestID = "X-Request-Id"
	MetaRequestID   = "x-request-id" // grpc metadata keys are lower case
	CtxKeyRequestID = logger.RequestIDKey
)

func New() string { return uuid.NewString() }

func RequestIDFromGin(c *gin.Context) string {
	if v, ok := c.Get(CtxKeyRequestID); ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

// WithRequestID stores rid where logger and the grpc client interceptor look.
func WithRequestID(ctx context.Context, rid string) context.Context {
	return context.WithValue(ctx, CtxKeyRequestID, rid)
}

func RequestIDFromCtx(ctx context.Context) string {
	if s, ok := ctx.Value(CtxKeyRequestID).(string); ok {
		return s
	}
	return ""
}
