package logger

import (
	"context"

	"github.com/grpc-ecosystem/go-grpc-middleware/logging/zap/ctxzap"
	"go.uber.org/zap"
)

// WithAction tags the context logger with the handler action so every log
// line of one request names the flow it belongs to.
func WithAction(ctx context.Context, action string) context.Context {
	l := ctxzap.Extract(ctx)
	return ctxzap.ToContext(ctx, l.With(zap.String("action", action)))
}

// WithSource tags the context logger with the source a pipeline is working
// on.
func WithSource(ctx context.Context, sourceID string) context.Context {
	l := ctxzap.Extract(ctx)
	return ctxzap.ToContext(ctx, l.With(zap.String("source_id", sourceID)))
}
