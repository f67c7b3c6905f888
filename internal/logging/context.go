package logging

import (
	"context"

	"go.uber.org/zap"
)

type runIDCtxKey struct{}

// WithRunID attaches a run identifier to ctx.
func WithRunID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, runIDCtxKey{}, id)
}

// RunIDFromContext returns the run identifier, or "".
func RunIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	id, _ := ctx.Value(runIDCtxKey{}).(string)
	return id
}

// ContextFields extracts correlation data from context.
func ContextFields(ctx context.Context) []zap.Field {
	var fields []zap.Field
	if id := RunIDFromContext(ctx); id != "" {
		fields = append(fields, zap.String("run.id", id))
	}
	return fields
}
