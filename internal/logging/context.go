package logging

import (
	"context"
	"log/slog"
	"strings"
)

const (
	// FieldComponent is the standardized structured logging key for component names.
	FieldComponent = "component"
	// FieldRunID is the standardized structured logging key for analysis run identifiers.
	FieldRunID = "run_id"
	// FieldFile is the standardized structured logging key for the media file under analysis.
	FieldFile = "file"
	// FieldCheck is the standardized structured logging key for quality check names.
	FieldCheck = "check"
	// FieldEventType classifies a log line for filtering (e.g. "provision_failed").
	FieldEventType = "event_type"
	// FieldErrorHint carries the suggested next step for warnings and errors.
	FieldErrorHint = "error_hint"
)

type contextKey int

const (
	runIDKey contextKey = iota
	fileKey
	checkKey
)

// WithRunID stores an analysis run identifier on the context.
func WithRunID(ctx context.Context, id string) context.Context {
	return withValue(ctx, runIDKey, id)
}

// WithFile stores the media file path on the context.
func WithFile(ctx context.Context, path string) context.Context {
	return withValue(ctx, fileKey, path)
}

// WithCheck stores the active quality check name on the context.
func WithCheck(ctx context.Context, check string) context.Context {
	return withValue(ctx, checkKey, check)
}

func withValue(ctx context.Context, key contextKey, value string) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	value = strings.TrimSpace(value)
	if value == "" {
		return ctx
	}
	return context.WithValue(ctx, key, value)
}

func stringFromContext(ctx context.Context, key contextKey) (string, bool) {
	value, ok := ctx.Value(key).(string)
	return value, ok && value != ""
}

// ContextFields extracts standardized slog attributes from the provided context.
func ContextFields(ctx context.Context) []slog.Attr {
	if ctx == nil {
		return nil
	}
	fields := make([]slog.Attr, 0, 3)
	if id, ok := stringFromContext(ctx, runIDKey); ok {
		fields = append(fields, slog.String(FieldRunID, id))
	}
	if file, ok := stringFromContext(ctx, fileKey); ok {
		fields = append(fields, slog.String(FieldFile, file))
	}
	if check, ok := stringFromContext(ctx, checkKey); ok {
		fields = append(fields, slog.String(FieldCheck, check))
	}
	return fields
}

// WithContext returns a logger augmented with structured fields derived from the supplied context.
func WithContext(ctx context.Context, logger *slog.Logger) *slog.Logger {
	if logger == nil {
		logger = NewNop()
	}
	fields := ContextFields(ctx)
	if len(fields) == 0 {
		return logger
	}
	return logger.With(Args(fields...)...)
}
