package services

import "context"

type contextKey string

const (
	scanEventIDKey contextKey = "scan_event_id"
	stepKey        contextKey = "step"
)

// WithScanEventID annotates context with the scan attempt identifier.
func WithScanEventID(ctx context.Context, id string) context.Context {
	if id == "" {
		return ctx
	}
	return context.WithValue(ctx, scanEventIDKey, id)
}

// ScanEventIDFromContext extracts the scan attempt identifier if present.
func ScanEventIDFromContext(ctx context.Context) (string, bool) {
	if v, ok := ctx.Value(scanEventIDKey).(string); ok && v != "" {
		return v, true
	}
	return "", false
}

// WithStep annotates context with the pipeline step name.
func WithStep(ctx context.Context, step string) context.Context {
	if step == "" {
		return ctx
	}
	return context.WithValue(ctx, stepKey, step)
}

// StepFromContext returns the pipeline step name if present.
func StepFromContext(ctx context.Context) (string, bool) {
	if v, ok := ctx.Value(stepKey).(string); ok && v != "" {
		return v, true
	}
	return "", false
}
