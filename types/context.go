package types

import "context"

// contextKey is used for storing values in context.Context.
type contextKey string

const (
	keyRequestID contextKey = "request_id"
	keyUserID    contextKey = "user_id"
	keySuperuser contextKey = "superuser"
)

// WithRequestID adds request ID to context.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, keyRequestID, requestID)
}

// RequestID extracts request ID from context.
func RequestID(ctx context.Context) (string, bool) {
	v, ok := ctx.Value(keyRequestID).(string)
	return v, ok && v != ""
}

// WithUserID adds user ID to context.
func WithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, keyUserID, userID)
}

// UserID extracts user ID from context.
func UserID(ctx context.Context) (string, bool) {
	v, ok := ctx.Value(keyUserID).(string)
	return v, ok && v != ""
}

// WithSuperuser marks the caller as a superuser.
func WithSuperuser(ctx context.Context, superuser bool) context.Context {
	return context.WithValue(ctx, keySuperuser, superuser)
}

// IsSuperuser reports whether the caller was authenticated as a superuser.
func IsSuperuser(ctx context.Context) bool {
	v, _ := ctx.Value(keySuperuser).(bool)
	return v
}
