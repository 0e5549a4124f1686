package auth

import "context"

type userIDContextKey struct{}

// WithUserID stores the resolved user identifier in ctx.
func WithUserID(ctx context.Context, userID int64) context.Context {
	return context.WithValue(ctx, userIDContextKey{}, userID)
}

// UserIDFromContext returns the resolved user identifier, if any.
func UserIDFromContext(ctx context.Context) (int64, bool) {
	if ctx == nil {
		return 0, false
	}
	id, ok := ctx.Value(userIDContextKey{}).(int64)
	return id, ok
}
