package auth

import "context"

type ctxKey string

const (
	ctxKeyUserID   ctxKey = "uid"
	ctxKeyUsername ctxKey = "username"
)

func WithUser(ctx context.Context, userID int64, username string) context.Context {
	ctx = context.WithValue(ctx, ctxKeyUserID, userID)
	return context.WithValue(ctx, ctxKeyUsername, username)
}

// UserIDFromContext returns the verified user id set by JWTMiddleware.
func UserIDFromContext(ctx context.Context) (int64, bool) {
	if v := ctx.Value(ctxKeyUserID); v != nil {
		if id, ok := v.(int64); ok && id > 0 {
			return id, true
		}
	}
	return 0, false
}

func UsernameFromContext(ctx context.Context) string {
	if v := ctx.Value(ctxKeyUsername); v != nil {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}
