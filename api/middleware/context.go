package middleware

import "context"

type ctxKey uint8

const (
	userIDKey ctxKey = iota + 1
	roleKey
	accessIDKey
	cartSessionKey
)

func stringValue(ctx context.Context, key ctxKey) string {
	if ctx == nil {
		return ""
	}
	v, _ := ctx.Value(key).(string)
	return v
}

func withString(ctx context.Context, key ctxKey, value string) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, key, value)
}

// UserIDFromContext is empty for anonymous requests.
func UserIDFromContext(ctx context.Context) string { return stringValue(ctx, userIDKey) }

func RoleFromContext(ctx context.Context) string { return stringValue(ctx, roleKey) }

// AccessIDFromContext is the bearer token's jti. Logout revokes it.
func AccessIDFromContext(ctx context.Context) string { return stringValue(ctx, accessIDKey) }

// CartSessionFromContext is the guest cart cookie value, if any.
func CartSessionFromContext(ctx context.Context) string { return stringValue(ctx, cartSessionKey) }

func WithUserID(ctx context.Context, userID string) context.Context {
	return withString(ctx, userIDKey, userID)
}

func WithRole(ctx context.Context, role string) context.Context {
	return withString(ctx, roleKey, role)
}

func WithAccessID(ctx context.Context, accessID string) context.Context {
	return withString(ctx, accessIDKey, accessID)
}

func WithCartSession(ctx context.Context, sessionID string) context.Context {
	return withString(ctx, cartSessionKey, sessionID)
}
