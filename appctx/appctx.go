package appctx

import "context"

// ContextKey is the shared key type for request-scoped values.
// All packages must go through these helpers instead of raw context.WithValue
// so the key type stays private to the module.
type ContextKey string

const (
	ContextKeyUserId        ContextKey = "user_id"
	ContextKeyUserName      ContextKey = "user_name"
	ContextKeyUserRole      ContextKey = "user_role"
	ContextKeyCorrelationId ContextKey = "correlation_id"
)

func Set[T any](ctx context.Context, key ContextKey, value T) context.Context {
	return context.WithValue(ctx, key, value)
}

func GetString(ctx context.Context, key ContextKey) (string, bool) {
	v, ok := ctx.Value(key).(string)
	return v, ok
}

func GetInt(ctx context.Context, key ContextKey) (int, bool) {
	v, ok := ctx.Value(key).(int)
	return v, ok
}
