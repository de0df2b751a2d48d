package context

import "context"

type ContextKey string

var (
	RequestIDKey = ContextKey("X-Request-Id")
	RouteKey     = ContextKey("X-Route")
	ReviewerKey  = ContextKey("X-Reviewer")
)

func SetRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, RequestIDKey, requestID)
}

func GetRequestID(ctx context.Context) string {
	value, _ := ctx.Value(RequestIDKey).(string)
	return value
}

func SetRoute(ctx context.Context, route string) context.Context {
	return context.WithValue(ctx, RouteKey, route)
}

func GetRoute(ctx context.Context) string {
	value, _ := ctx.Value(RouteKey).(string)
	return value
}

// SetReviewer records who is acting on candidates and merges for this request.
func SetReviewer(ctx context.Context, reviewer string) context.Context {
	return context.WithValue(ctx, ReviewerKey, reviewer)
}

func GetReviewer(ctx context.Context) string {
	value, _ := ctx.Value(ReviewerKey).(string)
	return value
}
