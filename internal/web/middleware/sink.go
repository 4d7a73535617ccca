package middleware

import "context"

type userSinkKey struct{}

// withUserSink lets an inner middleware report the authenticated user to
// the request logger, which only sees the outer request.
func withUserSink(ctx context.Context, dst *int64) context.Context {
	return context.WithValue(ctx, userSinkKey{}, dst)
}

func reportUser(ctx context.Context, userID int64) {
	if dst, ok := ctx.Value(userSinkKey{}).(*int64); ok {
		*dst = userID
	}
}
