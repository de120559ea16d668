package middleware

import (
	"context"
	"net/http"
	"strings"
)

type ctxKey int

const (
	userIDKey ctxKey = iota
	userNameKey
	moderatorKey
)

// Identity reads the caller's identity from the gateway headers and puts it
// on the request context. Authentication itself happens upstream; by the
// time a request reaches this service the headers are trusted.
func Identity(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		ctx = context.WithValue(ctx, userIDKey, strings.TrimSpace(r.Header.Get("X-User-Id")))
		ctx = context.WithValue(ctx, userNameKey, strings.TrimSpace(r.Header.Get("X-User-Name")))
		ctx = context.WithValue(ctx, moderatorKey, strings.EqualFold(r.Header.Get("X-User-Role"), "moderator"))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func GetUserID(ctx context.Context) string {
	v, _ := ctx.Value(userIDKey).(string)
	return v
}

func GetUserName(ctx context.Context) string {
	v, _ := ctx.Value(userNameKey).(string)
	return v
}

func IsModerator(ctx context.Context) bool {
	v, _ := ctx.Value(moderatorKey).(bool)
	return v
}
