// Package requestcontext carries request-scoped values between middleware and
// services without importing net/http.
//
// Middleware writes the values; services read them:
//
//	username := requestcontext.Username(ctx)
//	now := requestcontext.Now(ctx)
package requestcontext

import (
	"context"
	"time"
)

type key int

const (
	keyUsername key = iota
	keyClientIP
	keyUserAgent
	keyRequestID
	keyRequestTime
)

func str(ctx context.Context, k key) string {
	v, _ := ctx.Value(k).(string)
	return v
}

// Username is the authenticated principal, or "" for anonymous requests.
func Username(ctx context.Context) string {
	return str(ctx, keyUsername)
}

func WithUsername(ctx context.Context, username string) context.Context {
	return context.WithValue(ctx, keyUsername, username)
}

func ClientIP(ctx context.Context) string {
	return str(ctx, keyClientIP)
}

func UserAgent(ctx context.Context) string {
	return str(ctx, keyUserAgent)
}

// WithClientMetadata records the caller's address and User-Agent.
func WithClientMetadata(ctx context.Context, clientIP, userAgent string) context.Context {
	ctx = context.WithValue(ctx, keyClientIP, clientIP)
	return context.WithValue(ctx, keyUserAgent, userAgent)
}

func RequestID(ctx context.Context) string {
	return str(ctx, keyRequestID)
}

func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, keyRequestID, requestID)
}

// Now returns the instant pinned by the request-time middleware. Outside a
// request (worker, tests) it falls back to the wall clock in UTC.
func Now(ctx context.Context) time.Time {
	if t, ok := ctx.Value(keyRequestTime).(time.Time); ok {
		return t
	}
	return time.Now().UTC()
}

func WithTime(ctx context.Context, t time.Time) context.Context {
	return context.WithValue(ctx, keyRequestTime, t)
}
