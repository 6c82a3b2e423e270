// Package middleware provides the HTTP middleware chain for the API.
package middleware

import (
	"context"

	"github.com/google/uuid"

	"github.com/Aromatic05/CurioBox-sub000/internal/app/auth"
)

type contextKey string

const (
	traceIDKey contextKey = "trace_id"
	claimsKey  contextKey = "claims"
)

// TraceHeader carries the request trace ID in both directions.
const TraceHeader = "X-Trace-ID"

// NewTraceID returns a fresh random trace ID.
func NewTraceID() string { return uuid.NewString() }

// WithTraceID stores a trace ID on ctx.
func WithTraceID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, traceIDKey, id)
}

// GetTraceID returns the trace ID on ctx, if any.
func GetTraceID(ctx context.Context) string {
	id, _ := ctx.Value(traceIDKey).(string)
	return id
}

// WithClaims stores the authenticated caller on ctx.
func WithClaims(ctx context.Context, c *auth.Claims) context.Context {
	return context.WithValue(ctx, claimsKey, c)
}

// GetClaims returns the authenticated caller, or nil.
func GetClaims(ctx context.Context) *auth.Claims {
	c, _ := ctx.Value(claimsKey).(*auth.Claims)
	return c
}

// GetUserID returns the authenticated user ID, or "".
func GetUserID(ctx context.Context) string {
	if c := GetClaims(ctx); c != nil {
		return c.UserID
	}
	return ""
}

// IsAdmin reports whether the caller holds the admin role.
func IsAdmin(ctx context.Context) bool {
	c := GetClaims(ctx)
	return c != nil && c.IsAdmin()
}
