// Defines request context keys and helper functions for metadata access.

// Package reqctx provides request context utilities for passing request metadata.
package reqctx

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/maruel/ksid"
)

// GetClientIP extracts the client IP from an HTTP request,
// checking X-Forwarded-For and X-Real-IP headers for proxied requests.
func GetClientIP(r *http.Request) string {
	// The leftmost X-Forwarded-For address is the original client.
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		return strings.TrimSpace(first)
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return strings.TrimSpace(xri)
	}
	addr := r.RemoteAddr
	// [::1]:8080
	if strings.HasPrefix(addr, "[") {
		if host, _, found := strings.Cut(addr, "]:"); found {
			return host[1:]
		}
		return strings.Trim(addr, "[]")
	}
	if host, _, found := strings.Cut(addr, ":"); found {
		return host
	}
	return addr
}

type contextKey string

const (
	keyRequestID   contextKey = "requestID"
	keyClientIP    contextKey = "clientIP"
	keyUserAgent   contextKey = "userAgent"
	keyCountryCode contextKey = "countryCode"
)

// Metadata is what is known about the caller of a request.
type Metadata struct {
	RequestID   ksid.ID
	ClientIP    string
	UserAgent   string
	CountryCode string
}

// New assigns a fresh request ID and records the caller's address and user
// agent. lookup, when non-nil, maps the client IP to a country code.
func New(r *http.Request, lookup func(ip string) string) *Metadata {
	m := &Metadata{
		RequestID: ksid.NewID(),
		ClientIP:  GetClientIP(r),
		UserAgent: r.UserAgent(),
	}
	if lookup != nil {
		m.CountryCode = lookup(m.ClientIP)
	}
	return m
}

// Attach returns ctx carrying every field of m.
func (m *Metadata) Attach(ctx context.Context) context.Context {
	ctx = context.WithValue(ctx, keyRequestID, m.RequestID)
	ctx = WithClientIP(ctx, m.ClientIP)
	ctx = context.WithValue(ctx, keyUserAgent, m.UserAgent)
	return WithCountryCode(ctx, m.CountryCode)
}

// LogAttrs returns the request fields stored in ctx to add to a log line.
func LogAttrs(ctx context.Context) []any {
	return []any{
		slog.String("rid", RequestID(ctx).String()),
		slog.String("ip", ClientIP(ctx)),
		slog.String("cc", CountryCode(ctx)),
		slog.String("ua", UserAgent(ctx)),
	}
}

// RequestID extracts the request ID from the context.
func RequestID(ctx context.Context) ksid.ID {
	if v, ok := ctx.Value(keyRequestID).(ksid.ID); ok {
		return v
	}
	return 0
}

// WithClientIP adds the client IP to the context.
func WithClientIP(ctx context.Context, ip string) context.Context {
	return context.WithValue(ctx, keyClientIP, ip)
}

// ClientIP extracts the client IP from the context.
func ClientIP(ctx context.Context) string {
	if v, ok := ctx.Value(keyClientIP).(string); ok {
		return v
	}
	return ""
}

// UserAgent extracts the User-Agent from the context.
func UserAgent(ctx context.Context) string {
	if v, ok := ctx.Value(keyUserAgent).(string); ok {
		return v
	}
	return ""
}

// WithCountryCode adds the country code to the context.
func WithCountryCode(ctx context.Context, cc string) context.Context {
	return context.WithValue(ctx, keyCountryCode, cc)
}

// CountryCode extracts the country code from the context.
func CountryCode(ctx context.Context) string {
	if v, ok := ctx.Value(keyCountryCode).(string); ok {
		return v
	}
	return ""
}
