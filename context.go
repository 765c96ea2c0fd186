package charter

import "context"

type contextKey int

const (
	ctxKeyCache contextKey = iota
)

// WithCache returns a context whose authorization reads are memoised in c.
// Scope the context to a single request so role changes made by other
// requests are picked up on the next one.
func WithCache(ctx context.Context, c Cache) context.Context {
	return context.WithValue(ctx, ctxKeyCache, c)
}

// CacheFromContext returns the request cache, or nil when none is attached.
func CacheFromContext(ctx context.Context) Cache {
	c, ok := ctx.Value(ctxKeyCache).(Cache)
	if !ok {
		return nil
	}
	return c
}
