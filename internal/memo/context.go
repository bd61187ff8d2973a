package memo

import "context"

type ctxKey struct{}

// NewContext returns a copy of ctx carrying c.
func NewContext(ctx context.Context, c *Cache) context.Context {
	return context.WithValue(ctx, ctxKey{}, c)
}

// FromContext returns the cache carried by ctx, if any.
func FromContext(ctx context.Context) (*Cache, bool) {
	c, ok := ctx.Value(ctxKey{}).(*Cache)
	return c, ok && c != nil
}
