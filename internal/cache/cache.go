package cache

import (
	"context"
	"time"
)

// Cache is a best-effort JSON store. Callers treat every error as a miss.
type Cache interface {
	GetJSON(ctx context.Context, key string, dst any) (hit bool, err error)
	SetJSON(ctx context.Context, key string, val any, ttl time.Duration) error
	Del(ctx context.Context, keys ...string) error
}

// ReadThrough serves key from c when present, otherwise calls load and stores
// the result for ttl. Cache failures go to onErr and never fail the read; a
// nil c just calls load.
func ReadThrough[T any](ctx context.Context, c Cache, key string, ttl time.Duration, load func(context.Context) (*T, error), onErr func(op string, err error)) (*T, error) {
	if onErr == nil {
		onErr = func(string, error) {}
	}

	if c != nil {
		var cached T
		hit, err := c.GetJSON(ctx, key, &cached)
		if err != nil {
			onErr("get", err)
		}
		if hit {
			return &cached, nil
		}
	}

	v, err := load(ctx)
	if err != nil {
		return nil, err
	}

	if c != nil {
		if err := c.SetJSON(ctx, key, v, ttl); err != nil {
			onErr("set", err)
		}
	}
	return v, nil
}
