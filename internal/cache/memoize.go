package cache

import (
	"context"
	"time"
)

// Memoize оборачивает чтение fn: результат кешируется на ttl под ключом MemoKey(name, arg)
func Memoize[A any, T any](s *Store, name string, ttl time.Duration, fn func(ctx context.Context, arg A) (T, error)) func(ctx context.Context, arg A) (T, error) {
	return func(ctx context.Context, arg A) (T, error) {
		return Remember(ctx, s, MemoKey(name, arg), ttl, func(ctx context.Context) (T, error) {
			return fn(ctx, arg)
		})
	}
}
