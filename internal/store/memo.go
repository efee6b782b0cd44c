package store

import "context"

// memo is a lookup cache with a compute-on-miss function, replacing ambient
// global caches with state owned by the Store. Reset drops everything at
// lifecycle boundaries.
type memo[K comparable, V any] struct {
	compute func(ctx context.Context, k K) (V, error)
	m       map[K]V
}

func newMemo[K comparable, V any](compute func(ctx context.Context, k K) (V, error)) *memo[K, V] {
	return &memo[K, V]{compute: compute, m: make(map[K]V)}
}

// Get returns the cached value for k, computing and caching it on miss.
func (c *memo[K, V]) Get(ctx context.Context, k K) (V, error) {
	if v, ok := c.m[k]; ok {
		return v, nil
	}
	v, err := c.compute(ctx, k)
	if err != nil {
		var zero V
		return zero, err
	}
	c.m[k] = v
	return v, nil
}

// Put primes the cache without computing.
func (c *memo[K, V]) Put(k K, v V) {
	c.m[k] = v
}

// Reset drops all cached entries.
func (c *memo[K, V]) Reset() {
	c.m = make(map[K]V)
}

// Len reports the number of cached entries.
func (c *memo[K, V]) Len() int {
	return len(c.m)
}
