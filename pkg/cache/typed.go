package cache

import (
	"context"
	"encoding/json"
	"time"
)

// Result is the typed view of a Snapshot handed to consumers.
type Result[T any] struct {
	Data         T         `json:"data"`
	Err          error     `json:"-"`
	IsLoading    bool      `json:"isLoading"`
	IsStale      bool      `json:"stale"`
	UpdatedAt    time.Time `json:"updatedAt"`
	FailureCount int       `json:"failureCount,omitempty"`
}

func (r Result[T]) OK() bool {
	return r.Err == nil
}

// Query reads key through c with a typed fetcher.
func Query[T any](ctx context.Context, c *Cache, key Key, fn func(context.Context) (T, error), opts Options) Result[T] {
	opts.decode = decoder[T]()
	return result[T](c.Fetch(ctx, key, erase(fn), opts))
}

// Watch registers an observer for key with a typed fetcher.
func Watch[T any](c *Cache, key Key, fn func(context.Context) (T, error), opts Options) *Observer {
	opts.decode = decoder[T]()
	return c.Observe(key, erase(fn), opts)
}

// Peek returns the cached typed value for key without fetching.
func Peek[T any](c *Cache, key Key) (Result[T], bool) {
	snap, ok := c.Peek(key)
	if !ok {
		return Result[T]{}, false
	}
	return result[T](snap), true
}

func result[T any](s Snapshot) Result[T] {
	r := Result[T]{
		Err:          s.Err,
		IsLoading:    s.IsLoading,
		IsStale:      s.IsStale,
		UpdatedAt:    s.UpdatedAt,
		FailureCount: s.FailureCount,
	}
	if v, ok := s.Data.(T); ok {
		r.Data = v
	}
	return r
}

func erase[T any](fn func(context.Context) (T, error)) FetchFunc {
	return func(ctx context.Context) (interface{}, error) {
		return fn(ctx)
	}
}

func decoder[T any]() func([]byte) (interface{}, error) {
	return func(raw []byte) (interface{}, error) {
		var v T
		if err := json.Unmarshal(raw, &v); err != nil {
			return nil, err
		}
		return v, nil
	}
}
