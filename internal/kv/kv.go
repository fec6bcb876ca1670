// Package kv is the storage adapter: a small key-value contract with hash,
// set and sorted-set primitives that the persistence layer builds its
// records and secondary indexes on.
package kv

import (
	"context"
	"errors"
)

// ErrUnavailable is returned when the backing store is misconfigured or
// unreachable.
var ErrUnavailable = errors.New("storage unavailable")

// Store is the primitive set the persistence layer relies on. All members
// and values are strings; implementations normalize whatever their wire
// format returns.
type Store interface {
	Ping(ctx context.Context) error

	// Incr atomically increments key and returns the new value.
	Incr(ctx context.Context, key string) (int64, error)
	Exists(ctx context.Context, key string) (bool, error)
	Del(ctx context.Context, keys ...string) error

	HSet(ctx context.Context, key string, fields map[string]string) error
	// HGetAll returns an empty map when key does not exist.
	HGetAll(ctx context.Context, key string) (map[string]string, error)

	SAdd(ctx context.Context, key, member string) error
	SRem(ctx context.Context, key, member string) error
	SMembers(ctx context.Context, key string) ([]string, error)
	// SMove atomically moves member from src to dst. A member absent from
	// src is still added to dst.
	SMove(ctx context.Context, src, dst, member string) error

	ZAdd(ctx context.Context, key, member string, score float64) error
	ZRem(ctx context.Context, key, member string) error
	// ZRevRange returns every member, highest score first.
	ZRevRange(ctx context.Context, key string) ([]string, error)
}
