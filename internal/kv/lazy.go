package kv

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

// DialFunc opens the underlying store.
type DialFunc func(ctx context.Context) (Store, error)

const defaultDialTimeout = 10 * time.Second

// Lazy is a process-wide store handle that dials on first use and reuses
// the connection afterwards. A failed dial is remembered for cooldown so
// every request does not pay for a fresh connection attempt.
//
// Concurrent callers share one in-flight dial; each waits on it only as
// long as its own context allows.
type Lazy struct {
	dial        DialFunc
	cooldown    time.Duration
	dialTimeout time.Duration
	now         func() time.Time
	group       singleflight.Group

	mu       sync.Mutex
	store    Store
	err      error
	failedAt time.Time
}

// NewLazy returns a handle that calls dial on first use.
func NewLazy(dial DialFunc, cooldown time.Duration) *Lazy {
	return &Lazy{dial: dial, cooldown: cooldown, dialTimeout: defaultDialTimeout, now: time.Now}
}

// Get returns the shared store, dialing it if needed. Errors wrap
// ErrUnavailable.
func (l *Lazy) Get(ctx context.Context) (Store, error) {
	if s, ok, err := l.cached(); ok {
		return s, err
	}

	ch := l.group.DoChan("dial", func() (any, error) {
		return l.connect()
	})
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%w: %w", ErrUnavailable, ctx.Err())
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(Store), nil
	}
}

// cached reports the settled state: a live store, or a failure still inside
// its cooldown.
func (l *Lazy) cached() (Store, bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.store != nil {
		return l.store, true, nil
	}
	if l.err != nil && l.now().Sub(l.failedAt) < l.cooldown {
		return nil, true, l.err
	}
	return nil, false, nil
}

// connect runs detached from any single request so a caller giving up does
// not cancel the dial for the others.
func (l *Lazy) connect() (Store, error) {
	if s, ok, err := l.cached(); ok {
		return s, err
	}

	ctx, cancel := context.WithTimeout(context.Background(), l.dialTimeout)
	defer cancel()
	s, err := l.dial(ctx)

	l.mu.Lock()
	defer l.mu.Unlock()
	if err != nil {
		l.err = fmt.Errorf("%w: %v", ErrUnavailable, err)
		l.failedAt = l.now()
		slog.Error("store initialization failed", "error", err, "retry_after", l.cooldown)
		return nil, l.err
	}
	l.store, l.err = s, nil
	return s, nil
}

func (l *Lazy) Ping(ctx context.Context) error {
	s, err := l.Get(ctx)
	if err != nil {
		return err
	}
	return s.Ping(ctx)
}

func (l *Lazy) Incr(ctx context.Context, key string) (int64, error) {
	s, err := l.Get(ctx)
	if err != nil {
		return 0, err
	}
	return s.Incr(ctx, key)
}

func (l *Lazy) Exists(ctx context.Context, key string) (bool, error) {
	s, err := l.Get(ctx)
	if err != nil {
		return false, err
	}
	return s.Exists(ctx, key)
}

func (l *Lazy) Del(ctx context.Context, keys ...string) error {
	s, err := l.Get(ctx)
	if err != nil {
		return err
	}
	return s.Del(ctx, keys...)
}

func (l *Lazy) HSet(ctx context.Context, key string, fields map[string]string) error {
	s, err := l.Get(ctx)
	if err != nil {
		return err
	}
	return s.HSet(ctx, key, fields)
}

func (l *Lazy) HGetAll(ctx context.Context, key string) (map[string]string, error) {
	s, err := l.Get(ctx)
	if err != nil {
		return nil, err
	}
	return s.HGetAll(ctx, key)
}

func (l *Lazy) SAdd(ctx context.Context, key, member string) error {
	s, err := l.Get(ctx)
	if err != nil {
		return err
	}
	return s.SAdd(ctx, key, member)
}

func (l *Lazy) SRem(ctx context.Context, key, member string) error {
	s, err := l.Get(ctx)
	if err != nil {
		return err
	}
	return s.SRem(ctx, key, member)
}

func (l *Lazy) SMembers(ctx context.Context, key string) ([]string, error) {
	s, err := l.Get(ctx)
	if err != nil {
		return nil, err
	}
	return s.SMembers(ctx, key)
}

func (l *Lazy) SMove(ctx context.Context, src, dst, member string) error {
	s, err := l.Get(ctx)
	if err != nil {
		return err
	}
	return s.SMove(ctx, src, dst, member)
}

func (l *Lazy) ZAdd(ctx context.Context, key, member string, score float64) error {
	s, err := l.Get(ctx)
	if err != nil {
		return err
	}
	return s.ZAdd(ctx, key, member, score)
}

func (l *Lazy) ZRem(ctx context.Context, key, member string) error {
	s, err := l.Get(ctx)
	if err != nil {
		return err
	}
	return s.ZRem(ctx, key, member)
}

func (l *Lazy) ZRevRange(ctx context.Context, key string) ([]string, error) {
	s, err := l.Get(ctx)
	if err != nil {
		return nil, err
	}
	return s.ZRevRange(ctx, key)
}
