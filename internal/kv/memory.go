package kv

import (
	"context"
	"sort"
	"strconv"
	"sync"
)

// Memory is an in-process Store used for local development and tests.
type Memory struct {
	mu     sync.Mutex
	hashes map[string]map[string]string
	sets   map[string]map[string]struct{}
	zsets  map[string]map[string]float64
	ints   map[string]int64
}

func NewMemory() *Memory {
	return &Memory{
		hashes: map[string]map[string]string{},
		sets:   map[string]map[string]struct{}{},
		zsets:  map[string]map[string]float64{},
		ints:   map[string]int64{},
	}
}

func (m *Memory) Ping(context.Context) error { return nil }

func (m *Memory) Incr(_ context.Context, key string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ints[key]++
	return m.ints[key], nil
}

func (m *Memory) Exists(_ context.Context, key string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.hashes[key]; ok {
		return true, nil
	}
	if _, ok := m.sets[key]; ok {
		return true, nil
	}
	if _, ok := m.zsets[key]; ok {
		return true, nil
	}
	_, ok := m.ints[key]
	return ok, nil
}

func (m *Memory) Del(_ context.Context, keys ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, k := range keys {
		delete(m.hashes, k)
		delete(m.sets, k)
		delete(m.zsets, k)
		delete(m.ints, k)
	}
	return nil
}

func (m *Memory) HSet(_ context.Context, key string, fields map[string]string) error {
	if len(fields) == 0 {
		return nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	h, ok := m.hashes[key]
	if !ok {
		h = map[string]string{}
		m.hashes[key] = h
	}
	for k, v := range fields {
		h[k] = v
	}
	return nil
}

func (m *Memory) HGetAll(_ context.Context, key string) (map[string]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]string, len(m.hashes[key]))
	for k, v := range m.hashes[key] {
		out[k] = v
	}
	return out, nil
}

func (m *Memory) SAdd(_ context.Context, key, member string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sadd(key, member)
	return nil
}

func (m *Memory) sadd(key, member string) {
	s, ok := m.sets[key]
	if !ok {
		s = map[string]struct{}{}
		m.sets[key] = s
	}
	s[member] = struct{}{}
}

func (m *Memory) SRem(_ context.Context, key, member string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.srem(key, member)
	return nil
}

// srem drops empty sets so Exists matches Redis semantics.
func (m *Memory) srem(key, member string) {
	s, ok := m.sets[key]
	if !ok {
		return
	}
	delete(s, member)
	if len(s) == 0 {
		delete(m.sets, key)
	}
}

func (m *Memory) SMembers(_ context.Context, key string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, 0, len(m.sets[key]))
	for v := range m.sets[key] {
		out = append(out, v)
	}
	sortNumericFirst(out)
	return out, nil
}

func (m *Memory) SMove(_ context.Context, src, dst, member string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.srem(src, member)
	m.sadd(dst, member)
	return nil
}

func (m *Memory) ZAdd(_ context.Context, key, member string, score float64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	z, ok := m.zsets[key]
	if !ok {
		z = map[string]float64{}
		m.zsets[key] = z
	}
	z[member] = score
	return nil
}

func (m *Memory) ZRem(_ context.Context, key, member string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	z, ok := m.zsets[key]
	if !ok {
		return nil
	}
	delete(z, member)
	if len(z) == 0 {
		delete(m.zsets, key)
	}
	return nil
}

// ZRevRange orders by score descending and breaks ties by member
// descending, which is what Redis does.
func (m *Memory) ZRevRange(_ context.Context, key string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	z := m.zsets[key]
	out := make([]string, 0, len(z))
	for v := range z {
		out = append(out, v)
	}
	sort.Slice(out, func(i, j int) bool {
		if z[out[i]] != z[out[j]] {
			return z[out[i]] > z[out[j]]
		}
		return out[i] > out[j]
	})
	return out, nil
}

// sortNumericFirst gives set members a stable order; numeric IDs sort by value.
func sortNumericFirst(vals []string) {
	sort.Slice(vals, func(i, j int) bool {
		a, errA := strconv.ParseInt(vals[i], 10, 64)
		b, errB := strconv.ParseInt(vals[j], 10, 64)
		switch {
		case errA == nil && errB == nil:
			return a < b
		case errA == nil:
			return true
		case errB == nil:
			return false
		}
		return vals[i] < vals[j]
	})
}
