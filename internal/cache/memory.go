package cache

import (
	"context"
	"strings"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

type entry struct {
	value    []byte
	deadline time.Time
}

// Memory is an LRU-bounded in-process cache. The underlying LRU
// carries a coarse upper-bound TTL; per-entry deadlines are checked on
// read so callers can use shorter TTLs per Set.
type Memory struct {
	lru *expirable.LRU[string, entry]
	now func() time.Time
}

func NewMemory(size int, maxTTL time.Duration) *Memory {
	if size <= 0 {
		size = 4096
	}
	if maxTTL <= 0 {
		maxTTL = 7 * 24 * time.Hour
	}
	return &Memory{
		lru: expirable.NewLRU[string, entry](size, nil, maxTTL),
		now: time.Now,
	}
}

func (m *Memory) Get(ctx context.Context, key string) ([]byte, bool) {
	e, ok := m.lru.Get(key)
	if !ok {
		return nil, false
	}
	if !e.deadline.IsZero() && m.now().After(e.deadline) {
		m.lru.Remove(key)
		return nil, false
	}
	out := make([]byte, len(e.value))
	copy(out, e.value)
	return out, true
}

func (m *Memory) Set(ctx context.Context, key string, value []byte, ttl time.Duration) {
	stored := make([]byte, len(value))
	copy(stored, value)
	var deadline time.Time
	if ttl > 0 {
		deadline = m.now().Add(ttl)
	}
	m.lru.Add(key, entry{value: stored, deadline: deadline})
}

func (m *Memory) Clear(ctx context.Context, prefix string) {
	for _, key := range m.lru.Keys() {
		if prefix == "" || strings.HasPrefix(key, prefix) {
			m.lru.Remove(key)
		}
	}
}

func (m *Memory) Len() int {
	return m.lru.Len()
}
