package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestMemoryGetSet(t *testing.T) {
	ctx := context.Background()
	m := NewMemory(16, time.Minute)

	_, ok := m.Get(ctx, "missing")
	require.False(t, ok)

	m.Set(ctx, "k", []byte("value"), time.Minute)
	got, ok := m.Get(ctx, "k")
	require.True(t, ok)
	require.Equal(t, []byte("value"), got)
}

func TestMemoryPerEntryTTL(t *testing.T) {
	ctx := context.Background()
	m := NewMemory(16, time.Minute)

	m.Set(ctx, "short", []byte("x"), 10*time.Millisecond)
	time.Sleep(30 * time.Millisecond)
	_, ok := m.Get(ctx, "short")
	require.False(t, ok, "entry must expire by its own ttl, not the cache-wide one")
}

func TestMemoryDefensiveCopy(t *testing.T) {
	ctx := context.Background()
	m := NewMemory(16, time.Minute)

	value := []byte("original")
	m.Set(ctx, "k", value, time.Minute)
	value[0] = 'X'

	got, ok := m.Get(ctx, "k")
	require.True(t, ok)
	require.Equal(t, []byte("original"), got)

	got[0] = 'Y'
	again, _ := m.Get(ctx, "k")
	require.Equal(t, []byte("original"), again)
}

func TestMemoryClearPrefix(t *testing.T) {
	ctx := context.Background()
	m := NewMemory(16, time.Minute)

	m.Set(ctx, "semantic:a", []byte("1"), time.Minute)
	m.Set(ctx, "semantic:b", []byte("2"), time.Minute)
	m.Set(ctx, "embed:c", []byte("3"), time.Minute)

	m.Clear(ctx, "semantic:")
	_, ok := m.Get(ctx, "semantic:a")
	require.False(t, ok)
	_, ok = m.Get(ctx, "semantic:b")
	require.False(t, ok)
	_, ok = m.Get(ctx, "embed:c")
	require.True(t, ok)
}

func TestNoop(t *testing.T) {
	ctx := context.Background()
	var n Noop
	n.Set(ctx, "k", []byte("v"), time.Minute)
	_, ok := n.Get(ctx, "k")
	require.False(t, ok)
}
