package embedstore

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/careline/medrag/internal/cache"
)

type fakeProvider struct {
	calls atomic.Int64
	fail  bool
	dims  int
}

func (f *fakeProvider) Name() string      { return "fake" }
func (f *fakeProvider) ModelName() string { return "fake-model" }
func (f *fakeProvider) Dimensions() int   { return f.dims }

func (f *fakeProvider) Embed(ctx context.Context, text string) ([]float32, error) {
	vecs, err := f.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

func (f *fakeProvider) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	f.calls.Add(1)
	if f.fail {
		return nil, errors.New("connection refused")
	}
	out := make([][]float32, len(texts))
	for i, text := range texts {
		vec := make([]float32, f.dims)
		for j := range vec {
			vec[j] = float32(len(text)%7) + float32(j)
		}
		out[i] = vec
	}
	return out, nil
}

func TestEmbedCacheHitSkipsProvider(t *testing.T) {
	provider := &fakeProvider{dims: 8}
	store := New(provider, cache.NewMemory(128, time.Hour), Config{})

	first, err := store.Embed(context.Background(), "rifampicina 600mg dose mensal")
	require.NoError(t, err)
	require.EqualValues(t, 1, provider.calls.Load())

	second, err := store.Embed(context.Background(), "  rifampicina   600mg dose mensal ")
	require.NoError(t, err)
	require.EqualValues(t, 1, provider.calls.Load(), "second call must be served from cache")
	require.Equal(t, first, second)

	stats := store.Stats()
	require.EqualValues(t, 1, stats.Hits)
	require.EqualValues(t, 1, stats.Misses)
}

func TestEmbedFallsBackOnProviderFailure(t *testing.T) {
	provider := &fakeProvider{dims: 8, fail: true}
	store := New(provider, cache.NewMemory(128, time.Hour), Config{})

	vec, err := store.Embed(context.Background(), "clofazimina efeitos")
	require.NoError(t, err, "provider outage must not surface")
	require.NotEmpty(t, vec)

	again, err := store.Embed(context.Background(), "clofazimina efeitos")
	require.NoError(t, err)
	require.Equal(t, vec, again, "fallback vectors must be deterministic")
	require.True(t, store.Stats().Fallbacks >= 1)
}

func TestEmbedBatchOrderAndChunking(t *testing.T) {
	provider := &fakeProvider{dims: 4}
	store := New(provider, cache.Noop{}, Config{BatchSize: 2, BatchInterval: time.Millisecond})

	texts := []string{"um", "dois", "tres", "quatro", "cinco"}
	vectors, err := store.EmbedBatch(context.Background(), texts)
	require.NoError(t, err)
	require.Len(t, vectors, len(texts))
	for i, vec := range vectors {
		single, err := provider.Embed(context.Background(), Normalize(texts[i], 0))
		require.NoError(t, err)
		require.Equal(t, single, vec)
	}
	// 5 texts at batch size 2 -> 3 provider chunks.
	require.EqualValues(t, 3+int64(len(texts)), provider.calls.Load())
}

func TestNormalize(t *testing.T) {
	tests := []struct {
		name string
		in   string
		max  int
		want string
	}{
		{name: "trim and collapse", in: "  qual \t a \n dose  ", max: 0, want: "qual a dose"},
		{name: "control chars stripped", in: "dose\x00 de\x07 rifampicina", max: 0, want: "dose de rifampicina"},
		{name: "truncate", in: "abcdefghij", max: 4, want: "abcd"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, Normalize(tt.in, tt.max))
		})
	}
}

func TestCosineBounds(t *testing.T) {
	v := []float32{0.3, -1.2, 4.5, 0.01}
	neg := make([]float32, len(v))
	for i := range v {
		neg[i] = -v[i]
	}
	require.InDelta(t, 1.0, Cosine(v, v), 1e-6)
	require.InDelta(t, -1.0, Cosine(v, neg), 1e-6)
	require.Zero(t, Cosine(v, []float32{1, 2}))
	require.Zero(t, Cosine(nil, nil))
	require.Zero(t, Cosine(v, make([]float32, len(v))))
}
