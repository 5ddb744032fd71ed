package semantic

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/careline/medrag/internal/ai"
	"github.com/careline/medrag/internal/cache"
	"github.com/careline/medrag/internal/embedstore"
	"github.com/careline/medrag/internal/knowledge"
	"github.com/careline/medrag/internal/model"
)

type countingCache struct {
	cache.Cache
	gets atomic.Int64
	hits atomic.Int64
	sets atomic.Int64
}

func (c *countingCache) Get(ctx context.Context, key string) ([]byte, bool) {
	c.gets.Add(1)
	data, ok := c.Cache.Get(ctx, key)
	if ok {
		c.hits.Add(1)
	}
	return data, ok
}

func (c *countingCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) {
	c.sets.Add(1)
	c.Cache.Set(ctx, key, value, ttl)
}

func newTestEngine(t *testing.T, c cache.Cache) *Engine {
	t.Helper()
	store := embedstore.New(ai.NewLocalProvider(0), cache.NewMemory(2048, time.Hour), embedstore.Config{})
	idx := knowledge.NewIndex(store, cache.Noop{}, knowledge.Config{MinSimilarity: 0.05})
	require.NotZero(t, knowledge.Seed(context.Background(), idx))
	return New(idx, c, Config{MinSimilarity: 0.05})
}

func TestSearchReturnsRankedResults(t *testing.T) {
	engine := newTestEngine(t, cache.NewMemory(256, time.Hour))
	results := engine.Search(context.Background(), model.SemanticQuery{Text: "qual a dose de rifampicina"})
	require.NotEmpty(t, results)
	for i := 1; i < len(results); i++ {
		require.GreaterOrEqual(t, results[i-1].Final, results[i].Final)
	}
	for _, result := range results {
		require.NotNil(t, result.Document)
		require.GreaterOrEqual(t, result.Final, 0.0)
		require.LessOrEqual(t, result.Final, 1.0)
	}
}

func TestSearchEmptyText(t *testing.T) {
	engine := newTestEngine(t, cache.NewMemory(256, time.Hour))
	require.Nil(t, engine.Search(context.Background(), model.SemanticQuery{Text: "   "}))
}

func TestSearchUsesResultCache(t *testing.T) {
	spy := &countingCache{Cache: cache.NewMemory(256, time.Hour)}
	engine := newTestEngine(t, spy)
	query := model.SemanticQuery{Text: "efeito colateral da clofazimina"}

	first := engine.Search(context.Background(), query)
	require.EqualValues(t, 1, spy.sets.Load())

	second := engine.Search(context.Background(), query)
	require.EqualValues(t, 1, spy.hits.Load(), "second identical search must hit the cache")
	require.EqualValues(t, 1, spy.sets.Load())
	require.Equal(t, len(first), len(second))
}

func TestSearchCategoryFilter(t *testing.T) {
	engine := newTestEngine(t, cache.Noop{})
	results := engine.Search(context.Background(), model.SemanticQuery{
		Text:    "gravidez e tratamento da hanseníase",
		Filters: model.SemanticFilters{Categories: []model.Category{model.CategoryContraindication}},
	})
	for _, result := range results {
		require.Equal(t, model.CategoryContraindication, result.Document.Category)
	}
}

func TestSearchSourceFilter(t *testing.T) {
	engine := newTestEngine(t, cache.Noop{})
	results := engine.Search(context.Background(), model.SemanticQuery{
		Text:    "orientações de dispensação do esquema",
		Filters: model.SemanticFilters{Source: "roteiro"},
	})
	for _, result := range results {
		require.Contains(t, result.Document.Source, "Roteiro")
	}
}

func TestRankEmphasis(t *testing.T) {
	engine := &Engine{now: time.Now}
	results := []model.RankedResult{
		{Final: 0.9, Scores: model.ScoreBreakdown{Authority: 0.5, Recency: 1.0}},
		{Final: 0.5, Scores: model.ScoreBreakdown{Authority: 0.95, Recency: 0.5}},
	}
	engine.rank(results, model.EmphasisAuthority)
	require.InDelta(t, 0.95, results[0].Scores.Authority, 1e-9)

	engine.rank(results, model.EmphasisFreshness)
	require.InDelta(t, 1.0, results[0].Scores.Recency, 1e-9)

	engine.rank(results, "")
	require.InDelta(t, 0.9, results[0].Final, 1e-9)
}

func TestRecencyScoreSteps(t *testing.T) {
	base := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	engine := &Engine{now: func() time.Time { return base }}
	tests := []struct {
		age  time.Duration
		want float64
	}{
		{10 * 24 * time.Hour, 1.0},
		{60 * 24 * time.Hour, 0.9},
		{120 * 24 * time.Hour, 0.8},
		{300 * 24 * time.Hour, 0.7},
		{500 * 24 * time.Hour, 0.5},
	}
	for _, tt := range tests {
		require.InDelta(t, tt.want, engine.recencyScore(base.Add(-tt.age)), 1e-9)
	}
	require.InDelta(t, 0.5, engine.recencyScore(time.Time{}), 1e-9)
}

func TestAuthorityScore(t *testing.T) {
	require.InDelta(t, 0.95, AuthorityScore("PCDT Hanseníase 2022"), 1e-9)
	require.InDelta(t, 0.8, AuthorityScore("Roteiro de Dispensação"), 1e-9)
	require.InDelta(t, 0.5, AuthorityScore("blog pessoal"), 1e-9)
}

func TestKeywordScore(t *testing.T) {
	expansion := Expansion{
		MedicalTerms: []string{"rifampicina"},
		Synonyms:     []string{"rmp"},
	}
	text := "A rifampicina é tomada em dose mensal."
	// literal query (1.0) found, medical term (0.8) found, synonym (0.6) not.
	score := keywordScore("rifampicina", expansion, text)
	require.InDelta(t, (1.0+0.8)/(1.0+0.8+0.6), score, 1e-9)

	require.Zero(t, keywordScore("", Expansion{}, text))
}
