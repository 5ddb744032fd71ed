package knowledge

import (
	"context"
	"math"
	"regexp"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/careline/medrag/internal/cache"
	"github.com/careline/medrag/internal/embedstore"
	"github.com/careline/medrag/internal/model"
)

// keywordEmbedder projects text onto a small set of domain concept
// axes. It keeps tests offline while preserving the property the
// index relies on: related texts land close together.
type keywordEmbedder struct{}

var conceptAxes = []*regexp.Regexp{
	regexp.MustCompile(`(?i)rifampicina`),
	regexp.MustCompile(`(?i)clofazimina`),
	regexp.MustCompile(`(?i)dapsona`),
	regexp.MustCompile(`(?i)dose|dosagem|administra|posologia|supervisionada|\bmg\b`),
	regexp.MustCompile(`(?i)contraindica|gravidez|gestante|g6pd|hipersensibilidade`),
	regexp.MustCompile(`(?i)efeito|colateral|urina|pele|hiperpigmenta`),
	regexp.MustCompile(`(?i)intera|anticoncepcional|varfarina|indutor`),
	regexp.MustCompile(`(?i)protocolo|esquema|pqt|paucibacilar|multibacilar`),
	regexp.MustCompile(`(?i)dispensa|orienta|farmac`),
	regexp.MustCompile(`(?i)hansen`),
}

func (keywordEmbedder) Name() string      { return "keyword" }
func (keywordEmbedder) ModelName() string { return "keyword-test" }
func (keywordEmbedder) Dimensions() int   { return len(conceptAxes) }

func (e keywordEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	vec := make([]float32, len(conceptAxes))
	for i, axis := range conceptAxes {
		vec[i] = float32(len(axis.FindAllString(text, -1)))
	}
	var norm float64
	for _, v := range vec {
		norm += float64(v) * float64(v)
	}
	if norm > 0 {
		inv := float32(1 / math.Sqrt(norm))
		for i := range vec {
			vec[i] *= inv
		}
	}
	return vec, nil
}

func (e keywordEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, text := range texts {
		out[i], _ = e.Embed(ctx, text)
	}
	return out, nil
}

func newTestIndex(t *testing.T) *Index {
	t.Helper()
	store := embedstore.New(keywordEmbedder{}, cache.NewMemory(1024, time.Hour), embedstore.Config{})
	idx := NewIndex(store, cache.NewMemory(1024, time.Hour), Config{MinSimilarity: 0.6})
	require.Equal(t, len(SeedDocuments()), Seed(context.Background(), idx))
	return idx
}

func TestSearchDosageScenario(t *testing.T) {
	idx := newTestIndex(t)
	results := idx.Search(context.Background(), "rifampicina dose", model.SearchOptions{MaxResults: 3})
	require.NotEmpty(t, results)
	found := false
	for _, candidate := range results {
		require.GreaterOrEqual(t, candidate.Similarity, 0.6)
		if candidate.Document.Title == "Rifampicina — Dosagem e Administração" {
			found = true
		}
	}
	require.True(t, found, "dosage document must rank in the top 3")
}

func TestSearchDeterministic(t *testing.T) {
	idx := newTestIndex(t)
	first := idx.Search(context.Background(), "rifampicina dose", model.SearchOptions{MaxResults: 5})
	second := idx.Search(context.Background(), "rifampicina dose", model.SearchOptions{MaxResults: 5})
	require.Equal(t, len(first), len(second))
	for i := range first {
		require.Equal(t, first[i].Document.ID, second[i].Document.ID)
		require.Equal(t, first[i].Similarity, second[i].Similarity)
	}
}

func TestSearchEmptyQuery(t *testing.T) {
	idx := newTestIndex(t)
	require.Nil(t, idx.Search(context.Background(), "", model.SearchOptions{}))
}

func TestSearchByCategoryOnlyReturnsCategory(t *testing.T) {
	idx := newTestIndex(t)
	results := idx.SearchByCategory(context.Background(), model.CategoryContraindication, "gravidez")
	require.NotEmpty(t, results)
	for _, candidate := range results {
		require.Equal(t, model.CategoryContraindication, candidate.Document.Category)
	}
}

func TestSearchByCategoryWithoutQueryListsByPriority(t *testing.T) {
	idx := newTestIndex(t)
	results := idx.SearchByCategory(context.Background(), model.CategoryDosage, "")
	require.Len(t, results, 3)
	for i := 1; i < len(results); i++ {
		require.GreaterOrEqual(t, results[i-1].Document.Priority, results[i].Document.Priority)
	}
}

func TestSearchCriticalFiltersPriority(t *testing.T) {
	idx := newTestIndex(t)
	results := idx.SearchCritical(context.Background(), "dose supervisionada rifampicina")
	require.NotEmpty(t, results)
	for _, candidate := range results {
		require.GreaterOrEqual(t, candidate.Document.Priority, 0.8)
	}
}

func TestSearchChunksResolveParent(t *testing.T) {
	idx := newTestIndex(t)
	results := idx.Search(context.Background(), "rifampicina dose", model.SearchOptions{
		UseChunks:     true,
		MinSimilarity: 0.3,
		MaxResults:    10,
	})
	require.NotEmpty(t, results)
	for _, candidate := range results {
		require.NotNil(t, candidate.Chunk)
		require.Equal(t, candidate.Document.ID, candidate.Chunk.DocumentID)
	}
}

func TestAddDocumentReplaces(t *testing.T) {
	idx := newTestIndex(t)
	before := idx.Stats().Documents
	ok := idx.AddDocument(context.Background(), &model.Document{
		ID:       "rifampicina-dosagem",
		Title:    "Rifampicina — Dosagem e Administração",
		Category: model.CategoryDosage,
		Priority: 0.95,
		Content:  "A rifampicina é administrada na dose de 600 mg uma vez por mês em dose supervisionada.",
	})
	require.True(t, ok)
	require.Equal(t, before, idx.Stats().Documents, "re-adding must replace, not append")
	doc, found := idx.Document("rifampicina-dosagem")
	require.True(t, found)
	for _, chunk := range doc.Chunks {
		require.Equal(t, doc.ID, chunk.DocumentID)
	}
}

func TestAddDocumentRejectsEmpty(t *testing.T) {
	idx := newTestIndex(t)
	require.False(t, idx.AddDocument(context.Background(), &model.Document{ID: "", Content: ""}))
}

func TestReindexKeepsResults(t *testing.T) {
	idx := newTestIndex(t)
	before := idx.Search(context.Background(), "rifampicina dose", model.SearchOptions{MaxResults: 3})
	require.NoError(t, idx.Reindex(context.Background()))
	after := idx.Search(context.Background(), "rifampicina dose", model.SearchOptions{MaxResults: 3})
	require.Equal(t, len(before), len(after))
	for i := range before {
		require.Equal(t, before[i].Document.ID, after[i].Document.ID)
	}
}

func TestReindexConcurrentWithReads(t *testing.T) {
	idx := newTestIndex(t)
	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 20; i++ {
			results := idx.Search(context.Background(), "rifampicina dose", model.SearchOptions{MaxResults: 3})
			for _, candidate := range results {
				// A torn document would break the chunk->parent invariant.
				for _, chunk := range candidate.Document.Chunks {
					if chunk.DocumentID != candidate.Document.ID {
						t.Error("observed torn document during reindex")
						return
					}
				}
			}
		}
	}()
	for i := 0; i < 5; i++ {
		require.NoError(t, idx.Reindex(context.Background()))
	}
	<-done
}
