package knowledge

import (
	"context"
	"encoding/json"
	"sort"
	"sync"
	"time"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/careline/medrag/internal/cache"
	"github.com/careline/medrag/internal/embedstore"
	"github.com/careline/medrag/internal/model"
)

const (
	defaultMinSimilarity = 0.65
	defaultMaxResults    = 5
	criticalPriority     = 0.8
	docCacheTTL          = 24 * time.Hour
)

type Config struct {
	MinSimilarity float64
	MaxResults    int
}

func (c *Config) applyDefaults() {
	if c.MinSimilarity <= 0 {
		c.MinSimilarity = defaultMinSimilarity
	}
	if c.MaxResults <= 0 {
		c.MaxResults = defaultMaxResults
	}
}

// Index holds the curated corpus in memory and answers similarity
// queries. Documents and chunks are mutated only by AddDocument and
// Reindex; searches take a read lock, so a reader sees either the old
// or the new state of a document, never a torn one.
type Index struct {
	embedder *embedstore.Store
	cache    cache.Cache
	cfg      Config

	mu         sync.RWMutex
	docs       map[string]*model.Document
	order      []string
	byCategory map[model.Category][]string
}

func NewIndex(embedder *embedstore.Store, c cache.Cache, cfg Config) *Index {
	cfg.applyDefaults()
	if c == nil {
		c = cache.Noop{}
	}
	return &Index{
		embedder:   embedder,
		cache:      c,
		cfg:        cfg,
		docs:       make(map[string]*model.Document),
		byCategory: make(map[model.Category][]string),
	}
}

// AddDocument chunks, embeds and indexes doc. It never panics or
// returns an error: any failure is logged and reported as false.
// Re-adding an id replaces the previous document and its chunks while
// keeping the original insertion position, so tie-breaking stays
// stable across updates.
func (idx *Index) AddDocument(ctx context.Context, doc *model.Document) bool {
	logger := logutil.GetLogger(ctx).With(zap.String("doc_id", doc.ID))
	if doc.ID == "" || doc.Content == "" {
		logger.Warn("rejecting document without id or content")
		return false
	}
	if !doc.Category.Valid() {
		doc.Category = model.CategoryGeneral
	}
	if doc.Priority < 0 {
		doc.Priority = 0
	}
	if doc.Priority > 1 {
		doc.Priority = 1
	}
	doc.Chunks = SplitChunks(doc)

	texts := make([]string, 0, len(doc.Chunks)+1)
	texts = append(texts, doc.Title+"\n"+doc.Content)
	for _, chunk := range doc.Chunks {
		texts = append(texts, chunk.Content)
	}
	vectors, err := idx.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		logger.Error("failed to embed document", zap.Error(err))
		return false
	}
	doc.Embedding = vectors[0]
	for i, chunk := range doc.Chunks {
		chunk.Embedding = vectors[i+1]
	}

	idx.mu.Lock()
	if _, exists := idx.docs[doc.ID]; !exists {
		idx.order = append(idx.order, doc.ID)
	}
	idx.docs[doc.ID] = doc
	idx.rebuildCategoriesLocked()
	idx.mu.Unlock()

	if data, err := json.Marshal(doc); err == nil {
		idx.cache.Set(ctx, "knowledge:doc:"+doc.ID, data, docCacheTTL)
	}
	logger.Debug("document indexed", zap.Int("chunks", len(doc.Chunks)))
	return true
}

func (idx *Index) rebuildCategoriesLocked() {
	byCategory := make(map[model.Category][]string, len(idx.byCategory))
	for _, id := range idx.order {
		doc, ok := idx.docs[id]
		if !ok {
			continue
		}
		byCategory[doc.Category] = append(byCategory[doc.Category], id)
	}
	idx.byCategory = byCategory
}

// Search embeds query and linearly scans chunks (or whole documents
// when opts.UseChunks is false) after category/priority prefiltering.
// Ordering is deterministic: descending similarity with insertion
// order breaking ties.
func (idx *Index) Search(ctx context.Context, query string, opts model.SearchOptions) []model.SearchCandidate {
	if query == "" {
		return nil
	}
	minSimilarity := opts.MinSimilarity
	if minSimilarity <= 0 {
		minSimilarity = idx.cfg.MinSimilarity
	}
	maxResults := opts.MaxResults
	if maxResults <= 0 {
		maxResults = idx.cfg.MaxResults
	}
	queryVec, err := idx.embedder.Embed(ctx, query)
	if err != nil {
		logutil.GetLogger(ctx).Warn("query embedding failed", zap.Error(err))
		return nil
	}

	wanted := make(map[model.Category]struct{}, len(opts.Categories))
	for _, c := range opts.Categories {
		wanted[c] = struct{}{}
	}

	idx.mu.RLock()
	defer idx.mu.RUnlock()

	var candidates []model.SearchCandidate
	for _, id := range idx.order {
		doc, ok := idx.docs[id]
		if !ok {
			logutil.GetLogger(ctx).Warn("index entry without document, skipping", zap.String("doc_id", id))
			continue
		}
		if len(wanted) > 0 {
			if _, ok := wanted[doc.Category]; !ok {
				continue
			}
		}
		if doc.Priority < opts.MinPriority {
			continue
		}
		if opts.UseChunks {
			for _, chunk := range doc.Chunks {
				if chunk.DocumentID != doc.ID {
					logutil.GetLogger(ctx).Warn("chunk with dangling parent, skipping",
						zap.String("chunk_id", chunk.ID), zap.String("parent", chunk.DocumentID))
					continue
				}
				sim := embedstore.Cosine(queryVec, chunk.Embedding)
				if sim < minSimilarity {
					continue
				}
				candidates = append(candidates, model.SearchCandidate{Document: doc, Chunk: chunk, Similarity: sim})
			}
			continue
		}
		sim := embedstore.Cosine(queryVec, doc.Embedding)
		if sim < minSimilarity {
			continue
		}
		candidates = append(candidates, model.SearchCandidate{Document: doc, Similarity: sim})
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].Similarity > candidates[j].Similarity
	})
	if len(candidates) > maxResults {
		candidates = candidates[:maxResults]
	}
	return candidates
}

// SearchByCategory lists a category. With a query it behaves like
// Search restricted to that category; without one it returns the
// category's documents ordered by priority.
func (idx *Index) SearchByCategory(ctx context.Context, category model.Category, query string) []model.SearchCandidate {
	if query != "" {
		return idx.Search(ctx, query, model.SearchOptions{Categories: []model.Category{category}})
	}
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	ids := idx.byCategory[category]
	candidates := make([]model.SearchCandidate, 0, len(ids))
	for _, id := range ids {
		doc, ok := idx.docs[id]
		if !ok {
			continue
		}
		candidates = append(candidates, model.SearchCandidate{Document: doc, Similarity: doc.Priority})
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].Document.Priority > candidates[j].Document.Priority
	})
	return candidates
}

// SearchCritical is shorthand for a high-priority-only search.
func (idx *Index) SearchCritical(ctx context.Context, query string) []model.SearchCandidate {
	return idx.Search(ctx, query, model.SearchOptions{MinPriority: criticalPriority})
}

// Reindex re-chunks and re-embeds every document into a fresh index
// and swaps it in atomically. Safe to run concurrently with reads and
// idempotent for an unchanged corpus.
func (idx *Index) Reindex(ctx context.Context) error {
	idx.mu.RLock()
	snapshot := make([]*model.Document, 0, len(idx.order))
	order := make([]string, len(idx.order))
	copy(order, idx.order)
	for _, id := range idx.order {
		if doc, ok := idx.docs[id]; ok {
			snapshot = append(snapshot, doc)
		}
	}
	idx.mu.RUnlock()

	fresh := make(map[string]*model.Document, len(snapshot))
	for _, old := range snapshot {
		doc := &model.Document{
			ID:          old.ID,
			Title:       old.Title,
			Content:     old.Content,
			Category:    old.Category,
			Priority:    old.Priority,
			Source:      old.Source,
			LastUpdated: old.LastUpdated,
			Tags:        old.Tags,
		}
		doc.Chunks = SplitChunks(doc)
		texts := make([]string, 0, len(doc.Chunks)+1)
		texts = append(texts, doc.Title+"\n"+doc.Content)
		for _, chunk := range doc.Chunks {
			texts = append(texts, chunk.Content)
		}
		vectors, err := idx.embedder.EmbedBatch(ctx, texts)
		if err != nil {
			return err
		}
		doc.Embedding = vectors[0]
		for i, chunk := range doc.Chunks {
			chunk.Embedding = vectors[i+1]
		}
		fresh[doc.ID] = doc
	}

	idx.mu.Lock()
	idx.docs = fresh
	idx.order = order
	idx.rebuildCategoriesLocked()
	idx.mu.Unlock()
	logutil.GetLogger(ctx).Info("reindex completed", zap.Int("documents", len(fresh)))
	return nil
}

// Document returns the live document for id, if any.
func (idx *Index) Document(id string) (*model.Document, bool) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	doc, ok := idx.docs[id]
	return doc, ok
}

type IndexStats struct {
	Documents  int                    `json:"documents"`
	Chunks     int                    `json:"chunks"`
	Categories map[model.Category]int `json:"categories"`
}

func (idx *Index) Stats() IndexStats {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	stats := IndexStats{Categories: make(map[model.Category]int)}
	for _, doc := range idx.docs {
		stats.Documents++
		stats.Chunks += len(doc.Chunks)
		stats.Categories[doc.Category]++
	}
	return stats
}
