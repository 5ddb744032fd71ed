package embedstore

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"strings"
	"sync/atomic"
	"time"
	"unicode"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/careline/medrag/internal/ai"
	"github.com/careline/medrag/internal/cache"
	"github.com/careline/medrag/internal/model"
	"github.com/careline/medrag/internal/repo"
)

const (
	defaultBatchSize     = 10
	defaultBatchInterval = 100 * time.Millisecond
	defaultCacheTTL      = 7 * 24 * time.Hour
	defaultMaxTextLen    = 8000
)

type Config struct {
	BatchSize     int
	BatchInterval time.Duration
	CacheTTL      time.Duration
	MaxTextLen    int
}

func (c *Config) applyDefaults() {
	if c.BatchSize <= 0 {
		c.BatchSize = defaultBatchSize
	}
	if c.BatchInterval <= 0 {
		c.BatchInterval = defaultBatchInterval
	}
	if c.CacheTTL <= 0 {
		c.CacheTTL = defaultCacheTTL
	}
	if c.MaxTextLen <= 0 {
		c.MaxTextLen = defaultMaxTextLen
	}
}

// Store generates and caches embeddings. A provider failure never
// surfaces: the store degrades to the deterministic local embedder,
// so Embed only errors when the context is done.
type Store struct {
	provider ai.IEmbedProvider
	fallback ai.IEmbedProvider
	cache    cache.Cache
	durable  *repo.EmbeddingCacheRepo
	limiter  *rate.Limiter
	cfg      Config

	hits      atomic.Int64
	misses    atomic.Int64
	fallbacks atomic.Int64
}

type Option func(*Store)

// WithDurableCache adds a write-through database layer under the
// in-memory cache so embeddings survive restarts.
func WithDurableCache(r *repo.EmbeddingCacheRepo) Option {
	return func(s *Store) {
		s.durable = r
	}
}

func New(provider ai.IEmbedProvider, c cache.Cache, cfg Config, opts ...Option) *Store {
	cfg.applyDefaults()
	if c == nil {
		c = cache.Noop{}
	}
	s := &Store{
		provider: provider,
		fallback: ai.NewLocalProvider(ai.LocalDimensions),
		cache:    c,
		limiter:  rate.NewLimiter(rate.Every(cfg.BatchInterval), 1),
		cfg:      cfg,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Embed returns the embedding of text, consulting the cache first.
func (s *Store) Embed(ctx context.Context, text string) ([]float32, error) {
	vectors, err := s.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

// EmbedBatch embeds texts in provider-sized chunks, pacing requests
// to respect provider rate limits. Cached entries skip network I/O.
func (s *Store) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	results := make([][]float32, len(texts))
	var pendingIdx []int
	var pendingTexts []string
	for i, text := range texts {
		normalized := Normalize(text, s.cfg.MaxTextLen)
		if vec, ok := s.lookup(ctx, normalized); ok {
			s.hits.Add(1)
			results[i] = vec
			continue
		}
		s.misses.Add(1)
		pendingIdx = append(pendingIdx, i)
		pendingTexts = append(pendingTexts, normalized)
	}
	for start := 0; start < len(pendingTexts); start += s.cfg.BatchSize {
		end := start + s.cfg.BatchSize
		if end > len(pendingTexts) {
			end = len(pendingTexts)
		}
		if start > 0 {
			if err := s.limiter.Wait(ctx); err != nil {
				return nil, err
			}
		}
		chunk := pendingTexts[start:end]
		vectors, usedFallback := s.embedChunk(ctx, chunk)
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		for j, vec := range vectors {
			results[pendingIdx[start+j]] = vec
			s.store(ctx, chunk[j], vec, usedFallback)
		}
	}
	return results, nil
}

// embedChunk tries the configured provider and degrades to the local
// embedder on any failure. The bool reports whether fallback was used.
func (s *Store) embedChunk(ctx context.Context, texts []string) ([][]float32, bool) {
	if s.provider != nil {
		vectors, err := s.provider.EmbedBatch(ctx, texts)
		if err == nil && len(vectors) == len(texts) {
			return vectors, false
		}
		if err != nil {
			logutil.GetLogger(ctx).Warn("embedding provider failed, using local fallback",
				zap.String("provider", s.provider.Name()), zap.Error(err))
		}
	}
	s.fallbacks.Add(1)
	vectors, _ := s.fallback.EmbedBatch(ctx, texts)
	return vectors, true
}

func (s *Store) lookup(ctx context.Context, normalized string) ([]float32, bool) {
	key, hash := s.cacheKey(normalized, s.modelName())
	if data, ok := s.cache.Get(ctx, key); ok {
		var vec []float32
		if err := json.Unmarshal(data, &vec); err == nil {
			logutil.GetLogger(ctx).Debug("embedding cache hit (memory)")
			return vec, true
		}
	}
	if s.durable != nil {
		vec, ok, err := s.durable.Get(ctx, s.modelName(), hash)
		if err != nil {
			logutil.GetLogger(ctx).Warn("embedding cache lookup failed", zap.Error(err))
			return nil, false
		}
		if ok {
			logutil.GetLogger(ctx).Debug("embedding cache hit (db)")
			if data, err := json.Marshal(vec); err == nil {
				s.cache.Set(ctx, key, data, s.cfg.CacheTTL)
			}
			return vec, true
		}
	}
	return nil, false
}

func (s *Store) store(ctx context.Context, normalized string, vec []float32, usedFallback bool) {
	modelName := s.modelName()
	if usedFallback {
		modelName = s.fallback.ModelName()
	}
	key, hash := s.cacheKey(normalized, modelName)
	if data, err := json.Marshal(vec); err == nil {
		s.cache.Set(ctx, key, data, s.cfg.CacheTTL)
	}
	if s.durable != nil && !usedFallback {
		if err := s.durable.Save(ctx, &model.EmbeddingCache{
			ModelName:   modelName,
			ContentHash: hash,
			Embedding:   vec,
			Dimensions:  len(vec),
			TokenCount:  len(strings.Fields(normalized)),
			Ctime:       time.Now().Unix(),
		}); err != nil {
			logutil.GetLogger(ctx).Warn("failed to persist embedding", zap.Error(err))
		}
	}
}

func (s *Store) modelName() string {
	if s.provider == nil {
		return s.fallback.ModelName()
	}
	return s.provider.ModelName()
}

func (s *Store) cacheKey(normalized, modelName string) (string, string) {
	hash := sha256.Sum256([]byte(normalized))
	contentHash := hex.EncodeToString(hash[:])
	return "embed:" + modelName + ":" + contentHash, contentHash
}

// Stats is a snapshot of cache behavior, consumed by the optimizer's
// self-tuning pass and the stats endpoint.
type Stats struct {
	Hits      int64 `json:"hits"`
	Misses    int64 `json:"misses"`
	Fallbacks int64 `json:"fallbacks"`
}

func (s *Store) Stats() Stats {
	return Stats{
		Hits:      s.hits.Load(),
		Misses:    s.misses.Load(),
		Fallbacks: s.fallbacks.Load(),
	}
}

// Normalize canonicalizes text before hashing so trivially different
// inputs share a cache entry: trim, collapse whitespace, strip
// control characters, truncate to the provider limit.
func Normalize(text string, maxLen int) string {
	var b strings.Builder
	b.Grow(len(text))
	lastSpace := false
	for _, r := range strings.TrimSpace(text) {
		if unicode.IsControl(r) {
			continue
		}
		if unicode.IsSpace(r) {
			if !lastSpace {
				b.WriteByte(' ')
			}
			lastSpace = true
			continue
		}
		lastSpace = false
		b.WriteRune(r)
	}
	out := b.String()
	if maxLen > 0 && len(out) > maxLen {
		cut := out[:maxLen]
		// Avoid splitting a multi-byte rune at the boundary.
		for len(cut) > 0 && !utf8ValidPrefix(cut) {
			cut = cut[:len(cut)-1]
		}
		out = cut
	}
	return out
}

func utf8ValidPrefix(s string) bool {
	return strings.ToValidUTF8(s, "") == s
}
