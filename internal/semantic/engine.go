package semantic

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"sort"
	"strings"
	"time"

	"github.com/xxxsen/common/logutil"

	"github.com/careline/medrag/internal/cache"
	"github.com/careline/medrag/internal/knowledge"
	"github.com/careline/medrag/internal/model"
)

const (
	resultCacheTTL       = 30 * time.Minute
	defaultMinSimilarity = 0.65
	defaultMaxResults    = 10
	supplementaryRelax   = 0.9
	maxSupplementary     = 2
	keywordWeight        = 0.1
)

// defaultWeights are empirically chosen; callers may override them
// per query and should not assume they are optimal.
var defaultWeights = model.ScoreWeights{
	Semantic:  0.4,
	Priority:  0.25,
	Recency:   0.15,
	Authority: 0.2,
}

// authorityScores rates known sources; matching is by substring with
// 0.5 for anything unknown.
var authorityScores = map[string]float64{
	"PCDT":                   0.95,
	"Ministério da Saúde":    0.9,
	"OMS":                    0.9,
	"WHO":                    0.9,
	"Roteiro de Dispensação": 0.8,
	"Anvisa":                 0.85,
}

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

// Engine ranks knowledge-index candidates with a weighted multi
// factor score. It is stateless apart from its result cache.
type Engine struct {
	index *knowledge.Index
	cache cache.Cache
	cfg   Config
	now   func() time.Time
}

func New(index *knowledge.Index, c cache.Cache, cfg Config) *Engine {
	cfg.applyDefaults()
	if c == nil {
		c = cache.Noop{}
	}
	return &Engine{index: index, cache: c, cfg: cfg, now: time.Now}
}

// Search runs the full pipeline: expansion, multi-source gather,
// filtering, scoring and ranking. Results are cached for 30 minutes
// under a hash of the whole query.
func (e *Engine) Search(ctx context.Context, query model.SemanticQuery) []model.RankedResult {
	if strings.TrimSpace(query.Text) == "" {
		return nil
	}
	cacheKey := e.cacheKey(query)
	if data, ok := e.cache.Get(ctx, cacheKey); ok {
		var cached []model.RankedResult
		if err := json.Unmarshal(data, &cached); err == nil {
			logutil.GetLogger(ctx).Debug("semantic result cache hit")
			return cached
		}
	}

	expansion := ExpandQuery(query.Text)
	candidates := e.gather(ctx, query, expansion)
	candidates = e.filter(candidates, query.Filters)

	weights := defaultWeights
	if query.Weights != nil {
		weights = *query.Weights
	}
	results := make([]model.RankedResult, 0, len(candidates))
	for _, candidate := range candidates {
		scores := e.score(query.Text, expansion, candidate)
		denominator := weights.Semantic + weights.Priority + weights.Recency + weights.Authority + keywordWeight
		if denominator <= 0 {
			denominator = 1
		}
		final := (scores.Semantic*weights.Semantic +
			scores.Priority*weights.Priority +
			scores.Recency*weights.Recency +
			scores.Authority*weights.Authority +
			scores.Keyword*keywordWeight) / denominator
		results = append(results, model.RankedResult{
			Document: candidate.Document,
			Chunk:    candidate.Chunk,
			Scores:   scores,
			Final:    final,
		})
	}
	e.rank(results, query.Emphasis)

	maxResults := query.MaxResults
	if maxResults <= 0 {
		maxResults = e.cfg.MaxResults
	}
	if len(results) > maxResults {
		results = results[:maxResults]
	}
	if data, err := json.Marshal(results); err == nil {
		e.cache.Set(ctx, cacheKey, data, resultCacheTTL)
	}
	return results
}

// gather collects candidates from the primary search, up to two
// relaxed supplementary searches over expanded terms, and one search
// per requested category, de-duplicated by document id.
func (e *Engine) gather(ctx context.Context, query model.SemanticQuery, expansion Expansion) []model.SearchCandidate {
	best := make(map[string]model.SearchCandidate)
	var order []string
	merge := func(candidates []model.SearchCandidate) {
		for _, candidate := range candidates {
			if candidate.Document == nil {
				continue
			}
			id := candidate.Document.ID
			existing, ok := best[id]
			if !ok {
				best[id] = candidate
				order = append(order, id)
				continue
			}
			if candidate.Similarity > existing.Similarity {
				best[id] = candidate
			}
		}
	}

	merge(e.index.Search(ctx, query.Text, model.SearchOptions{
		UseChunks:     true,
		MinSimilarity: e.cfg.MinSimilarity,
		MaxResults:    e.cfg.MaxResults * 2,
	}))

	terms := expansion.Terms()
	if len(terms) > maxSupplementary {
		terms = terms[:maxSupplementary]
	}
	for _, term := range terms {
		merge(e.index.Search(ctx, query.Text+" "+term, model.SearchOptions{
			UseChunks:     true,
			MinSimilarity: e.cfg.MinSimilarity * supplementaryRelax,
			MaxResults:    e.cfg.MaxResults,
		}))
	}
	for _, category := range query.Filters.Categories {
		merge(e.index.SearchByCategory(ctx, category, query.Text))
	}

	out := make([]model.SearchCandidate, 0, len(order))
	for _, id := range order {
		out = append(out, best[id])
	}
	return out
}

func (e *Engine) filter(candidates []model.SearchCandidate, filters model.SemanticFilters) []model.SearchCandidate {
	wanted := make(map[model.Category]struct{}, len(filters.Categories))
	for _, category := range filters.Categories {
		wanted[category] = struct{}{}
	}
	out := candidates[:0]
	for _, candidate := range candidates {
		doc := candidate.Document
		if len(wanted) > 0 {
			if _, ok := wanted[doc.Category]; !ok {
				continue
			}
		}
		if filters.Source != "" && !strings.Contains(strings.ToLower(doc.Source), strings.ToLower(filters.Source)) {
			continue
		}
		if doc.Priority < filters.MinPriority {
			continue
		}
		if filters.MaxPriority > 0 && doc.Priority > filters.MaxPriority {
			continue
		}
		if !filters.UpdatedFrom.IsZero() && doc.LastUpdated.Before(filters.UpdatedFrom) {
			continue
		}
		if !filters.UpdatedTo.IsZero() && doc.LastUpdated.After(filters.UpdatedTo) {
			continue
		}
		out = append(out, candidate)
	}
	return out
}

func (e *Engine) score(queryText string, expansion Expansion, candidate model.SearchCandidate) model.ScoreBreakdown {
	doc := candidate.Document
	return model.ScoreBreakdown{
		Semantic:  candidate.Similarity,
		Priority:  doc.Priority,
		Recency:   e.recencyScore(doc.LastUpdated),
		Authority: AuthorityScore(doc.Source),
		Keyword:   keywordScore(queryText, expansion, candidate.Text()),
	}
}

// recencyScore decays stepwise with document age; unknown dates get
// the neutral 0.5.
func (e *Engine) recencyScore(updated time.Time) float64 {
	if updated.IsZero() {
		return 0.5
	}
	age := e.now().Sub(updated)
	switch {
	case age <= 30*24*time.Hour:
		return 1.0
	case age <= 90*24*time.Hour:
		return 0.9
	case age <= 180*24*time.Hour:
		return 0.8
	case age <= 365*24*time.Hour:
		return 0.7
	default:
		return 0.5
	}
}

// AuthorityScore rates a source name against the fixed authority
// table, 0.5 when unmatched.
func AuthorityScore(source string) float64 {
	names := make([]string, 0, len(authorityScores))
	for name := range authorityScores {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if strings.Contains(source, name) {
			return authorityScores[name]
		}
	}
	return 0.5
}

// keywordScore measures verbatim term presence: the literal query
// weighs 1.0, medical terms 0.8, synonyms and related concepts 0.6.
func keywordScore(queryText string, expansion Expansion, text string) float64 {
	lowered := strings.ToLower(text)
	var got, total float64
	check := func(term string, weight float64) {
		term = strings.ToLower(strings.TrimSpace(term))
		if term == "" {
			return
		}
		total += weight
		if strings.Contains(lowered, term) {
			got += weight
		}
	}
	check(queryText, 1.0)
	for _, term := range expansion.MedicalTerms {
		check(term, 0.8)
	}
	for _, term := range expansion.Synonyms {
		check(term, 0.6)
	}
	for _, term := range expansion.Related {
		check(term, 0.6)
	}
	if total == 0 {
		return 0
	}
	return got / total
}

// rank orders results by final score, or by the emphasized score
// first with final breaking ties.
func (e *Engine) rank(results []model.RankedResult, emphasis model.RankEmphasis) {
	key := func(r model.RankedResult) float64 {
		switch emphasis {
		case model.EmphasisRelevance:
			return r.Scores.Semantic
		case model.EmphasisAuthority:
			return r.Scores.Authority
		case model.EmphasisFreshness:
			return r.Scores.Recency
		default:
			return r.Final
		}
	}
	sort.SliceStable(results, func(i, j int) bool {
		a, b := key(results[i]), key(results[j])
		if a != b {
			return a > b
		}
		return results[i].Final > results[j].Final
	})
}

func (e *Engine) cacheKey(query model.SemanticQuery) string {
	data, err := json.Marshal(query)
	if err != nil {
		data = []byte(query.Text)
	}
	hash := sha256.Sum256(data)
	return "semantic:" + hex.EncodeToString(hash[:])
}

// Analyze exposes query analysis through the engine for callers that
// hold one.
func (e *Engine) Analyze(text string) model.QueryAnalysis {
	return AnalyzeQuery(text)
}
