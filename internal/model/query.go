package model

import "time"

// Complexity buckets drive the retrieval strategy selection.
type Complexity string

const (
	ComplexitySimple  Complexity = "simple"
	ComplexityMedium  Complexity = "medium"
	ComplexityComplex Complexity = "complex"
)

// Strategy is the retrieval path chosen for a query.
type Strategy string

const (
	StrategyRemote   Strategy = "remote"
	StrategyLocal    Strategy = "local"
	StrategyHybrid   Strategy = "hybrid"
	StrategyFallback Strategy = "fallback"
)

// SearchOptions controls a KnowledgeIndex search. Zero values mean
// "use the index defaults".
type SearchOptions struct {
	Categories    []Category `json:"categories,omitempty"`
	MinPriority   float64    `json:"min_priority,omitempty"`
	MaxResults    int        `json:"max_results,omitempty"`
	MinSimilarity float64    `json:"min_similarity,omitempty"`
	UseChunks     bool       `json:"use_chunks,omitempty"`
}

// SearchCandidate is a raw similarity hit from the knowledge index.
// Chunk is nil when the match was made against the whole document.
type SearchCandidate struct {
	Document   *Document `json:"document"`
	Chunk      *Chunk    `json:"chunk,omitempty"`
	Similarity float64   `json:"similarity"`
}

// Text returns the matched span: the chunk content when the candidate
// came from a chunk scan, otherwise the document content.
func (c SearchCandidate) Text() string {
	if c.Chunk != nil {
		return c.Chunk.Content
	}
	if c.Document != nil {
		return c.Document.Content
	}
	return ""
}

// RankEmphasis selects the primary comparison key when ordering
// ranked results. Final score always breaks ties.
type RankEmphasis string

const (
	EmphasisRelevance RankEmphasis = "relevance"
	EmphasisAuthority RankEmphasis = "authority"
	EmphasisFreshness RankEmphasis = "freshness"
)

// ScoreWeights are the multiplicative weights of the ranking formula.
// They are empirically chosen defaults, not invariants; callers may
// override them per query.
type ScoreWeights struct {
	Semantic  float64 `json:"semantic"`
	Priority  float64 `json:"priority"`
	Recency   float64 `json:"recency"`
	Authority float64 `json:"authority"`
}

// SemanticFilters narrows a semantic search before scoring.
type SemanticFilters struct {
	Categories  []Category `json:"categories,omitempty"`
	Source      string     `json:"source,omitempty"`
	MinPriority float64    `json:"min_priority,omitempty"`
	MaxPriority float64    `json:"max_priority,omitempty"`
	UpdatedFrom time.Time  `json:"updated_from,omitempty"`
	UpdatedTo   time.Time  `json:"updated_to,omitempty"`
}

// SemanticQuery is the full input of a RankingEngine search.
type SemanticQuery struct {
	Text       string          `json:"text"`
	Filters    SemanticFilters `json:"filters"`
	Weights    *ScoreWeights   `json:"weights,omitempty"`
	Emphasis   RankEmphasis    `json:"emphasis,omitempty"`
	MaxResults int             `json:"max_results,omitempty"`
}

// ScoreBreakdown carries the five independent scores that were
// combined into the final one, for explainability.
type ScoreBreakdown struct {
	Semantic  float64 `json:"semantic"`
	Keyword   float64 `json:"keyword"`
	Priority  float64 `json:"priority"`
	Recency   float64 `json:"recency"`
	Authority float64 `json:"authority"`
}

// RankedResult is one scored entry of a semantic search response.
type RankedResult struct {
	Document *Document      `json:"document"`
	Chunk    *Chunk         `json:"chunk,omitempty"`
	Scores   ScoreBreakdown `json:"scores"`
	Final    float64        `json:"final"`
}

// QueryAnalysis is the output of RankingEngine.AnalyzeQuery.
type QueryAnalysis struct {
	Complexity   Complexity `json:"complexity"`
	MedicalTerms []string   `json:"medical_terms"`
	Categories   []Category `json:"categories"`
	Confidence   float64    `json:"confidence"`
}

// QueryPlan records how a query was analyzed and routed. It is
// computed fresh per query and never cached.
type QueryPlan struct {
	OriginalText       string     `json:"original_text"`
	ExpandedTerms      []string   `json:"expanded_terms"`
	DetectedCategories []Category `json:"detected_categories"`
	Complexity         Complexity `json:"complexity"`
	ChosenStrategy     Strategy   `json:"chosen_strategy"`
}
