package model

// KnowledgeSource tells the consumer where the answer content came
// from, independent of the strategy that was attempted.
type KnowledgeSource string

const (
	SourceRemote KnowledgeSource = "remote"
	SourceLocal  KnowledgeSource = "local"
	SourceMerged KnowledgeSource = "merged"
	SourceStatic KnowledgeSource = "static"
)

// ContextChunk is a supporting passage attached to an answer, tagged
// with a coarse confidence bucket for the UI.
type ContextChunk struct {
	DocumentID string  `json:"document_id"`
	Title      string  `json:"title"`
	Content    string  `json:"content"`
	Similarity float64 `json:"similarity"`
	Confidence string  `json:"confidence"`
	Source     string  `json:"source"`
}

// IntegratedResponse is the single response shape every consumer
// receives. Answer is never empty: predictable failures resolve into
// the static fallback text instead of an error.
type IntegratedResponse struct {
	Answer          string          `json:"answer"`
	Strategy        Strategy        `json:"strategy"`
	KnowledgeSource KnowledgeSource `json:"knowledge_source"`
	Persona         string          `json:"persona,omitempty"`
	Sources         []string        `json:"sources,omitempty"`
	ContextChunks   []ContextChunk  `json:"context_chunks,omitempty"`
	Caveats         []string        `json:"caveats,omitempty"`
	ProcessingSteps []string        `json:"processing_steps,omitempty"`
	QualityScore    float64         `json:"quality_score"`
	Cached          bool            `json:"cached"`
}
