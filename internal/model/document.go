package model

import "time"

// Category classifies a knowledge document by the kind of medical
// information it carries. Dosage and contraindication content is
// treated as high stakes by the ranking and post-processing layers.
type Category string

const (
	CategoryDosage           Category = "dosage"
	CategoryProtocol         Category = "protocol"
	CategoryContraindication Category = "contraindication"
	CategorySideEffect       Category = "side_effect"
	CategoryInteraction      Category = "interaction"
	CategoryGeneral          Category = "general"
)

func (c Category) Valid() bool {
	switch c {
	case CategoryDosage, CategoryProtocol, CategoryContraindication,
		CategorySideEffect, CategoryInteraction, CategoryGeneral:
		return true
	}
	return false
}

// Document is a curated knowledge record. Once added to the index it
// is never mutated in place; re-adding the same id replaces the whole
// record together with its chunks.
type Document struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Content     string    `json:"content"`
	Category    Category  `json:"category"`
	Priority    float64   `json:"priority"`
	Source      string    `json:"source"`
	LastUpdated time.Time `json:"last_updated"`
	Tags        []string  `json:"tags"`
	Embedding   []float32 `json:"embedding,omitempty"`
	Chunks      []*Chunk  `json:"chunks,omitempty"`
}

// Chunk is a sub-span of a document, independently embedded. Its
// lifetime is tied to the parent document.
type Chunk struct {
	ID                       string    `json:"id"`
	DocumentID               string    `json:"document_id"`
	Content                  string    `json:"content"`
	Category                 Category  `json:"category"`
	Priority                 float64   `json:"priority"`
	WordCount                int       `json:"word_count"`
	ContainsDosage           bool      `json:"contains_dosage"`
	ContainsContraindication bool      `json:"contains_contraindication"`
	Embedding                []float32 `json:"embedding,omitempty"`
}
