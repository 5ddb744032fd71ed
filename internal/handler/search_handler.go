package handler

import (
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/careline/medrag/internal/model"
	"github.com/careline/medrag/internal/pkg/errcode"
	"github.com/careline/medrag/internal/pkg/response"
	"github.com/careline/medrag/internal/semantic"
)

type SearchHandler struct {
	engine *semantic.Engine
}

func NewSearchHandler(engine *semantic.Engine) *SearchHandler {
	return &SearchHandler{engine: engine}
}

type searchRequest struct {
	Text        string   `json:"text"`
	Categories  []string `json:"categories"`
	Source      string   `json:"source"`
	MinPriority float64  `json:"min_priority"`
	MaxPriority float64  `json:"max_priority"`
	UpdatedFrom string   `json:"updated_from"`
	UpdatedTo   string   `json:"updated_to"`
	Emphasis    string   `json:"emphasis"`
	MaxResults  int      `json:"max_results"`
}

type searchResultItem struct {
	DocumentID string               `json:"document_id"`
	Title      string               `json:"title"`
	Category   model.Category       `json:"category"`
	Source     string               `json:"source"`
	Excerpt    string               `json:"excerpt"`
	Scores     model.ScoreBreakdown `json:"scores"`
	Final      float64              `json:"final"`
}

func (h *SearchHandler) Search(c *gin.Context) {
	var req searchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, errcode.ErrInvalid, "invalid request")
		return
	}
	if strings.TrimSpace(req.Text) == "" {
		response.Error(c, errcode.ErrEmptyQuery, "text is required")
		return
	}
	query := model.SemanticQuery{
		Text:       req.Text,
		Emphasis:   model.RankEmphasis(req.Emphasis),
		MaxResults: req.MaxResults,
		Filters: model.SemanticFilters{
			Source:      req.Source,
			MinPriority: req.MinPriority,
			MaxPriority: req.MaxPriority,
		},
	}
	for _, name := range req.Categories {
		category := model.Category(strings.ToLower(strings.TrimSpace(name)))
		if !category.Valid() {
			response.Error(c, errcode.ErrInvalid, "unknown category: "+name)
			return
		}
		query.Filters.Categories = append(query.Filters.Categories, category)
	}
	if req.UpdatedFrom != "" {
		from, err := time.Parse("2006-01-02", req.UpdatedFrom)
		if err != nil {
			response.Error(c, errcode.ErrInvalid, "bad updated_from")
			return
		}
		query.Filters.UpdatedFrom = from
	}
	if req.UpdatedTo != "" {
		to, err := time.Parse("2006-01-02", req.UpdatedTo)
		if err != nil {
			response.Error(c, errcode.ErrInvalid, "bad updated_to")
			return
		}
		query.Filters.UpdatedTo = to
	}

	results := h.engine.Search(c.Request.Context(), query)
	items := make([]searchResultItem, 0, len(results))
	for _, result := range results {
		items = append(items, searchResultItem{
			DocumentID: result.Document.ID,
			Title:      result.Document.Title,
			Category:   result.Document.Category,
			Source:     result.Document.Source,
			Excerpt:    excerpt(result),
			Scores:     result.Scores,
			Final:      result.Final,
		})
	}
	response.Success(c, gin.H{"results": items, "analysis": h.engine.Analyze(req.Text)})
}

const maxExcerptLen = 280

func excerpt(result model.RankedResult) string {
	text := result.Document.Content
	if result.Chunk != nil {
		text = result.Chunk.Content
	}
	runes := []rune(text)
	if len(runes) <= maxExcerptLen {
		return text
	}
	return string(runes[:maxExcerptLen]) + "…"
}
