package handler

import (
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/careline/medrag/internal/corpus"
	"github.com/careline/medrag/internal/knowledge"
	"github.com/careline/medrag/internal/model"
	"github.com/careline/medrag/internal/pkg/errcode"
	"github.com/careline/medrag/internal/pkg/response"
	"github.com/careline/medrag/internal/repo"
)

type KnowledgeHandler struct {
	index   *knowledge.Index
	durable *repo.DocumentRepo
	loader  *corpus.Loader
}

func NewKnowledgeHandler(index *knowledge.Index, durable *repo.DocumentRepo, loader *corpus.Loader) *KnowledgeHandler {
	return &KnowledgeHandler{index: index, durable: durable, loader: loader}
}

type createDocumentRequest struct {
	ID       string   `json:"id"`
	Title    string   `json:"title"`
	Content  string   `json:"content"`
	Category string   `json:"category"`
	Priority float64  `json:"priority"`
	Source   string   `json:"source"`
	Updated  string   `json:"updated"`
	Tags     []string `json:"tags"`
}

func (h *KnowledgeHandler) Create(c *gin.Context) {
	var req createDocumentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, errcode.ErrInvalid, "invalid request")
		return
	}
	if strings.TrimSpace(req.ID) == "" || strings.TrimSpace(req.Content) == "" {
		response.Error(c, errcode.ErrInvalid, "id and content are required")
		return
	}
	category := model.Category(strings.ToLower(strings.TrimSpace(req.Category)))
	if req.Category == "" {
		category = model.CategoryGeneral
	}
	if !category.Valid() {
		response.Error(c, errcode.ErrInvalid, "unknown category: "+req.Category)
		return
	}
	doc := &model.Document{
		ID:       req.ID,
		Title:    req.Title,
		Content:  req.Content,
		Category: category,
		Priority: req.Priority,
		Source:   req.Source,
		Tags:     req.Tags,
	}
	if req.Updated != "" {
		updated, err := time.Parse("2006-01-02", req.Updated)
		if err != nil {
			response.Error(c, errcode.ErrInvalid, "bad updated date")
			return
		}
		doc.LastUpdated = updated
	}
	ctx := c.Request.Context()
	if !h.index.AddDocument(ctx, doc) {
		response.Error(c, errcode.ErrInvalid, "document rejected")
		return
	}
	if h.durable != nil {
		if indexed, ok := h.index.Document(doc.ID); ok {
			if err := h.durable.Save(ctx, indexed); err != nil {
				handleError(c, err)
				return
			}
		}
	}
	indexed, _ := h.index.Document(doc.ID)
	response.Success(c, gin.H{"id": doc.ID, "chunks": len(indexed.Chunks)})
}

func (h *KnowledgeHandler) Get(c *gin.Context) {
	doc, ok := h.index.Document(c.Param("id"))
	if !ok {
		response.Error(c, errcode.ErrNotFound, "not found")
		return
	}
	response.Success(c, doc)
}

func (h *KnowledgeHandler) Stats(c *gin.Context) {
	response.Success(c, h.index.Stats())
}

// Reload re-reads the whole corpus from the configured source.
func (h *KnowledgeHandler) Reload(c *gin.Context) {
	if h.loader == nil {
		response.Error(c, errcode.ErrCorpusLoadFailed, "no corpus source configured")
		return
	}
	loaded, err := h.loader.LoadAll(c.Request.Context())
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, gin.H{"loaded": loaded})
}
