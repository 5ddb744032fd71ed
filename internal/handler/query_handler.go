package handler

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/careline/medrag/internal/optimize"
	"github.com/careline/medrag/internal/pkg/errcode"
	"github.com/careline/medrag/internal/pkg/response"
	"github.com/careline/medrag/internal/retrieval"
)

type QueryHandler struct {
	optimizer *optimize.Optimizer
}

func NewQueryHandler(optimizer *optimize.Optimizer) *QueryHandler {
	return &QueryHandler{optimizer: optimizer}
}

type queryRequest struct {
	Text    string `json:"text"`
	Persona string `json:"persona"`
	Batch   bool   `json:"batch"`
}

func (h *QueryHandler) Query(c *gin.Context) {
	var req queryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, errcode.ErrInvalid, "invalid request")
		return
	}
	if strings.TrimSpace(req.Text) == "" {
		response.Error(c, errcode.ErrEmptyQuery, "text is required")
		return
	}
	request := retrieval.Request{Text: req.Text, Persona: req.Persona}
	ctx := c.Request.Context()
	var (
		rsp interface{}
		err error
	)
	if req.Batch {
		rsp, err = h.optimizer.Submit(ctx, request)
	} else {
		rsp, err = h.optimizer.Do(ctx, request)
	}
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, rsp)
}

func (h *QueryHandler) Metrics(c *gin.Context) {
	response.Success(c, h.optimizer.Snapshot())
}
