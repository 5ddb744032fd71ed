package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/careline/medrag/internal/model"
	"github.com/careline/medrag/internal/pkg/errors"
)

const (
	defaultTimeout      = 10 * time.Second
	availabilityWindow  = 30 * time.Second
	maxErrorBodyPreview = 256
)

type Config struct {
	BaseURL string        `json:"base_url"`
	APIKey  string        `json:"api_key"`
	Timeout time.Duration `json:"-"`
}

// Client talks to the remote retrieval backend. Any transport failure,
// 5xx status or malformed payload surfaces as ErrProviderUnavailable so
// callers can fall back without inspecting details.
type Client struct {
	cfg    Config
	client *http.Client

	lastFailure atomic.Int64
}

func New(cfg Config) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	return &Client{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
	}
}

// QueryRequest asks the backend for a full generated answer.
type QueryRequest struct {
	Text       string   `json:"text"`
	Persona    string   `json:"persona,omitempty"`
	MaxChunks  int      `json:"max_chunks,omitempty"`
	Categories []string `json:"categories,omitempty"`
}

// QueryResult is the backend's answer envelope.
type QueryResult struct {
	Answer        string               `json:"answer"`
	Sources       []string             `json:"sources"`
	ContextChunks []model.ContextChunk `json:"context_chunks"`
	QualityScore  float64              `json:"quality_score"`
	Cached        bool                 `json:"cached"`
}

type searchRequest struct {
	Text    string                `json:"text"`
	Filters model.SemanticFilters `json:"filters"`
}

type searchResponse struct {
	Chunks []model.ContextChunk `json:"chunks"`
}

// Query requests a generated answer for the text. The answer must be
// non-empty, an empty one counts as malformed.
func (c *Client) Query(ctx context.Context, req QueryRequest) (*QueryResult, error) {
	var result QueryResult
	if err := c.post(ctx, "/api/v1/rag/query", req, &result); err != nil {
		return nil, err
	}
	if strings.TrimSpace(result.Answer) == "" {
		c.markFailure()
		return nil, fmt.Errorf("%w: remote returned empty answer", errors.ErrProviderUnavailable)
	}
	return &result, nil
}

// Search retrieves raw context chunks without answer generation.
func (c *Client) Search(ctx context.Context, text string, filters model.SemanticFilters) ([]model.ContextChunk, error) {
	var result searchResponse
	if err := c.post(ctx, "/api/v1/rag/search", searchRequest{Text: text, Filters: filters}, &result); err != nil {
		return nil, err
	}
	return result.Chunks, nil
}

// Available reports whether the backend is worth trying. It is cheap:
// a recent hard failure keeps the client unavailable for a short
// window instead of probing on every request.
func (c *Client) Available() bool {
	if c.cfg.BaseURL == "" {
		return false
	}
	last := c.lastFailure.Load()
	if last == 0 {
		return true
	}
	return time.Since(time.Unix(0, last)) > availabilityWindow
}

func (c *Client) post(ctx context.Context, path string, payload interface{}, out interface{}) error {
	if c.cfg.BaseURL == "" {
		return fmt.Errorf("%w: remote backend not configured", errors.ErrProviderUnavailable)
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode request: %w", err)
	}
	url := strings.TrimRight(c.cfg.BaseURL, "/") + path
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.cfg.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	}

	rsp, err := c.client.Do(req)
	if err != nil {
		c.markFailure()
		return fmt.Errorf("%w: %v", errors.ErrProviderUnavailable, err)
	}
	defer rsp.Body.Close()

	if rsp.StatusCode >= http.StatusInternalServerError {
		c.markFailure()
		preview, _ := io.ReadAll(io.LimitReader(rsp.Body, maxErrorBodyPreview))
		logutil.GetLogger(ctx).Warn("remote backend server error",
			zap.Int("status", rsp.StatusCode), zap.ByteString("body", preview))
		return fmt.Errorf("%w: remote status %d", errors.ErrProviderUnavailable, rsp.StatusCode)
	}
	if rsp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: remote status %d", errors.ErrInvalid, rsp.StatusCode)
	}
	if err := json.NewDecoder(rsp.Body).Decode(out); err != nil {
		c.markFailure()
		return fmt.Errorf("%w: decode response: %v", errors.ErrProviderUnavailable, err)
	}
	c.lastFailure.Store(0)
	return nil
}

func (c *Client) markFailure() {
	c.lastFailure.Store(time.Now().UnixNano())
}
