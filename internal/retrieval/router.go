package retrieval

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/careline/medrag/internal/analytics"
	"github.com/careline/medrag/internal/cache"
	"github.com/careline/medrag/internal/model"
	"github.com/careline/medrag/internal/pkg/errors"
	"github.com/careline/medrag/internal/remote"
	"github.com/careline/medrag/internal/semantic"
)

const (
	responseCacheTTL     = 30 * time.Minute
	cacheQualityFloor    = 0.6
	mergeConfidenceFloor = 0.7
	localTopN            = 3
)

// Personas supported by the answer layer.
const (
	PersonaDrGasnelio = "dr_gasnelio"
	PersonaGa         = "ga"
)

// Backend is the remote retrieval service the router may delegate to.
type Backend interface {
	Query(ctx context.Context, req remote.QueryRequest) (*remote.QueryResult, error)
	Available() bool
}

// Searcher is the local semantic search the router falls back on.
type Searcher interface {
	Search(ctx context.Context, query model.SemanticQuery) []model.RankedResult
	Analyze(text string) model.QueryAnalysis
}

type Config struct {
	EnableLocal  bool `json:"enable_local"`
	EnableHybrid bool `json:"enable_hybrid"`
	MaxChunks    int  `json:"max_chunks"`
}

func (c *Config) applyDefaults() {
	if c.MaxChunks <= 0 {
		c.MaxChunks = localTopN
	}
}

// Request is one user question heading for retrieval.
type Request struct {
	Text    string
	Persona string
}

// Router decides per request how to build an answer: the remote RAG
// backend, the local index, both merged, or a static fallback. It
// always produces a response, degraded service never bubbles up as an
// error to the conversation layer.
type Router struct {
	backend Backend
	local   Searcher
	cache   cache.Cache
	sink    analytics.Sink
	cfg     Config
}

func New(backend Backend, local Searcher, c cache.Cache, sink analytics.Sink, cfg Config) *Router {
	cfg.applyDefaults()
	if c == nil {
		c = cache.Noop{}
	}
	if sink == nil {
		sink = analytics.NopSink{}
	}
	return &Router{backend: backend, local: local, cache: c, sink: sink, cfg: cfg}
}

// Retrieve runs the full pipeline: analyze, select strategy, execute,
// post-process, cache and track. The only error it returns is an
// empty query.
func (r *Router) Retrieve(ctx context.Context, req Request) (*model.IntegratedResponse, error) {
	if strings.TrimSpace(req.Text) == "" {
		return nil, fmt.Errorf("%w: empty query", errors.ErrInvalidInput)
	}
	req.Persona = normalizePersona(req.Persona)
	started := time.Now()

	analysis := r.local.Analyze(req.Text)
	strategy := r.selectStrategy(analysis)

	cacheKey := r.cacheKey(strategy, req)
	if data, ok := r.cache.Get(ctx, cacheKey); ok {
		var cached model.IntegratedResponse
		if err := json.Unmarshal(data, &cached); err == nil {
			cached.Cached = true
			return &cached, nil
		}
	}

	rsp := r.execute(ctx, req, analysis, strategy)
	r.postProcess(rsp, req, analysis)

	if rsp.QualityScore >= cacheQualityFloor {
		if data, err := json.Marshal(rsp); err == nil {
			r.cache.Set(ctx, cacheKey, data, responseCacheTTL)
		}
	}
	plan := model.QueryPlan{
		OriginalText:       req.Text,
		ExpandedTerms:      semantic.ExpandQuery(req.Text).Terms(),
		DetectedCategories: analysis.Categories,
		Complexity:         analysis.Complexity,
		ChosenStrategy:     strategy,
	}
	r.sink.RecordEvent(ctx, "retrieval_completed", map[string]interface{}{
		"plan":       plan,
		"strategy":   string(rsp.Strategy),
		"source":     string(rsp.KnowledgeSource),
		"persona":    req.Persona,
		"quality":    rsp.QualityScore,
		"latency_ms": time.Since(started).Milliseconds(),
	})
	return rsp, nil
}

// selectStrategy applies the routing rule in priority order. Hybrid
// needs a complex query with both sides usable, remote needs a query
// that actually wants domain context.
func (r *Router) selectStrategy(analysis model.QueryAnalysis) model.Strategy {
	remoteUp := r.backend != nil && r.backend.Available()
	if !remoteUp && !r.cfg.EnableLocal {
		return model.StrategyFallback
	}
	if analysis.Complexity == model.ComplexityComplex && r.cfg.EnableHybrid && remoteUp && r.cfg.EnableLocal {
		return model.StrategyHybrid
	}
	if remoteUp && needsContext(analysis) {
		return model.StrategyRemote
	}
	if r.cfg.EnableLocal {
		return model.StrategyLocal
	}
	return model.StrategyFallback
}

func needsContext(analysis model.QueryAnalysis) bool {
	return len(analysis.MedicalTerms) > 0 || len(analysis.Categories) > 0 ||
		analysis.Complexity != model.ComplexitySimple
}

func (r *Router) execute(ctx context.Context, req Request, analysis model.QueryAnalysis, strategy model.Strategy) *model.IntegratedResponse {
	switch strategy {
	case model.StrategyRemote:
		return r.executeRemote(ctx, req, analysis)
	case model.StrategyHybrid:
		return r.executeHybrid(ctx, req, analysis)
	case model.StrategyLocal:
		return r.executeLocal(ctx, req, analysis)
	default:
		return r.fallbackResponse(req, "estratégia indisponível")
	}
}

func (r *Router) executeRemote(ctx context.Context, req Request, analysis model.QueryAnalysis) *model.IntegratedResponse {
	result, err := r.backend.Query(ctx, remote.QueryRequest{
		Text:       req.Text,
		Persona:    req.Persona,
		MaxChunks:  r.cfg.MaxChunks,
		Categories: categoryNames(analysis.Categories),
	})
	if err != nil {
		logutil.GetLogger(ctx).Warn("remote retrieval failed, degrading",
			zap.Error(err), zap.Bool("local_enabled", r.cfg.EnableLocal))
		if r.cfg.EnableLocal {
			rsp := r.executeLocal(ctx, req, analysis)
			rsp.ProcessingSteps = append([]string{"remote indisponível"}, rsp.ProcessingSteps...)
			return rsp
		}
		return r.fallbackResponse(req, "remote indisponível")
	}
	return &model.IntegratedResponse{
		Answer:          result.Answer,
		Strategy:        model.StrategyRemote,
		KnowledgeSource: model.SourceRemote,
		Sources:         result.Sources,
		ContextChunks:   result.ContextChunks,
		QualityScore:    result.QualityScore,
		ProcessingSteps: []string{"consulta remota"},
	}
}

// executeHybrid runs the remote query and the local search in
// parallel and merges. A failed remote side degrades to the local
// result alone.
func (r *Router) executeHybrid(ctx context.Context, req Request, analysis model.QueryAnalysis) *model.IntegratedResponse {
	var (
		wg        sync.WaitGroup
		remoteRes *remote.QueryResult
		remoteErr error
		localRes  []model.RankedResult
	)
	wg.Add(2)
	go func() {
		defer wg.Done()
		remoteRes, remoteErr = r.backend.Query(ctx, remote.QueryRequest{
			Text:       req.Text,
			Persona:    req.Persona,
			MaxChunks:  r.cfg.MaxChunks,
			Categories: categoryNames(analysis.Categories),
		})
	}()
	go func() {
		defer wg.Done()
		localRes = r.local.Search(ctx, model.SemanticQuery{Text: req.Text, MaxResults: r.cfg.MaxChunks})
	}()
	wg.Wait()

	if remoteErr != nil {
		logutil.GetLogger(ctx).Warn("hybrid remote side failed", zap.Error(remoteErr))
		rsp := r.synthesizeLocal(req, localRes)
		rsp.Strategy = model.StrategyHybrid
		rsp.ProcessingSteps = append(rsp.ProcessingSteps, "lado remoto falhou")
		return rsp
	}
	return r.merge(req, remoteRes, localRes)
}

func (r *Router) executeLocal(ctx context.Context, req Request, _ model.QueryAnalysis) *model.IntegratedResponse {
	results := r.local.Search(ctx, model.SemanticQuery{Text: req.Text, MaxResults: r.cfg.MaxChunks})
	return r.synthesizeLocal(req, results)
}

func (r *Router) cacheKey(strategy model.Strategy, req Request) string {
	hash := sha256.Sum256([]byte(string(strategy) + "|" + req.Persona + "|" + strings.TrimSpace(strings.ToLower(req.Text))))
	return "retrieval:" + hex.EncodeToString(hash[:])
}

func categoryNames(categories []model.Category) []string {
	if len(categories) == 0 {
		return nil
	}
	out := make([]string, 0, len(categories))
	for _, category := range categories {
		out = append(out, string(category))
	}
	return out
}

func normalizePersona(persona string) string {
	switch strings.ToLower(strings.TrimSpace(persona)) {
	case PersonaDrGasnelio:
		return PersonaDrGasnelio
	default:
		return PersonaGa
	}
}

var _ Searcher = (*semantic.Engine)(nil)
