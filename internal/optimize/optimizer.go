package optimize

import (
	"context"
	"strings"
	"sync/atomic"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/careline/medrag/internal/model"
	"github.com/careline/medrag/internal/retrieval"
	"github.com/careline/medrag/internal/semantic"
)

const (
	defaultBatchSize     = 5
	defaultBatchInterval = 100 * time.Millisecond
	maxBatchInterval     = 250 * time.Millisecond
	defaultPrefetchSize  = 128
	defaultPrefetchTTL   = 10 * time.Minute
	maxPrefetchQueries   = 2
)

// Retriever produces answers, normally the retrieval router.
type Retriever interface {
	Retrieve(ctx context.Context, req retrieval.Request) (*model.IntegratedResponse, error)
}

type Config struct {
	BatchSize     int           `json:"batch_size"`
	BatchInterval time.Duration `json:"-"`
	PrefetchSize  int           `json:"prefetch_size"`
	PrefetchTTL   time.Duration `json:"-"`
	Prefetch      bool          `json:"prefetch"`
}

func (c *Config) applyDefaults() {
	if c.BatchSize <= 0 {
		c.BatchSize = defaultBatchSize
	}
	if c.BatchInterval <= 0 {
		c.BatchInterval = defaultBatchInterval
	}
	if c.PrefetchSize <= 0 {
		c.PrefetchSize = defaultPrefetchSize
	}
	if c.PrefetchTTL <= 0 {
		c.PrefetchTTL = defaultPrefetchTTL
	}
}

// Metrics is a point-in-time snapshot of optimizer counters.
type Metrics struct {
	Requests      int64 `json:"requests"`
	Deduplicated  int64 `json:"deduplicated"`
	Rewrites      int64 `json:"rewrites"`
	PrefetchHits  int64 `json:"prefetch_hits"`
	Prefetched    int64 `json:"prefetched"`
	BatchesServed int64 `json:"batches_served"`
	BatchInterval int64 `json:"batch_interval_ms"`
}

// Optimizer sits in front of the retrieval router and squeezes waste
// out of the request stream: rewrites vague queries, collapses
// identical in-flight requests, micro-batches bursts and prefetches
// likely follow-ups.
type Optimizer struct {
	retriever Retriever
	group     singleflight.Group
	prefetch  *expirable.LRU[string, *model.IntegratedResponse]
	cfg       Config

	batchInterval atomic.Int64
	requests      atomic.Int64
	deduplicated  atomic.Int64
	rewrites      atomic.Int64
	prefetchHits  atomic.Int64
	prefetched    atomic.Int64
	batchesServed atomic.Int64

	queue chan batchItem
	done  chan struct{}
}

func New(retriever Retriever, cfg Config) *Optimizer {
	cfg.applyDefaults()
	o := &Optimizer{
		retriever: retriever,
		prefetch:  expirable.NewLRU[string, *model.IntegratedResponse](cfg.PrefetchSize, nil, cfg.PrefetchTTL),
		cfg:       cfg,
		queue:     make(chan batchItem, cfg.BatchSize*4),
		done:      make(chan struct{}),
	}
	o.batchInterval.Store(int64(cfg.BatchInterval))
	go o.flushLoop()
	return o
}

// Close stops the batching loop. Pending items are still served.
func (o *Optimizer) Close() {
	close(o.done)
}

// Do answers one request through the optimization pipeline. Identical
// concurrent requests share a single retrieval execution.
func (o *Optimizer) Do(ctx context.Context, req retrieval.Request) (*model.IntegratedResponse, error) {
	o.requests.Add(1)
	rewritten, optimization := Rewrite(req.Text)
	if optimization != OptNone {
		o.rewrites.Add(1)
		logutil.GetLogger(ctx).Debug("query rewritten",
			zap.String("optimization", optimization), zap.String("rewritten", rewritten))
	}
	req.Text = rewritten
	key := o.requestKey(req)

	if rsp, ok := o.prefetch.Get(key); ok {
		o.prefetchHits.Add(1)
		return rsp, nil
	}

	value, err, shared := o.group.Do(key, func() (interface{}, error) {
		return o.retriever.Retrieve(ctx, req)
	})
	if err != nil {
		return nil, err
	}
	if shared {
		o.deduplicated.Add(1)
	}
	rsp := value.(*model.IntegratedResponse)
	if o.cfg.Prefetch {
		go o.prefetchRelated(req)
	}
	return rsp, nil
}

// prefetchRelated warms the prefetch cache with the most likely
// follow-up queries derived from the domain expansion of the current
// one. Failures are ignored, this is opportunistic work.
func (o *Optimizer) prefetchRelated(req retrieval.Request) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	terms := semantic.ExpandQuery(req.Text).Terms()
	if len(terms) > maxPrefetchQueries {
		terms = terms[:maxPrefetchQueries]
	}
	for _, term := range terms {
		// key the same way Do will, after its rewrite pass
		text, _ := Rewrite(term)
		related := retrieval.Request{Text: text, Persona: req.Persona}
		key := o.requestKey(related)
		if _, ok := o.prefetch.Get(key); ok {
			continue
		}
		rsp, err := o.retriever.Retrieve(ctx, related)
		if err != nil {
			continue
		}
		o.prefetch.Add(key, rsp)
		o.prefetched.Add(1)
	}
}

func (o *Optimizer) requestKey(req retrieval.Request) string {
	return req.Persona + "|" + strings.ToLower(strings.TrimSpace(req.Text))
}

// Snapshot returns the current counters.
func (o *Optimizer) Snapshot() Metrics {
	return Metrics{
		Requests:      o.requests.Load(),
		Deduplicated:  o.deduplicated.Load(),
		Rewrites:      o.rewrites.Load(),
		PrefetchHits:  o.prefetchHits.Load(),
		Prefetched:    o.prefetched.Load(),
		BatchesServed: o.batchesServed.Load(),
		BatchInterval: time.Duration(o.batchInterval.Load()).Milliseconds(),
	}
}

// Tune adjusts the batching window from observed traffic: heavy
// duplication means callers arrive in bursts and a wider window pays
// off, light duplication shrinks it back toward the default.
func (o *Optimizer) Tune(ctx context.Context) {
	metrics := o.Snapshot()
	if metrics.Requests == 0 {
		return
	}
	interval := time.Duration(o.batchInterval.Load())
	dedupRate := float64(metrics.Deduplicated) / float64(metrics.Requests)
	switch {
	case dedupRate > 0.2 && interval < maxBatchInterval:
		interval += 25 * time.Millisecond
	case dedupRate < 0.05 && interval > o.cfg.BatchInterval:
		interval -= 25 * time.Millisecond
	default:
		return
	}
	if interval > maxBatchInterval {
		interval = maxBatchInterval
	}
	if interval < o.cfg.BatchInterval {
		interval = o.cfg.BatchInterval
	}
	o.batchInterval.Store(int64(interval))
	logutil.GetLogger(ctx).Info("optimizer tuned",
		zap.Duration("batch_interval", interval), zap.Float64("dedup_rate", dedupRate))
}
