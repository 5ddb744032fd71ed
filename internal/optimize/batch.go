package optimize

import (
	"context"
	"time"

	"github.com/careline/medrag/internal/model"
	"github.com/careline/medrag/internal/retrieval"
)

type batchResult struct {
	rsp *model.IntegratedResponse
	err error
}

type batchItem struct {
	ctx   context.Context
	req   retrieval.Request
	reply chan batchResult
}

// Submit queues a request for micro-batched execution and blocks for
// its individual result. Batching only shapes when work starts, every
// caller still gets its own answer.
func (o *Optimizer) Submit(ctx context.Context, req retrieval.Request) (*model.IntegratedResponse, error) {
	item := batchItem{ctx: ctx, req: req, reply: make(chan batchResult, 1)}
	select {
	case o.queue <- item:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	select {
	case result := <-item.reply:
		return result.rsp, result.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// flushLoop gathers queued items until the batch is full or the
// window elapses, then serves the whole batch.
func (o *Optimizer) flushLoop() {
	var pending []batchItem
	timer := time.NewTimer(time.Duration(o.batchInterval.Load()))
	defer timer.Stop()
	for {
		select {
		case item := <-o.queue:
			if len(pending) == 0 {
				if !timer.Stop() {
					select {
					case <-timer.C:
					default:
					}
				}
				timer.Reset(time.Duration(o.batchInterval.Load()))
			}
			pending = append(pending, item)
			if len(pending) >= o.cfg.BatchSize {
				o.serveBatch(pending)
				pending = nil
			}
		case <-timer.C:
			if len(pending) > 0 {
				o.serveBatch(pending)
				pending = nil
			}
		case <-o.done:
			if len(pending) > 0 {
				o.serveBatch(pending)
			}
			return
		}
	}
}

// serveBatch answers every item of the batch. Duplicates inside the
// batch collapse through the singleflight group in Do.
func (o *Optimizer) serveBatch(items []batchItem) {
	o.batchesServed.Add(1)
	for _, item := range items {
		go func(item batchItem) {
			rsp, err := o.Do(item.ctx, item.req)
			item.reply <- batchResult{rsp: rsp, err: err}
		}(item)
	}
}
