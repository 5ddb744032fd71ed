package job

import (
	"context"

	"github.com/careline/medrag/internal/optimize"
)

// OptimizerTuneJob periodically lets the request optimizer adjust its
// batching window from observed traffic.
type OptimizerTuneJob struct {
	optimizer *optimize.Optimizer
}

func NewOptimizerTuneJob(optimizer *optimize.Optimizer) *OptimizerTuneJob {
	return &OptimizerTuneJob{optimizer: optimizer}
}

func (j *OptimizerTuneJob) Name() string {
	return "optimizer_tune"
}

func (j *OptimizerTuneJob) Run(ctx context.Context) error {
	if j.optimizer == nil {
		return nil
	}
	j.optimizer.Tune(ctx)
	return nil
}
