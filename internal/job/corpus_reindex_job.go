package job

import (
	"context"

	"github.com/careline/medrag/internal/knowledge"
)

// CorpusReindexJob re-chunks and re-embeds the whole index so
// provider or chunking changes propagate without a restart.
type CorpusReindexJob struct {
	index *knowledge.Index
}

func NewCorpusReindexJob(index *knowledge.Index) *CorpusReindexJob {
	return &CorpusReindexJob{index: index}
}

func (j *CorpusReindexJob) Name() string {
	return "corpus_reindex"
}

func (j *CorpusReindexJob) Run(ctx context.Context) error {
	if j.index == nil {
		return nil
	}
	return j.index.Reindex(ctx)
}
