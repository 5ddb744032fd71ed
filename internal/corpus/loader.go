package corpus

import (
	"context"
	"fmt"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/careline/medrag/internal/knowledge"
	"github.com/careline/medrag/internal/pkg/errors"
	"github.com/careline/medrag/internal/repo"
)

// Loader pulls every corpus file from a source into the knowledge
// index, optionally persisting the parsed documents.
type Loader struct {
	source  Source
	index   *knowledge.Index
	durable *repo.DocumentRepo
}

func NewLoader(source Source, index *knowledge.Index, durable *repo.DocumentRepo) *Loader {
	return &Loader{source: source, index: index, durable: durable}
}

// LoadAll indexes the whole corpus. A file that fails to parse is
// logged and skipped, one broken document must not block the rest of
// the corpus. The error return covers listing only.
func (l *Loader) LoadAll(ctx context.Context) (int, error) {
	keys, err := l.source.List(ctx)
	if err != nil {
		return 0, fmt.Errorf("%w: list corpus: %v", errors.ErrInternal, err)
	}
	logger := logutil.GetLogger(ctx).With(zap.String("source", l.source.Type()))
	loaded := 0
	for _, key := range keys {
		data, err := l.source.Read(ctx, key)
		if err != nil {
			logger.Error("read corpus file failed", zap.String("key", key), zap.Error(err))
			continue
		}
		doc, err := ParseDocument(key, data)
		if err != nil {
			logger.Error("parse corpus file failed", zap.String("key", key), zap.Error(err))
			continue
		}
		if !l.index.AddDocument(ctx, doc) {
			logger.Warn("corpus document rejected", zap.String("key", key), zap.String("id", doc.ID))
			continue
		}
		if l.durable != nil {
			if indexed, ok := l.index.Document(doc.ID); ok {
				if err := l.durable.Save(ctx, indexed); err != nil {
					logger.Error("persist corpus document failed", zap.String("id", doc.ID), zap.Error(err))
				}
			}
		}
		loaded++
	}
	logger.Info("corpus loaded", zap.Int("files", len(keys)), zap.Int("indexed", loaded))
	return loaded, nil
}
