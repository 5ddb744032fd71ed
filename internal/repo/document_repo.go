package repo

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/didi/gendry/builder"
	"github.com/pgvector/pgvector-go"

	"github.com/careline/medrag/internal/model"
	"github.com/careline/medrag/internal/pkg/dbutil"
)

// DocumentRepo persists curated documents and their chunk embeddings
// so the in-memory index can be rebuilt without re-embedding.
type DocumentRepo struct {
	db *sql.DB
}

func NewDocumentRepo(db *sql.DB) *DocumentRepo {
	return &DocumentRepo{db: db}
}

func (r *DocumentRepo) Save(ctx context.Context, doc *model.Document) error {
	tags, err := json.Marshal(doc.Tags)
	if err != nil {
		return err
	}
	const docQuery = `
		INSERT INTO documents (id, title, content, category, priority, source, last_updated, tags, embedding)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (id) DO UPDATE SET
			title = EXCLUDED.title,
			content = EXCLUDED.content,
			category = EXCLUDED.category,
			priority = EXCLUDED.priority,
			source = EXCLUDED.source,
			last_updated = EXCLUDED.last_updated,
			tags = EXCLUDED.tags,
			embedding = EXCLUDED.embedding
	`
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	if _, err := tx.ExecContext(ctx, docQuery,
		doc.ID,
		doc.Title,
		doc.Content,
		string(doc.Category),
		doc.Priority,
		doc.Source,
		doc.LastUpdated.UnixMilli(),
		tags,
		pgvector.NewVector(doc.Embedding),
	); err != nil {
		return err
	}
	// Chunks are always replaced together with their parent.
	if _, err := tx.ExecContext(ctx, `DELETE FROM chunks WHERE document_id = $1`, doc.ID); err != nil {
		return err
	}
	const chunkQuery = `
		INSERT INTO chunks (id, document_id, content, category, priority, word_count, contains_dosage, contains_contraindication, embedding)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	for _, chunk := range doc.Chunks {
		if _, err := tx.ExecContext(ctx, chunkQuery,
			chunk.ID,
			chunk.DocumentID,
			chunk.Content,
			string(chunk.Category),
			chunk.Priority,
			chunk.WordCount,
			chunk.ContainsDosage,
			chunk.ContainsContraindication,
			pgvector.NewVector(chunk.Embedding),
		); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (r *DocumentRepo) List(ctx context.Context) ([]*model.Document, error) {
	sqlStr, args, err := builder.BuildSelect("documents", nil,
		[]string{"id", "title", "content", "category", "priority", "source", "last_updated", "tags", "embedding"})
	if err != nil {
		return nil, err
	}
	sqlStr, args = dbutil.Finalize(sqlStr, args)
	rows, err := r.db.QueryContext(ctx, sqlStr, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var docs []*model.Document
	byID := make(map[string]*model.Document)
	for rows.Next() {
		var doc model.Document
		var category string
		var updated int64
		var tags []byte
		var embedding pgvector.Vector
		if err := rows.Scan(&doc.ID, &doc.Title, &doc.Content, &category, &doc.Priority,
			&doc.Source, &updated, &tags, &embedding); err != nil {
			return nil, err
		}
		doc.Category = model.Category(category)
		doc.LastUpdated = time.UnixMilli(updated)
		doc.Embedding = embedding.Slice()
		if len(tags) > 0 {
			if err := json.Unmarshal(tags, &doc.Tags); err != nil {
				return nil, err
			}
		}
		docs = append(docs, &doc)
		byID[doc.ID] = &doc
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if err := r.attachChunks(ctx, byID); err != nil {
		return nil, err
	}
	return docs, nil
}

func (r *DocumentRepo) attachChunks(ctx context.Context, byID map[string]*model.Document) error {
	if len(byID) == 0 {
		return nil
	}
	sqlStr, args, err := builder.BuildSelect("chunks", nil,
		[]string{"id", "document_id", "content", "category", "priority", "word_count", "contains_dosage", "contains_contraindication", "embedding"})
	if err != nil {
		return err
	}
	sqlStr, args = dbutil.Finalize(sqlStr, args)
	rows, err := r.db.QueryContext(ctx, sqlStr, args...)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		var chunk model.Chunk
		var category string
		var embedding pgvector.Vector
		if err := rows.Scan(&chunk.ID, &chunk.DocumentID, &chunk.Content, &category, &chunk.Priority,
			&chunk.WordCount, &chunk.ContainsDosage, &chunk.ContainsContraindication, &embedding); err != nil {
			return err
		}
		chunk.Category = model.Category(category)
		chunk.Embedding = embedding.Slice()
		parent, ok := byID[chunk.DocumentID]
		if !ok {
			// Orphan chunk: parent was removed, skip it.
			continue
		}
		parent.Chunks = append(parent.Chunks, &chunk)
	}
	return rows.Err()
}

func (r *DocumentRepo) Delete(ctx context.Context, id string) error {
	where := map[string]interface{}{"document_id": id}
	sqlStr, args, err := builder.BuildDelete("chunks", where)
	if err != nil {
		return err
	}
	sqlStr, args = dbutil.Finalize(sqlStr, args)
	if _, err := r.db.ExecContext(ctx, sqlStr, args...); err != nil {
		return err
	}
	sqlStr, args, err = builder.BuildDelete("documents", map[string]interface{}{"id": id})
	if err != nil {
		return err
	}
	sqlStr, args = dbutil.Finalize(sqlStr, args)
	_, err = r.db.ExecContext(ctx, sqlStr, args...)
	return err
}
