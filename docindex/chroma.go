// Package docindex keeps one isolated Chroma collection per ingested
// document. Collection names are derived from the document id, chunk ids are
// deterministic, and re-inserting under the same id overwrites instead of
// duplicating.
package docindex

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	chroma "github.com/amikos-tech/chroma-go/pkg/api/v2"
	"github.com/amikos-tech/chroma-go/pkg/embeddings"

	"github.com/gamma-omg/chatpdf-mcp/chunk"
)

const collectionPrefix = "doc_"

// DocumentEmbedder is the slice of the embedding capability ingestion needs.
type DocumentEmbedder interface {
	EmbedDocuments(ctx context.Context, texts []string) ([]embeddings.Embedding, error)
}

// Registry maps document ids to their collections. Create is idempotent,
// delete of a missing collection reports false instead of failing.
type Registry struct {
	log    *slog.Logger
	client chroma.Client
	ef     embeddings.EmbeddingFunction
}

func NewRegistry(client chroma.Client, ef embeddings.EmbeddingFunction, log *slog.Logger) *Registry {
	return &Registry{log: log, client: client, ef: ef}
}

// Ensure gets or creates the document's collection. Collections are created
// with cosine distance so that 1-distance stays within [-1, 1].
func (r *Registry) Ensure(ctx context.Context, documentID string) (*Index, error) {
	col, err := r.client.GetOrCreateCollection(ctx, collectionPrefix+documentID,
		chroma.WithEmbeddingFunctionCreate(r.ef),
		chroma.WithCollectionMetadataCreate(chroma.NewMetadata(chroma.NewStringAttribute("hnsw:space", "cosine"))),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to ensure collection for document %s: %w", documentID, err)
	}

	return &Index{log: r.log, ef: r.ef, col: col}, nil
}

// Upsert stores a chunk batch in the document's collection, creating the
// collection if needed.
func (r *Registry) Upsert(ctx context.Context, documentID string, chunks []chunk.Chunk) (int, error) {
	ix, err := r.Ensure(ctx, documentID)
	if err != nil {
		return 0, err
	}

	return ix.Upsert(ctx, chunks)
}

// Search runs a nearest-neighbor query scoped to a single document's
// collection.
func (r *Registry) Search(ctx context.Context, documentID string, query embeddings.Embedding, topK int) ([]Hit, error) {
	ix, err := r.Ensure(ctx, documentID)
	if err != nil {
		return nil, err
	}

	return ix.Search(ctx, query, topK)
}

// Delete removes the document's entire collection. Deleting a collection
// that does not exist is reported as false, never as an error.
func (r *Registry) Delete(ctx context.Context, documentID string) bool {
	err := r.client.DeleteCollection(ctx, collectionPrefix+documentID)
	if err != nil {
		r.log.Warn("failed to delete collection", "document_id", documentID, "error", err)
		return false
	}

	r.log.Info("deleted collection", "document_id", documentID)
	return true
}

// List returns the ids of all documents with a collection.
func (r *Registry) List(ctx context.Context) ([]string, error) {
	cols, err := r.client.ListCollections(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list collections: %w", err)
	}

	var ids []string
	for _, col := range cols {
		name := col.Name()
		if strings.HasPrefix(name, collectionPrefix) {
			ids = append(ids, strings.TrimPrefix(name, collectionPrefix))
		}
	}

	return ids, nil
}

// Reset drops every document collection.
func (r *Registry) Reset(ctx context.Context) error {
	ids, err := r.List(ctx)
	if err != nil {
		return err
	}

	for _, id := range ids {
		if err := r.client.DeleteCollection(ctx, collectionPrefix+id); err != nil {
			return fmt.Errorf("failed to delete collection for document %s: %w", id, err)
		}
	}

	return nil
}

// Index owns embedding, storage and similarity search for one document's
// chunks.
type Index struct {
	log *slog.Logger
	ef  DocumentEmbedder
	col chroma.Collection
}

// Upsert embeds and stores a chunk batch keyed by deterministic chunk ids.
// An empty batch is a no-op: the embedding capability is not invoked at all,
// some backends reject empty inputs.
func (ix *Index) Upsert(ctx context.Context, chunks []chunk.Chunk) (int, error) {
	if len(chunks) == 0 {
		return 0, nil
	}

	ids := make([]chroma.DocumentID, 0, len(chunks))
	texts := make([]string, 0, len(chunks))
	metas := make([]chroma.DocumentMetadata, 0, len(chunks))
	for _, ch := range chunks {
		meta, err := encodeMetadata(ch.Meta)
		if err != nil {
			return 0, fmt.Errorf("failed to encode metadata for chunk %s: %w", ch.ID(), err)
		}

		ids = append(ids, chroma.DocumentID(ch.ID()))
		texts = append(texts, ch.Text)
		metas = append(metas, meta)
	}

	embs, err := ix.ef.EmbedDocuments(ctx, texts)
	if err != nil {
		return 0, fmt.Errorf("failed to embed %d chunks: %w", len(texts), err)
	}

	err = ix.col.Upsert(ctx,
		chroma.WithIDs(ids...),
		chroma.WithTexts(texts...),
		chroma.WithEmbeddings(embs...),
		chroma.WithMetadatas(metas...),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to store %d chunks: %w", len(texts), err)
	}

	return len(chunks), nil
}

// Search returns up to topK nearest chunks ordered by ascending distance.
func (ix *Index) Search(ctx context.Context, query embeddings.Embedding, topK int) ([]Hit, error) {
	r, err := ix.col.Query(ctx,
		chroma.WithQueryEmbeddings(query),
		chroma.WithNResults(topK),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query collection: %w", err)
	}

	docs := r.GetDocumentsGroups()[0]
	metas := r.GetMetadatasGroups()[0]
	distances := r.GetDistancesGroups()[0]

	hits := make([]Hit, 0, len(docs))
	for i := range docs {
		hits = append(hits, Hit{
			Text:     docs[i].ContentString(),
			Meta:     decodeMetadata(metas[i]),
			Distance: float64(distances[i]),
		})
	}

	return hits, nil
}

// Count reports how many chunks the document's collection holds.
func (ix *Index) Count(ctx context.Context) (int, error) {
	return ix.col.Count(ctx)
}
