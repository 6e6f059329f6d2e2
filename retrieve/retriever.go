// Package retrieve ranks a document's chunks against a query. Failures
// degrade to empty results so a broken index never aborts a user request.
package retrieve

import (
	"context"
	"log/slog"

	"github.com/amikos-tech/chroma-go/pkg/embeddings"

	"github.com/gamma-omg/chatpdf-mcp/chunk"
	"github.com/gamma-omg/chatpdf-mcp/docindex"
)

const defaultTopK = 5

// QueryEmbedder embeds a single query text. It must be backed by the same
// embedding model that ingested the document; a mismatch silently ruins
// ranking.
type QueryEmbedder interface {
	EmbedQuery(ctx context.Context, text string) (embeddings.Embedding, error)
}

// Searcher runs a nearest-neighbor search scoped to one document.
type Searcher interface {
	Search(ctx context.Context, documentID string, query embeddings.Embedding, topK int) ([]docindex.Hit, error)
}

// Result is one retrieved chunk. Similarity is 1-distance; with the cosine
// space used by docindex it lies in [-1, 1], but callers must not assume a
// tighter bound. Rank is 1-indexed in ascending distance order.
type Result struct {
	Text       string
	Meta       chunk.Metadata
	Similarity float64
	Rank       int
}

type Retriever struct {
	log   *slog.Logger
	store Searcher
	ef    QueryEmbedder
	topK  int
}

func NewRetriever(store Searcher, ef QueryEmbedder, topK int, log *slog.Logger) *Retriever {
	if topK <= 0 {
		topK = defaultTopK
	}

	return &Retriever{log: log, store: store, ef: ef, topK: topK}
}

// Retrieve returns the document's chunks most similar to the query, best
// first. An empty or unknown document and any embedding or search failure
// all yield an empty slice; the failure cases are logged.
func (r *Retriever) Retrieve(ctx context.Context, documentID, query string) []Result {
	emb, err := r.ef.EmbedQuery(ctx, query)
	if err != nil {
		r.log.Warn("failed to embed query", "document_id", documentID, "error", err)
		return nil
	}

	hits, err := r.store.Search(ctx, documentID, emb, r.topK)
	if err != nil {
		r.log.Warn("retrieval failed", "document_id", documentID, "error", err)
		return nil
	}

	results := make([]Result, 0, len(hits))
	for i, h := range hits {
		results = append(results, Result{
			Text:       h.Text,
			Meta:       h.Meta,
			Similarity: 1 - h.Distance,
			Rank:       i + 1,
		})
	}

	return results
}
