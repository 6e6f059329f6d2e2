package main

import (
	"context"
	"errors"
	"fmt"
	"hash/crc32"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/gamma-omg/chatpdf-mcp/answer"
	"github.com/gamma-omg/chatpdf-mcp/chunk"
	"github.com/gamma-omg/chatpdf-mcp/extract"
	"github.com/gamma-omg/chatpdf-mcp/retrieve"
)

var (
	ErrDocumentNotFound = errors.New("document not found")
	ErrEmptyDocumentID  = errors.New("document id must not be empty")
	ErrEmptyQuestion    = errors.New("question must not be empty")
)

const noContextAnswer = "I could not find relevant information in the document to answer your question."

// ChunkIndexer is the per-document vector index surface the registry needs.
type ChunkIndexer interface {
	Upsert(ctx context.Context, documentID string, chunks []chunk.Chunk) (int, error)
	Delete(ctx context.Context, documentID string) bool
}

type Normalizer interface {
	PageChunks(documentID, filename string, page extract.Page) []chunk.Chunk
}

type Retriever interface {
	Retrieve(ctx context.Context, documentID, query string) []retrieve.Result
}

type Composer interface {
	Compose(ctx context.Context, question string, contextChunks []retrieve.Result, history []answer.Message) answer.Answer
}

// DocumentRecord is the bookkeeping entry kept per ingested document.
type DocumentRecord struct {
	DocumentID  string `json:"document_id"`
	Filename    string `json:"filename"`
	TotalPages  int    `json:"total_pages"`
	TotalChunks int    `json:"total_chunks"`
	Status      string `json:"status"`
}

// IngestSummary reports one completed ingestion.
type IngestSummary struct {
	DocumentID  string `json:"document_id"`
	TotalChunks int    `json:"total_chunks"`
	TotalPages  int    `json:"total_pages"`
	Status      string `json:"status"`
}

// DocumentRegistry orchestrates the ingest, question answering and removal
// of documents. Ingestion is serialized per document id so that two
// ingestions racing on the same deterministic chunk ids cannot interleave.
type DocumentRegistry struct {
	log        *slog.Logger
	indexes    ChunkIndexer
	normalizer Normalizer
	retriever  Retriever
	composer   Composer
	extractors []extract.Extractor

	mu      sync.Mutex
	docs    map[string]DocumentRecord
	ingests map[string]*sync.Mutex
}

func NewDocumentRegistry(indexes ChunkIndexer, normalizer Normalizer, retriever Retriever, composer Composer, log *slog.Logger) *DocumentRegistry {
	return &DocumentRegistry{
		log:        log,
		indexes:    indexes,
		normalizer: normalizer,
		retriever:  retriever,
		composer:   composer,
		docs:       make(map[string]DocumentRecord),
		ingests:    make(map[string]*sync.Mutex),
	}
}

func (dr *DocumentRegistry) RegisterExtractor(extractors ...extract.Extractor) {
	dr.extractors = append(dr.extractors, extractors...)
}

// IngestFile extracts page artifacts from a file on disk and ingests them.
// The document id is derived from the file name and a checksum of its
// content, so re-uploading the identical file maps to the same document.
func (dr *DocumentRegistry) IngestFile(ctx context.Context, path string) (IngestSummary, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return IngestSummary{}, fmt.Errorf("failed to read file %s: %w", path, err)
	}

	extractor, err := dr.findExtractor(path)
	if err != nil {
		return IngestSummary{}, err
	}

	pages, err := extractor.Extract(path)
	if err != nil {
		return IngestSummary{}, fmt.Errorf("failed to extract %s: %w", path, err)
	}

	filename := filepath.Base(path)
	return dr.IngestArtifacts(ctx, documentID(filename, content), filename, pages)
}

// IngestArtifacts normalizes the supplied page artifacts into one chunk
// batch and stores it. A failure of the embedding capability or the vector
// backend propagates to the caller and the document record is not committed;
// a failed ingestion is treated as fully failed.
func (dr *DocumentRegistry) IngestArtifacts(ctx context.Context, docID, filename string, pages []extract.Page) (IngestSummary, error) {
	if docID == "" {
		return IngestSummary{}, ErrEmptyDocumentID
	}

	lock := dr.ingestLock(docID)
	lock.Lock()
	defer lock.Unlock()

	var batch []chunk.Chunk
	for _, page := range pages {
		batch = append(batch, dr.normalizer.PageChunks(docID, filename, page)...)
	}

	count, err := dr.indexes.Upsert(ctx, docID, batch)
	if err != nil {
		return IngestSummary{}, fmt.Errorf("failed to ingest document %s: %w", docID, err)
	}

	dr.mu.Lock()
	dr.docs[docID] = DocumentRecord{
		DocumentID:  docID,
		Filename:    filename,
		TotalPages:  len(pages),
		TotalChunks: count,
		Status:      "ready",
	}
	dr.mu.Unlock()

	dr.log.Info("ingested document",
		"document_id", docID,
		"pages", len(pages),
		"chunks", count)

	return IngestSummary{
		DocumentID:  docID,
		TotalChunks: count,
		TotalPages:  len(pages),
		Status:      "success",
	}, nil
}

// AnswerQuestion retrieves the document's most relevant chunks and composes
// an answer. Empty retrieval results in a fixed no-context answer rather
// than a generation call over nothing.
func (dr *DocumentRegistry) AnswerQuestion(ctx context.Context, docID, question string, history []answer.Message) (answer.Answer, error) {
	if docID == "" {
		return answer.Answer{}, ErrEmptyDocumentID
	}
	if strings.TrimSpace(question) == "" {
		return answer.Answer{}, ErrEmptyQuestion
	}

	if _, ok := dr.GetDocument(docID); !ok {
		return answer.Answer{}, fmt.Errorf("%w: %s", ErrDocumentNotFound, docID)
	}

	results := dr.retriever.Retrieve(ctx, docID, question)
	if len(results) == 0 {
		return answer.Answer{Answer: noContextAnswer, Sources: []answer.Source{}}, nil
	}

	return dr.composer.Compose(ctx, question, results, history), nil
}

// RemoveDocument drops the document's collection and bookkeeping entry.
// Removing an unknown document reports false, never an error.
func (dr *DocumentRegistry) RemoveDocument(ctx context.Context, docID string) bool {
	lock := dr.ingestLock(docID)
	lock.Lock()
	defer lock.Unlock()

	dr.mu.Lock()
	_, existed := dr.docs[docID]
	delete(dr.docs, docID)
	dr.mu.Unlock()

	deleted := dr.indexes.Delete(ctx, docID)
	if !existed && !deleted {
		dr.log.Warn("removal of unknown document", "document_id", docID)
		return false
	}

	return true
}

func (dr *DocumentRegistry) GetDocument(docID string) (DocumentRecord, bool) {
	dr.mu.Lock()
	defer dr.mu.Unlock()

	rec, ok := dr.docs[docID]
	return rec, ok
}

func (dr *DocumentRegistry) ListDocuments() []DocumentRecord {
	dr.mu.Lock()
	defer dr.mu.Unlock()

	records := make([]DocumentRecord, 0, len(dr.docs))
	for _, rec := range dr.docs {
		records = append(records, rec)
	}
	sort.Slice(records, func(i, j int) bool {
		return records[i].DocumentID < records[j].DocumentID
	})

	return records
}

func (dr *DocumentRegistry) findExtractor(path string) (extract.Extractor, error) {
	for _, e := range dr.extractors {
		if e.CanExtract(path) {
			return e, nil
		}
	}

	return nil, fmt.Errorf("unable to find extractor for file type: %s", filepath.Ext(path))
}

func (dr *DocumentRegistry) ingestLock(docID string) *sync.Mutex {
	dr.mu.Lock()
	defer dr.mu.Unlock()

	lock, ok := dr.ingests[docID]
	if !ok {
		lock = &sync.Mutex{}
		dr.ingests[docID] = lock
	}

	return lock
}

func documentID(filename string, content []byte) string {
	stem := strings.TrimSuffix(filename, filepath.Ext(filename))
	stem = strings.ReplaceAll(stem, " ", "_")
	if len(stem) > 20 {
		stem = stem[:20]
	}

	return fmt.Sprintf("%s_%08x", stem, crc32.Checksum(content, crc32.IEEETable))
}
