package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gamma-omg/chatpdf-mcp/answer"
	"github.com/gamma-omg/chatpdf-mcp/chunk"
	"github.com/gamma-omg/chatpdf-mcp/extract"
	"github.com/gamma-omg/chatpdf-mcp/retrieve"
)

type fakeIndexer struct {
	mu      sync.Mutex
	chunks  map[string]map[string]chunk.Chunk
	failure error
}

func newFakeIndexer() *fakeIndexer {
	return &fakeIndexer{chunks: make(map[string]map[string]chunk.Chunk)}
}

func (f *fakeIndexer) Upsert(_ context.Context, documentID string, chunks []chunk.Chunk) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.failure != nil {
		return 0, f.failure
	}

	col, ok := f.chunks[documentID]
	if !ok {
		col = make(map[string]chunk.Chunk)
		f.chunks[documentID] = col
	}
	for _, ch := range chunks {
		col[ch.ID()] = ch
	}

	return len(chunks), nil
}

func (f *fakeIndexer) Delete(_ context.Context, documentID string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()

	_, ok := f.chunks[documentID]
	delete(f.chunks, documentID)
	return ok
}

func (f *fakeIndexer) count(documentID string) int {
	f.mu.Lock()
	defer f.mu.Unlock()

	return len(f.chunks[documentID])
}

type fakeRetriever struct {
	results map[string][]retrieve.Result
}

func (f *fakeRetriever) Retrieve(_ context.Context, documentID, _ string) []retrieve.Result {
	return f.results[documentID]
}

type fakeComposer struct {
	lastQuestion string
	lastContext  []retrieve.Result
	lastHistory  []answer.Message
}

func (f *fakeComposer) Compose(_ context.Context, question string, contextChunks []retrieve.Result, history []answer.Message) answer.Answer {
	f.lastQuestion = question
	f.lastContext = contextChunks
	f.lastHistory = history
	return answer.Answer{Answer: "composed", Model: "fake"}
}

type fakeExtractor struct {
	ext   string
	pages []extract.Page
}

func (f *fakeExtractor) CanExtract(path string) bool {
	return filepath.Ext(path) == f.ext
}

func (f *fakeExtractor) Extract(string) ([]extract.Page, error) {
	return f.pages, nil
}

// wordTokenizer treats every whitespace-separated word as one token.
type wordTokenizer struct {
	words []string
	ids   map[string]int
}

func (t *wordTokenizer) Encode(text string) []int {
	if t.ids == nil {
		t.ids = make(map[string]int)
	}

	var tokens []int
	for _, w := range strings.Fields(text) {
		id, ok := t.ids[w]
		if !ok {
			id = len(t.words)
			t.ids[w] = id
			t.words = append(t.words, w)
		}
		tokens = append(tokens, id)
	}

	return tokens
}

func (t *wordTokenizer) Decode(tokens []int) string {
	words := make([]string, 0, len(tokens))
	for _, id := range tokens {
		words = append(words, t.words[id])
	}

	return strings.Join(words, " ")
}

func newTestRegistry(t *testing.T, indexer ChunkIndexer, retriever Retriever, composer Composer) *DocumentRegistry {
	t.Helper()

	chunker, err := chunk.NewChunker(&wordTokenizer{}, 500, 50)
	require.NoError(t, err)

	return NewDocumentRegistry(
		indexer,
		chunk.NewNormalizer(chunker),
		retriever,
		composer,
		slog.New(slog.NewTextHandler(io.Discard, nil)),
	)
}

func twoPageDoc() []extract.Page {
	return []extract.Page{
		{
			PageNum:    1,
			Text:       "Hello world. This is page one.",
			Source:     extract.SourceNative,
			Confidence: 1.0,
		},
		{
			PageNum:    2,
			Source:     extract.SourceNative,
			Confidence: 1.0,
			Tables: []extract.Table{
				{ID: 1, Accuracy: 0.9, Rows: 2, Columns: 2, Markdown: "| a | b |\n| 1 | 2 |"},
			},
		},
	}
}

func Test_IngestArtifacts(t *testing.T) {
	indexer := newFakeIndexer()
	reg := newTestRegistry(t, indexer, &fakeRetriever{}, &fakeComposer{})

	summary, err := reg.IngestArtifacts(context.Background(), "report_01", "report.pdf", twoPageDoc())
	require.NoError(t, err)

	assert.Equal(t, "report_01", summary.DocumentID)
	assert.Equal(t, "success", summary.Status)
	assert.Equal(t, 2, summary.TotalPages)
	assert.GreaterOrEqual(t, summary.TotalChunks, 2)
	assert.Equal(t, summary.TotalChunks, indexer.count("report_01"))

	rec, ok := reg.GetDocument("report_01")
	require.True(t, ok)
	assert.Equal(t, "report.pdf", rec.Filename)
	assert.Equal(t, "ready", rec.Status)
	assert.Equal(t, summary.TotalChunks, rec.TotalChunks)
}

func Test_IngestArtifacts_Idempotent(t *testing.T) {
	indexer := newFakeIndexer()
	reg := newTestRegistry(t, indexer, &fakeRetriever{}, &fakeComposer{})

	first, err := reg.IngestArtifacts(context.Background(), "report_01", "report.pdf", twoPageDoc())
	require.NoError(t, err)

	second, err := reg.IngestArtifacts(context.Background(), "report_01", "report.pdf", twoPageDoc())
	require.NoError(t, err)

	assert.Equal(t, first.TotalChunks, second.TotalChunks)
	assert.Equal(t, first.TotalChunks, indexer.count("report_01"))
}

func Test_IngestArtifacts_Isolation(t *testing.T) {
	indexer := newFakeIndexer()
	reg := newTestRegistry(t, indexer, &fakeRetriever{}, &fakeComposer{})

	_, err := reg.IngestArtifacts(context.Background(), "doc_a", "a.pdf", twoPageDoc())
	require.NoError(t, err)

	_, err = reg.IngestArtifacts(context.Background(), "doc_b", "b.pdf", twoPageDoc())
	require.NoError(t, err)

	assert.NotZero(t, indexer.count("doc_a"))
	assert.NotZero(t, indexer.count("doc_b"))
	assert.Len(t, reg.ListDocuments(), 2)
}

func Test_IngestArtifacts_IndexFailure(t *testing.T) {
	indexer := newFakeIndexer()
	indexer.failure = fmt.Errorf("chroma down")
	reg := newTestRegistry(t, indexer, &fakeRetriever{}, &fakeComposer{})

	_, err := reg.IngestArtifacts(context.Background(), "report_01", "report.pdf", twoPageDoc())
	require.Error(t, err)

	_, ok := reg.GetDocument("report_01")
	assert.False(t, ok)
}

func Test_IngestFile(t *testing.T) {
	tmp := t.TempDir()
	path := filepath.Join(tmp, "annual report.txt")
	require.NoError(t, os.WriteFile(path, []byte("file content"), 0o644))

	indexer := newFakeIndexer()
	reg := newTestRegistry(t, indexer, &fakeRetriever{}, &fakeComposer{})
	reg.RegisterExtractor(&fakeExtractor{ext: ".txt", pages: twoPageDoc()})

	summary, err := reg.IngestFile(context.Background(), path)
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(summary.DocumentID, "annual_report_"), summary.DocumentID)
	assert.Equal(t, 2, summary.TotalPages)

	rec, ok := reg.GetDocument(summary.DocumentID)
	require.True(t, ok)
	assert.Equal(t, "annual report.txt", rec.Filename)
}

func Test_IngestFile_UnsupportedType(t *testing.T) {
	tmp := t.TempDir()
	path := filepath.Join(tmp, "image.png")
	require.NoError(t, os.WriteFile(path, []byte{0x89}, 0o644))

	reg := newTestRegistry(t, newFakeIndexer(), &fakeRetriever{}, &fakeComposer{})
	reg.RegisterExtractor(&fakeExtractor{ext: ".txt"})

	_, err := reg.IngestFile(context.Background(), path)
	assert.ErrorContains(t, err, ".png")
}

func Test_AnswerQuestion(t *testing.T) {
	results := []retrieve.Result{
		{Text: "page one text", Meta: chunk.Metadata{PageNum: 1}, Similarity: 0.9, Rank: 1},
	}
	composer := &fakeComposer{}
	reg := newTestRegistry(t, newFakeIndexer(),
		&fakeRetriever{results: map[string][]retrieve.Result{"report_01": results}},
		composer)

	_, err := reg.IngestArtifacts(context.Background(), "report_01", "report.pdf", twoPageDoc())
	require.NoError(t, err)

	history := []answer.Message{{Role: answer.RoleUser, Content: "earlier"}}
	res, err := reg.AnswerQuestion(context.Background(), "report_01", "what is on page one?", history)
	require.NoError(t, err)

	assert.Equal(t, "composed", res.Answer)
	assert.Equal(t, "what is on page one?", composer.lastQuestion)
	assert.Equal(t, results, composer.lastContext)
	assert.Equal(t, history, composer.lastHistory)
}

func Test_AnswerQuestion_NoContext(t *testing.T) {
	reg := newTestRegistry(t, newFakeIndexer(), &fakeRetriever{}, &fakeComposer{})

	_, err := reg.IngestArtifacts(context.Background(), "report_01", "report.pdf", twoPageDoc())
	require.NoError(t, err)

	res, err := reg.AnswerQuestion(context.Background(), "report_01", "anything?", nil)
	require.NoError(t, err)

	assert.Equal(t, noContextAnswer, res.Answer)
	assert.Empty(t, res.Sources)
	assert.NotNil(t, res.Sources)
}

func Test_AnswerQuestion_Validation(t *testing.T) {
	reg := newTestRegistry(t, newFakeIndexer(), &fakeRetriever{}, &fakeComposer{})

	_, err := reg.AnswerQuestion(context.Background(), "", "question", nil)
	assert.ErrorIs(t, err, ErrEmptyDocumentID)

	_, err = reg.AnswerQuestion(context.Background(), "report_01", "  ", nil)
	assert.ErrorIs(t, err, ErrEmptyQuestion)

	_, err = reg.AnswerQuestion(context.Background(), "missing", "question", nil)
	assert.ErrorIs(t, err, ErrDocumentNotFound)
}

func Test_RemoveDocument(t *testing.T) {
	indexer := newFakeIndexer()
	reg := newTestRegistry(t, indexer, &fakeRetriever{}, &fakeComposer{})

	_, err := reg.IngestArtifacts(context.Background(), "report_01", "report.pdf", twoPageDoc())
	require.NoError(t, err)

	assert.True(t, reg.RemoveDocument(context.Background(), "report_01"))
	assert.Zero(t, indexer.count("report_01"))
	assert.Empty(t, reg.ListDocuments())

	assert.False(t, reg.RemoveDocument(context.Background(), "report_01"))
}

func Test_ListDocuments_Sorted(t *testing.T) {
	reg := newTestRegistry(t, newFakeIndexer(), &fakeRetriever{}, &fakeComposer{})

	for _, id := range []string{"zeta_01", "alpha_01", "mid_01"} {
		_, err := reg.IngestArtifacts(context.Background(), id, id+".pdf", twoPageDoc())
		require.NoError(t, err)
	}

	docs := reg.ListDocuments()
	require.Len(t, docs, 3)
	assert.Equal(t, "alpha_01", docs[0].DocumentID)
	assert.Equal(t, "mid_01", docs[1].DocumentID)
	assert.Equal(t, "zeta_01", docs[2].DocumentID)
}

func Test_documentID(t *testing.T) {
	var cases = []struct {
		filename string
		prefix   string
	}{
		{filename: "report.pdf", prefix: "report_"},
		{filename: "annual report 2024.pdf", prefix: "annual_report_2024_"},
		{filename: "a very long document name indeed.pdf", prefix: "a_very_long_document_"},
	}

	for i, c := range cases {
		t.Run(fmt.Sprintf("case_%d", i), func(t *testing.T) {
			id := documentID(c.filename, []byte("content"))
			assert.True(t, strings.HasPrefix(id, c.prefix), id)
			assert.Len(t, id, len(c.prefix)+8)
		})
	}
}

func Test_documentID_ContentSensitive(t *testing.T) {
	a := documentID("report.pdf", []byte("content a"))
	b := documentID("report.pdf", []byte("content b"))
	assert.NotEqual(t, a, b)

	again := documentID("report.pdf", []byte("content a"))
	assert.Equal(t, a, again)
}
