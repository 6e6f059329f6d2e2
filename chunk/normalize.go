package chunk

import (
	"fmt"

	"github.com/gamma-omg/chatpdf-mcp/extract"
)

// Normalizer converts one page's heterogeneous artifacts into a uniform
// chunk batch: prose goes through the Chunker, each table and form field
// becomes exactly one chunk. A page with both prose and a table contributes
// chunks from both streams; the redundancy is deliberate and favors recall.
type Normalizer struct {
	chunker *Chunker
}

func NewNormalizer(chunker *Chunker) *Normalizer {
	return &Normalizer{chunker: chunker}
}

func (n *Normalizer) PageChunks(documentID, filename string, page extract.Page) []Chunk {
	base := Metadata{
		DocumentID: documentID,
		Filename:   filename,
		PageNum:    page.PageNum,
		Source:     page.Source,
		Confidence: page.Confidence,
		HasTables:  len(page.Tables) > 0,
		HasForms:   len(page.Forms) > 0,
	}

	chunks := n.chunker.Chunk(page.Text, base)

	for _, t := range page.Tables {
		meta := base
		meta.ContentType = ContentTypeTable
		meta.TableID = t.ID
		meta.TableAccuracy = t.Accuracy

		chunks = append(chunks, Chunk{
			Text: fmt.Sprintf("Table %d (Page %d):\n%s", t.ID, page.PageNum, t.Markdown),
			Meta: meta,
		})
	}

	for i, f := range page.Forms {
		meta := base
		meta.ContentType = ContentTypeForm
		meta.FieldName = f.Name
		meta.FieldType = f.Type

		chunks = append(chunks, Chunk{
			Text:  fmt.Sprintf("Form Field (Page %d): %s (%s): %s", page.PageNum, f.Name, f.Type, f.Value),
			Index: i,
			Meta:  meta,
		})
	}

	return chunks
}
