// Package chunk turns extracted page artifacts into the retrievable units
// stored in the vector index: token-window prose chunks plus one chunk per
// table and per form field, all sharing one similarity space.
package chunk

import "fmt"

// Content type values for non-prose chunks. Prose chunks leave the field
// empty.
const (
	ContentTypeText  = "text"
	ContentTypeTable = "table"
	ContentTypeForm  = "form"
)

// Metadata is attached to every chunk. All chunks derived from the same page
// carry the same base fields; table and form chunks additionally fill the
// content-type specific ones.
type Metadata struct {
	DocumentID string
	Filename   string
	PageNum    int
	Source     string
	Confidence float64
	HasTables  bool
	HasForms   bool

	ContentType   string
	TableID       int
	TableAccuracy float64
	FieldName     string
	FieldType     string
}

// Chunk is the atomic unit of storage and retrieval. Immutable once created.
type Chunk struct {
	Text       string
	Index      int
	StartToken int
	EndToken   int
	Meta       Metadata
}

// ID returns the deterministic storage identity of the chunk. Re-ingesting
// the same document yields the same ids, so an upsert overwrites instead of
// duplicating.
func (c Chunk) ID() string {
	switch c.Meta.ContentType {
	case ContentTypeTable:
		return fmt.Sprintf("%s_p%d_t%d", c.Meta.DocumentID, c.Meta.PageNum, c.Meta.TableID)
	case ContentTypeForm:
		return fmt.Sprintf("%s_p%d_f%d", c.Meta.DocumentID, c.Meta.PageNum, c.Index)
	default:
		return fmt.Sprintf("%s_p%d_c%d", c.Meta.DocumentID, c.Meta.PageNum, c.Index)
	}
}
