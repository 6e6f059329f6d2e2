package docindex

import (
	chroma "github.com/amikos-tech/chroma-go/pkg/api/v2"

	"github.com/gamma-omg/chatpdf-mcp/chunk"
)

// Metadata attribute keys used in the vector store.
const (
	DocumentID    = "document_id"
	Filename      = "filename"
	PageNum       = "page_num"
	Source        = "source"
	Confidence    = "confidence"
	HasTables     = "has_tables"
	HasForms      = "has_forms"
	ContentType   = "content_type"
	TableID       = "table_id"
	TableAccuracy = "table_accuracy"
	FieldName     = "field_name"
	FieldType     = "field_type"
)

// Hit is one nearest-neighbor match from a document's collection.
type Hit struct {
	Text     string
	Meta     chunk.Metadata
	Distance float64
}

func encodeMetadata(m chunk.Metadata) (chroma.DocumentMetadata, error) {
	attrs := map[string]interface{}{
		DocumentID: m.DocumentID,
		Filename:   m.Filename,
		PageNum:    m.PageNum,
		Source:     m.Source,
		Confidence: m.Confidence,
		HasTables:  m.HasTables,
		HasForms:   m.HasForms,
	}
	switch m.ContentType {
	case chunk.ContentTypeTable:
		attrs[ContentType] = m.ContentType
		attrs[TableID] = m.TableID
		attrs[TableAccuracy] = m.TableAccuracy
	case chunk.ContentTypeForm:
		attrs[ContentType] = m.ContentType
		attrs[FieldName] = m.FieldName
		attrs[FieldType] = m.FieldType
	}

	return chroma.NewDocumentMetadataFromMap(attrs)
}

func decodeMetadata(meta chroma.DocumentMetadata) chunk.Metadata {
	var m chunk.Metadata
	m.DocumentID, _ = meta.GetString(DocumentID)
	m.Filename, _ = meta.GetString(Filename)
	m.Source, _ = meta.GetString(Source)
	m.Confidence, _ = meta.GetFloat(Confidence)
	m.HasTables, _ = meta.GetBool(HasTables)
	m.HasForms, _ = meta.GetBool(HasForms)
	if page, ok := meta.GetInt(PageNum); ok {
		m.PageNum = int(page)
	}

	m.ContentType, _ = meta.GetString(ContentType)
	switch m.ContentType {
	case chunk.ContentTypeTable:
		if id, ok := meta.GetInt(TableID); ok {
			m.TableID = int(id)
		}
		m.TableAccuracy, _ = meta.GetFloat(TableAccuracy)
	case chunk.ContentTypeForm:
		m.FieldName, _ = meta.GetString(FieldName)
		m.FieldType, _ = meta.GetString(FieldType)
	}

	return m
}
