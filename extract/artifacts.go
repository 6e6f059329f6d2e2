package extract

// Page source values.
const (
	SourceNative = "native"
	SourceOCR    = "ocr"
	SourceError  = "error"
)

// Page holds everything extracted from a single PDF page: prose text with
// its provenance, detected tables and form fields.
type Page struct {
	PageNum    int     `json:"page_num"`
	Text       string  `json:"text"`
	Source     string  `json:"source"`
	Confidence float64 `json:"confidence"`
	Tables     []Table `json:"tables,omitempty"`
	Forms      []Form  `json:"forms,omitempty"`
}

// Table is one detected table rendered to markdown.
type Table struct {
	ID       int     `json:"table_id"`
	Accuracy float64 `json:"accuracy"`
	Rows     int     `json:"rows"`
	Columns  int     `json:"columns"`
	Markdown string  `json:"markdown"`
}

// Form is one detected form field.
type Form struct {
	Name  string `json:"field_name"`
	Type  string `json:"field_type"`
	Value string `json:"field_value"`
}

// Extractor turns a file on disk into per-page artifacts.
type Extractor interface {
	CanExtract(path string) bool
	Extract(path string) ([]Page, error)
}
