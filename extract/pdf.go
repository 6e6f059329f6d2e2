package extract

import (
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/tsawler/tabula"
	"github.com/tsawler/tabula/model"
	"github.com/tsawler/tabula/tables"
)

// Pages with less native text than this are considered scanned and go
// through the OCR fallback.
const nativeTextThreshold = 50

// PDFExtractor extracts per-page text and tables from PDF files. Pages
// without native text are rasterized images in practice, so their embedded
// images are handed to the OCR recognizer when one is configured.
type PDFExtractor struct {
	log *slog.Logger
	ocr Recognizer
}

func NewPDFExtractor(log *slog.Logger, ocr Recognizer) *PDFExtractor {
	return &PDFExtractor{log: log, ocr: ocr}
}

func (e *PDFExtractor) CanExtract(path string) bool {
	return filepath.Ext(path) == ".pdf"
}

func (e *PDFExtractor) Extract(path string) ([]Page, error) {
	doc, warnings, err := tabula.Open(path).Document()
	if err != nil {
		return nil, fmt.Errorf("failed to read pdf document: %w", err)
	}
	for _, w := range warnings {
		e.log.Warn("pdf extraction warning", "file", path, "warning", w)
	}

	detector := tables.NewGeometricDetector()

	pages := make([]Page, 0, len(doc.Pages))
	for i, modelPage := range doc.Pages {
		pageNum := i + 1
		page := Page{PageNum: pageNum}

		page.Tables = e.detectTables(modelPage, pageNum, detector)

		text, _, err := tabula.Open(path).Pages(pageNum).Text()
		if err != nil {
			e.log.Warn("failed to extract page text", "file", path, "page", pageNum, "error", err)
			text = ""
		}
		text = strings.TrimSpace(text)

		if len(text) >= nativeTextThreshold {
			page.Text = text
			page.Source = SourceNative
			page.Confidence = 1.0
		} else {
			page.Text, page.Source, page.Confidence = e.recognizePage(modelPage, pageNum)
			if page.Source == SourceError && text != "" {
				// Keep whatever little native text there was.
				page.Text = text
				page.Source = SourceNative
				page.Confidence = 1.0
			}
		}

		pages = append(pages, page)
	}

	return pages, nil
}

func (e *PDFExtractor) detectTables(page *model.Page, pageNum int, detector *tables.GeometricDetector) []Table {
	detected, err := detector.Detect(page)
	if err != nil {
		e.log.Warn("table detection failed", "page", pageNum, "error", err)
		return nil
	}

	var out []Table
	for idx, t := range detected {
		if t.RowCount() == 0 {
			continue
		}
		out = append(out, Table{
			ID:       idx + 1,
			Accuracy: t.Confidence,
			Rows:     t.RowCount(),
			Columns:  t.ColCount(),
			Markdown: t.ToMarkdown(),
		})
	}

	return out
}

// recognizePage runs OCR over the page's embedded images. A page that ends
// up here has no usable native text, so a missing recognizer or an OCR
// failure yields an error page rather than aborting the whole document.
func (e *PDFExtractor) recognizePage(page *model.Page, pageNum int) (string, string, float64) {
	if e.ocr == nil {
		return "", SourceError, 0
	}

	var texts []string
	var confidences []float64
	for _, el := range page.Elements {
		img, ok := el.(*model.Image)
		if !ok || len(img.Data) == 0 {
			continue
		}

		text, confidence, err := e.ocr.Recognize(img.Data)
		if err != nil {
			e.log.Warn("ocr failed", "page", pageNum, "error", err)
			continue
		}
		if text == "" {
			continue
		}

		texts = append(texts, text)
		confidences = append(confidences, confidence)
	}

	if len(texts) == 0 {
		return "", SourceError, 0
	}

	var sum float64
	for _, c := range confidences {
		sum += c
	}

	return strings.Join(texts, "\n"), SourceOCR, sum / float64(len(confidences))
}
