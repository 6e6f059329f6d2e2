package extract

import (
	"fmt"
	"path/filepath"
	"strings"

	"code.sajari.com/docconv/v2"
)

// UniversalExtractor handles the non-PDF formats docconv can convert. The
// converted body has no page boundaries, so the whole document becomes a
// single native page.
type UniversalExtractor struct {
}

func (e *UniversalExtractor) CanExtract(path string) bool {
	ext := filepath.Ext(path)
	return ext == ".txt" || ext == ".docx" || ext == ".odt" || ext == ".xml" || ext == ".html"
}

func (e *UniversalExtractor) Extract(path string) ([]Page, error) {
	res, err := docconv.ConvertPath(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read document: %w", err)
	}

	text := strings.TrimSpace(res.Body)
	page := Page{
		PageNum:    1,
		Text:       text,
		Source:     SourceNative,
		Confidence: 1.0,
	}
	if text == "" {
		page.Source = SourceError
		page.Confidence = 0
	}

	return []Page{page}, nil
}
