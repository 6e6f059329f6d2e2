package extract

import (
	"fmt"

	"github.com/otiai10/gosseract/v2"
)

// Recognizer turns a raster image into text with an averaged recognition
// confidence in [0, 1].
type Recognizer interface {
	Recognize(image []byte) (text string, confidence float64, err error)
	Close() error
}

// TesseractRecognizer recognizes text with the Tesseract engine. It is not
// safe for concurrent use; the extractor calls it from a single goroutine.
type TesseractRecognizer struct {
	client *gosseract.Client
}

func NewTesseractRecognizer(lang string) (*TesseractRecognizer, error) {
	client := gosseract.NewClient()
	if lang != "" {
		if err := client.SetLanguage(lang); err != nil {
			client.Close()
			return nil, fmt.Errorf("failed to set ocr language: %w", err)
		}
	}

	return &TesseractRecognizer{client: client}, nil
}

func (r *TesseractRecognizer) Recognize(image []byte) (string, float64, error) {
	if err := r.client.SetImageFromBytes(image); err != nil {
		return "", 0, fmt.Errorf("failed to set ocr image: %w", err)
	}

	text, err := r.client.Text()
	if err != nil {
		return "", 0, fmt.Errorf("ocr failed: %w", err)
	}

	boxes, err := r.client.GetBoundingBoxes(gosseract.RIL_WORD)
	if err != nil || len(boxes) == 0 {
		return text, 0, nil
	}

	var sum float64
	for _, b := range boxes {
		sum += b.Confidence
	}

	// Tesseract reports word confidence on a 0-100 scale.
	return text, sum / float64(len(boxes)) / 100, nil
}

func (r *TesseractRecognizer) Close() error {
	return r.client.Close()
}
