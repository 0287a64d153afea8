// Package ocr turns a badge image into raw text.
package ocr

import (
	"bytes"
	"context"
	"image"
	"image/png"

	"github.com/rotisserie/eris"

	"github.com/sells-group/leadscan/internal/config"
)

// Result is the text recognized in one image, lines separated by "\n".
type Result struct {
	Text   string
	Engine string
}

// Recognizer extracts text from an image.
type Recognizer interface {
	Recognize(ctx context.Context, img image.Image) (Result, error)
}

// NewRecognizer creates a Recognizer based on config.
func NewRecognizer(cfg config.OCRConfig) (Recognizer, error) {
	switch cfg.Provider {
	case "local", "":
		return NewTesseract(cfg.TesseractPath, cfg.Language), nil
	case "mistral":
		if cfg.MistralKey == "" {
			return nil, eris.New("ocr: mistral provider requires mistral_api_key")
		}
		return NewMistralOCR(cfg.MistralKey, cfg.MistralModel), nil
	default:
		return nil, eris.Errorf("ocr: unknown provider %q", cfg.Provider)
	}
}

func encodePNG(img image.Image) ([]byte, error) {
	if img == nil {
		return nil, eris.New("ocr: nil image")
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, eris.Wrap(err, "ocr: encode png")
	}
	return buf.Bytes(), nil
}
