package ocr

import (
	"bytes"
	"context"
	"image"
	"os"
	"os/exec"
	"strings"

	"github.com/rotisserie/eris"
)

// Tesseract recognizes text on-device with the tesseract CLI.
type Tesseract struct {
	binPath  string
	language string
}

// NewTesseract creates a Tesseract recognizer. Empty binPath and language
// default to "tesseract" and "eng".
func NewTesseract(binPath, language string) *Tesseract {
	if binPath == "" {
		binPath = "tesseract"
	}
	if language == "" {
		language = "eng"
	}
	return &Tesseract{binPath: binPath, language: language}
}

// Recognize writes img to a temporary PNG and runs
// "tesseract <file> stdout -l <lang> --psm 6", returning stdout.
func (t *Tesseract) Recognize(ctx context.Context, img image.Image) (Result, error) {
	data, err := encodePNG(img)
	if err != nil {
		return Result{}, err
	}

	f, err := os.CreateTemp("", "leadscan-badge-*.png")
	if err != nil {
		return Result{}, eris.Wrap(err, "ocr: create temp image")
	}
	defer os.Remove(f.Name()) //nolint:errcheck

	if _, err := f.Write(data); err != nil {
		f.Close() //nolint:errcheck,gosec
		return Result{}, eris.Wrap(err, "ocr: write temp image")
	}
	if err := f.Close(); err != nil {
		return Result{}, eris.Wrap(err, "ocr: close temp image")
	}

	// psm 6 treats the crop as one uniform block of text.
	cmd := exec.CommandContext(ctx, t.binPath, f.Name(), "stdout", "-l", t.language, "--psm", "6") //nolint:gosec

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return Result{}, eris.Wrapf(err, "ocr: tesseract failed: %s", strings.TrimSpace(stderr.String()))
	}

	return Result{Text: stdout.String(), Engine: "tesseract"}, nil
}
