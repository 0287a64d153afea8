package ocr

import (
	"context"
	"encoding/json"
	"image"
	"image/color"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/go-resty/resty/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/leadscan/internal/config"
)

func testImage() image.Image {
	img := image.NewGray(image.Rect(0, 0, 8, 4))
	for x := 0; x < 8; x++ {
		img.SetGray(x, 1, color.Gray{Y: 255})
	}
	return img
}

func TestNewRecognizer_Local(t *testing.T) {
	r, err := NewRecognizer(config.OCRConfig{Provider: "local", TesseractPath: "/usr/bin/tesseract"})
	require.NoError(t, err)
	assert.IsType(t, &Tesseract{}, r)
}

func TestNewRecognizer_LocalDefault(t *testing.T) {
	r, err := NewRecognizer(config.OCRConfig{Provider: ""})
	require.NoError(t, err)
	assert.IsType(t, &Tesseract{}, r)
}

func TestNewRecognizer_MistralMissingKey(t *testing.T) {
	_, err := NewRecognizer(config.OCRConfig{Provider: "mistral"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "mistral provider requires mistral_api_key")
}

func TestNewRecognizer_MistralWithKey(t *testing.T) {
	r, err := NewRecognizer(config.OCRConfig{Provider: "mistral", MistralKey: "test-key"})
	require.NoError(t, err)
	assert.IsType(t, &MistralOCR{}, r)
}

func TestNewRecognizer_UnknownProvider(t *testing.T) {
	_, err := NewRecognizer(config.OCRConfig{Provider: "unknown"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown provider "unknown"`)
}

func TestTesseract_Defaults(t *testing.T) {
	tr := NewTesseract("", "")
	assert.Equal(t, "tesseract", tr.binPath)
	assert.Equal(t, "eng", tr.language)

	tr = NewTesseract("/opt/tesseract", "deu")
	assert.Equal(t, "/opt/tesseract", tr.binPath)
	assert.Equal(t, "deu", tr.language)
}

func TestTesseract_BinaryNotFound(t *testing.T) {
	tr := NewTesseract("/nonexistent/tesseract", "eng")
	_, err := tr.Recognize(context.Background(), testImage())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "tesseract failed")
}

func TestTesseract_NilImage(t *testing.T) {
	tr := NewTesseract("", "")
	_, err := tr.Recognize(context.Background(), nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "nil image")
}

func TestTesseract_Recognize(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("shell script stand-in needs a POSIX shell")
	}
	// A fake tesseract that checks its arguments and prints a badge.
	tmpDir := t.TempDir()
	fakeBin := filepath.Join(tmpDir, "tesseract")
	script := `#!/bin/sh
[ -f "$1" ] || exit 2
[ "$2" = "stdout" ] || exit 3
[ "$4" = "fra" ] || exit 4
printf 'JANE DOE\nAcme Corp\n'
`
	require.NoError(t, os.WriteFile(fakeBin, []byte(script), 0o755))

	tr := NewTesseract(fakeBin, "fra")
	res, err := tr.Recognize(context.Background(), testImage())
	require.NoError(t, err)
	assert.Equal(t, "JANE DOE\nAcme Corp\n", res.Text)
	assert.Equal(t, "tesseract", res.Engine)
}

func TestMistralOCR_DefaultModel(t *testing.T) {
	m := NewMistralOCR("key", "")
	assert.Equal(t, defaultMistralModel, m.model)
	assert.Equal(t, mistralOCREndpoint, m.endpoint)
}

func TestMistralOCR_CustomModel(t *testing.T) {
	m := NewMistralOCR("key", "custom-model")
	assert.Equal(t, "custom-model", m.model)
}

func newTestMistral(url string) *MistralOCR {
	return &MistralOCR{
		apiKey:   "test-key",
		model:    "test-model",
		endpoint: url,
		client:   resty.New(),
	}
}

func TestMistralOCR_Recognize(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

		var req mistralOCRRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "test-model", req.Model)
		assert.Equal(t, "image_url", req.Document.Type)
		assert.Contains(t, req.Document.ImageURL, "data:image/png;base64,")

		resp := mistralOCRResponse{
			Pages: []mistralOCRPage{
				{Index: 0, Markdown: "# **Jane Doe**\nAcme Corp"},
			},
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(resp) //nolint:errcheck
	}))
	defer srv.Close()

	res, err := newTestMistral(srv.URL).Recognize(context.Background(), testImage())
	require.NoError(t, err)
	assert.Equal(t, "Jane Doe\nAcme Corp", res.Text)
	assert.Equal(t, "mistral", res.Engine)
}

func TestMistralOCR_APIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error":"invalid api key"}`)) //nolint:errcheck
	}))
	defer srv.Close()

	_, err := newTestMistral(srv.URL).Recognize(context.Background(), testImage())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "mistral API returned 401")
}

func TestMistralOCR_MalformedResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{invalid json`)) //nolint:errcheck
	}))
	defer srv.Close()

	_, err := newTestMistral(srv.URL).Recognize(context.Background(), testImage())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unmarshal mistral response")
}

func TestMistralOCR_EmptyPages(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"pages":[]}`)) //nolint:errcheck
	}))
	defer srv.Close()

	res, err := newTestMistral(srv.URL).Recognize(context.Background(), testImage())
	require.NoError(t, err)
	assert.Empty(t, res.Text)
}
