package capture

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	img.Set(0, 0, color.White)
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func TestFileSource_Capture(t *testing.T) {
	path := filepath.Join(t.TempDir(), "badge.png")
	require.NoError(t, os.WriteFile(path, pngBytes(t, 40, 20), 0o600))

	src := NewFileSource(path)
	img, err := src.Capture(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 40, img.Bounds().Dx())
	assert.NoError(t, src.Close())
}

func TestFileSource_Missing(t *testing.T) {
	_, err := NewFileSource(filepath.Join(t.TempDir(), "nope.png")).Capture(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "capture: open")
}

func TestReaderSource_Capture(t *testing.T) {
	src := NewReaderSource(bytes.NewReader(pngBytes(t, 10, 10)))
	img, err := src.Capture(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 10, img.Bounds().Dy())
}

func TestReaderSource_NotAnImage(t *testing.T) {
	_, err := NewReaderSource(bytes.NewReader([]byte("hello"))).Capture(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "capture: decode image")
}

func TestReaderSource_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewReaderSource(bytes.NewReader(pngBytes(t, 1, 1))).Capture(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

type closeTracker struct {
	io.Reader
	closed bool
}

func (c *closeTracker) Close() error {
	c.closed = true
	return nil
}

func TestReaderSource_ClosesCloser(t *testing.T) {
	rc := &closeTracker{Reader: bytes.NewReader(nil)}
	require.NoError(t, NewReaderSource(rc).Close())
	assert.True(t, rc.closed)

	assert.NoError(t, NewReaderSource(bytes.NewReader(nil)).Close())
}
