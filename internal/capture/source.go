package capture

import (
	"context"
	"image"
	_ "image/jpeg" // register decoder
	_ "image/png"  // register decoder
	"io"
	"os"

	"github.com/rotisserie/eris"
)

// ImageSource is a camera-like resource. It is held from Begin until the
// image has been captured or the capture is cancelled.
type ImageSource interface {
	Capture(ctx context.Context) (image.Image, error)
	Close() error
}

// FileSource reads a PNG or JPEG badge photo from disk.
type FileSource struct {
	path string
}

// NewFileSource creates a FileSource for path.
func NewFileSource(path string) *FileSource {
	return &FileSource{path: path}
}

// Capture decodes the file.
func (s *FileSource) Capture(ctx context.Context) (image.Image, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f, err := os.Open(s.path)
	if err != nil {
		return nil, eris.Wrapf(err, "capture: open %s", s.path)
	}
	defer f.Close() //nolint:errcheck
	return decode(f)
}

// Close is a no-op; the file is only open during Capture.
func (s *FileSource) Close() error { return nil }

// ReaderSource decodes a badge photo from a stream such as stdin or an
// uploaded form file.
type ReaderSource struct {
	r io.Reader
}

// NewReaderSource wraps r. If r is an io.Closer it is closed on Close.
func NewReaderSource(r io.Reader) *ReaderSource {
	return &ReaderSource{r: r}
}

// Capture decodes the stream.
func (s *ReaderSource) Capture(ctx context.Context) (image.Image, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return decode(s.r)
}

// Close releases the underlying reader when it is closable.
func (s *ReaderSource) Close() error {
	if c, ok := s.r.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

func decode(r io.Reader) (image.Image, error) {
	img, _, err := image.Decode(r)
	if err != nil {
		return nil, eris.Wrap(err, "capture: decode image")
	}
	return img, nil
}
