package capture

import (
	"image"
	"image/color"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPreprocess_CropsCentre(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 100, 100))
	// White centre pixel, red corner.
	img.Set(50, 50, color.White)
	img.Set(0, 0, color.RGBA{R: 255, A: 255})

	out := Preprocess(img, DefaultCropWidth, DefaultCropHeight)
	assert.Equal(t, 85, out.Bounds().Dx())
	assert.Equal(t, 30, out.Bounds().Dy())

	// (100-85)/2 = 7, (100-30)/2 = 35
	assert.Equal(t, uint8(255), out.GrayAt(50-7, 50-35).Y)
	assert.Equal(t, uint8(0), out.GrayAt(0, 0).Y)
}

func TestPreprocess_Luma(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 1, 1))
	img.Set(0, 0, color.RGBA{R: 255, A: 255})

	out := Preprocess(img, 1, 1)
	// 0.299 * 255
	assert.InDelta(t, 76, int(out.GrayAt(0, 0).Y), 1)
}

func TestPreprocess_TinyImage(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 1, 1))
	out := Preprocess(img, 0.1, 0.1)
	assert.Equal(t, image.Rect(0, 0, 1, 1), out.Bounds())
}
