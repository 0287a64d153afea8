package capture

import (
	"image"
	"image/color"
	"math"
)

// Default badge guide region as fractions of the frame.
const (
	DefaultCropWidth  = 0.85
	DefaultCropHeight = 0.30
)

// Preprocess crops the centre region (widthFrac x heightFrac of the frame)
// and converts it to grayscale with Rec. 601 luma weights.
func Preprocess(img image.Image, widthFrac, heightFrac float64) *image.Gray {
	b := img.Bounds()
	cropW := int(math.Round(float64(b.Dx()) * widthFrac))
	cropH := int(math.Round(float64(b.Dy()) * heightFrac))
	cropW = max(1, min(cropW, b.Dx()))
	cropH = max(1, min(cropH, b.Dy()))
	x0 := b.Min.X + (b.Dx()-cropW)/2
	y0 := b.Min.Y + (b.Dy()-cropH)/2

	out := image.NewGray(image.Rect(0, 0, cropW, cropH))
	for y := 0; y < cropH; y++ {
		for x := 0; x < cropW; x++ {
			r, g, bl, _ := img.At(x0+x, y0+y).RGBA()
			lum := (299*r + 587*g + 114*bl) / 1000
			out.SetGray(x, y, color.Gray{Y: uint8(lum >> 8)})
		}
	}
	return out
}
