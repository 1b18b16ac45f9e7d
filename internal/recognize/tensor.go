package recognize

import (
	"errors"
	"image"

	"github.com/disintegration/imaging"
)

// Tensor is a float32 NCHW tensor ready for inference.
type Tensor struct {
	Data  []float32
	Shape []int64
}

// NormalizeForRecognition scales a line patch to the model height while
// preserving aspect ratio, optionally clamps its width, and converts it
// to a normalized NCHW tensor with values in [-1, 1]. The returned width
// is the post-resize pixel width; zero means the patch was empty.
func NormalizeForRecognition(patch image.Image, targetHeight, maxWidth int) (Tensor, int, error) {
	if patch == nil {
		return Tensor{}, 0, errors.New("input patch is nil")
	}
	if targetHeight <= 0 {
		return Tensor{}, 0, errors.New("target height must be positive")
	}

	b := patch.Bounds()
	if b.Dx() == 0 || b.Dy() == 0 {
		return Tensor{}, 0, nil
	}

	width := int(float64(b.Dx()) * float64(targetHeight) / float64(b.Dy()))
	if width < 1 {
		width = 1
	}
	if maxWidth > 0 && width > maxWidth {
		width = maxWidth
	}

	resized := imaging.Resize(patch, width, targetHeight, imaging.Lanczos)

	data := make([]float32, 3*targetHeight*width)
	plane := targetHeight * width
	rb := resized.Bounds()
	for y := 0; y < targetHeight; y++ {
		for x := 0; x < width; x++ {
			r, g, bl, _ := resized.At(rb.Min.X+x, rb.Min.Y+y).RGBA()
			idx := y*width + x
			data[idx] = normalizeChannel(r)
			data[plane+idx] = normalizeChannel(g)
			data[2*plane+idx] = normalizeChannel(bl)
		}
	}

	return Tensor{
		Data:  data,
		Shape: []int64{1, 3, int64(targetHeight), int64(width)},
	}, width, nil
}

// normalizeChannel maps a 16-bit color channel to [-1, 1], the
// (x/255 - 0.5) / 0.5 normalization CTC recognition models expect.
func normalizeChannel(v uint32) float32 {
	return (float32(v)/65535.0 - 0.5) / 0.5
}
