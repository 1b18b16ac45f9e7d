package preprocess

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"math"

	"github.com/disintegration/imaging"

	"github.com/stitchfit/tagscan/internal/geometry"
)

// PreprocessError reports an invalid crop or resize request. It is
// surfaced rather than silently clamped because a bad rectangle here
// means the caller's geometry or scale factor is wrong.
type PreprocessError struct {
	Operation string
	Err       error
}

func (e *PreprocessError) Error() string {
	return fmt.Sprintf("preprocess error in %s: %v", e.Operation, e.Err)
}

func (e *PreprocessError) Unwrap() error { return e.Err }

// Resize scales an image to fit within the target dimensions while
// preserving aspect ratio: the scale is min(widthRatio, heightRatio), so
// neither output dimension exceeds its target. Lanczos resampling is
// used for quality.
func Resize(img image.Image, targetWidth, targetHeight int) (image.Image, error) {
	if img == nil {
		return nil, &PreprocessError{Operation: "resize", Err: errors.New("input image is nil")}
	}
	if targetWidth <= 0 || targetHeight <= 0 {
		return nil, &PreprocessError{
			Operation: "resize",
			Err:       fmt.Errorf("invalid target dimensions: %dx%d", targetWidth, targetHeight),
		}
	}

	bounds := img.Bounds()
	width := bounds.Dx()
	height := bounds.Dy()
	if width <= 0 || height <= 0 {
		return nil, &PreprocessError{
			Operation: "resize",
			Err:       fmt.Errorf("invalid source dimensions: %dx%d", width, height),
		}
	}

	scaleX := float64(targetWidth) / float64(width)
	scaleY := float64(targetHeight) / float64(height)
	scale := math.Min(scaleX, scaleY)

	newWidth := int(math.Round(float64(width) * scale))
	newHeight := int(math.Round(float64(height) * scale))
	if newWidth < 1 {
		newWidth = 1
	}
	if newHeight < 1 {
		newHeight = 1
	}

	return imaging.Resize(img, newWidth, newHeight, imaging.Lanczos), nil
}

// Crop extracts the region from the source image. Region coordinates are
// in display space; scaleFactor converts them into the source's native
// pixel space and must be derived from the actually rendered image frame
// (sourceWidth / displayWidth). A non-positive or out-of-bounds rectangle
// is an error, not something to clamp: it indicates a geometry or scale
// mismatch upstream.
func Crop(img image.Image, region geometry.CropRegion, scaleFactor float64) (image.Image, error) {
	if img == nil {
		return nil, &PreprocessError{Operation: "crop", Err: errors.New("input image is nil")}
	}
	if scaleFactor <= 0 {
		return nil, &PreprocessError{
			Operation: "crop",
			Err:       fmt.Errorf("invalid scale factor: %v", scaleFactor),
		}
	}

	b := region.BoundingRect()
	rect := image.Rect(
		int(math.Round(b.MinX*scaleFactor)),
		int(math.Round(b.MinY*scaleFactor)),
		int(math.Round(b.MaxX*scaleFactor)),
		int(math.Round(b.MaxY*scaleFactor)),
	)

	if rect.Dx() <= 0 || rect.Dy() <= 0 {
		return nil, &PreprocessError{
			Operation: "crop",
			Err:       fmt.Errorf("non-positive crop rectangle: %v", rect),
		}
	}
	if !rect.In(img.Bounds()) {
		return nil, &PreprocessError{
			Operation: "crop",
			Err:       fmt.Errorf("crop rectangle %v outside image bounds %v", rect, img.Bounds()),
		}
	}

	return imaging.Crop(img, rect), nil
}

// Grayscale converts an image to 8-bit grayscale for detection and
// recognition stages.
func Grayscale(img image.Image) (*image.Gray, error) {
	if img == nil {
		return nil, &PreprocessError{Operation: "grayscale", Err: errors.New("input image is nil")}
	}
	src := imaging.Grayscale(img)
	bounds := src.Bounds()
	gray := image.NewGray(bounds)
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			gray.Set(x, y, src.At(x, y))
		}
	}
	return gray, nil
}

// NormalizeContrast linearly stretches grayscale intensity to the full
// range. Flat images (no dynamic range) are returned unchanged.
func NormalizeContrast(gray *image.Gray) *image.Gray {
	if gray == nil {
		return nil
	}
	minV, maxV := uint8(255), uint8(0)
	for _, v := range gray.Pix {
		if v < minV {
			minV = v
		}
		if v > maxV {
			maxV = v
		}
	}
	if maxV <= minV {
		return gray
	}
	bounds := gray.Bounds()
	out := image.NewGray(bounds)
	scale := 255.0 / float64(maxV-minV)
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			v := gray.GrayAt(x, y).Y
			out.SetGray(x, y, color.Gray{Y: uint8(math.Round(float64(v-minV) * scale))})
		}
	}
	return out
}
