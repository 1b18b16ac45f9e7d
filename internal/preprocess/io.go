package preprocess

import (
	"errors"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"os"
	"path/filepath"
	"strings"

	_ "golang.org/x/image/bmp"
)

// SupportedImageExtensions lists supported file extensions for loading.
var SupportedImageExtensions = []string{".jpg", ".jpeg", ".png", ".bmp"}

// IsSupportedImage reports whether the path has a supported image extension.
func IsSupportedImage(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	for _, s := range SupportedImageExtensions {
		if ext == s {
			return true
		}
	}
	return false
}

// SourceImage pairs a decoded image with its native pixel dimensions, the
// shape the image-source collaborator (camera or photo library) supplies.
type SourceImage struct {
	Image        image.Image
	NativeWidth  int
	NativeHeight int
}

// LoadImage opens and decodes an image file into a SourceImage.
func LoadImage(path string) (*SourceImage, error) {
	if path == "" {
		return nil, &PreprocessError{Operation: "load", Err: errors.New("empty path")}
	}
	if !IsSupportedImage(path) {
		return nil, &PreprocessError{
			Operation: "load",
			Err:       fmt.Errorf("unsupported format: %s", filepath.Ext(path)),
		}
	}

	f, err := os.Open(path) //nolint:gosec // G304: Reading user-provided image file path is expected
	if err != nil {
		return nil, &PreprocessError{Operation: "load", Err: err}
	}
	defer func() {
		if err := f.Close(); err != nil {
			fmt.Fprintf(os.Stderr, "Error closing image file: %v\n", err)
		}
	}()

	img, _, err := image.Decode(f)
	if err != nil {
		return nil, &PreprocessError{Operation: "load", Err: err}
	}
	b := img.Bounds()
	return &SourceImage{Image: img, NativeWidth: b.Dx(), NativeHeight: b.Dy()}, nil
}
