package testutil

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

// TagImageConfig holds configuration for rendering a synthetic garment
// tag: a light rectangle with left-aligned dark text lines, one per
// printed row.
type TagImageConfig struct {
	Lines      []string
	Width      int
	Height     int
	Background color.Color
	Foreground color.Color
	FontFace   font.Face
}

// DefaultTagImageConfig returns a tag that reads like a typical care
// label.
func DefaultTagImageConfig() TagImageConfig {
	return TagImageConfig{
		Lines: []string{
			"HT00189FT-US",
			"WOOL KNIT SWEATER",
			"M",
			"$49.99",
		},
		Width:      480,
		Height:     320,
		Background: color.White,
		Foreground: color.Black,
		FontFace:   basicfont.Face7x13,
	}
}

// RenderTagImage renders the configured tag lines onto a fresh image.
func RenderTagImage(config TagImageConfig) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, config.Width, config.Height))
	draw.Draw(img, img.Bounds(), &image.Uniform{config.Background}, image.Point{}, draw.Src)

	drawer := &font.Drawer{
		Dst:  img,
		Src:  &image.Uniform{config.Foreground},
		Face: config.FontFace,
	}

	lineHeight := config.FontFace.Metrics().Height.Ceil() * 2
	startY := (config.Height - len(config.Lines)*lineHeight) / 2
	if startY < lineHeight {
		startY = lineHeight
	}
	for i, line := range config.Lines {
		drawer.Dot = fixed.P(20, startY+i*lineHeight)
		drawer.DrawString(line)
	}

	return img
}

// RenderTagImageWithLines renders a default-styled tag with the given
// text lines.
func RenderTagImageWithLines(lines ...string) *image.RGBA {
	config := DefaultTagImageConfig()
	config.Lines = lines
	return RenderTagImage(config)
}

// NewSolidImage creates an image filled with a single color.
func NewSolidImage(width, height int, c color.Color) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.Draw(img, img.Bounds(), &image.Uniform{c}, image.Point{}, draw.Src)
	return img
}

// SaveImage saves an image as PNG to the specified path.
func SaveImage(t *testing.T, img image.Image, path string) {
	t.Helper()

	dir := filepath.Dir(path)
	require.NoError(t, EnsureDir(dir), "Failed to create directory %s", dir)

	file, err := os.Create(path) //nolint:gosec // G304: Test file creation with controlled path
	require.NoError(t, err, "Failed to create file %s", path)
	defer func() {
		require.NoError(t, file.Close())
	}()

	require.NoError(t, png.Encode(file, img), "Failed to encode PNG image")
}

// LoadImage loads an image from the specified path.
func LoadImage(t *testing.T, path string) image.Image {
	t.Helper()

	img, err := LoadImageFile(path)
	require.NoError(t, err, "Failed to load image %s", path)
	return img
}

// LoadImageFile loads an image from the specified path (non-testing version).
func LoadImageFile(path string) (image.Image, error) {
	file, err := os.Open(path) //nolint:gosec // G304: Opening user-provided image file is expected
	if err != nil {
		return nil, fmt.Errorf("failed to open image file %s: %w", path, err)
	}
	defer func() { _ = file.Close() }()

	img, _, err := image.Decode(file)
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}

	return img, nil
}
