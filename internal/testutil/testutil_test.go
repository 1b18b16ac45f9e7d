package testutil

import (
	"image/color"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetProjectRoot(t *testing.T) {
	root, err := GetProjectRoot()
	require.NoError(t, err)
	assert.True(t, FileExists(filepath.Join(root, "go.mod")))
}

func TestRenderTagImage(t *testing.T) {
	img := RenderTagImageWithLines("S202-4575", "COTTON TEE", "L")
	bounds := img.Bounds()
	assert.Equal(t, 480, bounds.Dx())
	assert.Equal(t, 320, bounds.Dy())

	// Text rendering must leave dark pixels on the light background.
	dark := 0
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			r, g, b, _ := img.At(x, y).RGBA()
			if r < 0x4000 && g < 0x4000 && b < 0x4000 {
				dark++
			}
		}
	}
	assert.Greater(t, dark, 50)
}

func TestSaveAndLoadImage(t *testing.T) {
	img := NewSolidImage(32, 16, color.White)
	path := filepath.Join(t.TempDir(), "nested", "img.png")

	SaveImage(t, img, path)
	require.True(t, FileExists(path))

	loaded := LoadImage(t, path)
	assert.Equal(t, img.Bounds(), loaded.Bounds())
}
