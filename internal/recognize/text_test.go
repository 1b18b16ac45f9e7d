package recognize

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCleanLine(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"trims and collapses whitespace", "  80%   Cotton  ", "80% Cotton"},
		{"removes zero width", "M​", "M"},
		{"removes control chars", "S202\x00-4575", "S202-4575"},
		{"smart quotes corrected", "Chest 42”", `Chest 42"`},
		{"en dash corrected", "341–469922", "341-469922"},
		{"non-breaking space", "75 Blue", "75 Blue"},
		{"empty passes through", "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, CleanLine(tt.in, "en"))
		})
	}
}

func TestCleanLine_NoLanguage(t *testing.T) {
	// Without a language the correction map is skipped but structural
	// cleanup still applies.
	assert.Equal(t, "42”", CleanLine(" 42” ", ""))
}

func TestNormalizeForRecognition(t *testing.T) {
	img := syntheticTag(100, 20, nil)

	tensor, width, err := NormalizeForRecognition(img, 40, 0)
	assert.NoError(t, err)
	assert.Equal(t, 200, width, "aspect ratio preserved at doubled height")
	assert.Equal(t, []int64{1, 3, 40, 200}, tensor.Shape)
	assert.Len(t, tensor.Data, 3*40*200)

	// White pixels normalize to +1.
	assert.InDelta(t, 1.0, float64(tensor.Data[0]), 1e-3)
}

func TestNormalizeForRecognition_MaxWidthClamp(t *testing.T) {
	img := syntheticTag(1000, 10, nil)
	_, width, err := NormalizeForRecognition(img, 40, 160)
	assert.NoError(t, err)
	assert.Equal(t, 160, width)
}

func TestNormalizeForRecognition_Errors(t *testing.T) {
	_, _, err := NormalizeForRecognition(nil, 40, 0)
	assert.Error(t, err)

	img := syntheticTag(10, 10, nil)
	_, _, err = NormalizeForRecognition(img, 0, 0)
	assert.Error(t, err)
}
