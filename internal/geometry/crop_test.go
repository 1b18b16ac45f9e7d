package geometry

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewCropRegion_Defaults(t *testing.T) {
	r := NewCropRegion(1000, 800)

	b := r.BoundingRect()
	assert.InDelta(t, 800.0, b.Width(), 1e-9, "default region spans 80%% of image width")
	assert.InDelta(t, 480.0, b.Height(), 1e-9)

	// Centered
	assert.InDelta(t, (1000-b.Width())/2, b.MinX, 1e-9)
	assert.InDelta(t, (800-b.Height())/2, b.MinY, 1e-9)
}

func TestNewCropRegion_SmallImage(t *testing.T) {
	r := NewCropRegion(90, 90)
	b := r.BoundingRect()
	// Minimum size loses to the image bounds; the region can never
	// exceed the image itself.
	assert.LessOrEqual(t, b.Width(), 90.0)
	assert.LessOrEqual(t, b.Height(), 90.0)
}

func TestUpdateCorner_ClampsToBounds(t *testing.T) {
	r := NewCropRegion(1000, 800)

	r = r.UpdateCorner(TopLeft, Point{X: -50, Y: -50})
	assert.Equal(t, Point{X: 0, Y: 0}, r.TopLeft)

	r = r.UpdateCorner(BottomRight, Point{X: 2000, Y: 2000})
	assert.Equal(t, Point{X: 1000, Y: 800}, r.BottomRight)
}

func TestUpdateCorner_MinSizeClamp(t *testing.T) {
	tests := []struct {
		name   string
		corner Corner
		// proposed point tries to collapse the region past the opposite corner
		proposed Point
	}{
		{"top-left toward bottom-right", TopLeft, Point{X: 950, Y: 750}},
		{"top-right toward bottom-left", TopRight, Point{X: 50, Y: 750}},
		{"bottom-left toward top-right", BottomLeft, Point{X: 950, Y: 50}},
		{"bottom-right toward top-left", BottomRight, Point{X: 50, Y: 50}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewCropRegion(1000, 800)
			r = r.UpdateCorner(tt.corner, tt.proposed)
			b := r.BoundingRect()
			assert.GreaterOrEqual(t, b.Width(), MinCropSize)
			assert.GreaterOrEqual(t, b.Height(), MinCropSize)
		})
	}
}

func TestUpdateCorner_SubMinimumImageStaysInBounds(t *testing.T) {
	// On an image smaller than MinCropSize the effective minimum is the
	// image itself; the min-size clamp must never push a corner outside.
	r := NewCropRegion(50, 50)
	for _, c := range []Corner{TopLeft, TopRight, BottomLeft, BottomRight} {
		r = r.UpdateCorner(c, Point{X: 10, Y: 10})
		for _, p := range []Point{r.TopLeft, r.TopRight, r.BottomLeft, r.BottomRight} {
			assert.GreaterOrEqual(t, p.X, 0.0)
			assert.GreaterOrEqual(t, p.Y, 0.0)
			assert.LessOrEqual(t, p.X, 50.0)
			assert.LessOrEqual(t, p.Y, 50.0)
		}
	}
	b := r.BoundingRect()
	assert.InDelta(t, 50.0, b.Width(), 1e-9)
	assert.InDelta(t, 50.0, b.Height(), 1e-9)
}

func TestUpdateCorner_CouplingKeepsRectangle(t *testing.T) {
	r := NewCropRegion(1000, 800)
	r = r.UpdateCorner(TopLeft, Point{X: 120, Y: 140})

	// Moving top-left drags top-right's y and bottom-left's x along.
	assert.Equal(t, r.TopLeft.Y, r.TopRight.Y)
	assert.Equal(t, r.TopLeft.X, r.BottomLeft.X)
	assert.Equal(t, r.BottomLeft.Y, r.BottomRight.Y)
	assert.Equal(t, r.TopRight.X, r.BottomRight.X)
}

func TestUpdateCorner_AllCornersCoupled(t *testing.T) {
	r := NewCropRegion(1000, 800)
	for _, c := range []Corner{TopLeft, TopRight, BottomLeft, BottomRight} {
		r = r.UpdateCorner(c, Point{X: 333, Y: 444})
		assertRectangular(t, r)
	}
}

func TestBoundingRect_Idempotent(t *testing.T) {
	r := NewCropRegion(640, 480)
	r = r.UpdateCorner(BottomRight, Point{X: 620, Y: 470})

	first := r.BoundingRect()
	second := r.BoundingRect()
	require.Equal(t, first, second)
}

func TestCornerString(t *testing.T) {
	assert.Equal(t, "top-left", TopLeft.String())
	assert.Equal(t, "unknown", Corner(99).String())
}

func assertRectangular(t *testing.T, r CropRegion) {
	t.Helper()
	assert.Equal(t, r.TopLeft.Y, r.TopRight.Y)
	assert.Equal(t, r.BottomLeft.Y, r.BottomRight.Y)
	assert.Equal(t, r.TopLeft.X, r.BottomLeft.X)
	assert.Equal(t, r.TopRight.X, r.BottomRight.X)
}
