package geometry

// Corner identifies one of the four drag handles of a crop region.
type Corner int

const (
	TopLeft Corner = iota
	TopRight
	BottomLeft
	BottomRight
)

func (c Corner) String() string {
	switch c {
	case TopLeft:
		return "top-left"
	case TopRight:
		return "top-right"
	case BottomLeft:
		return "bottom-left"
	case BottomRight:
		return "bottom-right"
	default:
		return "unknown"
	}
}

// Point is a position in image-space coordinates.
type Point struct {
	X float64
	Y float64
}

// Rect is an axis-aligned rectangle in image-space coordinates.
type Rect struct {
	MinX float64
	MinY float64
	MaxX float64
	MaxY float64
}

// Width returns the rectangle width.
func (r Rect) Width() float64 { return r.MaxX - r.MinX }

// Height returns the rectangle height.
func (r Rect) Height() float64 { return r.MaxY - r.MinY }

// MinCropSize is the smallest width and height a crop region may reach,
// in image-space units. Drags that would shrink below it are clamped.
const MinCropSize = 100.0

// defaultWidthFraction is how much of the image width the initial region
// spans; the height follows the typical aspect of a printed garment tag.
const (
	defaultWidthFraction = 0.8
	defaultTagAspect     = 0.6
)

// CropRegion is a user-adjustable rectangular crop area manipulated via
// four independent corner handles. Opposite-corner coupling keeps the
// region axis-aligned: moving one handle drags the shared coordinates of
// its two adjacent handles along with it.
type CropRegion struct {
	TopLeft     Point
	TopRight    Point
	BottomLeft  Point
	BottomRight Point

	imageWidth  float64
	imageHeight float64
}

// NewCropRegion creates the default centered region for an image of the
// given dimensions: 80% of the width, tag-shaped, clamped to the minimum
// size and to the image bounds.
func NewCropRegion(imageWidth, imageHeight float64) CropRegion {
	w := imageWidth * defaultWidthFraction
	h := w * defaultTagAspect
	if w < MinCropSize {
		w = MinCropSize
	}
	if h < MinCropSize {
		h = MinCropSize
	}
	if w > imageWidth {
		w = imageWidth
	}
	if h > imageHeight {
		h = imageHeight
	}
	x0 := (imageWidth - w) / 2
	y0 := (imageHeight - h) / 2
	return CropRegion{
		TopLeft:     Point{X: x0, Y: y0},
		TopRight:    Point{X: x0 + w, Y: y0},
		BottomLeft:  Point{X: x0, Y: y0 + h},
		BottomRight: Point{X: x0 + w, Y: y0 + h},
		imageWidth:  imageWidth,
		imageHeight: imageHeight,
	}
}

// UpdateCorner applies a proposed handle position and returns the new
// region with all constraints applied, in order: clamp to image bounds,
// clamp against the opposite corner to preserve the minimum size, then
// propagate the coupled coordinates to the two adjacent corners. It is a
// total function; invalid proposals are clamped, never rejected.
func (r CropRegion) UpdateCorner(which Corner, proposed Point) CropRegion {
	p := r.clampToBounds(proposed)
	minW, minH := r.minSize()

	switch which {
	case TopLeft:
		p.X = minFloat(p.X, r.BottomRight.X-minW)
		p.Y = minFloat(p.Y, r.BottomRight.Y-minH)
		r.TopLeft = p
		r.TopRight.Y = p.Y
		r.BottomLeft.X = p.X
	case TopRight:
		p.X = maxFloat(p.X, r.BottomLeft.X+minW)
		p.Y = minFloat(p.Y, r.BottomLeft.Y-minH)
		r.TopRight = p
		r.TopLeft.Y = p.Y
		r.BottomRight.X = p.X
	case BottomLeft:
		p.X = minFloat(p.X, r.TopRight.X-minW)
		p.Y = maxFloat(p.Y, r.TopRight.Y+minH)
		r.BottomLeft = p
		r.BottomRight.Y = p.Y
		r.TopLeft.X = p.X
	case BottomRight:
		p.X = maxFloat(p.X, r.TopLeft.X+minW)
		p.Y = maxFloat(p.Y, r.TopLeft.Y+minH)
		r.BottomRight = p
		r.BottomLeft.Y = p.Y
		r.TopRight.X = p.X
	}
	return r
}

// minSize caps the minimum region size at the image dimensions so the
// min-size clamp can never push a corner outside the bounds of an image
// smaller than MinCropSize.
func (r CropRegion) minSize() (w, h float64) {
	return minFloat(MinCropSize, r.imageWidth), minFloat(MinCropSize, r.imageHeight)
}

// BoundingRect recomputes the axis-aligned bounding rectangle from the
// current corner positions. It is always derived, never tracked
// incrementally, so repeated calls without mutation are identical.
func (r CropRegion) BoundingRect() Rect {
	return Rect{
		MinX: minFloat(r.TopLeft.X, r.BottomLeft.X),
		MinY: minFloat(r.TopLeft.Y, r.TopRight.Y),
		MaxX: maxFloat(r.TopRight.X, r.BottomRight.X),
		MaxY: maxFloat(r.BottomLeft.Y, r.BottomRight.Y),
	}
}

// ImageBounds returns the image dimensions the region is constrained to.
func (r CropRegion) ImageBounds() (width, height float64) {
	return r.imageWidth, r.imageHeight
}

func (r CropRegion) clampToBounds(p Point) Point {
	if p.X < 0 {
		p.X = 0
	}
	if p.Y < 0 {
		p.Y = 0
	}
	if p.X > r.imageWidth {
		p.X = r.imageWidth
	}
	if p.Y > r.imageHeight {
		p.Y = r.imageHeight
	}
	return p
}

func minFloat(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}

func maxFloat(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}
