package recognize

import (
	"image"

	"github.com/disintegration/imaging"
)

// Segmentation tuning. Margins are generous because recognition is
// configured for accuracy over speed: a little surrounding background
// per line costs time, clipped ascenders cost characters.
const (
	minLineHeight   = 6  // rows; anything shorter is speckle
	lineMergeGap    = 3  // rows of background tolerated inside one line
	lineMarginRows  = 2  // rows of padding added above and below each line
	inkRowThreshold = 2  // minimum ink pixels for a row to count as text
)

// SegmentLines splits a tag image into horizontal text line boxes in
// top-to-bottom order using Otsu binarization and a row projection
// profile. Downstream treats the order as a hint only; every line is
// parsed independently.
func SegmentLines(img image.Image) []image.Rectangle {
	if img == nil {
		return nil
	}
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	if w == 0 || h == 0 {
		return nil
	}

	gray := imaging.Grayscale(img)
	threshold := otsuThreshold(gray.Pix)

	// Ink pixels per row; tags print dark text on light ground.
	inkPerRow := make([]int, h)
	for y := 0; y < h; y++ {
		row := gray.Pix[y*gray.Stride : y*gray.Stride+w*4]
		count := 0
		for x := 0; x < w; x++ {
			if row[x*4] <= threshold {
				count++
			}
		}
		inkPerRow[y] = count
	}

	var boxes []image.Rectangle
	start := -1
	gap := 0
	for y := 0; y <= h; y++ {
		textRow := y < h && inkPerRow[y] >= inkRowThreshold
		switch {
		case textRow && start < 0:
			start = y
			gap = 0
		case !textRow && start >= 0:
			gap++
			if gap > lineMergeGap || y == h {
				end := y - gap + 1
				if end-start >= minLineHeight {
					boxes = append(boxes, lineBox(b, start, end, w, h))
				}
				start = -1
				gap = 0
			}
		default:
			gap = 0
		}
	}
	return boxes
}

func lineBox(bounds image.Rectangle, start, end, w, h int) image.Rectangle {
	y0 := start - lineMarginRows
	if y0 < 0 {
		y0 = 0
	}
	y1 := end + lineMarginRows
	if y1 > h {
		y1 = h
	}
	return image.Rect(bounds.Min.X, bounds.Min.Y+y0, bounds.Min.X+w, bounds.Min.Y+y1)
}

// otsuThreshold computes the global binarization threshold over RGBA
// grayscale pixel data (red channel of an imaging.Grayscale result).
// Pixels at or below the threshold belong to the dark (ink) class.
func otsuThreshold(pix []uint8) uint8 {
	var hist [256]int
	total := 0
	for i := 0; i < len(pix); i += 4 {
		hist[pix[i]]++
		total++
	}
	if total == 0 {
		return 128
	}

	var sum float64
	for v, c := range hist {
		sum += float64(v) * float64(c)
	}

	var sumB, wB float64
	bestVar := -1.0
	best := 128
	for v := 0; v < 256; v++ {
		wB += float64(hist[v])
		if wB == 0 {
			continue
		}
		wF := float64(total) - wB
		if wF == 0 {
			break
		}
		sumB += float64(v) * float64(hist[v])
		mB := sumB / wB
		mF := (sum - sumB) / wF
		between := wB * wF * (mB - mF) * (mB - mF)
		if between > bestVar {
			bestVar = between
			best = v
		}
	}
	return uint8(best)
}

// cropLine extracts a line box from the source image.
func cropLine(img image.Image, box image.Rectangle) image.Image {
	return imaging.Crop(img, box)
}
