package barcode

import (
	"context"
	"fmt"
	"image"
)

// Format represents a barcode symbology.
type Format int

const (
	FormatUnknown Format = iota
	FormatQR
	FormatPDF417
	FormatCode128
	FormatEAN8
	FormatEAN13
)

func (f Format) String() string {
	switch f {
	case FormatQR:
		return "qr"
	case FormatPDF417:
		return "pdf417"
	case FormatCode128:
		return "code128"
	case FormatEAN8:
		return "ean8"
	case FormatEAN13:
		return "ean13"
	default:
		return "unknown"
	}
}

// ParseFormat maps a symbology name to its Format.
func ParseFormat(s string) (Format, bool) {
	switch s {
	case "qr", "qr-code":
		return FormatQR, true
	case "pdf417", "pdf-417":
		return FormatPDF417, true
	case "code128", "code-128":
		return FormatCode128, true
	case "ean8", "ean-8":
		return FormatEAN8, true
	case "ean13", "ean-13":
		return FormatEAN13, true
	default:
		return FormatUnknown, false
	}
}

// Code is a successfully decoded machine-readable symbol.
type Code struct {
	Symbology Format
	Payload   string
}

// Options controls decoding behavior.
type Options struct {
	// Formats constrains the set of symbologies to search. Empty means
	// the full supported set.
	Formats []Format

	// TryHarder enables more exhaustive search (slower but more robust).
	TryHarder bool

	// ROI optionally restricts decoding to a sub-rectangle of the image.
	// If zero-sized or out of bounds, it is ignored.
	ROI image.Rectangle
}

// DefaultOptions returns the decoding options used for garment tags:
// the retail symbologies a tag realistically carries, searched hard.
func DefaultOptions() Options {
	return Options{
		Formats:   []Format{FormatEAN8, FormatEAN13, FormatQR, FormatCode128, FormatPDF417},
		TryHarder: true,
	}
}

// DetectionError reports a hard failure initializing or running the
// decoder. It is distinct from "no symbol found", which is a normal
// negative result and never an error.
type DetectionError struct {
	Err error
}

func (e *DetectionError) Error() string {
	return fmt.Sprintf("barcode detection error: %v", e.Err)
}

func (e *DetectionError) Unwrap() error { return e.Err }

// Detector attempts to decode a machine-readable code from an image.
type Detector struct {
	opts Options
}

// NewDetector creates a detector with the given options.
func NewDetector(opts Options) *Detector {
	if len(opts.Formats) == 0 {
		opts.Formats = DefaultOptions().Formats
	}
	return &Detector{opts: opts}
}

// Detect decodes the first machine-readable symbol found in the image.
// A nil Code with nil error means no symbol decoded, which is the normal
// trigger for falling back to text recognition. A DetectionError means
// the decoder itself failed and the fallback must not be taken.
func (d *Detector) Detect(ctx context.Context, img image.Image) (*Code, error) {
	if img == nil {
		return nil, &DetectionError{Err: errNilImage}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return decode(img, d.opts)
}
