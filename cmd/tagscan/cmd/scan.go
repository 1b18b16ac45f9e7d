package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"io"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/stitchfit/tagscan/internal/barcode"
	"github.com/stitchfit/tagscan/internal/config"
	"github.com/stitchfit/tagscan/internal/extract"
	"github.com/stitchfit/tagscan/internal/geometry"
	"github.com/stitchfit/tagscan/internal/lookup"
	"github.com/stitchfit/tagscan/internal/preprocess"
	"github.com/stitchfit/tagscan/internal/recognize"
	"github.com/stitchfit/tagscan/internal/scan"
)

const (
	outputFormatJSON = "json"
	outputFormatText = "text"
)

// scanCmd represents the scan command.
var scanCmd = &cobra.Command{
	Use:   "scan [image]",
	Short: "Scan a garment tag photo into a structured record",
	Long: `Scan a garment tag photo: decode a machine-readable code if one is
present, otherwise recognize the printed text and extract the product
fields.

Supported formats: JPEG, PNG, BMP

Examples:
  tagscan scan tag.jpg
  tagscan scan tag.jpg --format json
  tagscan scan tag.jpg --code-only
  tagscan scan tag.jpg --crop 120,80,760,480
  tagscan scan tag.jpg --lookup-url https://garments.example.com`,
	Args:         cobra.ExactArgs(1),
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		path := args[0]
		if !preprocess.IsSupportedImage(path) {
			return fmt.Errorf("unsupported image format: %s (supported: %s)",
				path, strings.Join(preprocess.SupportedImageExtensions, ", "))
		}

		cfg := GetConfig()
		format := cfg.Output.Format
		if format != outputFormatText && format != outputFormatJSON {
			return fmt.Errorf("invalid output format: %s (must be one of: %s, %s)",
				format, outputFormatText, outputFormatJSON)
		}

		codeOnly, _ := cmd.Flags().GetBool("code-only")

		session, closeFn, err := buildSession(cfg, path, codeOnly)
		if err != nil {
			return err
		}
		defer closeFn()

		cropSpec, _ := cmd.Flags().GetString("crop")
		region, err := parseCropSpec(cropSpec)
		if err != nil {
			return err
		}

		result, err := runScan(cmd.Context(), session, region)
		if err != nil {
			return err
		}

		return writeScanResult(cmd, format, result)
	},
}

// scanResult is the command's serializable view of a finished session.
type scanResult struct {
	Stage   string               `json:"stage"`
	Code    *barcode.Code        `json:"code,omitempty"`
	Lines   []recognize.Line     `json:"lines,omitempty"`
	Info    *extract.GarmentInfo `json:"info,omitempty"`
	Garment *lookup.Garment      `json:"garment,omitempty"`
}

// fileSource adapts an image file into the session's image source.
type fileSource struct {
	path string
}

func (f *fileSource) Acquire(ctx context.Context) (*preprocess.SourceImage, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return preprocess.LoadImage(f.path)
}

// offlineService stands in for the garment service when no lookup URL is
// configured. Every code is unknown and submissions succeed without a
// created record.
type offlineService struct{}

func (offlineService) LookupCode(ctx context.Context, payload string) (*lookup.Garment, error) {
	return nil, nil
}

func (offlineService) Submit(ctx context.Context, info extract.GarmentInfo) (*lookup.Garment, error) {
	return nil, nil
}

// disabledRecognizer rejects the OCR fallback so code-only scans fail
// fast instead of loading a model.
type disabledRecognizer struct{}

func (disabledRecognizer) Recognize(ctx context.Context, img image.Image) ([]recognize.Line, error) {
	return nil, &recognize.RecognitionError{Err: errors.New("text recognition disabled (--code-only)")}
}

func buildSession(cfg *config.Config, path string, codeOnly bool) (*scan.Session, func(), error) {
	detector := barcode.NewDetector(cfg.ToBarcodeOptions())

	var recognizer scan.TextRecognizer
	closeFn := func() {}
	if codeOnly {
		recognizer = disabledRecognizer{}
	} else {
		rec, err := recognize.NewRecognizer(cfg.ToRecognizerConfig())
		if err != nil {
			return nil, nil, fmt.Errorf("failed to initialize text recognizer: %w", err)
		}
		recognizer = rec
		closeFn = func() { _ = rec.Close() }
	}

	var service scan.GarmentService
	if cfg.Lookup.BaseURL != "" {
		service = lookup.NewClient(cfg.Lookup.BaseURL, cfg.Lookup.APIToken,
			time.Duration(cfg.Lookup.TimeoutSec)*time.Second)
	} else {
		service = offlineService{}
	}

	orch, err := scan.NewOrchestrator(cfg.ToScanConfig(), &fileSource{path: path}, detector, recognizer, service)
	if err != nil {
		closeFn()
		return nil, nil, err
	}
	return orch.NewSession(), closeFn, nil
}

// cropSpec is an explicit crop rectangle given on the command line, in
// source pixel coordinates.
type cropSpec struct {
	topLeft     geometry.Point
	bottomRight geometry.Point
}

func parseCropSpec(s string) (*cropSpec, error) {
	if s == "" {
		return nil, nil
	}
	parts := strings.Split(s, ",")
	if len(parts) != 4 {
		return nil, fmt.Errorf("invalid crop %q (expected x0,y0,x1,y1)", s)
	}
	vals := make([]float64, 4)
	for i, p := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return nil, fmt.Errorf("invalid crop coordinate %q: %w", p, err)
		}
		vals[i] = v
	}
	return &cropSpec{
		topLeft:     geometry.Point{X: vals[0], Y: vals[1]},
		bottomRight: geometry.Point{X: vals[2], Y: vals[3]},
	}, nil
}

// runScan drives one session over the file. Without an explicit crop the
// region is widened to the full frame since there is no interactive crop
// step; an out-of-range crop is clamped by the region's own rules.
func runScan(ctx context.Context, session *scan.Session, crop *cropSpec) (*scanResult, error) {
	if _, err := session.Start(ctx); err != nil {
		return nil, err
	}

	width, height := session.Crop().ImageBounds()
	topLeft := geometry.Point{X: 0, Y: 0}
	bottomRight := geometry.Point{X: width, Y: height}
	if crop != nil {
		topLeft = crop.topLeft
		bottomRight = crop.bottomRight
	}
	if err := session.UpdateCorner(geometry.TopLeft, topLeft); err != nil {
		return nil, err
	}
	if err := session.UpdateCorner(geometry.BottomRight, bottomRight); err != nil {
		return nil, err
	}

	if err := session.ConfirmCrop(ctx, 1.0); err != nil {
		return nil, err
	}

	res := session.Result()
	out := &scanResult{
		Stage:   session.Stage().String(),
		Info:    session.Info(),
		Garment: session.Garment(),
	}
	switch res.Kind {
	case scan.ResultCode:
		out.Code = res.Code
	case scan.ResultText:
		out.Lines = res.Lines
	}
	return out, nil
}

func writeScanResult(cmd *cobra.Command, format string, result *scanResult) error {
	w := cmd.OutOrStdout()
	if format == outputFormatJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	}

	if result.Code != nil {
		fmt.Fprintf(w, "Code: %s (%s)\n", result.Code.Payload, result.Code.Symbology)
	}
	for _, line := range result.Lines {
		fmt.Fprintf(w, "Line: %s (%.2f)\n", line.Text, line.Confidence)
	}
	if result.Info != nil {
		writeGarmentInfo(w, result.Info)
	}
	if result.Garment != nil {
		fmt.Fprintf(w, "Matched garment: %s (%s)\n", result.Garment.ID, result.Garment.ProductCode)
	}
	return nil
}

func writeGarmentInfo(w io.Writer, info *extract.GarmentInfo) {
	if info.ProductCode != "" {
		fmt.Fprintf(w, "Product code: %s\n", info.ProductCode)
	}
	if info.Name != "" {
		fmt.Fprintf(w, "Name: %s\n", info.Name)
	}
	if info.Size != "" {
		fmt.Fprintf(w, "Size: %s\n", info.Size)
	}
	if info.Color != "" {
		fmt.Fprintf(w, "Color: %s\n", info.Color)
	}
	if info.Price != nil {
		fmt.Fprintf(w, "Price: %.2f\n", *info.Price)
	}
	for _, material := range sortedKeys(info.Materials) {
		fmt.Fprintf(w, "Material: %s %d%%\n", material, info.Materials[material])
	}
	for _, label := range sortedKeys(info.Measurements) {
		fmt.Fprintf(w, "Measurement: %s %s\n", label, info.Measurements[label])
	}
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func init() {
	rootCmd.AddCommand(scanCmd)

	scanCmd.Flags().Bool("code-only", false, "decode machine-readable codes only, skip the OCR fallback")
	scanCmd.Flags().String("crop", "", "crop rectangle in source pixels as x0,y0,x1,y1 (default full frame)")
	scanCmd.Flags().StringP("format", "f", "text", "output format (text, json)")
	scanCmd.Flags().String("lookup-url", "", "garment service base URL (empty runs offline)")
	scanCmd.Flags().String("lookup-token", "", "garment service API token")

	_ = viper.BindPFlag("output.format", scanCmd.Flags().Lookup("format"))
	_ = viper.BindPFlag("lookup.base_url", scanCmd.Flags().Lookup("lookup-url"))
	_ = viper.BindPFlag("lookup.api_token", scanCmd.Flags().Lookup("lookup-token"))
}
