// Package scan coordinates one tag scan attempt through its stages:
// capture, interactive crop, code detection, the OCR fallback, field
// extraction, and the lookup/submission handoff.
package scan

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"time"

	"github.com/stitchfit/tagscan/internal/barcode"
	"github.com/stitchfit/tagscan/internal/extract"
	"github.com/stitchfit/tagscan/internal/geometry"
	"github.com/stitchfit/tagscan/internal/lookup"
	"github.com/stitchfit/tagscan/internal/preprocess"
	"github.com/stitchfit/tagscan/internal/recognize"
)

// ErrInvalidTransition is returned when an operation is not legal in the
// session's current stage.
var ErrInvalidTransition = errors.New("invalid stage transition")

// ImageSource supplies a raw captured bitmap with its native pixel
// dimensions (camera or photo library collaborator).
type ImageSource interface {
	Acquire(ctx context.Context) (*preprocess.SourceImage, error)
}

// CodeDetector attempts to decode a machine-readable code. A nil code
// with nil error is the normal "not found" result.
type CodeDetector interface {
	Detect(ctx context.Context, img image.Image) (*barcode.Code, error)
}

// TextRecognizer produces recognized text lines from the working image.
type TextRecognizer interface {
	Recognize(ctx context.Context, img image.Image) ([]recognize.Line, error)
}

// GarmentService is the lookup/submission collaborator.
type GarmentService interface {
	LookupCode(ctx context.Context, payload string) (*lookup.Garment, error)
	Submit(ctx context.Context, info extract.GarmentInfo) (*lookup.Garment, error)
}

// Config holds orchestrator settings.
type Config struct {
	// WorkingWidth and WorkingHeight bound the canonical working image
	// produced from the confirmed crop (fit-within resize).
	WorkingWidth  int
	WorkingHeight int
}

// DefaultConfig returns orchestrator defaults.
func DefaultConfig() Config {
	return Config{WorkingWidth: 1024, WorkingHeight: 1024}
}

// Orchestrator wires the pipeline components and creates sessions.
type Orchestrator struct {
	cfg        Config
	source     ImageSource
	detector   CodeDetector
	recognizer TextRecognizer
	service    GarmentService
	metrics    *Metrics

	// OnTransition, when set, is invoked after every stage change. The
	// presentation layer subscribes here instead of mutating shared
	// flags. Called with the session lock released.
	OnTransition func(Stage)
}

// NewOrchestrator creates an orchestrator from its collaborators.
func NewOrchestrator(cfg Config, source ImageSource, detector CodeDetector,
	recognizer TextRecognizer, service GarmentService,
) (*Orchestrator, error) {
	if source == nil || detector == nil || recognizer == nil || service == nil {
		return nil, errors.New("all collaborators are required")
	}
	if cfg.WorkingWidth <= 0 || cfg.WorkingHeight <= 0 {
		cfg = DefaultConfig()
	}
	return &Orchestrator{
		cfg:        cfg,
		source:     source,
		detector:   detector,
		recognizer: recognizer,
		service:    service,
		metrics:    defaultMetrics,
	}, nil
}

// NewSession creates an idle session.
func (o *Orchestrator) NewSession() *Session {
	return &Session{orch: o, stage: StageIdle}
}

// Start begins a scan attempt: it cancels any attempt in flight,
// acquires a source image, and leaves the session cropping with the
// default centered region. The returned context governs the attempt and
// is canceled by Cancel or by a subsequent Start.
func (s *Session) Start(ctx context.Context) (context.Context, error) {
	s.Cancel()

	attemptCtx, cancel := context.WithCancel(ctx)

	s.mu.Lock()
	s.generation++
	gen := s.generation
	s.attemptCtx = attemptCtx
	s.cancel = cancel
	s.setStageLocked(StageCapturing)
	s.mu.Unlock()
	s.notify(StageCapturing)

	src, err := s.orch.source.Acquire(attemptCtx)
	if err != nil {
		s.fail(gen, err)
		return attemptCtx, err
	}
	if src == nil || src.Image == nil {
		err := errors.New("image source returned no image")
		s.fail(gen, err)
		return attemptCtx, err
	}

	s.mu.Lock()
	if s.generation != gen {
		s.mu.Unlock()
		return attemptCtx, context.Canceled
	}
	s.source = src
	s.crop = geometry.NewCropRegion(float64(src.NativeWidth), float64(src.NativeHeight))
	s.setStageLocked(StageCropping)
	s.mu.Unlock()
	s.notify(StageCropping)
	return attemptCtx, nil
}

// UpdateCorner applies a crop handle drag. Legal only while cropping.
func (s *Session) UpdateCorner(which geometry.Corner, p geometry.Point) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stage != StageCropping {
		return fmt.Errorf("%w: update corner in stage %s", ErrInvalidTransition, s.stage)
	}
	s.crop = s.crop.UpdateCorner(which, p)
	return nil
}

// ConfirmCrop consumes the crop region and runs the attempt to a
// terminal stage: preprocess, code detection, then either the code-path
// lookup or the OCR fallback with field extraction and submission.
// scaleFactor converts the crop region's display-space coordinates into
// source pixel space and must come from the actually rendered image
// frame. The work runs under the attempt context created by Start, so
// Cancel interrupts in-flight detection, recognition, and network calls
// no matter what context the caller passes here. A canceled attempt
// returns the session to Idle and reports context.Canceled.
func (s *Session) ConfirmCrop(ctx context.Context, scaleFactor float64) error {
	s.mu.Lock()
	if s.stage != StageCropping {
		s.mu.Unlock()
		return fmt.Errorf("%w: confirm crop in stage %s", ErrInvalidTransition, s.stage)
	}
	gen := s.generation
	region := s.crop
	src := s.source
	if s.attemptCtx != nil {
		ctx = s.attemptCtx
	}
	s.mu.Unlock()

	working, err := s.prepareWorkingImage(src, region, scaleFactor)
	if err != nil {
		s.fail(gen, err)
		return err
	}
	if !s.advance(gen, StageDetecting, func(s *Session) { s.working = working }) {
		return context.Canceled
	}

	code, err := s.detect(ctx, gen, working)
	if err != nil {
		return err
	}
	if code != nil {
		return s.runCodePath(ctx, gen, code)
	}
	return s.runTextPath(ctx, gen, working)
}

func (s *Session) prepareWorkingImage(src *preprocess.SourceImage,
	region geometry.CropRegion, scaleFactor float64,
) (image.Image, error) {
	start := time.Now()
	cropped, err := preprocess.Crop(src.Image, region, scaleFactor)
	if err != nil {
		return nil, err
	}
	working, err := preprocess.Resize(cropped, s.orch.cfg.WorkingWidth, s.orch.cfg.WorkingHeight)
	if err != nil {
		return nil, err
	}
	s.orch.metrics.observeStage("preprocess", time.Since(start))
	return working, nil
}

// detect runs code detection. It returns (nil, nil) for the normal
// negative result; any error has already moved the session to its
// terminal or idle stage.
func (s *Session) detect(ctx context.Context, gen int, working image.Image) (*barcode.Code, error) {
	start := time.Now()
	code, err := s.orch.detector.Detect(ctx, working)
	s.orch.metrics.observeStage("detect", time.Since(start))
	if err != nil {
		// A hard detector failure must not fall through to OCR; only
		// the "not found" result does.
		return nil, s.failOrCancel(ctx, gen, err)
	}
	return code, nil
}

func (s *Session) runCodePath(ctx context.Context, gen int, code *barcode.Code) error {
	if !s.advance(gen, StageFound, func(s *Session) {
		s.result = RecognitionResult{Kind: ResultCode, Code: code}
	}) {
		return context.Canceled
	}
	slog.Debug("code decoded", "symbology", code.Symbology.String())

	start := time.Now()
	garment, err := s.orch.service.LookupCode(ctx, code.Payload)
	s.orch.metrics.observeStage("lookup", time.Since(start))
	if err != nil {
		return s.failOrCancel(ctx, gen, err)
	}
	if !s.advance(gen, StageReady, func(s *Session) { s.garment = garment }) {
		return context.Canceled
	}
	s.orch.metrics.countAttempt("code", "ready")
	return nil
}

func (s *Session) runTextPath(ctx context.Context, gen int, working image.Image) error {
	if !s.advance(gen, StageFallbackOCR, nil) {
		return context.Canceled
	}

	start := time.Now()
	lines, err := s.orch.recognizer.Recognize(ctx, working)
	s.orch.metrics.observeStage("recognize", time.Since(start))
	if err != nil {
		return s.failOrCancel(ctx, gen, err)
	}
	if !s.advance(gen, StageParsing, func(s *Session) {
		s.result = RecognitionResult{Kind: ResultText, Lines: lines}
	}) {
		return context.Canceled
	}

	texts := make([]string, len(lines))
	for i, l := range lines {
		texts[i] = l.Text
	}
	info, err := extract.Extract(texts)
	if err != nil {
		return s.failOrCancel(ctx, gen, err)
	}
	if !s.commit(gen, func(s *Session) { s.info = &info }) {
		return context.Canceled
	}

	start = time.Now()
	garment, err := s.orch.service.Submit(ctx, info)
	s.orch.metrics.observeStage("submit", time.Since(start))
	if err != nil {
		// The extracted record stays on the session so a submission
		// retry does not require re-scanning.
		return s.failOrCancel(ctx, gen, err)
	}
	if !s.advance(gen, StageReady, func(s *Session) { s.garment = garment }) {
		return context.Canceled
	}
	s.orch.metrics.countAttempt("text", "ready")
	return nil
}

// RetrySubmit retries the submission of an already-extracted record
// after a network failure, without re-capturing or re-parsing. Like
// ConfirmCrop, it runs under the attempt context so Cancel propagates.
func (s *Session) RetrySubmit(ctx context.Context) error {
	s.mu.Lock()
	if s.stage != StageFailed || s.info == nil {
		s.mu.Unlock()
		return fmt.Errorf("%w: retry submit in stage %s", ErrInvalidTransition, s.stage)
	}
	var nerr *lookup.NetworkError
	if !errors.As(s.err, &nerr) {
		s.mu.Unlock()
		return fmt.Errorf("%w: retry submit after non-network failure", ErrInvalidTransition)
	}
	gen := s.generation
	info := *s.info
	if s.attemptCtx != nil {
		ctx = s.attemptCtx
	}
	s.err = nil
	s.setStageLocked(StageParsing)
	s.mu.Unlock()
	s.notify(StageParsing)

	garment, err := s.orch.service.Submit(ctx, info)
	if err != nil {
		return s.failOrCancel(ctx, gen, err)
	}
	if !s.advance(gen, StageReady, func(s *Session) { s.garment = garment }) {
		return context.Canceled
	}
	s.orch.metrics.countAttempt("text", "ready")
	return nil
}

// Cancel stops any in-flight work and returns the session to Idle,
// discarding partial state. Safe to call in any stage; late results
// from the canceled attempt are dropped.
func (s *Session) Cancel() {
	s.mu.Lock()
	cancel := s.cancel
	s.cancel = nil
	s.generation++
	changed := s.stage != StageIdle
	s.resetLocked()
	s.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if changed {
		s.notify(StageIdle)
	}
}

// Reset returns a terminal session to Idle for a retry.
func (s *Session) Reset() error {
	s.mu.Lock()
	if !s.stage.Terminal() {
		s.mu.Unlock()
		return fmt.Errorf("%w: reset in stage %s", ErrInvalidTransition, s.stage)
	}
	s.generation++
	s.resetLocked()
	s.mu.Unlock()
	s.notify(StageIdle)
	return nil
}

// advance commits a stage transition for the given attempt generation.
// It refuses when the attempt was canceled or superseded, which is how
// late-arriving results are discarded instead of mutating a session that
// moved on.
func (s *Session) advance(gen int, st Stage, mutate func(*Session)) bool {
	s.mu.Lock()
	if s.generation != gen {
		s.mu.Unlock()
		return false
	}
	if mutate != nil {
		mutate(s)
	}
	s.setStageLocked(st)
	s.mu.Unlock()
	s.notify(st)
	return true
}

// commit applies a state mutation for the given generation without a
// stage change, refusing when the attempt was canceled or superseded.
func (s *Session) commit(gen int, mutate func(*Session)) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.generation != gen {
		return false
	}
	mutate(s)
	return true
}

// failOrCancel routes an error either to cancellation (session already
// back at Idle, or moving there) or to the Failed terminal stage.
func (s *Session) failOrCancel(ctx context.Context, gen int, err error) error {
	if ctx.Err() != nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return context.Canceled
	}
	s.fail(gen, err)
	return err
}

func (s *Session) fail(gen int, err error) {
	s.mu.Lock()
	if s.generation != gen {
		s.mu.Unlock()
		return
	}
	s.err = err
	s.setStageLocked(StageFailed)
	s.mu.Unlock()
	s.notify(StageFailed)
	s.orch.metrics.countFailure(kindOf(err))
	slog.Debug("scan attempt failed", "error", err)
}

func (s *Session) resetLocked() {
	s.stage = StageIdle
	s.attemptCtx = nil
	s.source = nil
	s.working = nil
	s.crop = geometry.CropRegion{}
	s.result = RecognitionResult{}
	s.info = nil
	s.garment = nil
	s.err = nil
}

func (s *Session) setStageLocked(st Stage) {
	s.stage = st
}

func (s *Session) notify(st Stage) {
	if s.orch.OnTransition != nil {
		s.orch.OnTransition(st)
	}
}

// kindOf maps an error to its taxonomy label for metrics.
func kindOf(err error) string {
	var perr *preprocess.PreprocessError
	var derr *barcode.DetectionError
	var rerr *recognize.RecognitionError
	var xerr *extract.ParseError
	var nerr *lookup.NetworkError
	switch {
	case errors.As(err, &perr):
		return "preprocess"
	case errors.As(err, &derr):
		return "detection"
	case errors.As(err, &rerr):
		return "recognition"
	case errors.As(err, &xerr):
		return "parse"
	case errors.As(err, &nerr):
		return "network"
	default:
		return "other"
	}
}
