package scan

import (
	"context"
	"image"
	"sync"

	"github.com/stitchfit/tagscan/internal/barcode"
	"github.com/stitchfit/tagscan/internal/extract"
	"github.com/stitchfit/tagscan/internal/geometry"
	"github.com/stitchfit/tagscan/internal/lookup"
	"github.com/stitchfit/tagscan/internal/preprocess"
	"github.com/stitchfit/tagscan/internal/recognize"
)

// Stage is the orchestration state of one scan attempt.
type Stage int

const (
	StageIdle Stage = iota
	StageCapturing
	StageCropping
	StageDetecting
	StageFound
	StageFallbackOCR
	StageParsing
	StageReady
	StageFailed
)

func (s Stage) String() string {
	switch s {
	case StageIdle:
		return "idle"
	case StageCapturing:
		return "capturing"
	case StageCropping:
		return "cropping"
	case StageDetecting:
		return "detecting"
	case StageFound:
		return "found"
	case StageFallbackOCR:
		return "fallback-ocr"
	case StageParsing:
		return "parsing"
	case StageReady:
		return "ready"
	case StageFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Terminal reports whether the stage ends a scan attempt.
func (s Stage) Terminal() bool { return s == StageReady || s == StageFailed }

// ResultKind discriminates the recognition result union.
type ResultKind int

const (
	ResultNone ResultKind = iota
	ResultCode
	ResultText
)

// RecognitionResult is the tagged outcome of the detection stage: either
// a decoded machine-readable code or recognized text lines, never both.
// It is owned by the session for the duration of one attempt.
type RecognitionResult struct {
	Kind  ResultKind
	Code  *barcode.Code
	Lines []recognize.Line
}

// Session holds the state of one scan. It owns its working image and
// result slots exclusively; no data is shared across sessions. A session
// runs at most one attempt at a time; starting a new capture cancels the
// previous attempt.
type Session struct {
	orch *Orchestrator

	mu         sync.Mutex
	stage      Stage
	generation int
	attemptCtx context.Context
	cancel     context.CancelFunc

	crop    geometry.CropRegion
	source  *preprocess.SourceImage
	working image.Image
	result  RecognitionResult
	info    *extract.GarmentInfo
	garment *lookup.Garment
	err     error
}

// Stage returns the current orchestration stage.
func (s *Session) Stage() Stage {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stage
}

// Crop returns the current crop region. Only meaningful while cropping.
func (s *Session) Crop() geometry.CropRegion {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.crop
}

// Result returns the recognition result of the current attempt.
func (s *Session) Result() RecognitionResult {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.result
}

// Info returns the extracted record, or nil when no text path completed.
// After a submission failure the record remains available so the caller
// can retry without re-scanning.
func (s *Session) Info() *extract.GarmentInfo {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.info
}

// Garment returns the resolved garment once the session is Ready.
func (s *Session) Garment() *lookup.Garment {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.garment
}

// Err returns the failure of the current attempt, nil unless Failed.
func (s *Session) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}
