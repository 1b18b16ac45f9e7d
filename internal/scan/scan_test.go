package scan

import (
	"context"
	"errors"
	"image"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stitchfit/tagscan/internal/barcode"
	"github.com/stitchfit/tagscan/internal/extract"
	"github.com/stitchfit/tagscan/internal/geometry"
	"github.com/stitchfit/tagscan/internal/lookup"
	"github.com/stitchfit/tagscan/internal/preprocess"
	"github.com/stitchfit/tagscan/internal/recognize"
)

type fakeSource struct {
	img *preprocess.SourceImage
	err error
}

func (f *fakeSource) Acquire(ctx context.Context) (*preprocess.SourceImage, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.img, nil
}

type fakeDetector struct {
	calls int32
	code  *barcode.Code
	err   error
}

func (f *fakeDetector) Detect(ctx context.Context, img image.Image) (*barcode.Code, error) {
	atomic.AddInt32(&f.calls, 1)
	return f.code, f.err
}

type fakeRecognizer struct {
	calls int32
	lines []recognize.Line
	err   error

	// When set, Recognize signals started and then blocks until the
	// context is canceled.
	block   bool
	started chan struct{}
}

func (f *fakeRecognizer) Recognize(ctx context.Context, img image.Image) ([]recognize.Line, error) {
	atomic.AddInt32(&f.calls, 1)
	if f.block {
		close(f.started)
		<-ctx.Done()
		return nil, ctx.Err()
	}
	return f.lines, f.err
}

type fakeService struct {
	lookupCalls int32
	submitCalls int32

	lookupPayload string
	lookupGarment *lookup.Garment
	lookupErr     error

	submitInfo    extract.GarmentInfo
	submitGarment *lookup.Garment
	submitErr     error
}

func (f *fakeService) LookupCode(ctx context.Context, payload string) (*lookup.Garment, error) {
	atomic.AddInt32(&f.lookupCalls, 1)
	f.lookupPayload = payload
	return f.lookupGarment, f.lookupErr
}

func (f *fakeService) Submit(ctx context.Context, info extract.GarmentInfo) (*lookup.Garment, error) {
	atomic.AddInt32(&f.submitCalls, 1)
	f.submitInfo = info
	return f.submitGarment, f.submitErr
}

func testSourceImage(t *testing.T) *preprocess.SourceImage {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 400, 400))
	return &preprocess.SourceImage{Image: img, NativeWidth: 400, NativeHeight: 400}
}

func newTestSession(t *testing.T, det *fakeDetector, rec *fakeRecognizer, svc *fakeService) *Session {
	t.Helper()
	src := &fakeSource{img: testSourceImage(t)}
	orch, err := NewOrchestrator(DefaultConfig(), src, det, rec, svc)
	require.NoError(t, err)
	return orch.NewSession()
}

func startCropping(t *testing.T, s *Session) context.Context {
	t.Helper()
	ctx, err := s.Start(context.Background())
	require.NoError(t, err)
	require.Equal(t, StageCropping, s.Stage())
	return ctx
}

func TestNewOrchestratorRequiresCollaborators(t *testing.T) {
	src := &fakeSource{img: testSourceImage(t)}
	det := &fakeDetector{}
	rec := &fakeRecognizer{}
	svc := &fakeService{}

	_, err := NewOrchestrator(DefaultConfig(), nil, det, rec, svc)
	assert.Error(t, err)
	_, err = NewOrchestrator(DefaultConfig(), src, nil, rec, svc)
	assert.Error(t, err)
	_, err = NewOrchestrator(DefaultConfig(), src, det, nil, svc)
	assert.Error(t, err)
	_, err = NewOrchestrator(DefaultConfig(), src, det, rec, nil)
	assert.Error(t, err)
}

func TestCodePathSkipsRecognizer(t *testing.T) {
	det := &fakeDetector{code: &barcode.Code{Symbology: barcode.FormatEAN13, Payload: "4006381333931"}}
	rec := &fakeRecognizer{}
	svc := &fakeService{lookupGarment: &lookup.Garment{ID: "g-1", ProductCode: "4006381333931"}}
	s := newTestSession(t, det, rec, svc)

	startCropping(t, s)
	require.NoError(t, s.ConfirmCrop(context.Background(), 1.0))

	assert.Equal(t, StageReady, s.Stage())
	assert.EqualValues(t, 1, atomic.LoadInt32(&det.calls))
	assert.EqualValues(t, 0, atomic.LoadInt32(&rec.calls), "recognizer must not run when a code was decoded")
	assert.EqualValues(t, 1, atomic.LoadInt32(&svc.lookupCalls))
	assert.EqualValues(t, 0, atomic.LoadInt32(&svc.submitCalls))
	assert.Equal(t, "4006381333931", svc.lookupPayload)

	res := s.Result()
	assert.Equal(t, ResultCode, res.Kind)
	require.NotNil(t, res.Code)
	assert.Equal(t, barcode.FormatEAN13, res.Code.Symbology)
	assert.Nil(t, s.Info(), "code path bypasses field extraction")
	require.NotNil(t, s.Garment())
	assert.Equal(t, "g-1", s.Garment().ID)
}

func TestCodePathUnknownCode(t *testing.T) {
	det := &fakeDetector{code: &barcode.Code{Symbology: barcode.FormatQR, Payload: "no-such"}}
	svc := &fakeService{} // lookup returns nil, nil
	s := newTestSession(t, det, &fakeRecognizer{}, svc)

	startCropping(t, s)
	require.NoError(t, s.ConfirmCrop(context.Background(), 1.0))

	assert.Equal(t, StageReady, s.Stage())
	assert.Nil(t, s.Garment())
	res := s.Result()
	assert.Equal(t, ResultCode, res.Kind)
}

func TestTextPathHappyFlow(t *testing.T) {
	det := &fakeDetector{} // no code found
	rec := &fakeRecognizer{lines: []recognize.Line{
		{Text: "HT00189FT-US", Confidence: 0.97},
		{Text: "WOOL KNIT SWEATER", Confidence: 0.93},
		{Text: "M", Confidence: 0.99},
	}}
	svc := &fakeService{submitGarment: &lookup.Garment{ID: "g-2", ProductCode: "HT00189FT-US"}}
	src := &fakeSource{img: testSourceImage(t)}
	orch, err := NewOrchestrator(DefaultConfig(), src, det, rec, svc)
	require.NoError(t, err)

	var mu sync.Mutex
	var stages []Stage
	orch.OnTransition = func(st Stage) {
		mu.Lock()
		stages = append(stages, st)
		mu.Unlock()
	}
	s := orch.NewSession()

	startCropping(t, s)
	require.NoError(t, s.ConfirmCrop(context.Background(), 1.0))

	assert.Equal(t, StageReady, s.Stage())
	assert.EqualValues(t, 1, atomic.LoadInt32(&rec.calls))
	assert.EqualValues(t, 1, atomic.LoadInt32(&svc.submitCalls))
	assert.EqualValues(t, 0, atomic.LoadInt32(&svc.lookupCalls))

	require.NotNil(t, s.Info())
	assert.Equal(t, "HT00189FT-US", s.Info().ProductCode)
	assert.Equal(t, "M", s.Info().Size)
	assert.Equal(t, "HT00189FT-US", svc.submitInfo.ProductCode)

	res := s.Result()
	assert.Equal(t, ResultText, res.Kind)
	assert.Len(t, res.Lines, 3)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []Stage{
		StageCapturing, StageCropping, StageDetecting,
		StageFallbackOCR, StageParsing, StageReady,
	}, stages)
}

func TestTextPathZeroLines(t *testing.T) {
	// Zero recognized lines is a valid outcome: extraction yields an
	// empty record which still gets submitted.
	rec := &fakeRecognizer{lines: []recognize.Line{}}
	svc := &fakeService{submitGarment: &lookup.Garment{ID: "g-3"}}
	s := newTestSession(t, &fakeDetector{}, rec, svc)

	startCropping(t, s)
	require.NoError(t, s.ConfirmCrop(context.Background(), 1.0))

	assert.Equal(t, StageReady, s.Stage())
	require.NotNil(t, s.Info())
	assert.True(t, s.Info().IsEmpty())
}

func TestDetectorFailureDoesNotFallBackToOCR(t *testing.T) {
	det := &fakeDetector{err: &barcode.DetectionError{Err: errors.New("decoder panic")}}
	rec := &fakeRecognizer{}
	s := newTestSession(t, det, rec, &fakeService{})

	startCropping(t, s)
	err := s.ConfirmCrop(context.Background(), 1.0)
	require.Error(t, err)

	assert.Equal(t, StageFailed, s.Stage())
	assert.EqualValues(t, 0, atomic.LoadInt32(&rec.calls))
	var derr *barcode.DetectionError
	assert.ErrorAs(t, s.Err(), &derr)
}

func TestCancelDuringFallbackOCR(t *testing.T) {
	rec := &fakeRecognizer{block: true, started: make(chan struct{})}
	svc := &fakeService{}
	s := newTestSession(t, &fakeDetector{}, rec, svc)

	ctx := startCropping(t, s)

	done := make(chan error, 1)
	go func() {
		done <- s.ConfirmCrop(ctx, 1.0)
	}()

	select {
	case <-rec.started:
	case <-time.After(2 * time.Second):
		t.Fatal("recognizer never started")
	}
	s.Cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("confirm crop did not return after cancel")
	}

	assert.Equal(t, StageIdle, s.Stage())
	assert.Nil(t, s.Info(), "canceled attempt must not commit an extracted record")
	assert.Equal(t, ResultNone, s.Result().Kind)
	assert.EqualValues(t, 0, atomic.LoadInt32(&svc.submitCalls))
}

func TestCancelPropagatesWithCallerContext(t *testing.T) {
	// The attempt runs under the context created by Start, so Cancel
	// interrupts in-flight work even when the caller hands ConfirmCrop
	// an unrelated context.
	rec := &fakeRecognizer{block: true, started: make(chan struct{})}
	s := newTestSession(t, &fakeDetector{}, rec, &fakeService{})

	startCropping(t, s)

	done := make(chan error, 1)
	go func() {
		done <- s.ConfirmCrop(context.Background(), 1.0)
	}()

	select {
	case <-rec.started:
	case <-time.After(2 * time.Second):
		t.Fatal("recognizer never started")
	}
	s.Cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("confirm crop did not return after cancel")
	}
	assert.Equal(t, StageIdle, s.Stage())
}

func TestStartSupersedesPriorAttempt(t *testing.T) {
	rec := &fakeRecognizer{block: true, started: make(chan struct{})}
	s := newTestSession(t, &fakeDetector{}, rec, &fakeService{})

	ctx := startCropping(t, s)
	done := make(chan error, 1)
	go func() {
		done <- s.ConfirmCrop(ctx, 1.0)
	}()
	<-rec.started

	// A new Start cancels the in-flight attempt; its late result must
	// not disturb the fresh session state.
	_, err := s.Start(context.Background())
	require.NoError(t, err)

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("superseded attempt did not return")
	}
	assert.Equal(t, StageCropping, s.Stage())
	assert.Nil(t, s.Info())
}

func TestRetrySubmitAfterNetworkError(t *testing.T) {
	rec := &fakeRecognizer{lines: []recognize.Line{{Text: "S202-4575", Confidence: 0.9}}}
	svc := &fakeService{submitErr: &lookup.NetworkError{StatusCode: 503, Err: errors.New("service unavailable")}}
	s := newTestSession(t, &fakeDetector{}, rec, svc)

	startCropping(t, s)
	err := s.ConfirmCrop(context.Background(), 1.0)
	require.Error(t, err)

	assert.Equal(t, StageFailed, s.Stage())
	require.NotNil(t, s.Info(), "extracted record must survive a submission failure")
	assert.Equal(t, "S202-4575", s.Info().ProductCode)

	svc.submitErr = nil
	svc.submitGarment = &lookup.Garment{ID: "g-4", ProductCode: "S202-4575"}
	require.NoError(t, s.RetrySubmit(context.Background()))

	assert.Equal(t, StageReady, s.Stage())
	require.NotNil(t, s.Garment())
	assert.Equal(t, "g-4", s.Garment().ID)
	assert.EqualValues(t, 2, atomic.LoadInt32(&svc.submitCalls))
	assert.EqualValues(t, 1, atomic.LoadInt32(&rec.calls), "retry must not re-run recognition")
}

func TestRetrySubmitRequiresNetworkFailure(t *testing.T) {
	rec := &fakeRecognizer{err: &recognize.RecognitionError{Err: errors.New("inference failed")}}
	s := newTestSession(t, &fakeDetector{}, rec, &fakeService{})

	startCropping(t, s)
	require.Error(t, s.ConfirmCrop(context.Background(), 1.0))
	require.Equal(t, StageFailed, s.Stage())

	err := s.RetrySubmit(context.Background())
	assert.ErrorIs(t, err, ErrInvalidTransition)
}

func TestInvalidTransitions(t *testing.T) {
	s := newTestSession(t, &fakeDetector{}, &fakeRecognizer{}, &fakeService{})

	assert.ErrorIs(t, s.UpdateCorner(geometry.TopLeft, geometry.Point{X: 0, Y: 0}), ErrInvalidTransition)
	assert.ErrorIs(t, s.ConfirmCrop(context.Background(), 1.0), ErrInvalidTransition)
	assert.ErrorIs(t, s.RetrySubmit(context.Background()), ErrInvalidTransition)
	assert.ErrorIs(t, s.Reset(), ErrInvalidTransition)
}

func TestUpdateCornerWhileCropping(t *testing.T) {
	s := newTestSession(t, &fakeDetector{}, &fakeRecognizer{}, &fakeService{})
	startCropping(t, s)

	before := s.Crop().BoundingRect()
	require.NoError(t, s.UpdateCorner(geometry.TopLeft, geometry.Point{X: before.MinX + 20, Y: before.MinY + 20}))
	after := s.Crop().BoundingRect()
	assert.InDelta(t, before.MinX+20, after.MinX, 1e-9)
	assert.InDelta(t, before.MinY+20, after.MinY, 1e-9)
}

func TestResetAfterTerminal(t *testing.T) {
	det := &fakeDetector{code: &barcode.Code{Symbology: barcode.FormatQR, Payload: "p"}}
	svc := &fakeService{lookupGarment: &lookup.Garment{ID: "g-5"}}
	s := newTestSession(t, det, &fakeRecognizer{}, svc)

	startCropping(t, s)
	require.NoError(t, s.ConfirmCrop(context.Background(), 1.0))
	require.Equal(t, StageReady, s.Stage())

	require.NoError(t, s.Reset())
	assert.Equal(t, StageIdle, s.Stage())
	assert.Nil(t, s.Garment())
	assert.Equal(t, ResultNone, s.Result().Kind)
}

func TestCropErrorSurfacedNotClamped(t *testing.T) {
	s := newTestSession(t, &fakeDetector{}, &fakeRecognizer{}, &fakeService{})
	startCropping(t, s)

	// A scale factor that maps the region outside the source bitmap
	// must surface a preprocess error rather than silently clamping.
	err := s.ConfirmCrop(context.Background(), 100.0)
	require.Error(t, err)
	var perr *preprocess.PreprocessError
	assert.ErrorAs(t, err, &perr)
	assert.Equal(t, StageFailed, s.Stage())
}

func TestStageString(t *testing.T) {
	tests := []struct {
		stage Stage
		want  string
	}{
		{StageIdle, "idle"},
		{StageCapturing, "capturing"},
		{StageCropping, "cropping"},
		{StageDetecting, "detecting"},
		{StageFound, "found"},
		{StageFallbackOCR, "fallback-ocr"},
		{StageParsing, "parsing"},
		{StageReady, "ready"},
		{StageFailed, "failed"},
		{Stage(99), "unknown"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.stage.String())
	}
}
