// Package recognize implements the optical text recognition fallback:
// line segmentation over a binarized tag image followed by per-line CTC
// recognition with an ONNX model.
package recognize

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"sync"

	onnxrt "github.com/yalue/onnxruntime_go"

	"github.com/stitchfit/tagscan/internal/models"
)

// Line is one recognized text line in reading order.
type Line struct {
	Text       string
	Confidence float64
}

// RecognitionError reports a hard failure running text recognition.
// Zero recognized lines is a valid result, not an error.
type RecognitionError struct {
	Err error
}

func (e *RecognitionError) Error() string {
	return fmt.Sprintf("text recognition error: %v", e.Err)
}

func (e *RecognitionError) Unwrap() error { return e.Err }

// Config holds configuration for the text recognizer.
type Config struct {
	ModelPath   string // Path to ONNX recognition model
	DictPath    string // Path to character dictionary
	ImageHeight int    // Model input height (e.g. 48)
	MaxWidth    int    // Optional max line width clamp (0 = no clamp)
	NumThreads  int    // Number of CPU threads (0 for default)
	Language    string // Optional language for correction rules
}

// DefaultConfig returns a default recognizer configuration tuned for
// accuracy over speed with language correction enabled.
func DefaultConfig() Config {
	return Config{
		ModelPath:   models.GetRecognitionModelPath(""),
		DictPath:    models.GetDictionaryPath(""),
		ImageHeight: 48,
		MaxWidth:    0,
		NumThreads:  0,
		Language:    "en",
	}
}

// UpdateModelPath updates ModelPath and DictPath for the given models dir.
func (c *Config) UpdateModelPath(modelsDir string) {
	c.ModelPath = models.GetRecognitionModelPath(modelsDir)
	c.DictPath = models.GetDictionaryPath(modelsDir)
}

// Recognizer performs text recognition using ONNX Runtime.
type Recognizer struct {
	config  Config
	session *onnxrt.DynamicAdvancedSession
	charset *Charset
	mu      sync.RWMutex
}

// NewRecognizer creates a text recognizer with the given configuration.
func NewRecognizer(config Config) (*Recognizer, error) {
	if config.ModelPath == "" {
		return nil, &RecognitionError{Err: errors.New("model path cannot be empty")}
	}
	if config.DictPath == "" {
		return nil, &RecognitionError{Err: errors.New("dictionary path cannot be empty")}
	}
	if _, err := os.Stat(config.ModelPath); os.IsNotExist(err) {
		return nil, &RecognitionError{Err: fmt.Errorf("model file not found: %s", config.ModelPath)}
	}
	if _, err := os.Stat(config.DictPath); os.IsNotExist(err) {
		return nil, &RecognitionError{Err: fmt.Errorf("dictionary file not found: %s", config.DictPath)}
	}
	if config.ImageHeight <= 0 {
		config.ImageHeight = 48
	}

	charset, err := LoadCharset(config.DictPath)
	if err != nil {
		return nil, &RecognitionError{Err: err}
	}
	slog.Debug("Dictionary loaded", "charset_size", charset.Size())

	if err := setONNXLibraryPath(); err != nil {
		return nil, &RecognitionError{Err: fmt.Errorf("set ONNX Runtime library path: %w", err)}
	}
	if !onnxrt.IsInitialized() {
		if err := onnxrt.InitializeEnvironment(); err != nil {
			return nil, &RecognitionError{Err: fmt.Errorf("initialize ONNX Runtime: %w", err)}
		}
	}

	inputs, outputs, err := onnxrt.GetInputOutputInfo(config.ModelPath)
	if err != nil {
		return nil, &RecognitionError{Err: fmt.Errorf("get model input/output info: %w", err)}
	}
	if len(inputs) != 1 {
		return nil, &RecognitionError{Err: fmt.Errorf("expected 1 input, got %d", len(inputs))}
	}
	if len(outputs) != 1 {
		return nil, &RecognitionError{Err: fmt.Errorf("expected 1 output, got %d", len(outputs))}
	}
	// Adopt the model's fixed input height when it declares one.
	if len(inputs[0].Dimensions) == 4 {
		if h := inputs[0].Dimensions[2]; h > 0 {
			config.ImageHeight = int(h)
		}
	}

	sessionOptions, err := onnxrt.NewSessionOptions()
	if err != nil {
		return nil, &RecognitionError{Err: fmt.Errorf("create session options: %w", err)}
	}
	defer func() {
		if err := sessionOptions.Destroy(); err != nil {
			fmt.Fprintf(os.Stderr, "Error destroying session options: %v\n", err)
		}
	}()
	if config.NumThreads > 0 {
		if err := sessionOptions.SetIntraOpNumThreads(config.NumThreads); err != nil {
			return nil, &RecognitionError{Err: fmt.Errorf("set thread count: %w", err)}
		}
	}

	session, err := onnxrt.NewDynamicAdvancedSession(
		config.ModelPath,
		[]string{inputs[0].Name},
		[]string{outputs[0].Name},
		sessionOptions,
	)
	if err != nil {
		return nil, &RecognitionError{Err: fmt.Errorf("create ONNX session: %w", err)}
	}

	return &Recognizer{config: config, session: session, charset: charset}, nil
}

// Close releases the model session.
func (r *Recognizer) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.session != nil {
		if err := r.session.Destroy(); err != nil {
			fmt.Fprintf(os.Stderr, "Error destroying session: %v\n", err)
		}
		r.session = nil
	}
	return nil
}

// Recognize segments the image into text lines and recognizes each one,
// returning lines in top-to-bottom order with per-line confidence.
// An image with no text yields an empty slice and no error.
func (r *Recognizer) Recognize(ctx context.Context, img image.Image) ([]Line, error) {
	if img == nil {
		return nil, &RecognitionError{Err: errors.New("input image is nil")}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	boxes := SegmentLines(img)
	lines := make([]Line, 0, len(boxes))
	for _, box := range boxes {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		line, err := r.recognizeLine(img, box)
		if err != nil {
			return nil, err
		}
		if line.Text == "" {
			continue
		}
		lines = append(lines, line)
	}
	return lines, nil
}

func (r *Recognizer) recognizeLine(img image.Image, box image.Rectangle) (Line, error) {
	patch := cropLine(img, box)

	tensor, width, err := NormalizeForRecognition(patch, r.config.ImageHeight, r.config.MaxWidth)
	if err != nil {
		return Line{}, &RecognitionError{Err: fmt.Errorf("normalize line: %w", err)}
	}
	if width == 0 {
		return Line{}, nil
	}

	data, shape, cleanup, err := r.runInference(tensor)
	if err != nil {
		return Line{}, err
	}
	defer cleanup()

	text, confidence := DecodeGreedy(data, shape, r.charset)
	text = CleanLine(text, r.config.Language)
	return Line{Text: text, Confidence: confidence}, nil
}

func (r *Recognizer) runInference(t Tensor) (data []float32, shape []int64, cleanup func(), err error) {
	r.mu.RLock()
	session := r.session
	r.mu.RUnlock()
	if session == nil {
		return nil, nil, nil, &RecognitionError{Err: errors.New("recognizer session is nil")}
	}

	inputTensor, err := onnxrt.NewTensor(onnxrt.NewShape(t.Shape...), t.Data)
	if err != nil {
		return nil, nil, nil, &RecognitionError{Err: fmt.Errorf("create input tensor: %w", err)}
	}
	defer func() { _ = inputTensor.Destroy() }()

	outputs := []onnxrt.Value{nil}
	if err := session.Run([]onnxrt.Value{inputTensor}, outputs); err != nil {
		return nil, nil, nil, &RecognitionError{Err: fmt.Errorf("inference failed: %w", err)}
	}

	outTensor, ok := outputs[0].(*onnxrt.Tensor[float32])
	if !ok {
		for _, o := range outputs {
			if o != nil {
				_ = o.Destroy()
			}
		}
		return nil, nil, nil, &RecognitionError{Err: fmt.Errorf("expected float32 tensor, got %T", outputs[0])}
	}

	cleanup = func() {
		for _, o := range outputs {
			if o != nil {
				_ = o.Destroy()
			}
		}
	}
	return outTensor.GetData(), outTensor.GetShape(), cleanup, nil
}

// setONNXLibraryPath sets the onnxruntime shared library path from
// common locations.
func setONNXLibraryPath() error {
	if path := findSystemLibraryPath(); path != "" {
		onnxrt.SetSharedLibraryPath(path)
		return nil
	}
	root, err := findProjectRoot()
	if err != nil {
		return err
	}
	libName, err := getLibraryName()
	if err != nil {
		return err
	}
	libPath := filepath.Join(root, "onnxruntime", "lib", libName)
	if _, err := os.Stat(libPath); err != nil {
		return fmt.Errorf("onnxruntime library not found at %s", libPath)
	}
	onnxrt.SetSharedLibraryPath(libPath)
	return nil
}

func findSystemLibraryPath() string {
	systemPaths := []string{
		"/usr/local/lib/libonnxruntime.so",
		"/usr/lib/libonnxruntime.so",
		"/opt/onnxruntime/cpu/lib/libonnxruntime.so",
	}
	for _, p := range systemPaths {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}

func findProjectRoot() (string, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("failed to get current directory: %w", err)
	}
	root := cwd
	for {
		if _, err := os.Stat(filepath.Join(root, "go.mod")); err == nil {
			return root, nil
		}
		parent := filepath.Dir(root)
		if parent == root {
			return "", errors.New("could not find project root")
		}
		root = parent
	}
}

func getLibraryName() (string, error) {
	switch runtime.GOOS {
	case "linux":
		return "libonnxruntime.so", nil
	case "darwin":
		return "libonnxruntime.dylib", nil
	case "windows":
		return "onnxruntime.dll", nil
	default:
		return "", fmt.Errorf("unsupported platform: %s", runtime.GOOS)
	}
}
