package config

import (
	"fmt"
	"strings"

	"github.com/stitchfit/tagscan/internal/barcode"
	"github.com/stitchfit/tagscan/internal/models"
	"github.com/stitchfit/tagscan/internal/recognize"
	"github.com/stitchfit/tagscan/internal/scan"
)

// Config represents the complete configuration for the tagscan
// application. It supports loading from configuration files, environment
// variables, and command-line flags.
type Config struct {
	// Global settings
	ModelsDir string `mapstructure:"models_dir" yaml:"models_dir" json:"models_dir"`
	LogLevel  string `mapstructure:"log_level" yaml:"log_level" json:"log_level"`
	Verbose   bool   `mapstructure:"verbose" yaml:"verbose" json:"verbose"`

	// Scan pipeline settings
	Scan ScanConfig `mapstructure:"scan" yaml:"scan" json:"scan"`

	// Text recognition settings
	Recognizer RecognizerConfig `mapstructure:"recognizer" yaml:"recognizer" json:"recognizer"`

	// Code detection settings
	Barcode BarcodeConfig `mapstructure:"barcode" yaml:"barcode" json:"barcode"`

	// Garment lookup service settings
	Lookup LookupConfig `mapstructure:"lookup" yaml:"lookup" json:"lookup"`

	// Output settings
	Output OutputConfig `mapstructure:"output" yaml:"output" json:"output"`
}

// ScanConfig contains scan session settings.
type ScanConfig struct {
	WorkingWidth  int `mapstructure:"working_width" yaml:"working_width" json:"working_width"`
	WorkingHeight int `mapstructure:"working_height" yaml:"working_height" json:"working_height"`
}

// RecognizerConfig contains text recognition settings.
type RecognizerConfig struct {
	ModelPath   string `mapstructure:"model_path" yaml:"model_path" json:"model_path"`
	DictPath    string `mapstructure:"dict_path" yaml:"dict_path" json:"dict_path"`
	Language    string `mapstructure:"language" yaml:"language" json:"language"`
	ImageHeight int    `mapstructure:"image_height" yaml:"image_height" json:"image_height"`
	MaxWidth    int    `mapstructure:"max_width" yaml:"max_width" json:"max_width"`
	NumThreads  int    `mapstructure:"num_threads" yaml:"num_threads" json:"num_threads"`
}

// BarcodeConfig contains machine-readable code detection settings.
type BarcodeConfig struct {
	Formats   []string `mapstructure:"formats" yaml:"formats" json:"formats"`
	TryHarder bool     `mapstructure:"try_harder" yaml:"try_harder" json:"try_harder"`
}

// LookupConfig contains garment service settings.
type LookupConfig struct {
	BaseURL    string `mapstructure:"base_url" yaml:"base_url" json:"base_url"`
	APIToken   string `mapstructure:"api_token" yaml:"api_token" json:"api_token"`
	TimeoutSec int    `mapstructure:"timeout_sec" yaml:"timeout_sec" json:"timeout_sec"`
}

// OutputConfig contains output formatting settings.
type OutputConfig struct {
	Format string `mapstructure:"format" yaml:"format" json:"format"`
	File   string `mapstructure:"file" yaml:"file" json:"file"`
}

// DefaultConfig returns a configuration with sensible defaults.
func DefaultConfig() Config {
	rec := recognize.DefaultConfig()
	scanCfg := scan.DefaultConfig()
	return Config{
		ModelsDir: models.DefaultModelsDir,
		LogLevel:  "info",
		Verbose:   false,
		Scan: ScanConfig{
			WorkingWidth:  scanCfg.WorkingWidth,
			WorkingHeight: scanCfg.WorkingHeight,
		},
		Recognizer: RecognizerConfig{
			Language:    rec.Language,
			ImageHeight: rec.ImageHeight,
			MaxWidth:    rec.MaxWidth,
			NumThreads:  rec.NumThreads,
		},
		Barcode: BarcodeConfig{
			Formats:   defaultBarcodeFormats(),
			TryHarder: true,
		},
		Lookup: LookupConfig{
			TimeoutSec: 15,
		},
		Output: OutputConfig{
			Format: "text",
		},
	}
}

func defaultBarcodeFormats() []string {
	opts := barcode.DefaultOptions()
	names := make([]string, len(opts.Formats))
	for i, f := range opts.Formats {
		names[i] = f.String()
	}
	return names
}

// Validate validates the configuration and returns any errors.
func (c *Config) Validate() error {
	validLogLevels := []string{"debug", "info", "warn", "error"}
	if !contains(validLogLevels, c.LogLevel) {
		return fmt.Errorf("invalid log level: %s (must be one of: %s)", c.LogLevel, strings.Join(validLogLevels, ", "))
	}

	validFormats := []string{"text", "json"}
	if c.Output.Format != "" && !contains(validFormats, c.Output.Format) {
		return fmt.Errorf("invalid output format: %s (must be one of: %s)", c.Output.Format, strings.Join(validFormats, ", "))
	}

	if c.Scan.WorkingWidth <= 0 || c.Scan.WorkingHeight <= 0 {
		return fmt.Errorf("invalid working image size: %dx%d (must be positive)", c.Scan.WorkingWidth, c.Scan.WorkingHeight)
	}
	if c.Recognizer.ImageHeight <= 0 {
		return fmt.Errorf("invalid recognizer image height: %d (must be positive)", c.Recognizer.ImageHeight)
	}
	if c.Lookup.TimeoutSec <= 0 {
		return fmt.Errorf("invalid lookup timeout: %d (must be positive)", c.Lookup.TimeoutSec)
	}

	for _, name := range c.Barcode.Formats {
		if _, ok := barcode.ParseFormat(name); !ok {
			return fmt.Errorf("unknown barcode format: %q", name)
		}
	}

	return nil
}

// ToScanConfig converts to the scan session configuration.
func (c *Config) ToScanConfig() scan.Config {
	return scan.Config{
		WorkingWidth:  c.Scan.WorkingWidth,
		WorkingHeight: c.Scan.WorkingHeight,
	}
}

// ToRecognizerConfig converts to recognize.Config, resolving model paths
// against the configured models directory when not set explicitly.
func (c *Config) ToRecognizerConfig() recognize.Config {
	cfg := recognize.DefaultConfig()
	cfg.Language = c.Recognizer.Language
	cfg.ImageHeight = c.Recognizer.ImageHeight
	cfg.MaxWidth = c.Recognizer.MaxWidth
	cfg.NumThreads = c.Recognizer.NumThreads
	cfg.ModelPath = models.GetRecognitionModelPath(c.ModelsDir)
	cfg.DictPath = models.GetDictionaryPath(c.ModelsDir)
	if c.Recognizer.ModelPath != "" {
		cfg.ModelPath = c.Recognizer.ModelPath
	}
	if c.Recognizer.DictPath != "" {
		cfg.DictPath = c.Recognizer.DictPath
	}
	return cfg
}

// ToBarcodeOptions converts to barcode detection options. Unknown format
// names were rejected by Validate, so they are skipped here.
func (c *Config) ToBarcodeOptions() barcode.Options {
	opts := barcode.DefaultOptions()
	opts.TryHarder = c.Barcode.TryHarder
	if len(c.Barcode.Formats) > 0 {
		formats := make([]barcode.Format, 0, len(c.Barcode.Formats))
		for _, name := range c.Barcode.Formats {
			f, ok := barcode.ParseFormat(name)
			if !ok {
				continue
			}
			formats = append(formats, f)
		}
		opts.Formats = formats
	}
	return opts
}

// contains checks if a slice contains a string.
func contains(slice []string, item string) bool {
	for _, s := range slice {
		if s == item {
			return true
		}
	}
	return false
}
