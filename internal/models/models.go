// Package models resolves filesystem paths for the ONNX recognition
// model and its character dictionary.
package models

import (
	"os"
	"path/filepath"
)

// Model and dictionary file names.
const (
	RecognitionModel = "tag_rec.onnx"
	Dictionary       = "tag_keys.txt"
)

// DefaultModelsDir is the models directory relative to the working
// directory when no override is given.
const DefaultModelsDir = "models"

// EnvModelsDir is the environment variable overriding the models directory.
const EnvModelsDir = "TAGSCAN_MODELS_DIR"

// GetModelsDir returns the models directory, preferring the explicit
// argument, then the environment override, then the default.
func GetModelsDir(dir string) string {
	if dir != "" {
		return dir
	}
	if envDir := os.Getenv(EnvModelsDir); envDir != "" {
		return envDir
	}
	return DefaultModelsDir
}

// GetRecognitionModelPath returns the path of the recognition model.
func GetRecognitionModelPath(modelsDir string) string {
	return filepath.Join(GetModelsDir(modelsDir), RecognitionModel)
}

// GetDictionaryPath returns the path of the character dictionary.
func GetDictionaryPath(modelsDir string) string {
	return filepath.Join(GetModelsDir(modelsDir), Dictionary)
}
