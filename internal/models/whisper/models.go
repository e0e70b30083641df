// Package whisper manages the local ggml model files used for recognition.
package whisper

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/dustin/go-humanize"
)

// ModelInfo holds metadata for a whisper model
type ModelInfo struct {
	ID        string // model identifier (e.g., "base.en")
	Name      string // display name (e.g., "Base English")
	Filename  string // file name (e.g., "ggml-base.en.bin")
	SizeBytes int64  // approximate download size
}

// Multilingual reports whether the model accepts languages other than English.
func (m ModelInfo) Multilingual() bool {
	return !strings.HasSuffix(m.ID, ".en")
}

// Size is the human readable download size.
func (m ModelInfo) Size() string {
	return humanize.Bytes(uint64(m.SizeBytes))
}

// available whisper models from huggingface.co/ggerganov/whisper.cpp
var models = []ModelInfo{
	// english-only models (faster, smaller)
	{ID: "tiny.en", Name: "Tiny English", Filename: "ggml-tiny.en.bin", SizeBytes: 75_000_000},
	{ID: "base.en", Name: "Base English", Filename: "ggml-base.en.bin", SizeBytes: 142_000_000},
	{ID: "small.en", Name: "Small English", Filename: "ggml-small.en.bin", SizeBytes: 466_000_000},
	{ID: "medium.en", Name: "Medium English", Filename: "ggml-medium.en.bin", SizeBytes: 1_500_000_000},

	// multilingual models
	{ID: "tiny", Name: "Tiny", Filename: "ggml-tiny.bin", SizeBytes: 75_000_000},
	{ID: "base", Name: "Base", Filename: "ggml-base.bin", SizeBytes: 142_000_000},
	{ID: "small", Name: "Small", Filename: "ggml-small.bin", SizeBytes: 466_000_000},
	{ID: "medium", Name: "Medium", Filename: "ggml-medium.bin", SizeBytes: 1_500_000_000},
	{ID: "large-v3", Name: "Large V3", Filename: "ggml-large-v3.bin", SizeBytes: 3_000_000_000},
}

var modelByID = func() map[string]ModelInfo {
	m := make(map[string]ModelInfo, len(models))
	for _, model := range models {
		m[model.ID] = model
	}
	return m
}()

// GetModel returns info for a model by ID.
// Returns nil if model ID is unknown.
func GetModel(modelID string) *ModelInfo {
	info, ok := modelByID[modelID]
	if !ok {
		return nil
	}
	return &info
}

// ListModels returns all available whisper models
func ListModels() []ModelInfo {
	result := make([]ModelInfo, len(models))
	copy(result, models)
	return result
}

// DefaultDir is $XDG_DATA_HOME/holdtype/models, falling back to
// ~/.local/share.
func DefaultDir() (string, error) {
	base := os.Getenv("XDG_DATA_HOME")
	if base == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		base = filepath.Join(home, ".local", "share")
	}
	return filepath.Join(base, "holdtype", "models"), nil
}
