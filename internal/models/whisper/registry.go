package whisper

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
)

const defaultBaseURL = "https://huggingface.co/ggerganov/whisper.cpp/resolve/main"

var ErrNotInstalled = errors.New("model not installed")

// ProgressFunc is called during download with bytes downloaded and total
type ProgressFunc func(downloaded, total int64)

// Registry is a directory of downloaded models.
type Registry struct {
	Dir     string
	BaseURL string
	Client  *http.Client
}

func NewRegistry(dir string) *Registry {
	return &Registry{Dir: dir, BaseURL: defaultBaseURL, Client: http.DefaultClient}
}

// DefaultRegistry uses DefaultDir.
func DefaultRegistry() (*Registry, error) {
	dir, err := DefaultDir()
	if err != nil {
		return nil, fmt.Errorf("failed to get models directory: %w", err)
	}
	return NewRegistry(dir), nil
}

// Path returns where modelID lives, installed or not. Empty for unknown IDs.
func (r *Registry) Path(modelID string) string {
	info, ok := modelByID[modelID]
	if !ok {
		return ""
	}
	return filepath.Join(r.Dir, info.Filename)
}

func (r *Registry) DownloadURL(modelID string) string {
	info, ok := modelByID[modelID]
	if !ok {
		return ""
	}
	return r.BaseURL + "/" + info.Filename
}

// IsInstalled returns true if the model is downloaded and available
func (r *Registry) IsInstalled(modelID string) bool {
	path := r.Path(modelID)
	if path == "" {
		return false
	}
	info, err := os.Stat(path)
	return err == nil && info.Size() > 0
}

// ListInstalled returns IDs of all installed models
func (r *Registry) ListInstalled() []string {
	var installed []string
	for _, m := range models {
		if r.IsInstalled(m.ID) {
			installed = append(installed, m.ID)
		}
	}
	return installed
}

// Resolve returns the file to load: modelPath when set, otherwise the
// installed file for modelID.
func (r *Registry) Resolve(modelID, modelPath string) (string, error) {
	if modelPath != "" {
		if _, err := os.Stat(modelPath); err != nil {
			return "", fmt.Errorf("model file %s: %w", modelPath, err)
		}
		return modelPath, nil
	}
	if GetModel(modelID) == nil {
		return "", fmt.Errorf("unknown model: %s", modelID)
	}
	if !r.IsInstalled(modelID) {
		return "", fmt.Errorf("%w: %s (run holdtype model download %s)", ErrNotInstalled, modelID, modelID)
	}
	return r.Path(modelID), nil
}

// Download fetches a model into the registry directory. The file only
// appears under its final name once complete.
func (r *Registry) Download(ctx context.Context, modelID string, onProgress ProgressFunc) error {
	info := GetModel(modelID)
	if info == nil {
		return fmt.Errorf("unknown model: %s", modelID)
	}

	if err := os.MkdirAll(r.Dir, 0755); err != nil {
		return fmt.Errorf("failed to create models directory: %w", err)
	}

	destPath := r.Path(modelID)
	tempPath := destPath + ".downloading"

	out, err := os.Create(tempPath)
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	defer func() {
		out.Close()
		os.Remove(tempPath)
	}()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.DownloadURL(modelID), nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	client := r.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to download: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("download failed with status: %s", resp.Status)
	}

	total := resp.ContentLength
	if total < 0 {
		total = info.SizeBytes
	}

	pw := &progressWriter{w: out, total: total, onProgress: onProgress}
	if _, err := io.Copy(pw, resp.Body); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("failed to download: %w", err)
	}

	if err := out.Close(); err != nil {
		return fmt.Errorf("failed to close file: %w", err)
	}
	if err := os.Rename(tempPath, destPath); err != nil {
		return fmt.Errorf("failed to finalize download: %w", err)
	}
	return nil
}

// Remove deletes a downloaded model
func (r *Registry) Remove(modelID string) error {
	if GetModel(modelID) == nil {
		return fmt.Errorf("unknown model: %s", modelID)
	}
	if !r.IsInstalled(modelID) {
		return fmt.Errorf("%w: %s", ErrNotInstalled, modelID)
	}
	if err := os.Remove(r.Path(modelID)); err != nil {
		return fmt.Errorf("failed to remove model: %w", err)
	}
	return nil
}

type progressWriter struct {
	w          io.Writer
	written    int64
	total      int64
	onProgress ProgressFunc
}

func (p *progressWriter) Write(b []byte) (int, error) {
	n, err := p.w.Write(b)
	p.written += int64(n)
	if p.onProgress != nil {
		p.onProgress(p.written, p.total)
	}
	return n, err
}
