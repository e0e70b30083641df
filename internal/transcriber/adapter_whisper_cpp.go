package transcriber

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"strings"
	"sync"
	"time"

	whisperlib "github.com/ggerganov/whisper.cpp/bindings/go/pkg/whisper"
)

// WhisperEngine runs whisper.cpp in process. The model is shared; every
// Transcribe call gets its own context since contexts are not thread-safe.
type WhisperEngine struct {
	model    whisperlib.Model
	language string
	threads  int

	// one inference at a time keeps CPU use bounded on laptops
	mu sync.Mutex
}

// NewWhisperEngine loads the ggml model at modelPath.
// lang: whisper language code, empty or "auto" for detection
// threads: number of CPU threads (0 for the library default)
func NewWhisperEngine(modelPath, lang string, threads int) (*WhisperEngine, error) {
	if modelPath == "" {
		return nil, errors.New("whisper: model path must not be empty")
	}
	if _, err := os.Stat(modelPath); err != nil {
		return nil, fmt.Errorf("model file not found: %s: %w", modelPath, err)
	}
	model, err := whisperlib.New(modelPath)
	if err != nil {
		return nil, fmt.Errorf("whisper: load model %q: %w", modelPath, err)
	}
	return &WhisperEngine{model: model, language: lang, threads: threads}, nil
}

// WhisperLoader adapts NewWhisperEngine to a Model loader.
func WhisperLoader(modelPath, lang string, threads int) LoadFunc {
	return func() (Engine, error) {
		return NewWhisperEngine(modelPath, lang, threads)
	}
}

func (e *WhisperEngine) Transcribe(ctx context.Context, pcm []byte) (string, error) {
	if len(pcm) == 0 {
		return "", nil
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	wctx, err := e.model.NewContext()
	if err != nil {
		return "", NewFatalTranscriptionError(fmt.Errorf("whisper: create context: %w", err))
	}

	lang := e.language
	if lang == "" {
		lang = "auto"
	}
	if err := wctx.SetLanguage(lang); err != nil {
		log.Printf("whisper: language %q rejected, using model default: %v", lang, err)
	}
	if e.threads > 0 {
		wctx.SetThreads(uint(e.threads))
	}

	start := time.Now()
	// the encoder-begin callback aborts inference once ctx is cancelled
	keepGoing := func() bool { return ctx.Err() == nil }
	if err := wctx.Process(pcmToFloat32(pcm), keepGoing, nil, nil); err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		return "", fmt.Errorf("whisper: process audio: %w", err)
	}

	var parts []string
	for {
		segment, err := wctx.NextSegment()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return "", fmt.Errorf("whisper: read segment: %w", err)
		}
		if text := cleanSegment(segment.Text); text != "" {
			parts = append(parts, text)
		}
	}

	text := strings.Join(parts, " ")
	log.Printf("whisper: transcribed %d bytes in %v", len(pcm), time.Since(start).Round(time.Millisecond))
	return text, nil
}

func (e *WhisperEngine) Close() error {
	if e.model != nil {
		return e.model.Close()
	}
	return nil
}

// cleanSegment drops whisper's non-speech annotations such as [BLANK_AUDIO].
func cleanSegment(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "[") && strings.HasSuffix(s, "]") {
		return ""
	}
	if strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")") {
		return ""
	}
	return s
}
