package transcriber

import (
	"context"
	"fmt"
	"time"

	"github.com/leonardotrapani/holdtype/internal/recording"
)

// Result is one recognition event of a listening session.
//
// Partials are provisional and are superseded by later partials or by a
// final. A final with NoSpeech set reports that the session produced no
// usable audio. Err reports a capture or recognition failure that ends the
// session.
type Result struct {
	Text     string
	IsFinal  bool
	NoSpeech bool
	Err      error
}

// Listener is the capture + recognition strategy the orchestrator drives.
//
// StartListening returns a per-session result channel. StopListening stops
// capture, emits the last final result and closes that channel before it
// returns. ctx passed to StopListening bounds the wait for in-flight work;
// the final recognition runs under the context given to StartListening.
type Listener interface {
	StartListening(ctx context.Context) (<-chan Result, error)
	StopListening(ctx context.Context) error
	IsModelLoaded() bool
}

// Engine turns a complete PCM unit into text.
type Engine interface {
	Transcribe(ctx context.Context, pcm []byte) (string, error)
}

// Recognizer hands out the engine once the model is ready.
type Recognizer interface {
	IsLoaded() bool
	Engine() (Engine, error)
}

const (
	StrategyBatch     = "batch"
	StrategyStreaming = "streaming"
)

type Config struct {
	Strategy   string
	SampleRate int

	// batch-windowed strategy
	FlushTick     time.Duration
	FlushInterval time.Duration
	MinAudio      time.Duration

	// streaming strategy
	Silence      time.Duration
	PartialEvery time.Duration
	MaxUtterance time.Duration
	RMSThreshold float64
}

func DefaultConfig() Config {
	return Config{
		Strategy:      StrategyBatch,
		SampleRate:    recording.SampleRate,
		FlushTick:     500 * time.Millisecond,
		FlushInterval: 2 * time.Second,
		MinAudio:      time.Second,
		Silence:       600 * time.Millisecond,
		PartialEvery:  time.Second,
		MaxUtterance:  15 * time.Second,
		RMSThreshold:  defaultRMSThreshold,
	}
}

// New builds the listener selected by config.Strategy.
func New(config Config, source recording.Source, recognizer Recognizer) (Listener, error) {
	if source == nil || recognizer == nil {
		return nil, fmt.Errorf("transcriber: source and recognizer are required")
	}
	switch config.Strategy {
	case StrategyBatch, "":
		return NewBatchListener(config, source, recognizer), nil
	case StrategyStreaming:
		return NewStreamingListener(config, source, recognizer), nil
	default:
		return nil, fmt.Errorf("unsupported recognition strategy: %s", config.Strategy)
	}
}
