package transcriber

import (
	"context"
	"strings"
	"time"

	"github.com/leonardotrapani/holdtype/internal/recording"
)

// Update is what the stream decoder reports for one accepted chunk.
type Update struct {
	Text  string
	Final bool
}

// StreamDecoder turns a batch engine into an incremental recognizer.
// Speech is detected by RMS energy; an utterance ends after Silence of quiet
// audio or when it reaches MaxUtterance. While an utterance grows the decoder
// re-recognizes it every PartialEvery of speech to produce partial results.
// A decoder is confined to one goroutine.
type StreamDecoder struct {
	engine       Engine
	sampleRate   int
	silence      time.Duration
	partialEvery time.Duration
	maxUtterance time.Duration
	threshold    float64

	buf          []byte
	hadSpeech    bool
	silent       time.Duration
	sincePartial time.Duration
	partial      string
}

func NewStreamDecoder(engine Engine, config Config) *StreamDecoder {
	def := DefaultConfig()
	if config.SampleRate <= 0 {
		config.SampleRate = def.SampleRate
	}
	if config.Silence <= 0 {
		config.Silence = def.Silence
	}
	if config.PartialEvery <= 0 {
		config.PartialEvery = def.PartialEvery
	}
	if config.MaxUtterance <= 0 {
		config.MaxUtterance = def.MaxUtterance
	}
	if config.RMSThreshold <= 0 {
		config.RMSThreshold = def.RMSThreshold
	}
	return &StreamDecoder{
		engine:       engine,
		sampleRate:   config.SampleRate,
		silence:      config.Silence,
		partialEvery: config.PartialEvery,
		maxUtterance: config.MaxUtterance,
		threshold:    config.RMSThreshold,
	}
}

// AcceptWaveform feeds one chunk. ok is false when there is nothing new to
// report.
func (d *StreamDecoder) AcceptWaveform(ctx context.Context, pcm []byte) (u Update, ok bool, err error) {
	dur := recording.PCMDuration(len(pcm), d.sampleRate)

	if computeRMS(pcm) < d.threshold {
		if !d.hadSpeech {
			return Update{}, false, nil
		}
		d.silent += dur
		d.buf = append(d.buf, pcm...)
		if d.silent >= d.silence {
			return d.endpoint(ctx)
		}
		return Update{}, false, nil
	}

	d.hadSpeech = true
	d.silent = 0
	d.sincePartial += dur
	d.buf = append(d.buf, pcm...)

	if recording.PCMDuration(len(d.buf), d.sampleRate) >= d.maxUtterance {
		return d.endpoint(ctx)
	}
	if d.sincePartial < d.partialEvery {
		return Update{}, false, nil
	}

	d.sincePartial = 0
	text, err := d.engine.Transcribe(ctx, d.buf)
	if err != nil {
		return Update{}, false, err
	}
	text = strings.TrimSpace(text)
	if text == "" || text == d.partial {
		return Update{}, false, nil
	}
	d.partial = text
	return Update{Text: text}, true, nil
}

// PartialResult is the latest partial of the current utterance.
func (d *StreamDecoder) PartialResult() string {
	return d.partial
}

// FinalResult recognizes whatever speech is still buffered and resets.
func (d *StreamDecoder) FinalResult(ctx context.Context) (string, error) {
	if !d.hadSpeech || len(d.buf) == 0 {
		d.reset()
		return "", nil
	}
	u, _, err := d.endpoint(ctx)
	return u.Text, err
}

func (d *StreamDecoder) endpoint(ctx context.Context) (Update, bool, error) {
	pcm := d.buf
	d.reset()
	text, err := d.engine.Transcribe(ctx, pcm)
	if err != nil {
		return Update{}, false, err
	}
	text = strings.TrimSpace(text)
	return Update{Text: text, Final: true}, text != "", nil
}

func (d *StreamDecoder) reset() {
	d.buf = nil
	d.hadSpeech = false
	d.silent = 0
	d.sincePartial = 0
	d.partial = ""
}
