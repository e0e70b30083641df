package transcriber

import (
	"context"
	"fmt"
	"log"
	"sync"

	"github.com/leonardotrapani/holdtype/internal/recording"
)

// StreamingListener feeds every captured chunk straight into a StreamDecoder
// on the consumer goroutine. The recorder drops chunks instead of blocking, so
// a decoder slower than real time loses audio rather than stalling capture.
type StreamingListener struct {
	config     Config
	source     recording.Source
	recognizer Recognizer

	mu   sync.Mutex
	sess *streamSession
}

type streamSession struct {
	ctx     context.Context
	cancel  context.CancelFunc
	decoder *StreamDecoder
	sink    *resultSink
	done    chan struct{}

	// written by the feed goroutine, read after done is closed
	finals int
	failed bool
}

func NewStreamingListener(config Config, source recording.Source, recognizer Recognizer) *StreamingListener {
	return &StreamingListener{config: config, source: source, recognizer: recognizer}
}

func (l *StreamingListener) IsModelLoaded() bool {
	return l.recognizer.IsLoaded()
}

func (l *StreamingListener) StartListening(ctx context.Context) (<-chan Result, error) {
	if !l.recognizer.IsLoaded() {
		return nil, ErrModelNotLoaded
	}
	engine, err := l.recognizer.Engine()
	if err != nil {
		return nil, err
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if l.sess != nil {
		return nil, ErrAlreadyListening
	}

	sctx, cancel := context.WithCancel(ctx)
	segCh, errCh, err := l.source.Start(sctx)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("start capture: %w", err)
	}

	s := &streamSession{
		ctx:     sctx,
		cancel:  cancel,
		decoder: NewStreamDecoder(engine, l.config),
		sink:    newResultSink(),
		done:    make(chan struct{}),
	}
	l.sess = s

	go l.feed(s, segCh, errCh)

	log.Printf("Transcriber: streaming session started")
	return s.sink.ch, nil
}

func (l *StreamingListener) feed(s *streamSession, segCh <-chan recording.Segment, errCh <-chan error) {
	defer close(s.done)
	for segCh != nil {
		select {
		case seg, ok := <-segCh:
			if !ok {
				segCh = nil
				continue
			}
			if s.ctx.Err() != nil || s.failed {
				continue
			}
			u, ok, err := s.decoder.AcceptWaveform(s.ctx, seg.PCM)
			if err != nil {
				switch {
				case s.ctx.Err() != nil:
				case IsFatalTranscriptionError(err):
					s.failed = true
					s.sink.deliver(s.ctx, Result{Err: err})
				default:
					log.Printf("Transcriber: decode failed: %v", err)
				}
				continue
			}
			if !ok {
				continue
			}
			if u.Final {
				s.finals++
				s.sink.deliver(s.ctx, Result{Text: u.Text, IsFinal: true})
			} else {
				s.sink.partial(u.Text)
			}
		case err, ok := <-errCh:
			if !ok {
				errCh = nil
				continue
			}
			if err != nil {
				s.sink.deliver(s.ctx, Result{Err: fmt.Errorf("capture: %w", err)})
			}
		}
	}
}

func (l *StreamingListener) StopListening(ctx context.Context) error {
	l.mu.Lock()
	s := l.sess
	l.sess = nil
	l.mu.Unlock()
	if s == nil {
		return nil
	}
	defer s.cancel()
	defer s.sink.close()

	if err := l.source.Stop(); err != nil {
		log.Printf("Transcriber: stop capture: %v", err)
	}

	select {
	case <-s.done:
	case <-ctx.Done():
		// the decoder is still busy; abandon it rather than race on its state
		log.Printf("Transcriber: decoder did not drain before grace expired")
		s.sink.deliver(s.ctx, Result{IsFinal: true, NoSpeech: true})
		return ctx.Err()
	}

	if s.failed {
		return nil
	}

	text, err := s.decoder.FinalResult(s.ctx)
	if err != nil && s.ctx.Err() == nil {
		log.Printf("Transcriber: final decode failed: %v", err)
	}
	s.sink.deliver(s.ctx, Result{Text: text, IsFinal: true, NoSpeech: text == "" && s.finals == 0})
	log.Printf("Transcriber: streaming session finished")
	return nil
}
