package transcriber

import (
	"context"
	"fmt"
	"log"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/leonardotrapani/holdtype/internal/recording"
)

// BatchListener buffers captured audio and recognizes it in independent
// windows. A background loop wakes every FlushTick and flushes the buffer when
// FlushInterval elapsed or MinAudio worth of audio accumulated. Each window
// yields a partial covering the session so far; StopListening recognizes the
// residual buffer and emits the final.
type BatchListener struct {
	config     Config
	source     recording.Source
	recognizer Recognizer

	mu   sync.Mutex
	sess *batchSession
}

type batchSession struct {
	ctx    context.Context
	cancel context.CancelFunc
	engine Engine
	sink   *resultSink

	// flushCtx is cancelled when the stop grace runs out
	flushCtx    context.Context
	flushCancel context.CancelFunc
	flushes     sync.WaitGroup

	bufMu     sync.Mutex
	buf       []byte
	lastFlush time.Time

	textMu sync.Mutex
	units  map[int]string
	nextID int
	sealed bool

	captureDone chan struct{}
	loopStop    chan struct{}
	loopDone    chan struct{}
}

func NewBatchListener(config Config, source recording.Source, recognizer Recognizer) *BatchListener {
	def := DefaultConfig()
	if config.FlushTick <= 0 {
		config.FlushTick = def.FlushTick
	}
	if config.FlushInterval <= 0 {
		config.FlushInterval = def.FlushInterval
	}
	if config.MinAudio <= 0 {
		config.MinAudio = def.MinAudio
	}
	if config.SampleRate <= 0 {
		config.SampleRate = def.SampleRate
	}
	return &BatchListener{config: config, source: source, recognizer: recognizer}
}

func (l *BatchListener) IsModelLoaded() bool {
	return l.recognizer.IsLoaded()
}

func (l *BatchListener) StartListening(ctx context.Context) (<-chan Result, error) {
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

	s := &batchSession{
		ctx:         sctx,
		cancel:      cancel,
		engine:      engine,
		sink:        newResultSink(),
		lastFlush:   time.Now(),
		units:       make(map[int]string),
		captureDone: make(chan struct{}),
		loopStop:    make(chan struct{}),
		loopDone:    make(chan struct{}),
	}
	s.flushCtx, s.flushCancel = context.WithCancel(sctx)
	l.sess = s

	go l.capture(s, segCh, errCh)
	go l.flushLoop(s)

	log.Printf("Transcriber: batch session started")
	return s.sink.ch, nil
}

// capture only appends under the buffer lock; recognition never runs here.
func (l *BatchListener) capture(s *batchSession, segCh <-chan recording.Segment, errCh <-chan error) {
	defer close(s.captureDone)
	for segCh != nil {
		select {
		case seg, ok := <-segCh:
			if !ok {
				segCh = nil
				continue
			}
			s.bufMu.Lock()
			s.buf = append(s.buf, seg.PCM...)
			s.bufMu.Unlock()
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

func (l *BatchListener) flushLoop(s *batchSession) {
	defer close(s.loopDone)
	ticker := time.NewTicker(l.config.FlushTick)
	defer ticker.Stop()

	sizeThreshold := recording.PCMBytes(l.config.MinAudio, l.config.SampleRate)
	for {
		select {
		case <-s.loopStop:
			return
		case <-s.ctx.Done():
			return
		case now := <-ticker.C:
			s.bufMu.Lock()
			var pcm []byte
			if len(s.buf) > 0 && (len(s.buf) >= sizeThreshold || now.Sub(s.lastFlush) >= l.config.FlushInterval) {
				pcm = s.buf
				s.buf = nil
				s.lastFlush = now
			}
			s.bufMu.Unlock()
			if pcm != nil {
				l.dispatch(s, pcm)
			}
		}
	}
}

// dispatch recognizes one window on its own goroutine.
func (l *BatchListener) dispatch(s *batchSession, pcm []byte) {
	if d := recording.PCMDuration(len(pcm), l.config.SampleRate); d < l.config.MinAudio {
		log.Printf("Transcriber: discarding %v window, too short", d)
		return
	}

	s.textMu.Lock()
	if s.sealed {
		s.textMu.Unlock()
		return
	}
	id := s.nextID
	s.nextID++
	s.textMu.Unlock()

	s.flushes.Add(1)
	go func() {
		defer s.flushes.Done()
		text, err := s.engine.Transcribe(s.flushCtx, pcm)
		if err != nil {
			switch {
			case s.flushCtx.Err() != nil:
			case IsFatalTranscriptionError(err):
				s.sink.deliver(s.ctx, Result{Err: err})
			default:
				log.Printf("Transcriber: window %d failed: %v", id, err)
			}
			return
		}

		s.textMu.Lock()
		if s.sealed {
			s.textMu.Unlock()
			return
		}
		s.units[id] = strings.TrimSpace(text)
		preview := s.joinedLocked()
		s.textMu.Unlock()

		if preview != "" {
			s.sink.partial(preview)
		}
	}()
}

func (s *batchSession) joinedLocked() string {
	ids := make([]int, 0, len(s.units))
	for id := range s.units {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	parts := make([]string, 0, len(ids))
	for _, id := range ids {
		if t := s.units[id]; t != "" {
			parts = append(parts, t)
		}
	}
	return strings.Join(parts, " ")
}

func (l *BatchListener) StopListening(ctx context.Context) error {
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
	case <-s.captureDone:
	case <-ctx.Done():
		log.Printf("Transcriber: capture did not drain before grace expired")
	}
	close(s.loopStop)
	<-s.loopDone

	// in-flight windows get the grace period, then they are cancelled
	flushed := make(chan struct{})
	go func() {
		s.flushes.Wait()
		close(flushed)
	}()
	select {
	case <-flushed:
	case <-ctx.Done():
		log.Printf("Transcriber: cancelling in-flight windows after grace period")
		s.flushCancel()
	}

	s.textMu.Lock()
	s.sealed = true
	text := s.joinedLocked()
	s.textMu.Unlock()

	s.bufMu.Lock()
	residual := s.buf
	s.buf = nil
	s.bufMu.Unlock()

	if d := recording.PCMDuration(len(residual), l.config.SampleRate); d >= l.config.MinAudio {
		last, err := s.engine.Transcribe(s.ctx, residual)
		switch {
		case err != nil && s.ctx.Err() == nil && IsFatalTranscriptionError(err):
			s.sink.deliver(s.ctx, Result{Err: err})
			return nil
		case err != nil && s.ctx.Err() == nil:
			log.Printf("Transcriber: final window failed: %v", err)
		case strings.TrimSpace(last) != "":
			text = strings.TrimSpace(strings.TrimSpace(text) + " " + strings.TrimSpace(last))
		}
	} else if len(residual) > 0 {
		log.Printf("Transcriber: final window of %v discarded, too short", d)
	}

	s.sink.deliver(s.ctx, Result{Text: text, IsFinal: true, NoSpeech: text == ""})
	log.Printf("Transcriber: batch session finished")
	return nil
}
