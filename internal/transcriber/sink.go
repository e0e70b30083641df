package transcriber

import (
	"context"
	"log"
	"sync"
)

const resultBufferSize = 32

// resultSink owns a session's result channel. Late senders after close are
// dropped instead of panicking.
type resultSink struct {
	mu     sync.Mutex
	ch     chan Result
	closed bool
}

func newResultSink() *resultSink {
	return &resultSink{ch: make(chan Result, resultBufferSize)}
}

// partial never blocks; a dropped partial is superseded by the next one.
func (s *resultSink) partial(text string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	select {
	case s.ch <- Result{Text: text}:
	default:
		log.Printf("Transcriber: dropped partial result, consumer is slow")
	}
}

// deliver blocks until the result is queued or ctx is done.
func (s *resultSink) deliver(ctx context.Context, r Result) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	select {
	case s.ch <- r:
		return true
	case <-ctx.Done():
		return false
	}
}

func (s *resultSink) close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.closed {
		s.closed = true
		close(s.ch)
	}
}
