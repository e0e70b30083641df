package transcriber

import (
	"context"
	"fmt"
	"io"
	"log"
	"sync"
	"sync/atomic"
	"time"
)

// LoadFunc opens an engine from local storage.
type LoadFunc func() (Engine, error)

// Model loads the recognition engine in the background. Until loading
// succeeds IsLoaded reports false and Engine returns ErrModelNotLoaded.
type Model struct {
	load LoadFunc

	once   sync.Once
	done   chan struct{}
	loaded atomic.Bool

	mu     sync.RWMutex
	engine Engine
	err    error
}

func NewModel(load LoadFunc) *Model {
	return &Model{load: load, done: make(chan struct{})}
}

// Load starts loading once; further calls are no-ops.
func (m *Model) Load() {
	m.once.Do(func() {
		go m.run()
	})
}

func (m *Model) run() {
	defer close(m.done)

	start := time.Now()
	engine, err := m.load()
	if err == nil && engine == nil {
		err = fmt.Errorf("loader returned no engine")
	}

	m.mu.Lock()
	m.engine, m.err = engine, err
	m.mu.Unlock()

	if err != nil {
		log.Printf("Model: load failed: %v", err)
		return
	}
	m.loaded.Store(true)
	log.Printf("Model: loaded in %v", time.Since(start).Round(time.Millisecond))
}

func (m *Model) IsLoaded() bool {
	return m.loaded.Load()
}

// Err returns the load error, nil while loading or after success.
func (m *Model) Err() error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.err
}

// Wait blocks until loading finished or ctx is done.
func (m *Model) Wait(ctx context.Context) error {
	select {
	case <-m.done:
		return m.Err()
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (m *Model) Engine() (Engine, error) {
	if !m.IsLoaded() {
		return nil, ErrModelNotLoaded
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.engine, nil
}

func (m *Model) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.loaded.Store(false)
	if c, ok := m.engine.(io.Closer); ok {
		m.engine = nil
		return c.Close()
	}
	m.engine = nil
	return nil
}
