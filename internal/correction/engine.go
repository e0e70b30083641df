package correction

import (
	"context"
	"log"
	"sync"

	"github.com/leonardotrapani/holdtype/internal/storage"
)

// Source is the read side of storage the engine needs.
type Source interface {
	GetDictionaryEntries(ctx context.Context, user string) ([]storage.DictionaryEntry, error)
	GetSnippets(ctx context.Context, user string) ([]storage.SnippetEntry, error)
}

// Engine corrects transcripts against per-user dictionary and snippet data.
//
// Both lists are loaded lazily and memoized per user, each cache behind its
// own lock. Anything that mutates a user's entries must call the matching
// Invalidate method before the next Correct for that user, otherwise stale
// data is used. storage.WithInvalidation does that for Store mutations.
type Engine struct {
	source Source

	thMu       sync.RWMutex
	thresholds Thresholds

	dictMu sync.Mutex
	dict   map[string][]string

	snipMu sync.Mutex
	snips  map[string][]storage.SnippetEntry
}

func NewEngine(source Source, th Thresholds) *Engine {
	return &Engine{
		source:     source,
		thresholds: th,
		dict:       make(map[string][]string),
		snips:      make(map[string][]storage.SnippetEntry),
	}
}

// Correct applies snippet replacement, then dictionary correction. With no
// data for the user the text is returned unchanged.
func (e *Engine) Correct(ctx context.Context, user, text string) string {
	if text == "" {
		return text
	}
	snippets := e.Snippets(ctx, user)
	words := e.Words(ctx, user)
	if len(snippets) == 0 && len(words) == 0 {
		return text
	}

	out := ReplaceSnippets(text, snippets)
	out = CorrectDictionary(out, words, e.Thresholds())
	return out
}

// Words returns the cached dictionary words for user.
func (e *Engine) Words(ctx context.Context, user string) []string {
	e.dictMu.Lock()
	defer e.dictMu.Unlock()
	if words, ok := e.dict[user]; ok {
		return words
	}

	entries, err := e.source.GetDictionaryEntries(ctx, user)
	if err != nil {
		// not cached, the next call retries
		log.Printf("Correction: failed to load dictionary for %q: %v", user, err)
		return nil
	}
	words := make([]string, 0, len(entries))
	for _, en := range entries {
		words = append(words, en.Word)
	}
	e.dict[user] = words
	return words
}

// Snippets returns the cached snippets for user.
func (e *Engine) Snippets(ctx context.Context, user string) []storage.SnippetEntry {
	e.snipMu.Lock()
	defer e.snipMu.Unlock()
	if snips, ok := e.snips[user]; ok {
		return snips
	}

	snips, err := e.source.GetSnippets(ctx, user)
	if err != nil {
		log.Printf("Correction: failed to load snippets for %q: %v", user, err)
		return nil
	}
	if snips == nil {
		snips = []storage.SnippetEntry{}
	}
	e.snips[user] = snips
	return snips
}

func (e *Engine) InvalidateDictionaryCache(user string) {
	e.dictMu.Lock()
	delete(e.dict, user)
	e.dictMu.Unlock()
}

func (e *Engine) InvalidateSnippetsCache(user string) {
	e.snipMu.Lock()
	delete(e.snips, user)
	e.snipMu.Unlock()
}

func (e *Engine) Thresholds() Thresholds {
	e.thMu.RLock()
	defer e.thMu.RUnlock()
	return e.thresholds
}

// SetThresholds swaps the matcher tuning, used on config reload.
func (e *Engine) SetThresholds(th Thresholds) {
	e.thMu.Lock()
	e.thresholds = th
	e.thMu.Unlock()
}

var _ storage.CacheInvalidator = (*Engine)(nil)
