package storage

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryStore is a process-local Store used by tests and by `serve --ephemeral`.
type MemoryStore struct {
	mu      sync.RWMutex
	dict    map[string][]DictionaryEntry
	snips   map[string][]SnippetEntry
	styles  map[string]string
	hotkeys map[string]HotkeyPreference
	history map[string][]Speech
	now     func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		dict:    make(map[string][]DictionaryEntry),
		snips:   make(map[string][]SnippetEntry),
		styles:  make(map[string]string),
		hotkeys: make(map[string]HotkeyPreference),
		history: make(map[string][]Speech),
		now:     time.Now,
	}
}

func (m *MemoryStore) Close() error { return nil }

func (m *MemoryStore) GetDictionaryEntries(_ context.Context, user string) ([]DictionaryEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]DictionaryEntry(nil), m.dict[user]...), nil
}

func (m *MemoryStore) AddDictionaryEntry(_ context.Context, user, word string) (DictionaryEntry, error) {
	word = strings.TrimSpace(word)
	if word == "" {
		return DictionaryEntry{}, fmt.Errorf("%w: empty word", ErrInvalidEntry)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	e := DictionaryEntry{ID: uuid.NewString(), Word: word, Owner: user, CreatedAt: m.now()}
	m.dict[user] = append(m.dict[user], e)
	return e, nil
}

func (m *MemoryStore) UpdateDictionaryEntry(_ context.Context, user, id, word string) error {
	word = strings.TrimSpace(word)
	if word == "" {
		return fmt.Errorf("%w: empty word", ErrInvalidEntry)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.dict[user] {
		if m.dict[user][i].ID == id {
			m.dict[user][i].Word = word
			return nil
		}
	}
	return ErrNotFound
}

func (m *MemoryStore) DeleteDictionaryEntry(_ context.Context, user, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	entries := m.dict[user]
	for i := range entries {
		if entries[i].ID == id {
			m.dict[user] = append(entries[:i:i], entries[i+1:]...)
			return nil
		}
	}
	return ErrNotFound
}

func (m *MemoryStore) GetSnippets(_ context.Context, user string) ([]SnippetEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]SnippetEntry(nil), m.snips[user]...), nil
}

func (m *MemoryStore) AddSnippet(_ context.Context, user, shortcut, replacement string) (SnippetEntry, error) {
	shortcut = strings.TrimSpace(shortcut)
	if shortcut == "" {
		return SnippetEntry{}, fmt.Errorf("%w: empty shortcut", ErrInvalidEntry)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	e := SnippetEntry{ID: uuid.NewString(), Shortcut: shortcut, Replacement: replacement, Owner: user, CreatedAt: m.now()}
	m.snips[user] = append(m.snips[user], e)
	return e, nil
}

func (m *MemoryStore) UpdateSnippet(_ context.Context, user, id, shortcut, replacement string) error {
	shortcut = strings.TrimSpace(shortcut)
	if shortcut == "" {
		return fmt.Errorf("%w: empty shortcut", ErrInvalidEntry)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.snips[user] {
		if m.snips[user][i].ID == id {
			m.snips[user][i].Shortcut = shortcut
			m.snips[user][i].Replacement = replacement
			return nil
		}
	}
	return ErrNotFound
}

func (m *MemoryStore) DeleteSnippet(_ context.Context, user, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	entries := m.snips[user]
	for i := range entries {
		if entries[i].ID == id {
			m.snips[user] = append(entries[:i:i], entries[i+1:]...)
			return nil
		}
	}
	return ErrNotFound
}

func (m *MemoryStore) GetUserStylePreference(_ context.Context, user string) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.styles[user], nil
}

func (m *MemoryStore) SetUserStylePreference(_ context.Context, user, style string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.styles[user] = style
	return nil
}

func (m *MemoryStore) GetUserHotkeyPreference(_ context.Context, user string) (HotkeyPreference, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	pref, ok := m.hotkeys[user]
	return pref, ok, nil
}

func (m *MemoryStore) SetUserHotkeyPreference(_ context.Context, user string, pref HotkeyPreference) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.hotkeys[user] = pref
	return nil
}

func (m *MemoryStore) SaveSpeech(_ context.Context, user, text string, duration time.Duration) (Speech, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	sp := Speech{ID: uuid.NewString(), Owner: user, Text: text, DurationMs: duration.Milliseconds(), CreatedAt: m.now()}
	m.history[user] = append(m.history[user], sp)
	return sp, nil
}

func (m *MemoryStore) ListSpeech(_ context.Context, user string, limit int) ([]Speech, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	rows := m.history[user]
	out := make([]Speech, 0, len(rows))
	for i := len(rows) - 1; i >= 0; i-- {
		if limit > 0 && len(out) >= limit {
			break
		}
		out = append(out, rows[i])
	}
	return out, nil
}
