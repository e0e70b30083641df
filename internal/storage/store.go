package storage

import (
	"context"
	"errors"
	"time"
)

var (
	ErrNotFound     = errors.New("storage: not found")
	ErrInvalidEntry = errors.New("storage: invalid entry")
)

type DictionaryEntry struct {
	ID        string    `json:"id" yaml:"id,omitempty"`
	Word      string    `json:"word" yaml:"word"`
	Owner     string    `json:"owner" yaml:"-"`
	CreatedAt time.Time `json:"created_at" yaml:"-"`
}

type SnippetEntry struct {
	ID          string    `json:"id" yaml:"id,omitempty"`
	Shortcut    string    `json:"shortcut" yaml:"shortcut"`
	Replacement string    `json:"replacement" yaml:"replacement"`
	Owner       string    `json:"owner" yaml:"-"`
	CreatedAt   time.Time `json:"created_at" yaml:"-"`
}

// HotkeyPreference is the persisted hotkey combination: four modifier
// requirements plus an optional key code.
type HotkeyPreference struct {
	Ctrl   bool   `json:"ctrl"`
	Alt    bool   `json:"alt"`
	Shift  bool   `json:"shift"`
	Win    bool   `json:"win"`
	Key    uint16 `json:"key,omitempty"`
	HasKey bool   `json:"has_key,omitempty"`
}

// Speech is one dictation history row.
type Speech struct {
	ID         string    `json:"id"`
	Owner      string    `json:"owner"`
	Text       string    `json:"text"`
	DurationMs int64     `json:"duration_ms"`
	CreatedAt  time.Time `json:"created_at"`
}

// Store is the persistence collaborator of the dictation pipeline.
// Get* methods return empty results, not ErrNotFound, for unknown users.
type Store interface {
	GetDictionaryEntries(ctx context.Context, user string) ([]DictionaryEntry, error)
	AddDictionaryEntry(ctx context.Context, user, word string) (DictionaryEntry, error)
	UpdateDictionaryEntry(ctx context.Context, user, id, word string) error
	DeleteDictionaryEntry(ctx context.Context, user, id string) error

	GetSnippets(ctx context.Context, user string) ([]SnippetEntry, error)
	AddSnippet(ctx context.Context, user, shortcut, replacement string) (SnippetEntry, error)
	UpdateSnippet(ctx context.Context, user, id, shortcut, replacement string) error
	DeleteSnippet(ctx context.Context, user, id string) error

	// GetUserStylePreference returns "" when the user never chose a style.
	GetUserStylePreference(ctx context.Context, user string) (string, error)
	SetUserStylePreference(ctx context.Context, user, style string) error
	// GetUserHotkeyPreference reports ok=false when nothing was saved.
	GetUserHotkeyPreference(ctx context.Context, user string) (pref HotkeyPreference, ok bool, err error)
	SetUserHotkeyPreference(ctx context.Context, user string, pref HotkeyPreference) error

	SaveSpeech(ctx context.Context, user, text string, duration time.Duration) (Speech, error)
	// ListSpeech returns the newest rows first; limit <= 0 means all.
	ListSpeech(ctx context.Context, user string, limit int) ([]Speech, error)

	Close() error
}
