package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/url"
	"os"
	"sort"
	"strings"
	"time"

	badger "github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
)

// BadgerStore keeps every record as a JSON value under a typed key:
//
//	dict/<user>/<id>
//	snip/<user>/<id>
//	pref/<user>/style
//	pref/<user>/hotkey
//	hist/<user>/<unix-nanos>-<id>
//
// <user> is path-escaped.
type BadgerStore struct {
	db  *badger.DB
	now func() time.Time
}

// OpenBadger opens (or creates) the store at dir.
func OpenBadger(dir string) (*BadgerStore, error) {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("create storage dir: %w", err)
	}
	opts := badger.DefaultOptions(dir).WithLogger(nil)
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger at %s: %w", dir, err)
	}
	log.Printf("Storage: opened %s", dir)
	return &BadgerStore{db: db, now: time.Now}, nil
}

// OpenBadgerInMemory opens a store that lives only as long as the process.
func OpenBadgerInMemory() (*BadgerStore, error) {
	db, err := badger.Open(badger.DefaultOptions("").WithInMemory(true).WithLogger(nil))
	if err != nil {
		return nil, fmt.Errorf("open in-memory badger: %w", err)
	}
	return &BadgerStore{db: db, now: time.Now}, nil
}

func (s *BadgerStore) Close() error {
	return s.db.Close()
}

// userPrefix escapes the user so one user's prefix never matches another's
// keys ("a" vs "a/b").
func userPrefix(kind, user string) []byte {
	return []byte(kind + "/" + url.PathEscape(user) + "/")
}

func dictKey(user, id string) []byte { return append(userPrefix("dict", user), id...) }
func snipKey(user, id string) []byte { return append(userPrefix("snip", user), id...) }
func prefKey(user, name string) []byte { return append(userPrefix("pref", user), name...) }
func histPrefix(user string) []byte { return userPrefix("hist", user) }

func (s *BadgerStore) GetDictionaryEntries(ctx context.Context, user string) ([]DictionaryEntry, error) {
	var out []DictionaryEntry
	err := s.scan(ctx, userPrefix("dict", user), false, 0, func(v []byte) error {
		var e DictionaryEntry
		if err := json.Unmarshal(v, &e); err != nil {
			return err
		}
		out = append(out, e)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("read dictionary: %w", err)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (s *BadgerStore) AddDictionaryEntry(ctx context.Context, user, word string) (DictionaryEntry, error) {
	word = strings.TrimSpace(word)
	if word == "" {
		return DictionaryEntry{}, fmt.Errorf("%w: empty word", ErrInvalidEntry)
	}
	e := DictionaryEntry{ID: uuid.NewString(), Word: word, Owner: user, CreatedAt: s.now()}
	if err := s.put(ctx, dictKey(user, e.ID), e); err != nil {
		return DictionaryEntry{}, fmt.Errorf("add dictionary entry: %w", err)
	}
	return e, nil
}

func (s *BadgerStore) UpdateDictionaryEntry(ctx context.Context, user, id, word string) error {
	word = strings.TrimSpace(word)
	if word == "" {
		return fmt.Errorf("%w: empty word", ErrInvalidEntry)
	}
	var e DictionaryEntry
	return s.modify(ctx, dictKey(user, id), &e, func() { e.Word = word })
}

func (s *BadgerStore) DeleteDictionaryEntry(ctx context.Context, user, id string) error {
	return s.remove(ctx, dictKey(user, id))
}

func (s *BadgerStore) GetSnippets(ctx context.Context, user string) ([]SnippetEntry, error) {
	var out []SnippetEntry
	err := s.scan(ctx, userPrefix("snip", user), false, 0, func(v []byte) error {
		var e SnippetEntry
		if err := json.Unmarshal(v, &e); err != nil {
			return err
		}
		out = append(out, e)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("read snippets: %w", err)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (s *BadgerStore) AddSnippet(ctx context.Context, user, shortcut, replacement string) (SnippetEntry, error) {
	shortcut = strings.TrimSpace(shortcut)
	if shortcut == "" {
		return SnippetEntry{}, fmt.Errorf("%w: empty shortcut", ErrInvalidEntry)
	}
	e := SnippetEntry{ID: uuid.NewString(), Shortcut: shortcut, Replacement: replacement, Owner: user, CreatedAt: s.now()}
	if err := s.put(ctx, snipKey(user, e.ID), e); err != nil {
		return SnippetEntry{}, fmt.Errorf("add snippet: %w", err)
	}
	return e, nil
}

func (s *BadgerStore) UpdateSnippet(ctx context.Context, user, id, shortcut, replacement string) error {
	shortcut = strings.TrimSpace(shortcut)
	if shortcut == "" {
		return fmt.Errorf("%w: empty shortcut", ErrInvalidEntry)
	}
	var e SnippetEntry
	return s.modify(ctx, snipKey(user, id), &e, func() {
		e.Shortcut = shortcut
		e.Replacement = replacement
	})
}

func (s *BadgerStore) DeleteSnippet(ctx context.Context, user, id string) error {
	return s.remove(ctx, snipKey(user, id))
}

func (s *BadgerStore) GetUserStylePreference(ctx context.Context, user string) (string, error) {
	var style string
	err := s.get(ctx, prefKey(user, "style"), &style)
	if errors.Is(err, ErrNotFound) {
		return "", nil
	}
	return style, err
}

func (s *BadgerStore) SetUserStylePreference(ctx context.Context, user, style string) error {
	return s.put(ctx, prefKey(user, "style"), style)
}

func (s *BadgerStore) GetUserHotkeyPreference(ctx context.Context, user string) (HotkeyPreference, bool, error) {
	var pref HotkeyPreference
	err := s.get(ctx, prefKey(user, "hotkey"), &pref)
	if errors.Is(err, ErrNotFound) {
		return HotkeyPreference{}, false, nil
	}
	if err != nil {
		return HotkeyPreference{}, false, err
	}
	return pref, true, nil
}

func (s *BadgerStore) SetUserHotkeyPreference(ctx context.Context, user string, pref HotkeyPreference) error {
	return s.put(ctx, prefKey(user, "hotkey"), pref)
}

func (s *BadgerStore) SaveSpeech(ctx context.Context, user, text string, duration time.Duration) (Speech, error) {
	now := s.now()
	sp := Speech{
		ID:         uuid.NewString(),
		Owner:      user,
		Text:       text,
		DurationMs: duration.Milliseconds(),
		CreatedAt:  now,
	}
	// zero-padded nanos keep lexical and chronological order aligned
	key := fmt.Sprintf("%s%020d-%s", histPrefix(user), now.UnixNano(), sp.ID)
	if err := s.put(ctx, []byte(key), sp); err != nil {
		return Speech{}, fmt.Errorf("save speech: %w", err)
	}
	return sp, nil
}

func (s *BadgerStore) ListSpeech(ctx context.Context, user string, limit int) ([]Speech, error) {
	var out []Speech
	err := s.scan(ctx, histPrefix(user), true, limit, func(v []byte) error {
		var sp Speech
		if err := json.Unmarshal(v, &sp); err != nil {
			return err
		}
		out = append(out, sp)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("read history: %w", err)
	}
	return out, nil
}

func (s *BadgerStore) put(ctx context.Context, key []byte, v any) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(key, data)
	})
}

func (s *BadgerStore) get(ctx context.Context, key []byte, v any) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(key)
		if errors.Is(err, badger.ErrKeyNotFound) {
			return ErrNotFound
		}
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, v)
		})
	})
}

// modify reads key into v, applies change and writes it back in one transaction.
func (s *BadgerStore) modify(ctx context.Context, key []byte, v any, change func()) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.db.Update(func(txn *badger.Txn) error {
		item, err := txn.Get(key)
		if errors.Is(err, badger.ErrKeyNotFound) {
			return ErrNotFound
		}
		if err != nil {
			return err
		}
		if err := item.Value(func(val []byte) error { return json.Unmarshal(val, v) }); err != nil {
			return err
		}
		change()
		data, err := json.Marshal(v)
		if err != nil {
			return err
		}
		return txn.Set(key, data)
	})
}

func (s *BadgerStore) remove(ctx context.Context, key []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.db.Update(func(txn *badger.Txn) error {
		if _, err := txn.Get(key); err != nil {
			if errors.Is(err, badger.ErrKeyNotFound) {
				return ErrNotFound
			}
			return err
		}
		return txn.Delete(key)
	})
}

func (s *BadgerStore) scan(ctx context.Context, prefix []byte, reverse bool, limit int, fn func(v []byte) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix
		opts.Reverse = reverse
		it := txn.NewIterator(opts)
		defer it.Close()

		start := prefix
		if reverse {
			start = append(append([]byte{}, prefix...), 0xFF)
		}
		n := 0
		for it.Seek(start); it.ValidForPrefix(prefix); it.Next() {
			if limit > 0 && n >= limit {
				break
			}
			if err := it.Item().Value(fn); err != nil {
				return err
			}
			n++
		}
		return nil
	})
}
