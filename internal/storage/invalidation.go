package storage

import "context"

// CacheInvalidator is notified after a user's entries changed.
type CacheInvalidator interface {
	InvalidateDictionaryCache(user string)
	InvalidateSnippetsCache(user string)
}

// WithInvalidation wraps store so that every successful dictionary or snippet
// mutation invalidates the matching cache before the call returns.
func WithInvalidation(store Store, inv CacheInvalidator) Store {
	return &invalidatingStore{Store: store, inv: inv}
}

type invalidatingStore struct {
	Store
	inv CacheInvalidator
}

func (s *invalidatingStore) AddDictionaryEntry(ctx context.Context, user, word string) (DictionaryEntry, error) {
	e, err := s.Store.AddDictionaryEntry(ctx, user, word)
	if err == nil {
		s.inv.InvalidateDictionaryCache(user)
	}
	return e, err
}

func (s *invalidatingStore) UpdateDictionaryEntry(ctx context.Context, user, id, word string) error {
	err := s.Store.UpdateDictionaryEntry(ctx, user, id, word)
	if err == nil {
		s.inv.InvalidateDictionaryCache(user)
	}
	return err
}

func (s *invalidatingStore) DeleteDictionaryEntry(ctx context.Context, user, id string) error {
	err := s.Store.DeleteDictionaryEntry(ctx, user, id)
	if err == nil {
		s.inv.InvalidateDictionaryCache(user)
	}
	return err
}

func (s *invalidatingStore) AddSnippet(ctx context.Context, user, shortcut, replacement string) (SnippetEntry, error) {
	e, err := s.Store.AddSnippet(ctx, user, shortcut, replacement)
	if err == nil {
		s.inv.InvalidateSnippetsCache(user)
	}
	return e, err
}

func (s *invalidatingStore) UpdateSnippet(ctx context.Context, user, id, shortcut, replacement string) error {
	err := s.Store.UpdateSnippet(ctx, user, id, shortcut, replacement)
	if err == nil {
		s.inv.InvalidateSnippetsCache(user)
	}
	return err
}

func (s *invalidatingStore) DeleteSnippet(ctx context.Context, user, id string) error {
	err := s.Store.DeleteSnippet(ctx, user, id)
	if err == nil {
		s.inv.InvalidateSnippetsCache(user)
	}
	return err
}
