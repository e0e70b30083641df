package storage

import (
	"context"
	"fmt"
	"io"
	"strings"

	"gopkg.in/yaml.v3"
)

// ImportFile is the YAML layout accepted by `holdtype dict import`:
//
//	dictionary:
//	  - ShadCN
//	  - Kubernetes
//	snippets:
//	  - shortcut: brb
//	    replacement: be right back
type ImportFile struct {
	Dictionary []string       `yaml:"dictionary"`
	Snippets   []SnippetEntry `yaml:"snippets"`
}

type ImportResult struct {
	Words    int `json:"words"`
	Snippets int `json:"snippets"`
	Skipped  int `json:"skipped"`
}

// ImportYAML adds the entries of r for user. Words and shortcuts that already
// exist (case-insensitive) are skipped.
func ImportYAML(ctx context.Context, store Store, user string, r io.Reader) (ImportResult, error) {
	var f ImportFile
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil && err != io.EOF {
		return ImportResult{}, fmt.Errorf("parse import file: %w", err)
	}

	var res ImportResult

	existing, err := store.GetDictionaryEntries(ctx, user)
	if err != nil {
		return res, err
	}
	seen := make(map[string]bool, len(existing))
	for _, e := range existing {
		seen[strings.ToLower(e.Word)] = true
	}
	for _, w := range f.Dictionary {
		w = strings.TrimSpace(w)
		if w == "" || seen[strings.ToLower(w)] {
			res.Skipped++
			continue
		}
		if _, err := store.AddDictionaryEntry(ctx, user, w); err != nil {
			return res, fmt.Errorf("import word %q: %w", w, err)
		}
		seen[strings.ToLower(w)] = true
		res.Words++
	}

	snippets, err := store.GetSnippets(ctx, user)
	if err != nil {
		return res, err
	}
	seen = make(map[string]bool, len(snippets))
	for _, s := range snippets {
		seen[strings.ToLower(s.Shortcut)] = true
	}
	for _, s := range f.Snippets {
		key := strings.ToLower(strings.TrimSpace(s.Shortcut))
		if key == "" || seen[key] {
			res.Skipped++
			continue
		}
		if _, err := store.AddSnippet(ctx, user, s.Shortcut, s.Replacement); err != nil {
			return res, fmt.Errorf("import snippet %q: %w", s.Shortcut, err)
		}
		seen[key] = true
		res.Snippets++
	}
	return res, nil
}
