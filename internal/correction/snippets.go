package correction

import (
	"regexp"
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/leonardotrapani/holdtype/internal/storage"
)

// ReplaceSnippets expands every snippet shortcut in text, longest shortcut
// first so "brb soon" wins over "brb". Matching is case-insensitive and
// whole-word; the replacement is inserted literally.
func ReplaceSnippets(text string, snippets []storage.SnippetEntry) string {
	if text == "" || len(snippets) == 0 {
		return text
	}

	ordered := make([]storage.SnippetEntry, len(snippets))
	copy(ordered, snippets)
	sort.SliceStable(ordered, func(i, j int) bool {
		return utf8.RuneCountInString(ordered[i].Shortcut) > utf8.RuneCountInString(ordered[j].Shortcut)
	})

	for _, s := range ordered {
		re := snippetPattern(strings.TrimSpace(s.Shortcut))
		if re == nil {
			continue
		}
		text = re.ReplaceAllLiteralString(text, s.Replacement)
	}
	return text
}

// snippetPattern only anchors on \b where the shortcut edge is a word
// character; "c++" or ":shrug:" would never match otherwise.
func snippetPattern(shortcut string) *regexp.Regexp {
	if shortcut == "" {
		return nil
	}
	first, _ := utf8.DecodeRuneInString(shortcut)
	last, _ := utf8.DecodeLastRuneInString(shortcut)

	var b strings.Builder
	b.WriteString("(?i)")
	if isWordRune(first) {
		b.WriteString(`\b`)
	}
	b.WriteString(regexp.QuoteMeta(shortcut))
	if isWordRune(last) {
		b.WriteString(`\b`)
	}
	re, err := regexp.Compile(b.String())
	if err != nil {
		return nil
	}
	return re
}

func isWordRune(r rune) bool {
	return r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r)
}
