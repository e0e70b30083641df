package correction

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Thresholds tune the fuzzy matcher. The defaults were picked empirically.
type Thresholds struct {
	Fuzzy       float64 // Levenshtein similarity for words of 4+ letters
	ShortWord   float64 // Levenshtein similarity for shorter words
	Phonetic    float64
	Containment float64 // shorter/longer length ratio for substring matches
}

func DefaultThresholds() Thresholds {
	return Thresholds{Fuzzy: 0.60, ShortWord: 0.50, Phonetic: 0.40, Containment: 0.70}
}

const maxCombination = 3

var (
	tokenPattern = regexp.MustCompile(`\s+|\S+`)
	upper        = cases.Upper(language.Und)
)

// CorrectDictionary rewrites text against the dictionary words. Whitespace is
// kept verbatim. For each word it first tries exact matches of 1, 2 and 3
// consecutive words (case- and space-insensitive), then single-word fuzzy
// matching.
func CorrectDictionary(text string, words []string, th Thresholds) string {
	if strings.TrimSpace(text) == "" || len(words) == 0 {
		return text
	}

	exact := make(map[string]string, len(words))
	for _, w := range words {
		if key := normalize(w); key != "" {
			if _, dup := exact[key]; !dup {
				exact[key] = w
			}
		}
	}

	tokens := tokenPattern.FindAllString(text, -1)
	var out strings.Builder
	out.Grow(len(text))

	for i := 0; i < len(tokens); {
		if isSpace(tokens[i]) {
			out.WriteString(tokens[i])
			i++
			continue
		}

		if repl, next, ok := matchCombination(tokens, i, exact); ok {
			out.WriteString(repl)
			i = next
			continue
		}

		out.WriteString(fuzzyWord(tokens[i], words, th))
		i++
	}
	return out.String()
}

// matchCombination tries 1..3 word tokens starting at i. It returns the
// replacement text and the index of the first unconsumed token.
func matchCombination(tokens []string, i int, exact map[string]string) (string, int, bool) {
	var idx []int
	for j := i; j < len(tokens) && len(idx) < maxCombination; j++ {
		if isSpace(tokens[j]) {
			continue
		}
		idx = append(idx, j)

		var joined strings.Builder
		for _, k := range idx {
			joined.WriteString(tokens[k])
		}
		w, ok := exact[normalize(joined.String())]
		if !ok {
			continue
		}

		lead, _, _ := splitPunct(tokens[idx[0]])
		_, _, trail := splitPunct(tokens[j])
		var core strings.Builder
		for _, k := range idx {
			_, c, _ := splitPunct(tokens[k])
			core.WriteString(c)
		}
		return lead + matchCase(core.String(), w) + trail, j + 1, true
	}
	return "", i, false
}

func fuzzyWord(token string, words []string, th Thresholds) string {
	lead, core, trail := splitPunct(token)
	if utf8.RuneCountInString(core) <= 1 {
		return token
	}

	word := strings.ToLower(core)
	threshold := th.Fuzzy
	if utf8.RuneCountInString(word) < 4 {
		threshold = th.ShortWord
	}

	best, bestScore := "", 0.0
	for _, entry := range words {
		cand := strings.ToLower(strings.ReplaceAll(entry, " ", ""))
		if cand == "" {
			continue
		}

		if s := Similarity(word, cand); s >= threshold && s > bestScore {
			best, bestScore = entry, s
		}

		lw, lc := utf8.RuneCountInString(word), utf8.RuneCountInString(cand)
		short, long := min(lw, lc), max(lw, lc)
		ratio := float64(short) / float64(long)

		if (strings.Contains(word, cand) || strings.Contains(cand, word)) && ratio >= th.Containment && ratio > bestScore {
			best, bestScore = entry, ratio
		}

		if float64(long)/float64(short) >= 1.3 || long-short >= 3 {
			if s := PhoneticSimilarity(word, cand); s >= th.Phonetic && s > bestScore {
				best, bestScore = entry, s
			}
		}
	}

	if best == "" || best == core {
		return token
	}
	return lead + matchCase(core, best) + trail
}

// matchCase carries the capitalization pattern of original onto repl: an
// all-caps original (more than one letter) upper-cases repl, a capitalized
// original capitalizes repl's first letter, otherwise repl is kept as stored.
func matchCase(original, repl string) string {
	letters, uppers := 0, 0
	for _, r := range original {
		if unicode.IsLetter(r) {
			letters++
			if unicode.IsUpper(r) {
				uppers++
			}
		}
	}
	if letters > 1 && uppers == letters {
		return upper.String(repl)
	}
	first, _ := utf8.DecodeRuneInString(original)
	if unicode.IsUpper(first) {
		r, size := utf8.DecodeRuneInString(repl)
		return string(unicode.ToUpper(r)) + repl[size:]
	}
	return repl
}

// normalize drops everything but letters and digits and lower-cases.
func normalize(s string) string {
	var b strings.Builder
	for _, r := range s {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(unicode.ToLower(r))
		}
	}
	return b.String()
}

// splitPunct separates leading and trailing punctuation from a word token.
func splitPunct(token string) (lead, core, trail string) {
	start := strings.IndexFunc(token, isWordRune)
	if start < 0 {
		return token, "", ""
	}
	end := strings.LastIndexFunc(token, isWordRune)
	_, size := utf8.DecodeRuneInString(token[end:])
	return token[:start], token[start : end+size], token[end+size:]
}

func isSpace(token string) bool {
	r, _ := utf8.DecodeRuneInString(token)
	return unicode.IsSpace(r)
}
