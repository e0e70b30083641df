package correction

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/antzucaro/matchr"
)

// Similarity is the normalized Levenshtein similarity
// 1 - distance/max(len(a), len(b)), measured in runes.
// Two empty strings are identical.
func Similarity(a, b string) float64 {
	la, lb := utf8.RuneCountInString(a), utf8.RuneCountInString(b)
	longest := max(la, lb)
	if longest == 0 {
		return 1
	}
	return 1 - float64(matchr.Levenshtein(a, b))/float64(longest)
}

var digraphs = strings.NewReplacer("sch", "sh", "ck", "k", "ph", "f", "qu", "kw")

// equivalent spellings of the same leading sound
var prefixGroups = [][]string{{"sch", "sh", "ch"}}

// PhoneticSimilarity estimates whether a and b sound alike.
//
//	0.50 consonant-skeleton similarity
//	0.25 shared prefix over up to 3 leading letters
//	0.10 shared suffix over up to 2 trailing letters
//	0.15 shared consonant bigrams, capped at 2
func PhoneticSimilarity(a, b string) float64 {
	a, b = lettersOnly(a), lettersOnly(b)
	if a == "" || b == "" {
		return 0
	}

	ska, skb := consonants(a), consonants(b)
	var skeleton float64
	if ska != "" && skb != "" {
		skeleton = Similarity(ska, skb)
	}

	shared := 0
	bigrams := consonantBigrams(ska)
	for bg := range consonantBigrams(skb) {
		if bigrams[bg] {
			shared++
		}
	}
	clusters := float64(min(shared, 2)) / 2

	return 0.5*skeleton + 0.25*prefixScore(a, b) + 0.10*suffixScore(a, b) + 0.15*clusters
}

func prefixScore(a, b string) float64 {
	for _, group := range prefixGroups {
		if hasAnyPrefix(a, group) && hasAnyPrefix(b, group) {
			return 1
		}
	}
	ra, rb := []rune(a), []rune(b)
	n := min(3, len(ra), len(rb))
	match := 0
	for i := 0; i < n && ra[i] == rb[i]; i++ {
		match++
	}
	return float64(match) / float64(n)
}

func suffixScore(a, b string) float64 {
	ra, rb := []rune(a), []rune(b)
	n := min(2, len(ra), len(rb))
	match := 0
	for i := 1; i <= n && ra[len(ra)-i] == rb[len(rb)-i]; i++ {
		match++
	}
	return float64(match) / float64(n)
}

func hasAnyPrefix(s string, prefixes []string) bool {
	for _, p := range prefixes {
		if strings.HasPrefix(s, p) {
			return true
		}
	}
	return false
}

func lettersOnly(s string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(s) {
		if unicode.IsLetter(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// consonants returns the consonant skeleton after digraph normalization.
func consonants(s string) string {
	s = digraphs.Replace(s)
	var b strings.Builder
	for _, r := range s {
		if !strings.ContainsRune("aeiouy", r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}

func consonantBigrams(skeleton string) map[string]bool {
	r := []rune(skeleton)
	out := make(map[string]bool, len(r))
	for i := 0; i+1 < len(r); i++ {
		out[string(r[i:i+2])] = true
	}
	return out
}
