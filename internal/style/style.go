// Package style reformats recognized text for a writing style: filler words
// are dropped, whitespace collapsed, then punctuation and capitalization
// rules applied.
package style

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

type Style string

const (
	Formal     Style = "formal"
	Casual     Style = "casual"
	VeryCasual Style = "very_casual"
)

var Styles = []Style{Formal, Casual, VeryCasual}

// ParseStyle maps a stored preference to a Style; unknown values are formal.
func ParseStyle(s string) Style {
	switch Style(strings.ToLower(strings.TrimSpace(s))) {
	case Casual:
		return Casual
	case VeryCasual:
		return VeryCasual
	default:
		return Formal
	}
}

func (s Style) Valid() bool {
	return s == Formal || s == Casual || s == VeryCasual
}

// casual only adds commas in sentences longer than this
const casualCommaMinLength = 50

var (
	fillerPattern     = regexp.MustCompile(`(?i)\b(?:um+|uh+|uhm|erm|er|ah|hmm+|you know)\b,?`)
	horizontalSpace   = regexp.MustCompile(`[^\S\n]+`)
	spaceAroundNL     = regexp.MustCompile(` *\n *`)
	spaceBeforePunct  = regexp.MustCompile(`\s+([.,!?;:])`)
	repeatedDots      = regexp.MustCompile(`\.{2,}`)
	repeatedBangs     = regexp.MustCompile(`!{2,}`)
	repeatedCommas    = regexp.MustCompile(`,{2,}`)
	caseTransition    = regexp.MustCompile(`(\p{Ll})(\p{Lu})`)
	word              = regexp.MustCompile(`\S+`)
	formalConjunction = regexp.MustCompile(`([\p{L}\p{N}])( +)(and|but|or|so)\b`)
	casualConjunction = regexp.MustCompile(`([\p{L}\p{N}])( +)(and|but|or)\b`)
	sentenceStart     = regexp.MustCompile(`([.!?][^\S\n]+|\n[^\S\n]*)(\p{Ll})`)
	terminalPunct     = regexp.MustCompile(`[.!?;:,]+$`)

	lower = cases.Lower(language.Und)
)

var subordinators = map[string]bool{
	"if": true, "when": true, "after": true, "before": true, "although": true, "because": true,
}

var subjects = map[string]bool{
	"i": true, "you": true, "he": true, "she": true, "it": true, "we": true, "they": true,
}

// Format applies style to text. Protected terms (dictionary words) are never
// split at a lower-to-upper case transition inside a word. Format never
// fails; empty input yields empty output.
func Format(text string, style Style, protected ...string) string {
	if !style.Valid() {
		style = Formal
	}

	out := stripFillers(text)
	if out == "" {
		return ""
	}

	switch style {
	case VeryCasual:
		return formatVeryCasual(text, out)
	default:
		out = formalPunctuation(out, style, protected)
		return capitalize(out)
	}
}

func stripFillers(text string) string {
	out := fillerPattern.ReplaceAllString(text, "")
	return collapse(out)
}

// collapse squeezes runs of spaces and tabs, keeping line breaks.
func collapse(text string) string {
	text = horizontalSpace.ReplaceAllString(text, " ")
	text = spaceAroundNL.ReplaceAllString(text, "\n")
	return strings.TrimSpace(text)
}

func formatVeryCasual(original, text string) string {
	question := strings.HasSuffix(strings.TrimRightFunc(original, unicode.IsSpace), "?")
	text = strings.NewReplacer(".", "", ",", "").Replace(text)
	text = collapse(text)
	text = strings.TrimRight(text, "!?;: ")
	if text == "" {
		return ""
	}
	if question {
		text += "?"
	}
	return lower.String(text)
}

func formalPunctuation(text string, style Style, protected []string) string {
	text = repeatedDots.ReplaceAllString(text, ".")
	text = repeatedBangs.ReplaceAllString(text, "!")
	text = repeatedCommas.ReplaceAllString(text, ",")
	text = spaceBeforePunct.ReplaceAllString(text, "$1")

	text = splitTransitions(text, protected)

	sentences := splitSentences(text)
	for i, s := range sentences {
		sentences[i] = addCommas(s, style)
	}
	text = strings.Join(sentences, "")

	text = strings.TrimRight(text, " ")
	if !strings.HasSuffix(text, ".") && !strings.HasSuffix(text, "!") && !strings.HasSuffix(text, "?") {
		text = terminalPunct.ReplaceAllString(text, "") + "."
	}
	return text
}

// splitTransitions ends a sentence where the recognizer glued two together,
// a lowercase letter directly followed by an uppercase one ("homeNow" ->
// "home. Now"). Words listed in protected are left alone.
func splitTransitions(text string, protected []string) string {
	keep := make(map[string]bool, len(protected))
	for _, p := range protected {
		for _, f := range strings.Fields(p) {
			keep[strings.ToLower(f)] = true
		}
	}

	return word.ReplaceAllStringFunc(text, func(w string) string {
		bare := strings.TrimFunc(w, func(r rune) bool { return !unicode.IsLetter(r) && !unicode.IsNumber(r) })
		if keep[strings.ToLower(bare)] {
			return w
		}
		return caseTransition.ReplaceAllString(w, "$1. $2")
	})
}

// splitSentences cuts after . ! ? followed by whitespace; separators stay
// attached so joining the parts restores the text.
func splitSentences(text string) []string {
	var parts []string
	start := 0
	for i, r := range text {
		if r != '.' && r != '!' && r != '?' && r != '\n' {
			continue
		}
		next := i + utf8.RuneLen(r)
		if r != '\n' && (next >= len(text) || !unicode.IsSpace(rune(text[next]))) {
			continue
		}
		for next < len(text) && unicode.IsSpace(rune(text[next])) {
			next++
		}
		if next > start {
			parts = append(parts, text[start:next])
			start = next
		}
	}
	if start < len(text) {
		parts = append(parts, text[start:])
	}
	return parts
}

func addCommas(sentence string, style Style) string {
	if style == Casual {
		if utf8.RuneCountInString(strings.TrimSpace(sentence)) <= casualCommaMinLength {
			return sentence
		}
		return casualConjunction.ReplaceAllString(sentence, "$1,$2$3")
	}
	sentence = subordinateComma(sentence)
	return formalConjunction.ReplaceAllString(sentence, "$1,$2$3")
}

// subordinateComma turns "if it rains we stay" into "if it rains, we stay":
// after a leading subordinator the first subject pronoun from the third word
// on opens the main clause.
func subordinateComma(sentence string) string {
	words := strings.Fields(sentence)
	if len(words) < 3 || !subordinators[strings.ToLower(words[0])] {
		return sentence
	}
	if strings.Contains(sentence, ",") {
		return sentence
	}
	for i := 2; i < len(words); i++ {
		if !subjects[strings.ToLower(strings.TrimRight(words[i], ".!?"))] {
			continue
		}
		// locate the i-th word in the original string to keep spacing
		pos := wordOffset(sentence, i)
		if pos <= 0 {
			return sentence
		}
		before := strings.TrimRight(sentence[:pos], " ")
		return before + "," + sentence[len(before):]
	}
	return sentence
}

func wordOffset(s string, n int) int {
	inWord := false
	count := -1
	for i, r := range s {
		if unicode.IsSpace(r) {
			inWord = false
			continue
		}
		if !inWord {
			inWord = true
			count++
			if count == n {
				return i
			}
		}
	}
	return -1
}

// capitalize upper-cases the first letter of the text and every letter
// starting a sentence or a line.
func capitalize(text string) string {
	if i := strings.IndexFunc(text, unicode.IsLetter); i >= 0 {
		r, size := utf8.DecodeRuneInString(text[i:])
		text = text[:i] + string(unicode.ToUpper(r)) + text[i+size:]
	}
	return sentenceStart.ReplaceAllStringFunc(text, func(m string) string {
		r, size := utf8.DecodeLastRuneInString(m)
		return m[:len(m)-size] + string(unicode.ToUpper(r))
	})
}
