// Package language lists the recognition languages the local models accept.
package language

import (
	"sort"

	"golang.org/x/text/language"
	"golang.org/x/text/language/display"
)

// Language represents a supported recognition language
type Language struct {
	Code       string // ISO 639-1 code (e.g., "en", "es", "zh")
	Name       string // English name
	NativeName string // name in the language itself
}

// Auto represents auto-detection - used when user doesn't specify a language
var Auto = Language{Code: "", Name: "Auto-detect", NativeName: ""}

// whisper's well-supported languages
var codes = []string{
	"af", "ar", "hy", "az", "be", "bs", "bg", "ca", "zh", "hr", "cs", "da", "nl", "en",
	"et", "fi", "fr", "gl", "de", "el", "he", "hi", "hu", "is", "id", "it", "ja", "kn",
	"kk", "ko", "lv", "lt", "mk", "ms", "mr", "mi", "ne", "no", "fa", "pl", "pt", "ro",
	"ru", "sr", "sk", "sl", "es", "sw", "sv", "tl", "ta", "th", "tr", "uk", "ur", "vi", "cy",
}

var (
	languages []Language
	codeIndex map[string]Language
)

func init() {
	english := display.English.Languages()
	languages = make([]Language, 0, len(codes))
	codeIndex = make(map[string]Language, len(codes)+1)
	codeIndex[""] = Auto

	for _, code := range codes {
		tag := language.Make(code)
		lang := Language{
			Code:       code,
			Name:       english.Name(tag),
			NativeName: display.Self.Name(tag),
		}
		if lang.Name == "" {
			lang.Name = code
		}
		languages = append(languages, lang)
		codeIndex[code] = lang
	}
	sort.Slice(languages, func(i, j int) bool { return languages[i].Name < languages[j].Name })
}

// FromCode returns the Language for the given code.
// Returns Auto if code is not found.
func FromCode(code string) Language {
	if lang, ok := codeIndex[code]; ok {
		return lang
	}
	return Auto
}

// List returns all supported languages sorted by English name (excluding Auto)
func List() []Language {
	result := make([]Language, len(languages))
	copy(result, languages)
	return result
}

// IsValidCode returns true if the code is recognized (including empty for auto)
func IsValidCode(code string) bool {
	_, ok := codeIndex[code]
	return ok
}
