package translate

import (
	"strings"
	"unicode"
)

var scripts = map[string][]*unicode.RangeTable{
	"ko": {unicode.Hangul},
	"ja": {unicode.Hiragana, unicode.Katakana, unicode.Han},
	"zh": {unicode.Han},
	"ru": {unicode.Cyrillic},
	"uk": {unicode.Cyrillic},
	"bg": {unicode.Cyrillic},
	"el": {unicode.Greek},
	"ar": {unicode.Arabic},
	"he": {unicode.Hebrew},
	"th": {unicode.Thai},
	"hi": {unicode.Devanagari},
}

var languageNames = map[string]string{
	"ko": "Korean", "en": "English", "ja": "Japanese", "zh": "Chinese",
	"ru": "Russian", "uk": "Ukrainian", "de": "German", "fr": "French",
	"es": "Spanish", "it": "Italian", "pt": "Portuguese", "nl": "Dutch",
	"el": "Greek", "ar": "Arabic", "he": "Hebrew", "th": "Thai", "hi": "Hindi",
}

// normalizeLang reduces tags such as "ko-KR" or "EN_us" to their primary subtag.
func normalizeLang(lang string) string {
	lang = strings.ToLower(strings.TrimSpace(lang))
	if i := strings.IndexAny(lang, "-_"); i > 0 {
		lang = lang[:i]
	}
	return lang
}

// LanguageName returns the English name of lang, or lang itself if unknown.
func LanguageName(lang string) string {
	if name, ok := languageNames[normalizeLang(lang)]; ok {
		return name
	}
	return lang
}

func scriptFor(lang string) []*unicode.RangeTable {
	if tables, ok := scripts[normalizeLang(lang)]; ok {
		return tables
	}
	return []*unicode.RangeTable{unicode.Latin}
}

// ScriptRatio returns the share of non-whitespace runes in text that belong
// to the writing system of lang. Languages without a dedicated entry are
// treated as Latin-script.
func ScriptRatio(text, lang string) float64 {
	tables := scriptFor(lang)
	total, match := 0, 0
	for _, r := range text {
		if unicode.IsSpace(r) {
			continue
		}
		total++
		if unicode.IsOneOf(tables, r) {
			match++
		}
	}
	if total == 0 {
		return 0
	}
	return float64(match) / float64(total)
}
