// Package lexicon matches keyword lists against lower-cased text.
//
// Terms written in ASCII letters must stand as whole words, so "he" does
// not match "the". Any other term (Hangul, markup fragments such as "<h2>")
// matches as a plain substring, since Korean attaches particles directly
// to nouns.
package lexicon

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// Index returns the byte offset of the first occurrence of term in text,
// or -1. Both are expected to be lower-cased.
func Index(text, term string) int {
	return indexFrom(text, term, 0)
}

// IndexAll returns the byte offsets of every non-overlapping occurrence.
func IndexAll(text, term string) []int {
	var out []int
	for from := 0; from < len(text); {
		i := indexFrom(text, term, from)
		if i < 0 {
			break
		}
		out = append(out, i)
		from = i + len(term)
	}
	return out
}

// Contains reports whether term occurs in text.
func Contains(text, term string) bool {
	return Index(text, term) >= 0
}

// Count returns how many distinct terms occur in text. Terms are lower-cased
// before matching.
func Count(text string, terms []string) int {
	n := 0
	for _, t := range terms {
		if Contains(text, strings.ToLower(t)) {
			n++
		}
	}
	return n
}

// Found returns the terms that occur in text, in list order.
func Found(text string, terms []string) []string {
	var out []string
	for _, t := range terms {
		if Contains(text, strings.ToLower(t)) {
			out = append(out, t)
		}
	}
	return out
}

func indexFrom(text, term string, from int) int {
	if term == "" || from >= len(text) {
		return -1
	}
	if !isASCIIWord(term) {
		i := strings.Index(text[from:], term)
		if i < 0 {
			return -1
		}
		return from + i
	}
	for offset := from; ; {
		i := strings.Index(text[offset:], term)
		if i < 0 {
			return -1
		}
		start := offset + i
		if boundaryBefore(text, start) && boundaryAfter(text, start+len(term)) {
			return start
		}
		offset = start + 1
	}
}

func isASCIIWord(s string) bool {
	for _, r := range s {
		if r >= utf8.RuneSelf || (!unicode.IsLetter(r) && r != ' ' && r != '-') {
			return false
		}
	}
	return true
}

func boundaryBefore(s string, i int) bool {
	if i == 0 {
		return true
	}
	r, _ := utf8.DecodeLastRuneInString(s[:i])
	return !isWordRune(r)
}

func boundaryAfter(s string, i int) bool {
	if i >= len(s) {
		return true
	}
	r, _ := utf8.DecodeRuneInString(s[i:])
	return !isWordRune(r)
}

func isWordRune(r rune) bool {
	return r < utf8.RuneSelf && (unicode.IsLetter(r) || unicode.IsDigit(r))
}
