package vocabulary

import (
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

// Script classifies a run of text for segmentation.
type Script int

const (
	// ScriptWord covers Latin and every other script that separates words
	// with spaces or punctuation.
	ScriptWord Script = iota
	// ScriptHan covers CJK ideographs, which are written without spaces.
	ScriptHan
)

// segmenter normalizes one script-homogeneous run into a token.
type segmenter interface {
	normalize(run string) string
}

type wordSegmenter struct{}

// A Caser is stateful, so each call gets its own.
func (wordSegmenter) normalize(run string) string {
	return cases.Fold().String(run)
}

// hanSegmenter keeps ideographs as written: no case, and simplified and
// traditional forms stay distinct.
type hanSegmenter struct{}

func (hanSegmenter) normalize(run string) string { return run }

// Tokenizer splits recognized text into normalized, dedup-comparable tokens.
// The segmenter is chosen per run by inspecting code points, never by the
// configured languages, because one recognition pass can mix scripts.
type Tokenizer struct {
	segmenters map[Script]segmenter
}

func NewTokenizer() *Tokenizer {
	return &Tokenizer{segmenters: map[Script]segmenter{
		ScriptWord: wordSegmenter{},
		ScriptHan:  hanSegmenter{},
	}}
}

// Tokens returns the tokens of text in reading order, duplicates included.
func (t *Tokenizer) Tokens(text string) []string {
	runes := []rune(norm.NFC.String(text))

	var tokens []string
	start := -1
	flush := func(end int) {
		if start < 0 {
			return
		}
		run := runes[start:end]
		start = -1
		tokens = t.appendRun(tokens, run)
	}

	for i := range runes {
		if isSeparator(runes, i) {
			flush(i)
			continue
		}
		if start < 0 {
			start = i
		}
	}
	flush(len(runes))
	return tokens
}

// appendRun splits a separator-free run at every script boundary.
func (t *Tokenizer) appendRun(tokens []string, run []rune) []string {
	begin := 0
	for i := 1; i <= len(run); i++ {
		if i < len(run) && scriptOf(run[i]) == scriptOf(run[begin]) {
			continue
		}
		seg := t.segmenters[scriptOf(run[begin])]
		if tok := seg.normalize(string(run[begin:i])); tok != "" {
			tokens = append(tokens, tok)
		}
		begin = i
	}
	return tokens
}

func scriptOf(r rune) Script {
	if unicode.Is(unicode.Han, r) {
		return ScriptHan
	}
	return ScriptWord
}

// isSeparator reports whether runes[i] ends a token. Apostrophes and hyphens
// joining two letters or digits are part of the word.
func isSeparator(runes []rune, i int) bool {
	r := runes[i]
	if unicode.IsSpace(r) || unicode.IsControl(r) {
		return true
	}
	if !unicode.IsPunct(r) && !unicode.IsSymbol(r) {
		return false
	}
	if r == '\'' || r == '’' || r == '-' {
		if i > 0 && i < len(runes)-1 && isWordRune(runes[i-1]) && isWordRune(runes[i+1]) {
			return false
		}
	}
	return true
}

func isWordRune(r rune) bool {
	return (unicode.IsLetter(r) || unicode.IsDigit(r)) && !unicode.Is(unicode.Han, r)
}
