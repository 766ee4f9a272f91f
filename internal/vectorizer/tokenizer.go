package vectorizer

import (
	"regexp"
	"strings"
	"sync"
	"unicode"

	"github.com/blevesearch/bleve/v2/analysis"
	"github.com/blevesearch/bleve/v2/analysis/lang/en"
)

// tokenPattern matches runs of at least two letters, digits, or underscores.
var tokenPattern = regexp.MustCompile(`[\p{L}\p{N}_]{2,}`)

var loadEnglishStopWords = sync.OnceValue(func() analysis.TokenMap {
	tm := analysis.NewTokenMap()
	if err := tm.LoadBytes(en.EnglishStopWords); err != nil {
		panic("vectorizer: load english stop words: " + err.Error())
	}
	return tm
})

// EnglishStopWords returns the fixed English stop word set used by default.
func EnglishStopWords() analysis.TokenMap {
	return loadEnglishStopWords()
}

// Tokenize lowercases text and splits it into terms, dropping stop words and purely numeric tokens.
func Tokenize(text string, stopWords analysis.TokenMap) []string {
	raw := tokenPattern.FindAllString(strings.ToLower(text), -1)
	tokens := raw[:0]
	for _, tok := range raw {
		if isNumeric(tok) {
			continue
		}
		if _, stop := stopWords[tok]; stop {
			continue
		}
		tokens = append(tokens, tok)
	}
	return tokens
}

func isNumeric(tok string) bool {
	for _, r := range tok {
		if !unicode.IsNumber(r) {
			return false
		}
	}
	return true
}
