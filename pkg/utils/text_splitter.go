package utils

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

var paragraphBreak = regexp.MustCompile(`\n\n+`)

// EstimateTokens approximates a token count as ceil(characters / 4).
// It is a cheap deterministic proxy, not a tokenizer.
func EstimateTokens(text string) int {
	n := utf8.RuneCountInString(text)
	return (n + 3) / 4
}

// SplitParagraphs splits on runs of blank lines.
func SplitParagraphs(text string) []string {
	return paragraphBreak.Split(text, -1)
}

// SplitSentences splits after '.', '!' or '?' when followed by whitespace.
// The whitespace run itself is dropped, the punctuation stays with its sentence.
func SplitSentences(text string) []string {
	var sentences []string
	runes := []rune(text)
	start := 0

	for i := 0; i < len(runes); i++ {
		if !unicode.IsSpace(runes[i]) || i == 0 {
			continue
		}
		prev := runes[i-1]
		if prev != '.' && prev != '!' && prev != '?' {
			continue
		}
		end := i
		for i < len(runes) && unicode.IsSpace(runes[i]) {
			i++
		}
		sentences = append(sentences, string(runes[start:end]))
		start = i
		i--
	}

	return append(sentences, string(runes[start:]))
}

// TailWords returns the last n whitespace-separated words of text joined by a single space.
func TailWords(text string, n int) string {
	words := strings.Fields(text)
	if n <= 0 {
		return ""
	}
	if len(words) > n {
		words = words[len(words)-n:]
	}
	return strings.Join(words, " ")
}
