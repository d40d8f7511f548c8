package llm

import (
	"unicode"

	"github.com/soundprediction/graphfuse/pkg/types"
)

// TokenCounter provides token counting functionality.
type TokenCounter interface {
	CountTokens(text string) int
}

// SimpleTokenCounter estimates token counts without a model tokenizer.
// Han, Hiragana, Katakana and Hangul runes count as one token each, every
// other run of letters or digits counts as 1.3 tokens.
type SimpleTokenCounter struct{}

// NewSimpleTokenCounter creates a new simple token counter.
func NewSimpleTokenCounter() *SimpleTokenCounter {
	return &SimpleTokenCounter{}
}

func isCJK(r rune) bool {
	return unicode.In(r, unicode.Han, unicode.Hiragana, unicode.Katakana, unicode.Hangul)
}

// CountTokens estimates the number of tokens in text.
func (s *SimpleTokenCounter) CountTokens(text string) int {
	if text == "" {
		return 0
	}

	cjk, words := 0, 0
	inWord := false
	for _, r := range text {
		switch {
		case isCJK(r):
			cjk++
			inWord = false
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			if !inWord {
				words++
				inWord = true
			}
		default:
			inWord = false
		}
	}

	return cjk + int(float64(words)*1.3)
}

// GetTokenCount is a convenience function that uses the simple token counter.
func GetTokenCount(text string) int {
	return NewSimpleTokenCounter().CountTokens(text)
}

// EstimateTokensFromMessages estimates prompt tokens for a slice of messages.
func EstimateTokensFromMessages(messages []types.Message) int {
	total := 0
	for _, msg := range messages {
		total += GetTokenCount(msg.Content)
		total += 4 // role and formatting overhead
	}
	return total
}
