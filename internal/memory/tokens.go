package memory

import (
	"unicode/utf8"

	"omnichat/internal/store"
)

// =============================================================================
// Token Counting Utilities
// =============================================================================
// The heuristic is calibrated for Gemini's tokenizer (~4 characters per
// token). When the API reported real usage for a turn, the stored
// estimate wins over the heuristic.

// attachmentTokens is the flat cost charged per attached media part.
// Gemini bills a fixed 258 tokens per image tile; close enough for
// budget purposes.
const attachmentTokens = 258

// TokenCounter provides token estimation for context budget management.
type TokenCounter struct {
	charsPerToken float64
}

// NewTokenCounter creates a token counter with default calibration.
func NewTokenCounter() *TokenCounter {
	return &TokenCounter{
		charsPerToken: 4.0,
	}
}

// CountString estimates tokens in a string.
func (tc *TokenCounter) CountString(s string) int {
	if s == "" {
		return 0
	}
	// Rune count for proper unicode handling
	runeCount := utf8.RuneCountInString(s)
	return int(float64(runeCount) / tc.charsPerToken)
}

// CountMessage estimates tokens for one stored turn.
func (tc *TokenCounter) CountMessage(msg store.Message) int {
	// Base overhead for role framing
	tokens := 10 + tc.CountString(msg.Content)
	tokens += len(msg.Attachments) * attachmentTokens
	return tokens
}

// EffectiveTokens returns the API-reported estimate when present,
// falling back to the heuristic.
func (tc *TokenCounter) EffectiveTokens(msg store.Message) int {
	if msg.TokenEstimate > 0 {
		return msg.TokenEstimate
	}
	return tc.CountMessage(msg)
}

// CountHistory estimates total tokens across a session history.
func (tc *TokenCounter) CountHistory(msgs []store.Message) int {
	total := 0
	for _, msg := range msgs {
		total += tc.EffectiveTokens(msg)
	}
	return total
}
