package service

import (
	crand "crypto/rand"
	"fmt"
	"regexp"
)

const (
	// DefaultCodeLength is the length of generated shortcodes.
	DefaultCodeLength = 6

	// Generated codes must satisfy the same 4-12 character rule as
	// user-supplied ones.
	minCodeLength = 4
	maxCodeLength = 12

	// 64 URL-safe characters, so a random byte maps onto the alphabet
	// without modulo bias.
	codeAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789-_"
)

var codePattern = regexp.MustCompile(`^[A-Za-z0-9_-]{4,12}$`)

// ValidCodeFormat reports whether code is 4-12 URL-safe characters.
func ValidCodeFormat(code string) bool {
	return codePattern.MatchString(code)
}

// ShortcodeGenerator produces random URL-safe codes of a fixed length.
// It is a pure function of the randomness source; collision handling
// belongs to the registrar's insert loop.
type ShortcodeGenerator struct {
	length int
}

// NewShortcodeGenerator creates a generator with the given code length.
// Non-positive lengths fall back to DefaultCodeLength; other lengths
// are clamped into the valid code format range.
func NewShortcodeGenerator(length int) *ShortcodeGenerator {
	switch {
	case length <= 0:
		length = DefaultCodeLength
	case length < minCodeLength:
		length = minCodeLength
	case length > maxCodeLength:
		length = maxCodeLength
	}
	return &ShortcodeGenerator{length: length}
}

// Generate returns a new random shortcode.
func (g *ShortcodeGenerator) Generate() (string, error) {
	buf := make([]byte, g.length)
	if _, err := crand.Read(buf); err != nil {
		return "", fmt.Errorf("read randomness: %w", err)
	}
	for i, b := range buf {
		buf[i] = codeAlphabet[int(b)&63]
	}
	return string(buf), nil
}
