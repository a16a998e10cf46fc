package utils

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"
)

var (
	addressPattern    = regexp.MustCompile(`^0x[0-9a-fA-F]{40}$`)
	privateKeyPattern = regexp.MustCompile(`^0x[0-9a-fA-F]{64}$`)
)

// ErrInvalidAddress is returned when an account identifier is not 0x followed by 40 hex digits.
var ErrInvalidAddress = errors.New("invalid address")

// NormalizeAddress validates a 20-byte hex address and returns its lowercase form.
// Mixed-case inputs with the same digits normalize to the same key.
func NormalizeAddress(raw string) (string, error) {
	if !addressPattern.MatchString(raw) {
		return "", fmt.Errorf("%w: %q", ErrInvalidAddress, Truncate(raw, 64))
	}
	return strings.ToLower(raw), nil
}

// IsAddress reports whether s is 0x followed by exactly 40 hex digits.
func IsAddress(s string) bool {
	return addressPattern.MatchString(s)
}

// IsPrivateKey reports whether s is 0x followed by exactly 64 hex digits.
func IsPrivateKey(s string) bool {
	return privateKeyPattern.MatchString(s)
}

// Truncate shortens s to at most max runes.
func Truncate(s string, max int) string {
	if max <= 0 {
		return ""
	}
	if utf8.RuneCountInString(s) <= max {
		return s
	}
	runes := []rune(s)
	return string(runes[:max])
}
