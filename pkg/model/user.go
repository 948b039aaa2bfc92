// Package model defines the core domain types for huddle.
package model

import (
	"errors"
	"fmt"
	"strings"
	"unicode"
)

// MaxNameLength bounds participant display names.
const MaxNameLength = 64

var (
	ErrNameEmpty   = errors.New("display name must not be empty")
	ErrNameTooLong = fmt.Errorf("display name must not exceed %d characters", MaxNameLength)
)

// ValidateName checks a participant-supplied display name after sanitizing.
// Returns nil on success or a descriptive error.
func ValidateName(name string) error {
	if len(name) == 0 {
		return ErrNameEmpty
	}
	if len(name) > MaxNameLength {
		return ErrNameTooLong
	}
	return nil
}

// SanitizeText strips control characters from user-supplied text to prevent
// UI spoofing, terminal escape injection, and null-byte attacks. Newlines are
// collapsed to spaces.
func SanitizeText(s string) string {
	return strings.Map(func(r rune) rune {
		if r == '\n' || r == '\r' {
			return ' '
		}
		if unicode.IsControl(r) {
			return -1
		}
		return r
	}, s)
}
