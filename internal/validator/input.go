// Package validator checks and cleans operator input before it enters the
// conversation history.
package validator

import (
	"errors"
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"
)

// DefaultMaxLength bounds a single operator message.
const DefaultMaxLength = 20000

// InputValidator validates operator messages.
type InputValidator struct {
	maxLength int
}

// NewInputValidator creates a validator. A non-positive maxLength selects
// DefaultMaxLength.
func NewInputValidator(maxLength int) *InputValidator {
	if maxLength <= 0 {
		maxLength = DefaultMaxLength
	}
	return &InputValidator{maxLength: maxLength}
}

// MaxLength returns the configured bound in characters.
func (v *InputValidator) MaxLength() int {
	return v.maxLength
}

// Validate rejects input that is empty, not UTF-8 or too long.
func (v *InputValidator) Validate(input string) error {
	if !utf8.ValidString(input) {
		return errors.New("input is not valid UTF-8")
	}
	if strings.TrimSpace(input) == "" {
		return errors.New("input is empty")
	}
	if n := utf8.RuneCountInString(input); n > v.maxLength {
		return fmt.Errorf("input too long: %d characters, maximum %d", n, v.maxLength)
	}
	return nil
}

// Sanitize trims surrounding blank lines and trailing spaces and drops
// control characters other than newline and tab. Inner line structure is
// kept.
func (v *InputValidator) Sanitize(input string) string {
	input = strings.Map(func(r rune) rune {
		if r == '\n' || r == '\t' || !unicode.IsControl(r) {
			return r
		}
		return -1
	}, input)

	lines := strings.Split(input, "\n")
	for i, l := range lines {
		lines[i] = strings.TrimRightFunc(l, unicode.IsSpace)
	}
	return strings.Trim(strings.Join(lines, "\n"), "\n")
}
