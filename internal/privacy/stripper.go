// Package privacy redacts personal data from user messages before they are
// persisted to the message log.
package privacy

import (
	"regexp"
	"strings"
)

var (
	// emailRegex matches common email address shapes.
	emailRegex = regexp.MustCompile(`[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}`)

	// phoneRegex matches phone numbers with at least 7 digits, allowing
	// separators and an optional country prefix. Shorter digit runs stay
	// untouched so BPM values and song positions survive.
	phoneRegex = regexp.MustCompile(`\+?\d[\d\s().\-]{6,}\d`)
)

const (
	emailPlaceholder = "[email]"
	phonePlaceholder = "[phone]"
)

// RedactEmails replaces email addresses with a placeholder.
func RedactEmails(text string) string {
	return emailRegex.ReplaceAllString(text, emailPlaceholder)
}

// RedactPhones replaces phone-number-like digit runs with a placeholder.
func RedactPhones(text string) string {
	return phoneRegex.ReplaceAllStringFunc(text, func(match string) string {
		if digitCount(match) < 7 {
			return match
		}
		return phonePlaceholder
	})
}

func digitCount(s string) int {
	n := 0
	for _, r := range s {
		if r >= '0' && r <= '9' {
			n++
		}
	}
	return n
}

// Redact performs full redaction on text. Call this before storing any
// user-authored content.
func Redact(text string) string {
	text = RedactEmails(text)
	text = RedactPhones(text)
	return strings.TrimSpace(text)
}
