package ir

import (
	"fmt"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// E164 is a phone number in E.164 form: "+" followed by up to 15 digits,
// the first of which is not zero.
type E164 string

// maxE164Digits is the ITU-T E.164 limit.
const maxE164Digits = 15

// ParseE164 normalizes and validates a phone number.
//
// Input is NFKC-normalized first so full-width digits and plus signs fold to
// ASCII. Common visual separators (space, '-', '.', '(', ')') are dropped.
// Anything else that is not a digit is rejected.
func ParseE164(s string) (E164, error) {
	folded := norm.NFKC.String(strings.TrimSpace(s))

	var b strings.Builder
	b.Grow(len(folded))
	for i, r := range folded {
		switch {
		case r == '+' && i == 0:
			b.WriteRune(r)
		case r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == ' ' || r == '-' || r == '.' || r == '(' || r == ')':
			// separator
		default:
			return "", fmt.Errorf("parse e164 %q: unexpected character %q", s, r)
		}
	}

	out := b.String()
	if !strings.HasPrefix(out, "+") {
		return "", fmt.Errorf("parse e164 %q: missing leading '+'", s)
	}
	digits := out[1:]
	if len(digits) < 2 || len(digits) > maxE164Digits {
		return "", fmt.Errorf("parse e164 %q: expected 2-%d digits, got %d", s, maxE164Digits, len(digits))
	}
	if digits[0] == '0' {
		return "", fmt.Errorf("parse e164 %q: country code cannot start with 0", s)
	}
	return E164(out), nil
}

// MustParseE164 is like ParseE164 but panics on error.
// Intended for tests and constants.
func MustParseE164(s string) E164 {
	p, err := ParseE164(s)
	if err != nil {
		panic(err)
	}
	return p
}

// String returns the normalized form.
func (p E164) String() string {
	return string(p)
}

// Ptr returns a pointer to a copy of p.
func (p E164) Ptr() *E164 {
	return &p
}

// Redacted returns the number with all but the last two digits masked,
// for use in logs.
func (p E164) Redacted() string {
	s := string(p)
	if len(s) <= 3 {
		return "+**"
	}
	return "+" + strings.Repeat("*", len(s)-3) + s[len(s)-2:]
}
