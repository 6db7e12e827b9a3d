// Package phone extracts and compares phone-number identifiers.
//
// A normalized identifier is a string of digits with an optional leading plus
// sign. Identifiers with fewer than [MinDigits] digits are not valid.
//
// Two identifiers are equal when their normalized forms are identical, or when
// both have at least [MinDigits] digits and their trailing [MinDigits] digits
// are identical. The suffix rule absorbs country-code and formatting drift
// between a number read off a screen and the same number as stored in an
// address book:
//
//	phone.Equal("+1 415-555-2671", "(415) 555 2671") // true
//	phone.Equal("+14155552671", "5552671")           // false
package phone

import (
	"iter"
	"regexp"
	"strings"
)

// MinDigits is the minimum digit count of a valid identifier and the length of
// the suffix used for fuzzy equality.
const MinDigits = 10

// candidatePattern matches an international phone-number shape: an optional
// plus, 1-4 digits, then two to four groups of 2-4 digits each optionally
// separated by a single space or hyphen.
var candidatePattern = regexp.MustCompile(`\+?[0-9]{1,4}(?:[ \-]?[0-9]{2,4}){2,4}`)

// Extract returns the valid normalized identifiers found in text, left to
// right and without overlap. The sequence is lazy; each iteration rescans text
// from the beginning.
func Extract(text string) iter.Seq[string] {
	return func(yield func(string) bool) {
		offset := 0
		for offset < len(text) {
			loc := candidatePattern.FindStringIndex(text[offset:])
			if loc == nil {
				return
			}
			match := text[offset+loc[0] : offset+loc[1]]
			offset += loc[1]

			normalized := Normalize(match)
			if !Valid(normalized) {
				continue
			}
			if !yield(normalized) {
				return
			}
		}
	}
}

// ExtractAll collects [Extract] into a slice.
func ExtractAll(text string) []string {
	var out []string
	for id := range Extract(text) {
		out = append(out, id)
	}
	return out
}

// Normalize strips everything except digits and a leading plus sign.
func Normalize(raw string) string {
	raw = strings.TrimSpace(raw)
	var b strings.Builder
	b.Grow(len(raw))
	if strings.HasPrefix(raw, "+") {
		b.WriteByte('+')
	}
	for i := 0; i < len(raw); i++ {
		if c := raw[i]; c >= '0' && c <= '9' {
			b.WriteByte(c)
		}
	}
	if b.Len() == 1 && strings.HasPrefix(raw, "+") {
		return ""
	}
	return b.String()
}

// Digits returns the number of digits in value, ignoring every other rune.
func Digits(value string) int {
	n := 0
	for i := 0; i < len(value); i++ {
		if c := value[i]; c >= '0' && c <= '9' {
			n++
		}
	}
	return n
}

// Valid reports whether value has at least [MinDigits] digits.
func Valid(value string) bool {
	return Digits(value) >= MinDigits
}

// Tail returns the trailing [MinDigits] digits of value, or "" when value has
// fewer digits than that.
func Tail(value string) string {
	digits := strings.TrimPrefix(Normalize(value), "+")
	if len(digits) < MinDigits {
		return ""
	}
	return digits[len(digits)-MinDigits:]
}

// Equal reports whether a and b identify the same number.
func Equal(a string, b string) bool {
	na, nb := Normalize(a), Normalize(b)
	if na == "" || nb == "" {
		return false
	}
	if na == nb {
		return true
	}
	ta, tb := Tail(na), Tail(nb)
	return ta != "" && ta == tb
}
