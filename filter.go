package fieldmask

import (
	"fmt"
	"strings"

	fmerrors "github.com/tamirms/fieldmask/errors"
)

// FilterKind restricts a hashed value to a character class before truncation.
type FilterKind uint8

const (
	// FilterNone keeps every character.
	FilterNone FilterKind = iota

	// FilterAlpha keeps ASCII letters (A-Z, a-z).
	FilterAlpha

	// FilterNumeric keeps ASCII digits (0-9).
	FilterNumeric

	// FilterAlphanumeric keeps ASCII letters and digits.
	FilterAlphanumeric
)

// String returns the filter name as it appears in rules documents.
func (k FilterKind) String() string {
	switch k {
	case FilterNone:
		return "none"
	case FilterAlpha:
		return "alpha"
	case FilterNumeric:
		return "numeric"
	case FilterAlphanumeric:
		return "alphanumeric"
	default:
		return "unknown"
	}
}

// ParseFilterKind maps a rules-document filter name to a FilterKind.
// The empty string means FilterNone.
func ParseFilterKind(s string) (FilterKind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "none":
		return FilterNone, nil
	case "alpha":
		return FilterAlpha, nil
	case "numeric":
		return FilterNumeric, nil
	case "alphanumeric":
		return FilterAlphanumeric, nil
	default:
		return FilterNone, fmt.Errorf("%w: %q", fmerrors.ErrUnknownFilter, s)
	}
}

// ApplyFilter returns value reduced to the characters of class kind,
// preserving their relative order.
func ApplyFilter(value string, kind FilterKind) string {
	var keep func(c byte) bool
	switch kind {
	case FilterAlpha:
		keep = isASCIILetter
	case FilterNumeric:
		keep = isASCIIDigit
	case FilterAlphanumeric:
		keep = func(c byte) bool { return isASCIILetter(c) || isASCIIDigit(c) }
	default:
		return value
	}

	// Non-ASCII bytes never match any class, so byte iteration is safe for UTF-8.
	var b strings.Builder
	b.Grow(len(value))
	for i := 0; i < len(value); i++ {
		if c := value[i]; keep(c) {
			b.WriteByte(c)
		}
	}
	return b.String()
}

func isASCIILetter(c byte) bool {
	return ('A' <= c && c <= 'Z') || ('a' <= c && c <= 'z')
}

func isASCIIDigit(c byte) bool {
	return '0' <= c && c <= '9'
}
