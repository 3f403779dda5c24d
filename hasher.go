package fieldmask

import (
	"encoding/hex"
	"strings"
)

// maxDigestSize is the largest DigestSize of any supported algorithm (SHA512).
const maxDigestSize = 64

// MaskField computes the masked replacement for one raw field value:
// digest(raw+salt) rendered as uppercase hex, reduced by filter, then cut to
// at most truncate characters. The result is never longer than truncate.
//
// MaskField is pure. The salt is appended, not prepended, and the digest is
// unkeyed (not an HMAC).
func MaskField(raw, salt string, algo HashAlgorithm, filter FilterKind, truncate int) string {
	if truncate <= 0 {
		return ""
	}

	var stack [256]byte
	input := append(append(stack[:0], raw...), salt...)

	var sumBuf [maxDigestSize]byte
	sum := algo.digestInto(sumBuf[:0], input)

	var hexBuf [2 * maxDigestSize]byte
	n := hex.Encode(hexBuf[:], sum)
	digest := strings.ToUpper(string(hexBuf[:n]))

	filtered := ApplyFilter(digest, filter)
	if len(filtered) > truncate {
		filtered = filtered[:truncate]
	}
	return filtered
}

// fitWidth right-pads s with spaces, or cuts it, to exactly width runes.
// s is always ASCII here (hex digest output), so rune and byte counts agree.
func fitWidth(s string, width int) string {
	switch {
	case len(s) == width:
		return s
	case len(s) > width:
		return s[:width]
	default:
		return s + strings.Repeat(" ", width-len(s))
	}
}
