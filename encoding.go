package fieldmask

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"

	fmerrors "github.com/tamirms/fieldmask/errors"
)

// Encoding is the text encoding of input and output files.
type Encoding uint8

const (
	// EncodingUTF8 passes bytes through unchanged; fields are addressed by
	// character when the line is valid UTF-8 and by byte otherwise.
	EncodingUTF8 Encoding = iota

	// EncodingLatin1 is ISO-8859-1: one byte per character.
	EncodingLatin1
)

// String returns the encoding name.
func (e Encoding) String() string {
	switch e {
	case EncodingUTF8:
		return "utf-8"
	case EncodingLatin1:
		return "latin-1"
	default:
		return "unknown"
	}
}

// ParseEncoding maps a user-facing encoding name to an Encoding.
func ParseEncoding(name string) (Encoding, error) {
	norm := strings.NewReplacer("-", "", "_", "").Replace(strings.ToLower(strings.TrimSpace(name)))
	switch norm {
	case "", "utf8":
		return EncodingUTF8, nil
	case "latin1", "iso88591", "l1":
		return EncodingLatin1, nil
	default:
		return EncodingUTF8, fmt.Errorf("%w: %q", fmerrors.ErrUnknownEncoding, name)
	}
}

func (e Encoding) valid() bool {
	return e <= EncodingLatin1
}

// decode converts raw file bytes to a Go string.
func (e Encoding) decode(raw []byte) (string, error) {
	if e != EncodingLatin1 {
		return string(raw), nil
	}
	out, err := charmap.ISO8859_1.NewDecoder().Bytes(raw)
	if err != nil {
		return "", fmt.Errorf("decode %s: %w", e, err)
	}
	return string(out), nil
}

// appendEncoded appends s in encoding e to dst.
func (e Encoding) appendEncoded(dst []byte, s string) ([]byte, error) {
	if e != EncodingLatin1 || isASCII(s) {
		return append(dst, s...), nil
	}
	out, err := charmap.ISO8859_1.NewEncoder().String(s)
	if err != nil {
		return dst, fmt.Errorf("%w: %s: %v", fmerrors.ErrUnencodable, e, err)
	}
	return append(dst, out...), nil
}

func isASCII(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] >= utf8.RuneSelf {
			return false
		}
	}
	return true
}
