package fieldmask

import (
	"encoding/csv"
	"fmt"
	"strings"
	"unicode/utf8"

	fmerrors "github.com/tamirms/fieldmask/errors"
)

// Outcome classifies what Transform did with a line.
type Outcome uint8

const (
	// OutcomeUnmatched means no rules exist for the line's prefix; the line is unchanged.
	OutcomeUnmatched Outcome = iota

	// OutcomeShort means the line is shorter than the prefix width; the line is unchanged.
	OutcomeShort

	// OutcomeMasked means every rule for the prefix was applied.
	OutcomeMasked

	// OutcomeFailed means a rule could not be applied; the line is unchanged.
	OutcomeFailed
)

// String returns the outcome name.
func (o Outcome) String() string {
	switch o {
	case OutcomeUnmatched:
		return "unmatched"
	case OutcomeShort:
		return "short"
	case OutcomeMasked:
		return "masked"
	case OutcomeFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// FieldRangeError reports a rule whose range does not fit the line it was applied to.
type FieldRangeError struct {
	Prefix string
	Rule   int // Index of the rule in the prefix's list
	Start  int
	Length int
	Width  int // Line length in characters, or column count in delimited mode
	Column bool
}

// Error returns formatted error message
func (e *FieldRangeError) Error() string {
	if e.Column {
		return fmt.Sprintf("prefix %q rule %d: column %d out of range for record with %d columns",
			e.Prefix, e.Rule, e.Start, e.Width)
	}
	return fmt.Sprintf("prefix %q rule %d: range [%d,%d) exceeds line length %d",
		e.Prefix, e.Rule, e.Start, e.Start+e.Length, e.Width)
}

// Unwrap returns ErrFieldOutOfRange.
func (e *FieldRangeError) Unwrap() error {
	return fmerrors.ErrFieldOutOfRange
}

// Transformer applies a RuleTable to single lines.
//
// A Transformer holds only read-only state and is safe for concurrent use;
// every call works on its own per-line buffer.
type Transformer struct {
	table *RuleTable
	cfg   Config
}

// NewTransformer binds a rule table to a run configuration.
func NewTransformer(table *RuleTable, cfg Config) (*Transformer, error) {
	if table == nil {
		return nil, fmt.Errorf("%w: nil rule table", fmerrors.ErrInvalidConfig)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	if table.PrefixWidth() != cfg.PrefixWidth {
		return nil, fmt.Errorf("%w: rule table prefix width %d does not match configured width %d",
			fmerrors.ErrInvalidConfig, table.PrefixWidth(), cfg.PrefixWidth)
	}
	return &Transformer{table: table, cfg: cfg}, nil
}

// Transform masks line according to the rules for its prefix.
//
// The returned line always has the same character length as the input in
// fixed-width mode. Lines that are too short for a prefix, or whose prefix has
// no rules, are returned unchanged with a nil error. If any rule fails the
// original line is returned together with the error, so a line is never
// partially masked.
func (t *Transformer) Transform(line string) (string, Outcome, error) {
	out, outcome, _, err := t.transform(line)
	return out, outcome, err
}

// transform is Transform plus the number of fields written.
func (t *Transformer) transform(line string) (string, Outcome, int, error) {
	prefix, ok := leadingChars(line, t.cfg.PrefixWidth)
	if !ok {
		return line, OutcomeShort, 0, nil
	}
	rules, ok := t.table.Lookup(prefix)
	if !ok {
		return line, OutcomeUnmatched, 0, nil
	}

	var (
		out string
		err error
	)
	if t.cfg.Mode == ModeDelimited {
		out, err = t.maskDelimited(line, prefix, rules)
	} else {
		out, err = t.maskFixed(line, prefix, rules)
	}
	if err != nil {
		return line, OutcomeFailed, 0, err
	}
	return out, OutcomeMasked, len(rules), nil
}

// maskFixed applies rules in order on a mutable copy of line. Later rules see
// what earlier rules wrote, so overlapping ranges behave like in-place edits.
func (t *Transformer) maskFixed(line, prefix string, rules []FieldRule) (string, error) {
	buf := newCharBuffer(line)
	for i, r := range rules {
		if r.Start > buf.Len()-r.Length {
			return "", &FieldRangeError{Prefix: prefix, Rule: i, Start: r.Start, Length: r.Length, Width: buf.Len()}
		}
		masked := MaskField(buf.Slice(r.Start, r.End()), t.cfg.Salt, t.cfg.Algorithm, r.Filter, r.Truncate)
		buf.Overwrite(r.Start, fitWidth(masked, r.Length))
	}
	return buf.String(), nil
}

// maskDelimited treats line as one delimited record and masks whole columns.
func (t *Transformer) maskDelimited(line, prefix string, rules []FieldRule) (string, error) {
	rd := csv.NewReader(strings.NewReader(line))
	rd.Comma = t.cfg.Delimiter
	rd.FieldsPerRecord = -1
	rd.LazyQuotes = true
	record, err := rd.Read()
	if err != nil {
		return "", fmt.Errorf("%w: %v", fmerrors.ErrMalformedRecord, err)
	}

	for i, r := range rules {
		if r.Start >= len(record) {
			return "", &FieldRangeError{Prefix: prefix, Rule: i, Start: r.Start, Length: r.Length, Width: len(record), Column: true}
		}
		masked := MaskField(record[r.Start], t.cfg.Salt, t.cfg.Algorithm, r.Filter, r.Truncate)
		record[r.Start] = fitWidth(masked, r.Length)
	}

	var b strings.Builder
	w := csv.NewWriter(&b)
	w.Comma = t.cfg.Delimiter
	if err := w.Write(record); err != nil {
		return "", err
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return "", err
	}
	return strings.TrimSuffix(b.String(), "\n"), nil
}

// leadingChars returns the first n characters of line. Lines that are not
// valid UTF-8 are addressed byte by byte, matching newCharBuffer.
func leadingChars(line string, n int) (string, bool) {
	if !utf8.ValidString(line) {
		if len(line) < n {
			return "", false
		}
		return line[:n], true
	}
	end := 0
	for i := 0; i < n; i++ {
		if end >= len(line) {
			return "", false
		}
		_, size := utf8.DecodeRuneInString(line[end:])
		end += size
	}
	return line[:end], true
}

// charBuffer is the owned, fixed-size working copy of one line.
type charBuffer interface {
	Len() int
	Slice(start, end int) string
	// Overwrite replaces len(s) characters at start. s must be ASCII.
	Overwrite(start int, s string)
	String() string
}

func newCharBuffer(line string) charBuffer {
	if !isASCII(line) && utf8.ValidString(line) {
		return runeBuffer([]rune(line))
	}
	return byteBuffer([]byte(line))
}

type byteBuffer []byte

func (b byteBuffer) Len() int                      { return len(b) }
func (b byteBuffer) Slice(start, end int) string   { return string(b[start:end]) }
func (b byteBuffer) Overwrite(start int, s string) { copy(b[start:], s) }
func (b byteBuffer) String() string                { return string(b) }

type runeBuffer []rune

func (b runeBuffer) Len() int                    { return len(b) }
func (b runeBuffer) Slice(start, end int) string { return string(b[start:end]) }
func (b runeBuffer) String() string              { return string(b) }

func (b runeBuffer) Overwrite(start int, s string) {
	for i := 0; i < len(s); i++ {
		b[start+i] = rune(s[i])
	}
}
