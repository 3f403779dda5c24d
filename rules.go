package fieldmask

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"maps"
	"math"
	"os"
	"slices"
	"strings"
	"unicode/utf8"

	"gopkg.in/yaml.v3"

	fmerrors "github.com/tamirms/fieldmask/errors"
)

// MaxFieldLength is the largest Length a rule may declare. A masked field is
// materialized in full, so the bound also caps per-field memory.
const MaxFieldLength = 1 << 20

// FieldRule is one masking instruction for a line.
//
// In fixed-width mode Start is a zero-based character offset and the field
// spans [Start, Start+Length). In delimited mode Start is a zero-based column
// index and Length is the width of the masked column.
type FieldRule struct {
	Start    int
	Length   int
	Truncate int
	Filter   FilterKind
}

// End returns the exclusive end offset of the rule's range.
func (r FieldRule) End() int {
	return r.Start + r.Length
}

func (r FieldRule) validate() error {
	switch {
	case r.Start < 0:
		return fmt.Errorf("start must be non-negative, got %d", r.Start)
	case r.Length <= 0:
		return fmt.Errorf("length must be positive, got %d", r.Length)
	case r.Length > MaxFieldLength:
		return fmt.Errorf("length must be at most %d, got %d", MaxFieldLength, r.Length)
	case r.Start > math.MaxInt-r.Length:
		return fmt.Errorf("start %d plus length %d overflows", r.Start, r.Length)
	case r.Truncate < 0:
		return fmt.Errorf("truncate must be non-negative, got %d", r.Truncate)
	case r.Filter > FilterAlphanumeric:
		return fmerrors.ErrUnknownFilter
	}
	return nil
}

// RuleError describes a structural problem in a rules document.
type RuleError struct {
	Prefix string // Prefix the rule belongs to (empty for document-level errors)
	Index  int    // Position of the rule in its list, -1 for prefix-level errors
	Line   int    // Line in the rules document, 0 when unknown
	Err    error
}

// Error returns formatted error message
func (e *RuleError) Error() string {
	var b strings.Builder
	b.WriteString("rules")
	if e.Prefix != "" {
		fmt.Fprintf(&b, ": prefix %q", e.Prefix)
	}
	if e.Index >= 0 {
		fmt.Fprintf(&b, " rule %d", e.Index)
	}
	if e.Line > 0 {
		fmt.Fprintf(&b, " (line %d)", e.Line)
	}
	fmt.Fprintf(&b, ": %v", e.Err)
	return b.String()
}

// Unwrap returns the underlying error
func (e *RuleError) Unwrap() error {
	return e.Err
}

// Is reports every RuleError as an ErrInvalidRules.
func (e *RuleError) Is(target error) bool {
	return target == fmerrors.ErrInvalidRules
}

// RuleTable maps a line prefix to its ordered field rules.
//
// A RuleTable is immutable after construction and safe for concurrent use
// without locking. Slices returned by Lookup must not be modified.
type RuleTable struct {
	rules       map[string][]FieldRule
	prefixWidth int
}

// NewRuleTable validates rules and returns an immutable table. Every prefix
// must be exactly prefixWidth characters long. The input map is copied.
func NewRuleTable(rules map[string][]FieldRule, prefixWidth int) (*RuleTable, error) {
	if prefixWidth < 1 {
		return nil, fmt.Errorf("%w: prefix width must be positive, got %d", fmerrors.ErrInvalidConfig, prefixWidth)
	}
	t := &RuleTable{
		rules:       make(map[string][]FieldRule, len(rules)),
		prefixWidth: prefixWidth,
	}
	for _, prefix := range slices.Sorted(maps.Keys(rules)) {
		if err := checkPrefix(prefix, prefixWidth); err != nil {
			return nil, &RuleError{Prefix: prefix, Index: -1, Err: err}
		}
		list := rules[prefix]
		for i, r := range list {
			if err := r.validate(); err != nil {
				return nil, &RuleError{Prefix: prefix, Index: i, Err: err}
			}
		}
		t.rules[prefix] = slices.Clip(slices.Clone(list))
	}
	return t, nil
}

// Lookup returns the rules registered for prefix. Matching is exact.
// A missing prefix is not an error: ok is false and the line should pass through.
func (t *RuleTable) Lookup(prefix string) (rules []FieldRule, ok bool) {
	rules, ok = t.rules[prefix]
	return rules, ok
}

// PrefixWidth returns the prefix width every key was validated against.
func (t *RuleTable) PrefixWidth() int {
	return t.prefixWidth
}

// Len returns the number of prefixes.
func (t *RuleTable) Len() int {
	return len(t.rules)
}

// Prefixes returns all prefixes in sorted order.
func (t *RuleTable) Prefixes() []string {
	return slices.Sorted(maps.Keys(t.rules))
}

// LoadRules reads and parses a rules document from path.
func LoadRules(path string, prefixWidth int) (*RuleTable, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", fmerrors.ErrRulesNotFound, path)
		}
		return nil, fmt.Errorf("read rules file: %w", err)
	}
	table, err := ParseRules(data, prefixWidth)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return table, nil
}

// ParseRules parses a YAML or JSON rules document of the form
//
//	"01":
//	  - {Start: 2, Length: 7, Truncate: 5, Filter: alpha}
//	  - {Start: 9, Length: 8, Truncate: 8, Filter: numeric}
//	"02": []
//
// Field keys are matched case-insensitively. Truncate defaults to Length and
// Filter defaults to none. Unknown keys, duplicate prefixes and ill-typed
// values are rejected.
func ParseRules(data []byte, prefixWidth int) (*RuleTable, error) {
	var root yaml.Node
	dec := yaml.NewDecoder(bytes.NewReader(data))
	if err := dec.Decode(&root); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, &RuleError{Index: -1, Err: errors.New("document is empty")}
		}
		return nil, &RuleError{Index: -1, Err: err}
	}

	doc := &root
	if doc.Kind == yaml.DocumentNode && len(doc.Content) == 1 {
		doc = doc.Content[0]
	}
	if doc.Kind != yaml.MappingNode {
		return nil, &RuleError{Index: -1, Line: doc.Line, Err: errors.New("top level must be a mapping of prefix to rule list")}
	}

	rules := make(map[string][]FieldRule, len(doc.Content)/2)
	for i := 0; i+1 < len(doc.Content); i += 2 {
		key, val := doc.Content[i], doc.Content[i+1]
		prefix := key.Value
		if _, dup := rules[prefix]; dup {
			return nil, &RuleError{Prefix: prefix, Index: -1, Line: key.Line, Err: errors.New("duplicate prefix")}
		}
		list, err := parseRuleList(prefix, val)
		if err != nil {
			return nil, err
		}
		rules[prefix] = list
	}
	return NewRuleTable(rules, prefixWidth)
}

func parseRuleList(prefix string, node *yaml.Node) ([]FieldRule, error) {
	if node.Kind == yaml.ScalarNode && node.Tag == "!!null" {
		return []FieldRule{}, nil
	}
	if node.Kind != yaml.SequenceNode {
		return nil, &RuleError{Prefix: prefix, Index: -1, Line: node.Line, Err: errors.New("rules must be a list")}
	}
	list := make([]FieldRule, 0, len(node.Content))
	for i, item := range node.Content {
		r, err := parseFieldRule(item)
		if err != nil {
			return nil, &RuleError{Prefix: prefix, Index: i, Line: item.Line, Err: err}
		}
		list = append(list, r)
	}
	return list, nil
}

func parseFieldRule(node *yaml.Node) (FieldRule, error) {
	if node.Kind != yaml.MappingNode {
		return FieldRule{}, errors.New("field rule must be a mapping")
	}
	var (
		r                          FieldRule
		hasStart, hasLen, hasTrunc bool
	)
	for i := 0; i+1 < len(node.Content); i += 2 {
		key, val := node.Content[i], node.Content[i+1]
		var err error
		switch strings.ToLower(key.Value) {
		case "start":
			hasStart = true
			err = decodeInt(val, &r.Start)
		case "length":
			hasLen = true
			err = decodeInt(val, &r.Length)
		case "truncate":
			hasTrunc = true
			err = decodeInt(val, &r.Truncate)
		case "filter":
			var name string
			if err = val.Decode(&name); err == nil {
				r.Filter, err = ParseFilterKind(name)
			}
		default:
			err = fmt.Errorf("unknown key %q", key.Value)
		}
		if err != nil {
			return FieldRule{}, fmt.Errorf("%s: %w", key.Value, err)
		}
	}
	if !hasStart {
		return FieldRule{}, errors.New("missing Start")
	}
	if !hasLen {
		return FieldRule{}, errors.New("missing Length")
	}
	if !hasTrunc {
		r.Truncate = r.Length
	}
	return r, nil
}

func decodeInt(node *yaml.Node, dst *int) error {
	if node.Kind != yaml.ScalarNode || node.Tag != "!!int" {
		return fmt.Errorf("expected integer, got %q", node.Value)
	}
	return node.Decode(dst)
}

func checkPrefix(prefix string, width int) error {
	if !utf8.ValidString(prefix) {
		return errors.New("prefix is not valid UTF-8")
	}
	if n := utf8.RuneCountInString(prefix); n != width {
		return fmt.Errorf("prefix has %d characters, expected %d", n, width)
	}
	return nil
}
